package zotero

import "strings"

// FormatCreators renders creator names as "Last, First; Last, First".
func FormatCreators(creators []Creator) string {
	var names []string
	for _, c := range creators {
		switch {
		case c.LastName != "" && c.FirstName != "":
			names = append(names, c.LastName+", "+c.FirstName)
		case c.LastName != "":
			names = append(names, c.LastName)
		case c.Name != "":
			names = append(names, c.Name)
		}
	}
	if len(names) == 0 {
		return "No authors listed"
	}
	return strings.Join(names, "; ")
}
