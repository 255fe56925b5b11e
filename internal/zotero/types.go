package zotero

// Library identifies the Zotero library an operation runs against.
// It is passed explicitly to client construction; there is no ambient
// process-wide override.
type Library struct {
	ID   string
	Type string // "user" or "group"
}

// Item is a Zotero item as returned by the API. Key and Version are
// duplicated at the top level and inside Data; the top-level values are
// authoritative for sync bookkeeping.
type Item struct {
	Key     string   `json:"key"`
	Version int      `json:"version"`
	Meta    ItemMeta `json:"meta"`
	Data    ItemData `json:"data"`
}

// ItemMeta holds API-computed metadata.
type ItemMeta struct {
	NumChildren int `json:"numChildren"`
}

// ItemData is the mutable payload of an item.
type ItemData struct {
	Key          string    `json:"key"`
	Version      int       `json:"version"`
	ItemType     string    `json:"itemType"`
	Title        string    `json:"title"`
	AbstractNote string    `json:"abstractNote"`
	Date         string    `json:"date"`
	Creators     []Creator `json:"creators"`
	Tags         []Tag     `json:"tags"`
	Note         string    `json:"note"`

	// Attachment fields.
	ParentItem  string `json:"parentItem"`
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
	MD5         string `json:"md5"`
}

// Creator is an author, editor, or similar contributor.
type Creator struct {
	CreatorType string `json:"creatorType"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"`
}

// Tag is a single item tag.
type Tag struct {
	Tag string `json:"tag"`
}

// TagNames flattens an item's tags into their display strings,
// preserving order.
func (d ItemData) TagNames() []string {
	names := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		names = append(names, t.Tag)
	}
	return names
}

// IsAttachment reports whether the item is a file attachment.
func (d ItemData) IsAttachment() bool { return d.ItemType == "attachment" }
