package zotero

import (
	"context"
	"sort"
	"strings"
)

// AttachmentDetails identifies the attachment chosen for fulltext extraction.
type AttachmentDetails struct {
	Key         string
	Title       string
	Filename    string
	ContentType string
}

// BestAttachment picks the most useful extractable attachment for an
// item: PDFs are preferred over HTML, HTML over anything else, and within
// a category the largest file wins. Attachments whose content type the
// supports predicate rejects are skipped entirely, so a PDF the caller
// cannot extract falls through to an HTML sibling instead of winning the
// pick; a nil predicate accepts everything. The length of the stored MD5
// is used as a cheap size proxy, matching Zotero client behaviour where a
// missing checksum means the file was never fully synced.
func BestAttachment(ctx context.Context, src Source, item *Item, supports func(contentType string) bool) (*AttachmentDetails, error) {
	if supports == nil {
		supports = func(string) bool { return true }
	}

	if item.Data.IsAttachment() {
		if !supports(item.Data.ContentType) {
			return nil, nil
		}
		return &AttachmentDetails{
			Key:         item.Key,
			Title:       item.Data.Title,
			Filename:    item.Data.Filename,
			ContentType: item.Data.ContentType,
		}, nil
	}

	if item.Meta.NumChildren == 0 {
		return nil, nil
	}

	children, err := src.Children(ctx, item.Key)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		att  AttachmentDetails
		size int
	}
	var pdfs, htmls, others []candidate

	for _, child := range children {
		if !child.Data.IsAttachment() || !supports(child.Data.ContentType) {
			continue
		}
		c := candidate{
			att: AttachmentDetails{
				Key:         child.Key,
				Title:       child.Data.Title,
				Filename:    child.Data.Filename,
				ContentType: child.Data.ContentType,
			},
			size: len(child.Data.MD5),
		}
		switch {
		case child.Data.ContentType == "application/pdf":
			pdfs = append(pdfs, c)
		case strings.HasPrefix(child.Data.ContentType, "text/html"):
			htmls = append(htmls, c)
		default:
			others = append(others, c)
		}
	}

	for _, category := range [][]candidate{pdfs, htmls, others} {
		if len(category) == 0 {
			continue
		}
		sort.SliceStable(category, func(i, j int) bool {
			return category[i].size > category[j].size
		})
		att := category[0].att
		return &att, nil
	}

	return nil, nil
}
