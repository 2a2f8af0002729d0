// Package viewer decides which pages of a document a reader may see
// and renders the PDF they receive.
package viewer

// Policy is the page limit applied to a reader of a file.
type Policy struct {
	TotalPages   int  `json:"totalPages"`
	PreviewPages int  `json:"previewPages"`
	Licensed     bool `json:"licensed"`
}

// MaxViewablePages returns the number of pages the reader may see.
func (p Policy) MaxViewablePages() int {
	total := max(p.TotalPages, 0)
	if p.Licensed {
		return total
	}
	return min(max(p.PreviewPages, 0), total)
}

// CanView reports whether the 1-based page is within the limit.
func (p Policy) CanView(page int) bool {
	return page >= 1 && page <= p.MaxViewablePages()
}

// IsPreview reports whether the reader only gets part of the document.
func (p Policy) IsPreview() bool {
	return !p.Licensed && p.MaxViewablePages() < max(p.TotalPages, 0)
}
