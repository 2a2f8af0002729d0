// Package document inspects uploaded PDF files.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ledongthuc/pdf"
)

var (
	// ErrNotPDF is returned when the data does not start with the PDF magic bytes.
	ErrNotPDF = errors.New("file is not a PDF")
	// ErrNoPages is returned for documents without pages.
	ErrNoPages = errors.New("PDF has no pages")
)

var magic = []byte("%PDF-")

// Info describes a PDF document.
type Info struct {
	Title     string
	Pages     int
	WordCount int
}

// Inspect reads the page count, title and word count of a PDF.
func Inspect(r io.ReaderAt, size int64) (info *Info, err error) {
	head := make([]byte, len(magic))
	if _, err := r.ReadAt(head, 0); err != nil || !bytes.Equal(head, magic) {
		return nil, ErrNotPDF
	}

	// ledongthuc/pdf panics on some malformed input.
	defer func() {
		if rec := recover(); rec != nil {
			info, err = nil, fmt.Errorf("failed to parse PDF: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	pages := reader.NumPage()
	if pages == 0 {
		return nil, ErrNoPages
	}

	info = &Info{
		Title: strings.TrimSpace(reader.Trailer().Key("Info").Key("Title").Text()),
		Pages: pages,
	}

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Debug("failed to extract page text", "page", i, "error", err)
			continue
		}
		info.WordCount += len(strings.Fields(text))
	}

	return info, nil
}
