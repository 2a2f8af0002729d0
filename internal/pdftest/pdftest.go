// Package pdftest generates PDF fixtures for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/go-pdf/fpdf"
)

// Document returns a PDF with the given number of pages. Each page holds
// the words "Page N of the sample".
func Document(t testing.TB, title string, pages int) []byte {
	t.Helper()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(title, false)
	doc.SetFont("Helvetica", "", 14)
	for i := 1; i <= pages; i++ {
		doc.AddPage()
		doc.Cell(40, 10, fmt.Sprintf("Page %d of the sample", i))
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("failed to generate pdf: %v", err)
	}
	return buf.Bytes()
}
