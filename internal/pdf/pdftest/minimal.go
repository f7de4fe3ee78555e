// Package pdftest builds small, well-formed PDF files for tests of the
// byte-level toolkits.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Page describes one page of a generated document
type Page struct {
	Width, Height float64
	// Text is drawn in Helvetica near the top-left corner when set
	Text string
}

// Letter returns n US Letter pages without content
func Letter(n int) []Page {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Width: 612, Height: 792}
	}
	return pages
}

// Build returns a PDF 1.4 document with a classic cross-reference table
func Build(pages []Page) []byte {
	var objects []string
	// 1 catalog, 2 page tree, 3 font, then page and content pairs
	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i, p := range pages {
		stream := ""
		if p.Text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 %.2f Td (%s) Tj ET", p.Height-72, p.Text)
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.2f %.2f] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
				p.Width, p.Height, 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// WriteFile writes a generated document into the test's temp directory
func WriteFile(t testing.TB, name string, pages []Page) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, Build(pages), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
