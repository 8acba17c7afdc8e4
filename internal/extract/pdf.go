// Package extract reads per-page text out of PDF files. Extraction
// quality is whatever the underlying reader gives us; the pipeline only
// depends on getting one text per page.
package extract

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	"docq/internal/domain"
)

var _ domain.Extractor = (*PDFExtractor)(nil)

// PDFExtractor extracts page texts from a PDF on disk.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

// Extract returns one string per page, in page order. Any page that
// fails to decode aborts the whole file: the caller gets zero pages
// rather than a silently truncated document.
func (e *PDFExtractor) Extract(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]string, 0, total)
	for n := 1; n <= total; n++ {
		p := r.Page(n)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d of %s: %w", n, path, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
