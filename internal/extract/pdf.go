package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PageReader returns the plain text of each page of a PDF, in order.
type PageReader interface {
	ReadPages(path string) ([]string, error)
}

func (e *Extractor) extractPDF(path string) (string, error) {
	pages, err := e.pdf.ReadPages(path)
	if err != nil {
		return "", err
	}

	nonEmpty := make([]string, 0, len(pages))
	for _, page := range pages {
		if page != "" {
			nonEmpty = append(nonEmpty, page)
		}
	}
	return strings.Join(nonEmpty, " "), nil
}

type ledongthucReader struct{}

// ReadPages recovers parser panics, which malformed files can trigger.
func (ledongthucReader) ReadPages(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
