package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/pdfbrief/internal/document"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if enabled and installed.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty pdf")
	}

	doc, err := readPDF(data)
	if p.FallbackPdftotext && (err != nil || len(doc.Pages) == 0) {
		if fallback, ferr := pdftotext(data); ferr == nil && len(fallback.Pages) > 0 {
			doc, err = fallback, nil
		}
	}
	if err != nil {
		return nil, err
	}
	doc.Title = baseTitle(filename)
	return doc, nil
}

// readPDF extracts page text with ledongthuc/pdf. Malformed files can make the library
// panic, which is turned into an error.
func readPDF(data []byte) (doc *document.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	doc = &document.Document{TotalPages: reader.NumPage()}
	for i := 1; i <= doc.TotalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // Unreadable pages count as blank.
		}
		doc.AddPage(i, text)
	}
	return doc, nil
}

func pdftotext(data []byte) (*document.Document, error) {
	bin, err := exec.LookPath("pdftotext")
	if err != nil {
		return nil, err
	}

	// pdftotext wants a path.
	tmp, err := os.CreateTemp("", "pdfbrief-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	out, err := exec.Command(bin, "-layout", tmpPath, "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}

	// Pages are separated by form feeds, with a trailing one after the last page.
	pages := strings.Split(strings.TrimSuffix(string(out), "\f"), "\f")
	doc := &document.Document{TotalPages: len(pages)}
	for i, text := range pages {
		doc.AddPage(i+1, text)
	}
	return doc, nil
}
