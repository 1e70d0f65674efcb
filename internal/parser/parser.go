// Package parser pulls plain text out of uploaded documents.
package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/pdfbrief/internal/document"
)

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*document.Document, error)
}

// ErrNoText is returned when a document parses but holds no readable text.
var ErrNoText = errors.New("no readable text found")

// ExtractionError means no text could be read from the file. It is fatal for that document.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract text from %s: %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Options tune the parsers.
type Options struct {
	// PDFFallback runs pdftotext when the built-in PDF reader fails or finds no text.
	PDFFallback bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallback}, nil
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Extract picks the parser for filename and runs it. Parse failures come back as
// *ExtractionError. A document whose pages are all blank is not an error here.
func Extract(r io.Reader, filename string, opts Options) (*document.Document, error) {
	p, err := ForFile(filename, opts)
	if err != nil {
		return nil, &ExtractionError{Filename: filename, Err: err}
	}
	doc, err := p.Parse(r, filename)
	if err != nil {
		return nil, &ExtractionError{Filename: filename, Err: err}
	}
	return doc, nil
}

func baseTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// sections flattens a heading-structured document: every heading opens a new section that
// holds the heading line and the text up to the next heading.
type sections struct {
	doc     *document.Document
	current strings.Builder
	n       int
}

func newSections(title string) *sections {
	return &sections{doc: &document.Document{Title: title}}
}

func (s *sections) heading(text string) {
	s.flush()
	s.current.WriteString(text)
}

func (s *sections) text(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	if s.current.Len() > 0 {
		s.current.WriteString("\n\n")
	}
	s.current.WriteString(t)
}

func (s *sections) flush() {
	if s.current.Len() == 0 {
		return
	}
	s.n++
	s.doc.AddPage(s.n, s.current.String())
	s.current.Reset()
}

func (s *sections) done() *document.Document {
	s.flush()
	s.doc.TotalPages = s.n
	return s.doc
}
