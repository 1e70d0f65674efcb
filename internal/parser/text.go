package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/pdfbrief/internal/document"
)

// TextParser handles plain text files. Form feeds split pages; without any the whole
// file is one page.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pages []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		for {
			before, after, found := strings.Cut(line, "\f")
			current.WriteString(before)
			if !found {
				break
			}
			pages = append(pages, current.String())
			current.Reset()
			line = after
		}
		current.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	pages = append(pages, current.String())

	doc := &document.Document{
		Title:      baseTitle(filename),
		TotalPages: len(pages),
	}
	for i, page := range pages {
		doc.AddPage(i+1, page)
	}
	return doc, nil
}
