package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/pdfbrief/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Each heading starts a section;
// markup is dropped so the model sees prose only.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	root := goldmark.New().Parser().Parse(text.NewReader(src))

	title := ""
	secs := newSections(baseTitle(filename))
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			heading := extractText(h, src)
			if title == "" && h.Level == 1 {
				title = heading
			}
			secs.heading(heading)
			continue
		}
		secs.text(extractText(n, src))
	}

	doc := secs.done()
	if title != "" {
		doc.Title = title
	}
	return doc, nil
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		// Code blocks keep their content in lines rather than children.
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			inner := extractText(c, src)
			if c.Type() == ast.TypeBlock && buf.Len() > 0 && inner != "" {
				buf.WriteByte('\n')
			}
			buf.WriteString(inner)
		}
	}
	return strings.TrimSpace(buf.String())
}
