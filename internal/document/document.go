package document

import (
	"path/filepath"
	"strings"
)

// Document is the text pulled out of one uploaded file.
type Document struct {
	Title      string // From the filename, or <title>/first heading where the format has one
	TotalPages int    // Pages (or sections) seen in the source, including skipped ones
	Pages      []Page // Pages that yielded text, in source order
}

// Page is the text of one PDF page, or one section for non-paged formats.
type Page struct {
	Number int    // 1-based position in the source
	Text   string // Trimmed, never blank
}

// AddPage appends a page if its text is not blank. It reports whether the page was kept.
func (d *Document) AddPage(number int, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	d.Pages = append(d.Pages, Page{Number: number, Text: text})
	return true
}

// Text joins all kept pages with a newline.
func (d *Document) Text() string {
	if d == nil || len(d.Pages) == 0 {
		return ""
	}
	parts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n")
}

// SkippedPages is the number of source pages that contributed no text.
func (d *Document) SkippedPages() int {
	if d.TotalPages < len(d.Pages) {
		return 0
	}
	return d.TotalPages - len(d.Pages)
}

// SummaryFilename names the summary file for a source file: report.pdf becomes
// report_summary.txt. Directories are kept.
func SummaryFilename(source string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + "_summary.txt"
}
