package document

import "testing"

func TestDocument_AddPageSkipsBlank(t *testing.T) {
	doc := &Document{TotalPages: 3}
	if !doc.AddPage(1, "  first page  ") {
		t.Error("expected page 1 to be kept")
	}
	if doc.AddPage(2, " \n\t ") {
		t.Error("expected blank page 2 to be skipped")
	}
	if !doc.AddPage(3, "third page") {
		t.Error("expected page 3 to be kept")
	}

	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}
	if doc.Pages[0].Text != "first page" {
		t.Errorf("expected trimmed text, got %q", doc.Pages[0].Text)
	}
	if doc.Pages[1].Number != 3 {
		t.Errorf("expected second kept page to be number 3, got %d", doc.Pages[1].Number)
	}
	if doc.SkippedPages() != 1 {
		t.Errorf("expected 1 skipped page, got %d", doc.SkippedPages())
	}
}

func TestDocument_TextJoinsWithNewline(t *testing.T) {
	doc := &Document{}
	doc.AddPage(1, "alpha")
	doc.AddPage(2, "beta")
	if got := doc.Text(); got != "alpha\nbeta" {
		t.Errorf("expected %q, got %q", "alpha\nbeta", got)
	}
}

func TestDocument_TextEmpty(t *testing.T) {
	var doc *Document
	if doc.Text() != "" {
		t.Error("expected empty text for nil document")
	}
	if (&Document{}).Text() != "" {
		t.Error("expected empty text for document without pages")
	}
}

func TestSummaryFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report_summary.txt"},
		{"docs/lease.PDF", "docs/lease_summary.txt"},
		{"notes", "notes_summary.txt"},
		{"archive.tar.gz", "archive.tar_summary.txt"},
	}
	for _, tt := range tests {
		if got := SummaryFilename(tt.in); got != tt.want {
			t.Errorf("SummaryFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
