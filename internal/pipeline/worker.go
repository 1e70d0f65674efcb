package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/dgallion1/pdfbrief/internal/chunker"
	"github.com/dgallion1/pdfbrief/internal/llm"
	"github.com/dgallion1/pdfbrief/internal/parser"
	"github.com/dgallion1/pdfbrief/internal/summarize"
)

// Worker processes a single document job.
type Worker struct {
	gen  llm.Generator
	log  *slog.Logger
	opts parser.Options
}

func NewWorker(gen llm.Generator, log *slog.Logger, opts parser.Options) *Worker {
	return &Worker{gen: gen, log: log, opts: opts}
}

// Process extracts the document text and summarizes it.
func (w *Worker) Process(ctx context.Context, job *Job) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	job.setCancel(cancel)
	defer job.setCancel(nil)

	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)

	// Phase 1: Extract
	job.SetStatus(StatusExtracting, "extracting text")
	doc, err := parser.Extract(bytes.NewReader(job.FileData()), job.Filename, w.opts)
	job.ReleaseFileData()
	if err != nil {
		log.Error("extraction failed", "filename", job.Filename, "error", err)
		job.Fail("extracting", err)
		return
	}

	text := doc.Text()
	job.SetDocument(doc.Title, doc.TotalPages, doc.SkippedPages(), utf8.RuneCountInString(text))
	log.Info("extracted text", "pages", doc.TotalPages, "skipped_pages", doc.SkippedPages(), "chars", len(text))
	if n := doc.SkippedPages(); n > 0 && text != "" {
		job.AddWarning(fmt.Sprintf("%d of %d pages had no extractable text", n, doc.TotalPages))
	}
	if text == "" {
		log.Warn("no readable text found", "filename", job.Filename)
		job.Fail("extracting", parser.ErrNoText)
		return
	}

	// Phase 2: Summarize
	params := job.Params()
	s, err := summarize.New(w.gen, params, log)
	if err != nil {
		job.Fail("summarizing", err)
		return
	}
	job.SetTotalChunks(chunker.Count(text, params.ChunkSize))
	job.SetStatus(StatusSummarizing, "summarizing")

	out, err := s.Summarize(ctx, text, job)
	if err != nil {
		log.Warn("summarization aborted", "error", err)
		job.Fail("summarizing", err)
		return
	}

	job.Finish(out)
	log.Info("summary complete",
		"state", out.State,
		"chunks", out.Chunks,
		"failed_chunks", out.Failed(),
		"model_calls", out.Calls,
	)
}
