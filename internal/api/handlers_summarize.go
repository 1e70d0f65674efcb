package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/pdfbrief/internal/document"
	"github.com/dgallion1/pdfbrief/internal/parser"
	"github.com/dgallion1/pdfbrief/internal/pipeline"
	"github.com/dgallion1/pdfbrief/internal/summarize"
	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
)

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	params, err := s.formParams(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	if len(data) == 0 {
		jsonError(w, "file is empty", http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(filename, data, params)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.Info("job queued", "job_id", job.ID, "doc_id", job.DocID, "filename", filename, "bytes", len(data))

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      job.ID,
		"doc_id":      job.DocID,
		"status":      pipeline.StatusQueued,
		"poll_url":    fmt.Sprintf("/api/summarize/%s/status", job.ID),
		"summary_url": fmt.Sprintf("/api/summarize/%s/summary", job.ID),
	})
}

// formParams applies the optional per-request overrides to the configured parameters.
func (s *Server) formParams(r *http.Request) (summarize.Params, error) {
	p, err := s.cfg.Params()
	if err != nil {
		return p, err
	}
	if v := r.FormValue("chunk_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%w: chunk_size %q is not an integer", summarize.ErrInvalidConfig, v)
		}
		p.ChunkSize = n
	}
	if v := r.FormValue("max_tokens"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%w: max_tokens %q is not an integer", summarize.ErrInvalidConfig, v)
		}
		p.MaxTokens = n
	}
	if v := r.FormValue("temperature"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, fmt.Errorf("%w: temperature %q is not a number", summarize.ErrInvalidConfig, v)
		}
		p.Temperature = f
	}
	if v := r.FormValue("style"); v != "" {
		style, err := summarize.ParseStyle(v)
		if err != nil {
			return p, err
		}
		p.Style = style
	}
	return p, p.Validate()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.orchestrator.ListJobs()})
}

// handleSummary serves the final summary as a text download, or rendered HTML with ?format=html.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	summary, status := job.Summary()
	switch {
	case !status.Finished():
		jsonError(w, fmt.Sprintf("job is still %s", status), http.StatusConflict)
		return
	case status == pipeline.StatusFailed:
		msg := job.Snapshot().Error
		if msg == "" {
			msg = summarize.FailureSentinel
		}
		jsonError(w, msg, http.StatusUnprocessableEntity)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": document.SummaryFilename(job.Filename),
		}))
		io.WriteString(w, summary)
	case "html":
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(summary), &buf); err != nil {
			jsonError(w, "render summary: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	default:
		jsonError(w, "format must be text or html", http.StatusBadRequest)
	}
}

// handleDeleteJob discards a job and its summary, stopping it if it is still running.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !s.orchestrator.DeleteJob(jobID) {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	s.log.Info("job deleted", "job_id", jobID)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": jobID})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
