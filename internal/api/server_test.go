package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/pdfbrief/internal/config"
	"github.com/dgallion1/pdfbrief/internal/llm"
	"github.com/dgallion1/pdfbrief/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGen returns "partial" for chunk prompts and combine for the final prompt.
// With block set it waits for cancellation instead.
type fakeGen struct {
	combine string
	block   bool
}

func (g *fakeGen) Generate(ctx context.Context, req llm.Request) (string, error) {
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if strings.HasSuffix(req.Prompt, "Final Summary:") {
		return g.combine, nil
	}
	return "partial", nil
}

type fakeModel struct {
	mu        sync.Mutex
	stats     *llm.Stats
	reloadErr error
	reloads   int
}

func (m *fakeModel) Model() string { return "mistral:7b-instruct" }
func (m *fakeModel) Backend() string { return llm.BackendOllama }
func (m *fakeModel) Loaded() bool { return true }
func (m *fakeModel) Stats() *llm.Stats { return m.stats }
func (m *fakeModel) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloads++
	return m.reloadErr
}

type testEnv struct {
	srv   *Server
	orch  *pipeline.Orchestrator
	model *fakeModel
}

func newTestEnv(t *testing.T, gen llm.Generator, start bool, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	orch := pipeline.NewOrchestrator(cfg, gen, testLogger())
	if start {
		orch.Start(context.Background())
		t.Cleanup(orch.Stop)
	}
	model := &fakeModel{stats: llm.NewStats(time.Hour)}
	return &testEnv{
		srv:   NewServer(orch, model, testLogger(), cfg),
		orch:  orch,
		model: model,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(content)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/summarize", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func (e *testEnv) submit(t *testing.T, filename, content string) string {
	t.Helper()
	rec := e.do(uploadRequest(t, filename, []byte(content), nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode(t, rec)["job_id"].(string)
}

func (e *testEnv) waitFinished(t *testing.T, id string) pipeline.JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job := e.orch.GetJob(id)
		if job == nil {
			t.Fatalf("job %s vanished", id)
		}
		if snap := job.Snapshot(); snap.Status.Finished() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return pipeline.JobSnapshot{}
}

func TestHealthAndIndex(t *testing.T) {
	env := newTestEnv(t, &fakeGen{}, false, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != "ok" {
		t.Errorf("expected status ok, got %v", got)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("index: got %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "/api/summarize") {
		t.Error("index page should post to the summarize endpoint")
	}
}

func TestSummarize_EndToEnd(t *testing.T) {
	env := newTestEnv(t, &fakeGen{combine: "- first point\n- second point"}, true, nil)

	rec := env.do(uploadRequest(t, "../../lease.txt", []byte(strings.Repeat("x", 1500)), map[string]string{"style": "bullets"}))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	id := body["job_id"].(string)
	if body["poll_url"] != "/api/summarize/"+id+"/status" {
		t.Errorf("unexpected poll url %v", body["poll_url"])
	}

	snap := env.waitFinished(t, id)
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %q (%s)", snap.Status, snap.Error)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/summarize/"+id+"/status", nil))
	status := decode(t, rec)
	if status["status"] != "completed" || status["characters"] != float64(1500) {
		t.Errorf("unexpected status body %v", status)
	}
	progress := status["progress"].(map[string]any)
	if progress["total_chunks"] != float64(2) || progress["chunks_processed"] != float64(2) {
		t.Errorf("unexpected progress %v", progress)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/summarize/"+id+"/summary", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "attachment; filename=lease_summary.txt" {
		t.Errorf("unexpected content disposition %q", cd)
	}
	if rec.Body.String() != "- first point\n- second point" {
		t.Errorf("unexpected summary %q", rec.Body.String())
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/summarize/"+id+"/summary?format=html", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<li>first point</li>") {
		t.Errorf("expected rendered list, got %d %q", rec.Code, rec.Body.String())
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/summarize/"+id+"/summary?format=pdf", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown format, got %d", rec.Code)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/summarize", nil))
	if jobs := decode(t, rec)["jobs"].([]any); len(jobs) != 1 {
		t.Errorf("expected 1 listed job, got %d", len(jobs))
	}
}

func TestSummarize_BadRequests(t *testing.T) {
	env := newTestEnv(t, &fakeGen{}, false, func(c *config.Config) { c.MaxUploadBytes = 64 })

	tests := []struct {
		name     string
		filename string
		content  string
		fields   map[string]string
		want     int
	}{
		{"missing file", "", "", nil, http.StatusBadRequest},
		{"unsupported extension", "sheet.xlsx", "data", nil, http.StatusBadRequest},
		{"empty file", "a.txt", "", nil, http.StatusBadRequest},
		{"non-numeric chunk size", "a.txt", "text", map[string]string{"chunk_size": "big"}, http.StatusBadRequest},
		{"zero chunk size", "a.txt", "text", map[string]string{"chunk_size": "0"}, http.StatusBadRequest},
		{"negative max tokens", "a.txt", "text", map[string]string{"max_tokens": "-5"}, http.StatusBadRequest},
		{"temperature out of range", "a.txt", "text", map[string]string{"temperature": "3"}, http.StatusBadRequest},
		{"unknown style", "a.txt", "text", map[string]string{"style": "haiku"}, http.StatusBadRequest},
		{"too large", "a.txt", strings.Repeat("y", 100), nil, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(uploadRequest(t, tt.filename, []byte(tt.content), tt.fields))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if _, ok := decode(t, rec)["error"]; !ok {
				t.Error("expected error body")
			}
		})
	}
	if env.orch.QueueDepth() != 0 {
		t.Errorf("rejected uploads should not be queued, depth %d", env.orch.QueueDepth())
	}
}

func TestSummarize_QueueFull(t *testing.T) {
	env := newTestEnv(t, &fakeGen{}, false, func(c *config.Config) { c.MaxQueueSize = 1 })

	env.submit(t, "one.txt", "first")
	rec := env.do(uploadRequest(t, "two.txt", []byte("second"), nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestSummary_NotFinishedThenDeleted(t *testing.T) {
	env := newTestEnv(t, &fakeGen{block: true}, true, nil)
	id := env.submit(t, "slow.txt", "some text to summarize")

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/summarize/"+id+"/summary", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 while running, got %d", rec.Code)
	}

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/summarize/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", rec.Code)
	}
	for _, path := range []string{"/api/summarize/" + id + "/status", "/api/summarize/" + id + "/summary"} {
		rec = env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404 after delete, got %d", path, rec.Code)
		}
	}
	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/summarize/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestSummary_FailedJob(t *testing.T) {
	env := newTestEnv(t, &fakeGen{}, true, nil)
	id := env.submit(t, "blank.txt", "  \n\n  ")

	snap := env.waitFinished(t, id)
	if snap.Status != pipeline.StatusFailed {
		t.Fatalf("expected failed, got %q", snap.Status)
	}
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/summarize/"+id+"/summary", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
	if got := decode(t, rec)["error"]; got != "no readable text found" {
		t.Errorf("unexpected error %v", got)
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, &fakeGen{}, false, func(c *config.Config) { c.APIKey = "secret" })

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"health is public", "/health", "", http.StatusOK},
		{"missing header", "/api/summarize", "", http.StatusUnauthorized},
		{"wrong key", "/api/summarize", "Bearer nope", http.StatusUnauthorized},
		{"not bearer", "/api/summarize", "Basic c2VjcmV0", http.StatusUnauthorized},
		{"valid key", "/api/summarize", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if rec := env.do(req); rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestNoAuthWhenKeyUnset(t *testing.T) {
	env := newTestEnv(t, &fakeGen{}, false, nil)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/summarize", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected open API without a key, got %d", rec.Code)
	}
}

func TestLLMStats(t *testing.T) {
	env := newTestEnv(t, &fakeGen{}, false, nil)
	env.model.stats.Record(200*time.Millisecond, nil)
	env.model.stats.Record(0, errors.New("boom"))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["model"] != "mistral:7b-instruct" || body["backend"] != "ollama" {
		t.Errorf("unexpected body %v", body)
	}
	stats := body["stats"].(map[string]any)
	if len(stats) == 0 {
		t.Error("expected stats snapshot")
	}
}

func TestModelReload(t *testing.T) {
	env := newTestEnv(t, &fakeGen{}, false, nil)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/model/reload", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	env.model.reloadErr = &llm.ModelLoadError{Backend: "ollama", Model: "mistral:7b-instruct", Err: errors.New("connection refused")}
	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/model/reload", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
	if env.model.reloads != 2 {
		t.Errorf("expected 2 reload calls, got %d", env.model.reloads)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd.txt", "passwd.txt"},
		{`c:\docs\lease.pdf`, "c:_docs_lease.pdf"},
		{"", "unnamed"},
		{"a..b.md", "a_b.md"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
