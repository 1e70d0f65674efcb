package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClient struct {
	reply  string
	err    error
	closed bool
	calls  int
}

func (f *fakeClient) Generate(ctx context.Context, req Request) (string, error) {
	f.calls++
	return f.reply, f.err
}
func (f *fakeClient) Ping(ctx context.Context) error { return nil }
func (f *fakeClient) Model() string                  { return "fake" }
func (f *fakeClient) Close()                         { f.closed = true }

func newTestHandle(clients ...*fakeClient) (*Handle, *int) {
	loads := 0
	h := NewHandle(Config{Model: "fake"}, testLogger())
	h.load = func(ctx context.Context, cfg Config, log *slog.Logger) (Client, error) {
		if loads >= len(clients) || clients[loads] == nil {
			loads++
			return nil, &ModelLoadError{Backend: "fake", Model: cfg.Model, Err: errors.New("unavailable")}
		}
		c := clients[loads]
		loads++
		return c, nil
	}
	return h, &loads
}

func TestHandleLoadsOnce(t *testing.T) {
	first := &fakeClient{reply: "ok"}
	h, loads := newTestHandle(first)

	if h.Loaded() {
		t.Fatal("expected handle to start unloaded")
	}
	for range 3 {
		if _, err := h.Generate(context.Background(), Request{Prompt: "p"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if *loads != 1 {
		t.Errorf("expected a single load, got %d", *loads)
	}
	if first.calls != 3 {
		t.Errorf("expected 3 generations, got %d", first.calls)
	}
	if snap := h.Stats().Snapshot(); snap.Succeeded != 3 {
		t.Errorf("expected 3 recorded calls, got %d", snap.Succeeded)
	}
}

func TestHandleInitFailure(t *testing.T) {
	h, _ := newTestHandle(nil)
	err := h.Init(context.Background())

	var loadErr *ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *ModelLoadError, got %v", err)
	}
	if h.Loaded() {
		t.Error("expected handle to stay unloaded")
	}
}

func TestHandleReload(t *testing.T) {
	first := &fakeClient{reply: "one"}
	second := &fakeClient{reply: "two"}
	h, _ := newTestHandle(first, second, nil)

	if err := h.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := h.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !first.closed {
		t.Error("expected old client to be closed on reload")
	}
	out, _ := h.Generate(context.Background(), Request{})
	if out != "two" {
		t.Errorf("expected new client to serve, got %q", out)
	}

	if err := h.Reload(context.Background()); err == nil {
		t.Fatal("expected third load to fail")
	}
	if second.closed {
		t.Error("failed reload must keep the current client")
	}
	out, _ = h.Generate(context.Background(), Request{})
	if out != "two" {
		t.Errorf("expected current client to keep serving, got %q", out)
	}
}

func TestHandleCloseThenGenerateReloads(t *testing.T) {
	first := &fakeClient{reply: "one"}
	second := &fakeClient{reply: "two"}
	h, loads := newTestHandle(first, second)

	h.Init(context.Background())
	h.Close()
	if !first.closed || h.Loaded() {
		t.Fatal("expected close to release the client")
	}
	out, err := h.Generate(context.Background(), Request{})
	if err != nil || out != "two" {
		t.Fatalf("expected lazy reload, got %q, %v", out, err)
	}
	if *loads != 2 {
		t.Errorf("expected 2 loads, got %d", *loads)
	}
}

func TestHandleRecordsFailures(t *testing.T) {
	h, _ := newTestHandle(&fakeClient{err: ErrEmptyResponse})
	if _, err := h.Generate(context.Background(), Request{}); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	if snap := h.Stats().Snapshot(); snap.Failed != 1 {
		t.Errorf("expected failed=1, got %d", snap.Failed)
	}
}

func TestLoadRetriesUntilReady(t *testing.T) {
	backoff = func(int) time.Duration { return time.Millisecond }
	defer func() { backoff = Backoff }()

	var pings atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pings.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"models":[{"name":"mistral:7b-instruct"}]}`))
	}))
	defer srv.Close()

	c, err := Load(context.Background(), Config{BaseURL: srv.URL, Model: "mistral:7b-instruct", LoadRetries: 3}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()
	if pings.Load() != 3 {
		t.Errorf("expected 3 pings, got %d", pings.Load())
	}
}

func TestLoadGivesUp(t *testing.T) {
	backoff = func(int) time.Duration { return time.Millisecond }
	defer func() { backoff = Backoff }()

	var pings atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pings.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := Load(context.Background(), Config{BaseURL: srv.URL, Model: "m", LoadRetries: 2}, testLogger())
	var loadErr *ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *ModelLoadError, got %v", err)
	}
	if loadErr.Model != "m" {
		t.Errorf("expected model in error, got %q", loadErr.Model)
	}
	if pings.Load() != 3 {
		t.Errorf("expected 1 try plus 2 retries, got %d", pings.Load())
	}
}

func TestLoadStopsOnMissingModel(t *testing.T) {
	var pings atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pings.Add(1)
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	_, err := Load(context.Background(), Config{BaseURL: srv.URL, Model: "m", LoadRetries: 5}, testLogger())
	if err == nil {
		t.Fatal("expected error")
	}
	if pings.Load() != 1 {
		t.Errorf("expected no retries for a missing model, got %d pings", pings.Load())
	}
}
