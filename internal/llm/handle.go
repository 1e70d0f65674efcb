package llm

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handle is the process-wide model. The backend is loaded on first use and kept until
// Close or Reload. Generation is serialised since a local model serves one prompt at a time.
type Handle struct {
	cfg   Config
	log   *slog.Logger
	stats *Stats
	load  func(context.Context, Config, *slog.Logger) (Client, error)

	mu     sync.Mutex
	client Client
}

func NewHandle(cfg Config, log *slog.Logger) *Handle {
	return &Handle{
		cfg:   cfg,
		log:   log,
		stats: NewStats(time.Hour),
		load:  Load,
	}
}

// Init loads the model if it is not loaded yet.
func (h *Handle) Init(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ensureLocked(ctx)
}

func (h *Handle) ensureLocked(ctx context.Context) error {
	if h.client != nil {
		return nil
	}
	client, err := h.load(ctx, h.cfg, h.log)
	if err != nil {
		return err
	}
	h.client = client
	return nil
}

// Generate runs one completion, loading the model first if needed.
func (h *Handle) Generate(ctx context.Context, req Request) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.ensureLocked(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	out, err := h.client.Generate(ctx, req)
	h.stats.Record(time.Since(start), err)
	if err != nil {
		h.log.Debug("generation failed", "model", h.cfg.Model, "error", err)
	}
	return out, err
}

// Reload loads a fresh client and swaps it in. On failure the current client stays.
func (h *Handle) Reload(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, err := h.load(ctx, h.cfg, h.log)
	if err != nil {
		return err
	}
	if h.client != nil {
		h.client.Close()
	}
	h.client = client
	h.log.Info("model reloaded", "model", h.cfg.Model)
	return nil
}

// Loaded reports whether a client is currently held.
func (h *Handle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.client != nil
}

func (h *Handle) Model() string { return h.cfg.Model }

func (h *Handle) Backend() string {
	if h.cfg.Backend == "" {
		return BackendOllama
	}
	return h.cfg.Backend
}

func (h *Handle) Stats() *Stats { return h.stats }

// Close releases the client. A later Generate loads it again.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client != nil {
		h.client.Close()
		h.client = nil
	}
}
