package api

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"

	"github.com/dgallion1/pdfbrief/internal/config"
	"github.com/dgallion1/pdfbrief/internal/llm"
	"github.com/dgallion1/pdfbrief/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed web/index.html
var indexHTML []byte

// Model is the part of the model handle the API exposes. *llm.Handle implements it.
type Model interface {
	Model() string
	Backend() string
	Loaded() bool
	Stats() *llm.Stats
	Reload(ctx context.Context) error
}

// Server is the HTTP API server for pdfbrief.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	model        Model
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, model Model, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		model:        model,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints when API_KEY is set.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/summarize", s.handleSummarize)
		r.Get("/api/summarize", s.handleListJobs)
		r.Get("/api/summarize/{jobID}/status", s.handleStatus)
		r.Get("/api/summarize/{jobID}/summary", s.handleSummary)
		r.Delete("/api/summarize/{jobID}", s.handleDeleteJob)

		r.Get("/api/stats/llm", s.handleLLMStats)
		r.Post("/api/model/reload", s.handleModelReload)
	})

	s.router = r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"model":        s.model.Model(),
		"model_loaded": s.model.Loaded(),
		"queue_depth":  s.orchestrator.QueueDepth(),
	})
}
