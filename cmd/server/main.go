package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/pdfbrief/internal/api"
	"github.com/dgallion1/pdfbrief/internal/config"
	"github.com/dgallion1/pdfbrief/internal/llm"
	"github.com/dgallion1/pdfbrief/internal/logging"
	"github.com/dgallion1/pdfbrief/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults to $CONFIG_FILE)")
	flag.Parse()

	// A missing .env is fine.
	_ = godotenv.Load()

	boot := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		boot.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log, logFile, err := logging.New(cfg.Logging(os.Stdout, true))
	if err != nil {
		boot.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load the model before accepting work.
	model := llm.NewHandle(cfg.LLMClient(), log)
	if err := model.Init(ctx); err != nil {
		var loadErr *llm.ModelLoadError
		if errors.As(err, &loadErr) {
			log.Error("model failed to load", "backend", loadErr.Backend, "model", loadErr.Model, "error", loadErr.Err)
		} else {
			log.Error("model failed to load", "error", err)
		}
		os.Exit(1)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, model, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, model, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		model.Close()
	}()

	log.Info("starting pdfbrief",
		"port", cfg.Port,
		"backend", model.Backend(),
		"model", model.Model(),
		"workers", cfg.WorkerCount,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
