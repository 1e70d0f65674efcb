package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/dgallion1/pdfbrief/internal/summarize"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	p, err := cfg.Params()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ChunkSize != 1000 || p.MaxTokens != 200 || p.Temperature != 0.1 {
		t.Errorf("unexpected generation defaults %+v", p)
	}
	if !slices.Equal(p.Stop, []string{"Text:", "###"}) || !slices.Equal(p.CombineStop, []string{"###"}) {
		t.Errorf("unexpected stop defaults %v / %v", p.Stop, p.CombineStop)
	}
	if p.Style != summarize.StyleBullets {
		t.Errorf("expected bullets style, got %q", p.Style)
	}
	if cfg.Port != "8090" || cfg.LLM.Model != "mistral:7b-instruct" || cfg.LLM.Backend != "ollama" {
		t.Errorf("unexpected service defaults %+v", cfg)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfbrief.yaml")
	yml := `
port: "9000"
llm:
  backend: openai
  base_url: http://localhost:8080/v1
  model: local.gguf
  timeout: 30s
summarize:
  chunk_size: 1500
  stop: ["END"]
  style: plain
job_ttl: 10m
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CHUNK_SIZE", "800")
	t.Setenv("STOP_SEQUENCES", "Text:, ###,,")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("expected port from file, got %q", cfg.Port)
	}
	if cfg.LLM.Backend != "openai" || cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("unexpected llm settings %+v", cfg.LLM)
	}
	if cfg.JobTTL != 10*time.Minute {
		t.Errorf("expected job ttl from file, got %v", cfg.JobTTL)
	}
	if cfg.Summarize.ChunkSize != 800 {
		t.Errorf("expected env to override file, got %d", cfg.Summarize.ChunkSize)
	}
	if !slices.Equal(cfg.Summarize.Stop, []string{"Text:", "###"}) {
		t.Errorf("unexpected stop list %v", cfg.Summarize.Stop)
	}
	if cfg.Summarize.MaxTokens != 200 {
		t.Errorf("expected default to survive a partial file, got %d", cfg.Summarize.MaxTokens)
	}
	if cfg.LLMClient().LoadRetries != 3 {
		t.Errorf("expected default load retries, got %d", cfg.LLMClient().LoadRetries)
	}
}

func TestLoad_MissingNamedFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing config file")
	}
}

func TestValidate_GenerationParams(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero chunk size", map[string]string{"CHUNK_SIZE": "0"}},
		{"negative chunk size", map[string]string{"CHUNK_SIZE": "-10"}},
		{"zero max tokens", map[string]string{"MAX_TOKENS": "0"}},
		{"bad temperature", map[string]string{"TEMPERATURE": "5"}},
		{"bad style", map[string]string{"PROMPT_STYLE": "poem"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("unexpected load error: %v", err)
			}
			if err := cfg.Validate(); !errors.Is(err, summarize.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidate_Service(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.Backend = "gguf"
	cfg.Log.Level = "chatty"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, summarize.ErrInvalidConfig) {
		t.Errorf("service errors should not be generation config errors: %v", err)
	}
}

func TestLoad_ClampsPoolSettings(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("WORKER_COUNT", "0")
	t.Setenv("MAX_QUEUE_SIZE", "-1")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WorkerCount != 1 || cfg.MaxQueueSize != 16 {
		t.Errorf("expected clamped pool settings, got %d/%d", cfg.WorkerCount, cfg.MaxQueueSize)
	}
}
