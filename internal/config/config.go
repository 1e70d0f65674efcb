package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/pdfbrief/internal/llm"
	"github.com/dgallion1/pdfbrief/internal/logging"
	"github.com/dgallion1/pdfbrief/internal/summarize"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth; empty leaves the API open
	APIKey string `yaml:"api_key"`

	LLM       LLMConfig       `yaml:"llm"`
	Summarize SummarizeConfig `yaml:"summarize"`

	// Worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`

	Log LogConfig `yaml:"log"`
}

type LLMConfig struct {
	Backend     string        `yaml:"backend"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	LoadRetries int           `yaml:"load_retries"`
}

type SummarizeConfig struct {
	ChunkSize     int      `yaml:"chunk_size"`
	MaxTokens     int      `yaml:"max_tokens"`
	Temperature   float64  `yaml:"temperature"`
	Stop          []string `yaml:"stop"`
	CombineStop   []string `yaml:"combine_stop"`
	ContextTokens int      `yaml:"context_tokens"`
	Style         string   `yaml:"style"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	p := summarize.DefaultParams()
	return Config{
		Port: "8090",
		LLM: LLMConfig{
			Backend:     llm.BackendOllama,
			Model:       "mistral:7b-instruct",
			Timeout:     120 * time.Second,
			LoadRetries: 3,
		},
		Summarize: SummarizeConfig{
			ChunkSize:     p.ChunkSize,
			MaxTokens:     p.MaxTokens,
			Temperature:   p.Temperature,
			Stop:          p.Stop,
			CombineStop:   p.CombineStop,
			ContextTokens: p.ContextTokens,
			Style:         string(p.Style),
		},
		WorkerCount:          1,
		MaxQueueSize:         16,
		MaxUploadBytes:       52428800, // 50MB
		JobTTL:               1 * time.Hour,
		PDFFallbackPdftotext: true,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path (or CONFIG_FILE
// when path is empty), then environment variables. A missing file is an error only when
// one was named.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("API_KEY", cfg.APIKey)

	cfg.LLM.Backend = envOr("LLM_BACKEND", cfg.LLM.Backend)
	cfg.LLM.BaseURL = envOr("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = envOr("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = envOr("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.Timeout = envDuration("LLM_TIMEOUT", cfg.LLM.Timeout)
	cfg.LLM.LoadRetries = envInt("MODEL_LOAD_RETRIES", cfg.LLM.LoadRetries)

	cfg.Summarize.ChunkSize = envInt("CHUNK_SIZE", cfg.Summarize.ChunkSize)
	cfg.Summarize.MaxTokens = envInt("MAX_TOKENS", cfg.Summarize.MaxTokens)
	cfg.Summarize.Temperature = envFloat("TEMPERATURE", cfg.Summarize.Temperature)
	cfg.Summarize.Stop = envList("STOP_SEQUENCES", cfg.Summarize.Stop)
	cfg.Summarize.CombineStop = envList("COMBINE_STOP", cfg.Summarize.CombineStop)
	cfg.Summarize.ContextTokens = envInt("CONTEXT_TOKENS", cfg.Summarize.ContextTokens)
	cfg.Summarize.Style = envOr("PROMPT_STYLE", cfg.Summarize.Style)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)
	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)

	cfg.Log.Level = envOr("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = envOr("LOG_FILE", cfg.Log.File)
	cfg.Log.MaxSizeMB = envInt("LOG_MAX_SIZE_MB", cfg.Log.MaxSizeMB)
	cfg.Log.MaxBackups = envInt("LOG_MAX_BACKUPS", cfg.Log.MaxBackups)
	cfg.Log.MaxAgeDays = envInt("LOG_MAX_AGE_DAYS", cfg.Log.MaxAgeDays)

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 16
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}

	return cfg, nil
}

// Validate rejects settings the process cannot start with. Generation parameter
// errors wrap summarize.ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	switch c.LLM.Backend {
	case llm.BackendOllama, llm.BackendOpenAI:
	default:
		errs = append(errs, fmt.Errorf("LLM_BACKEND must be %q or %q, got %q", llm.BackendOllama, llm.BackendOpenAI, c.LLM.Backend))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("LLM_MODEL is required"))
	}
	if c.LLM.LoadRetries < 0 {
		errs = append(errs, errors.New("MODEL_LOAD_RETRIES must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Params(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Params returns the validated generation parameters.
func (c Config) Params() (summarize.Params, error) {
	style, err := summarize.ParseStyle(c.Summarize.Style)
	if err != nil {
		return summarize.Params{}, err
	}
	p := summarize.Params{
		ChunkSize:     c.Summarize.ChunkSize,
		MaxTokens:     c.Summarize.MaxTokens,
		Temperature:   c.Summarize.Temperature,
		Stop:          c.Summarize.Stop,
		CombineStop:   c.Summarize.CombineStop,
		ContextTokens: c.Summarize.ContextTokens,
		Style:         style,
	}
	if err := p.Validate(); err != nil {
		return summarize.Params{}, err
	}
	return p, nil
}

// LLMClient returns the model backend settings.
func (c Config) LLMClient() llm.Config {
	return llm.Config{
		Backend:     c.LLM.Backend,
		BaseURL:     c.LLM.BaseURL,
		APIKey:      c.LLM.APIKey,
		Model:       c.LLM.Model,
		Timeout:     c.LLM.Timeout,
		LoadRetries: c.LLM.LoadRetries,
	}
}

// Logging returns logger options writing to w.
func (c Config) Logging(w io.Writer, json bool) logging.Options {
	return logging.Options{
		Writer:     w,
		Level:      c.Log.Level,
		JSON:       json,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping empty items.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
