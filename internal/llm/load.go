package llm

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// backoff is swapped out in tests.
var backoff = Backoff

// Load builds the client for cfg and waits until the backend serves the model, retrying
// up to cfg.LoadRetries times. Any failure comes back as *ModelLoadError.
func Load(ctx context.Context, cfg Config, log *slog.Logger) (Client, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, &ModelLoadError{Backend: cfg.Backend, Model: cfg.Model, Err: err}
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.LoadRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt - 1)
			log.Warn("model not ready, retrying", "attempt", attempt, "wait", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				client.Close()
				return nil, &ModelLoadError{Backend: cfg.Backend, Model: cfg.Model, Err: ctx.Err()}
			case <-time.After(wait):
			}
		}

		lastErr = client.Ping(ctx)
		if lastErr == nil {
			log.Info("model loaded", "backend", cfg.Backend, "model", cfg.Model)
			return client, nil
		}
		if !IsRetryable(lastErr) {
			break
		}
	}

	client.Close()
	return nil, &ModelLoadError{Backend: cfg.Backend, Model: cfg.Model, Err: lastErr}
}
