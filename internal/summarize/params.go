package summarize

import (
	"fmt"
	"strings"

	"github.com/dgallion1/pdfbrief/internal/chunker"
)

// Style picks the prompt wording.
type Style string

const (
	// StyleBullets asks for 3-4 concise bullet points.
	StyleBullets Style = "bullets"
	// StylePlain asks for an everyday-English explanation of what the document means for the reader.
	StylePlain Style = "plain"
)

// ParseStyle accepts a style name, case-insensitive. Empty means StyleBullets.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case "", StyleBullets:
		return StyleBullets, nil
	case StylePlain:
		return StylePlain, nil
	default:
		return "", fmt.Errorf("%w: unknown prompt style %q", ErrInvalidConfig, s)
	}
}

// Params are the generation settings for one run.
type Params struct {
	ChunkSize     int      // Characters per chunk
	MaxTokens     int      // Completion budget per call
	Temperature   float64  // Sampling temperature
	Stop          []string // Stop sequences for partial calls
	CombineStop   []string // Stop sequences for the combine call
	ContextTokens int      // Model context window, 0 disables the overflow warning
	Style         Style
}

func DefaultParams() Params {
	return Params{
		ChunkSize:     1000,
		MaxTokens:     200,
		Temperature:   0.1,
		Stop:          []string{"Text:", "###"},
		CombineStop:   []string{"###"},
		ContextTokens: 2048,
		Style:         StyleBullets,
	}
}

// Validate rejects unusable values before any model call is made.
func (p Params) Validate() error {
	if p.ChunkSize <= 0 {
		return fmt.Errorf("%w: %w (got %d)", ErrInvalidConfig, chunker.ErrInvalidSize, p.ChunkSize)
	}
	if p.MaxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be positive (got %d)", ErrInvalidConfig, p.MaxTokens)
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be within [0, 2] (got %g)", ErrInvalidConfig, p.Temperature)
	}
	if p.ContextTokens < 0 {
		return fmt.Errorf("%w: context tokens must not be negative (got %d)", ErrInvalidConfig, p.ContextTokens)
	}
	if _, err := ParseStyle(string(p.Style)); err != nil {
		return err
	}
	return nil
}
