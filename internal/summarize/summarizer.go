// Package summarize runs the two-phase map/reduce summary over chunked document text.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dgallion1/pdfbrief/internal/chunker"
	"github.com/dgallion1/pdfbrief/internal/llm"
)

// FailureSentinel is the summary text when no chunk could be summarized.
const FailureSentinel = "no summary could be generated"

// State is how a run ended.
type State string

const (
	StateDone             State = "done"
	StateDoneWithFallback State = "done_with_fallback"
	StateFailed           State = "failed"
)

// ChunkResult is the outcome of one partial call. Exactly one of Summary and Err is set.
type ChunkResult struct {
	Index   int
	Summary string
	Err     error
}

func (r ChunkResult) OK() bool { return r.Err == nil }

// Outcome is the result of one run.
type Outcome struct {
	Summary    string
	State      State
	Chunks     int           // Chunks the text split into
	Results    []ChunkResult // One per chunk, in order
	Calls      int           // Model invocations made
	CombineErr error         // *CombineError when State is StateDoneWithFallback
}

// Partials returns the successful partial summaries in chunk order.
func (o *Outcome) Partials() []string {
	partials := make([]string, 0, len(o.Results))
	for _, r := range o.Results {
		if r.OK() {
			partials = append(partials, r.Summary)
		}
	}
	return partials
}

// Failed counts the dropped chunks.
func (o *Outcome) Failed() int {
	n := 0
	for _, r := range o.Results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// Summarizer turns document text into a short summary with one model call per chunk plus
// one combine call.
type Summarizer struct {
	gen    llm.Generator
	params Params
	log    *slog.Logger
}

func New(gen llm.Generator, p Params, log *slog.Logger) (*Summarizer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Style == "" {
		p.Style = StyleBullets
	}
	p.Stop = slices.Clone(p.Stop)
	p.CombineStop = slices.Clone(p.CombineStop)
	return &Summarizer{gen: gen, params: p, log: log}, nil
}

func (s *Summarizer) Params() Params { return s.params }

// Summarize runs both phases. Chunk and combine failures degrade the outcome rather than
// fail it; the only error is a cancelled ctx, checked between model calls.
func (s *Summarizer) Summarize(ctx context.Context, text string, obs Observer) (*Outcome, error) {
	if obs == nil {
		obs = discard
	}
	seq, err := chunker.All(text, s.params.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	total := chunker.Count(text, s.params.ChunkSize)
	out := &Outcome{Chunks: total, Results: make([]ChunkResult, 0, total)}

	for c := range seq {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obs.Observe(Event{Kind: EventChunkStarted, Chunk: c.Index, Total: total})
		out.Results = append(out.Results, s.summarizeChunk(ctx, c, obs))
		out.Calls++
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	partials := out.Partials()
	if len(partials) == 0 {
		s.log.Warn("no partial summaries produced", "chunks", total)
		out.State = StateFailed
		out.Summary = FailureSentinel
		return out, nil
	}

	s.combine(ctx, out, partials, obs)
	return out, nil
}

func (s *Summarizer) summarizeChunk(ctx context.Context, c chunker.Chunk, obs Observer) ChunkResult {
	reply, err := s.gen.Generate(ctx, llm.Request{
		Prompt:      PartialPrompt(s.params.Style, c.Text),
		MaxTokens:   s.params.MaxTokens,
		Temperature: s.params.Temperature,
		Stop:        s.params.Stop,
	})
	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		chunkErr := &ChunkError{Index: c.Index, Total: c.Total, Err: err}
		s.log.Warn("chunk summary failed", "chunk", c.Index, "total", c.Total, "error", err)
		obs.Observe(Event{Kind: EventChunkFailed, Chunk: c.Index, Total: c.Total, Err: chunkErr})
		return ChunkResult{Index: c.Index, Err: chunkErr}
	}

	s.log.Debug("chunk summarized", "chunk", c.Index, "total", c.Total, "chars", len(reply))
	obs.Observe(Event{Kind: EventChunkDone, Chunk: c.Index, Total: c.Total})
	return ChunkResult{Index: c.Index, Summary: reply}
}

func (s *Summarizer) combine(ctx context.Context, out *Outcome, partials []string, obs Observer) {
	joined := strings.Join(partials, " ")
	prompt := CombinePrompt(s.params.Style, joined)

	if limit := s.params.ContextTokens; limit > 0 {
		if est := chunker.EstimateTokens(prompt) + s.params.MaxTokens; est > limit {
			s.log.Warn("combine prompt may exceed model context", "estimated_tokens", est, "context_tokens", limit)
			obs.Observe(Event{Kind: EventContextOverflow, Total: out.Chunks, Tokens: est})
		}
	}

	obs.Observe(Event{Kind: EventCombineStarted, Total: out.Chunks})
	reply, err := s.gen.Generate(ctx, llm.Request{
		Prompt:      prompt,
		MaxTokens:   s.params.MaxTokens,
		Temperature: s.params.Temperature,
		Stop:        s.params.CombineStop,
	})
	out.Calls++
	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		combineErr := &CombineError{Partials: len(partials), Err: err}
		s.log.Warn("combine failed, returning joined partial summaries", "partials", len(partials), "error", err)
		obs.Observe(Event{Kind: EventCombineFailed, Total: out.Chunks, Err: combineErr})
		out.State = StateDoneWithFallback
		out.Summary = joined
		out.CombineErr = combineErr
		return
	}

	obs.Observe(Event{Kind: EventCombineDone, Total: out.Chunks})
	out.State = StateDone
	out.Summary = reply
}
