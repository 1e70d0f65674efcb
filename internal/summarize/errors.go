package summarize

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig wraps every rejected generation parameter.
var ErrInvalidConfig = errors.New("invalid summarization config")

// ChunkError is a failed partial summary. The chunk is dropped and the run goes on.
type ChunkError struct {
	Index int
	Total int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d/%d: %v", e.Index, e.Total, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// CombineError is a failed combine call. The joined partials stand in for the summary.
type CombineError struct {
	Partials int
	Err      error
}

func (e *CombineError) Error() string {
	return fmt.Sprintf("combine %d partial summaries: %v", e.Partials, e.Err)
}

func (e *CombineError) Unwrap() error { return e.Err }
