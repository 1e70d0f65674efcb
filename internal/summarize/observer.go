package summarize

// EventKind identifies a progress event.
type EventKind int

const (
	EventChunkStarted EventKind = iota + 1
	EventChunkDone
	EventChunkFailed
	EventCombineStarted
	EventCombineDone
	EventCombineFailed
	EventContextOverflow
)

func (k EventKind) String() string {
	switch k {
	case EventChunkStarted:
		return "chunk_started"
	case EventChunkDone:
		return "chunk_done"
	case EventChunkFailed:
		return "chunk_failed"
	case EventCombineStarted:
		return "combine_started"
	case EventCombineDone:
		return "combine_done"
	case EventCombineFailed:
		return "combine_failed"
	case EventContextOverflow:
		return "context_overflow"
	default:
		return "unknown"
	}
}

// Event reports progress of a run.
type Event struct {
	Kind   EventKind
	Chunk  int   // 1-based chunk index, 0 for combine events
	Total  int   // Number of chunks in the run
	Err    error // Set on failure events
	Tokens int   // Estimated prompt size, set on EventContextOverflow
}

// Observer receives events synchronously from the summarizing goroutine.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

var discard = ObserverFunc(func(Event) {})
