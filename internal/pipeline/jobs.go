package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dgallion1/pdfbrief/internal/summarize"
	"github.com/google/uuid"
)

// JobStatus represents the state of a summarization job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusExtracting  JobStatus = "extracting"
	StatusSummarizing JobStatus = "summarizing"
	StatusCombining   JobStatus = "combining"
	StatusCompleted   JobStatus = "completed"
	StatusDegraded    JobStatus = "degraded" // Combine failed, summary is the joined partials
	StatusFailed      JobStatus = "failed"
)

// Finished reports whether the job reached a terminal state.
func (s JobStatus) Finished() bool {
	return s == StatusCompleted || s == StatusDegraded || s == StatusFailed
}

// Job tracks one uploaded document through extraction and summarization.
type Job struct {
	mu sync.Mutex

	ID    string
	DocID string

	Status   JobStatus
	Phase    string
	Filename string
	Title    string

	Progress Progress

	Pages        int // Pages in the source
	SkippedPages int // Pages without text
	Characters   int // Extracted characters fed to the chunker

	CreatedAt time.Time
	UpdatedAt time.Time

	// Internal: not serialized.
	params   summarize.Params
	fileData []byte
	summary  string
	errMsg   string
	cancel   context.CancelFunc
}

// Progress tracks processing progress.
type Progress struct {
	TotalChunks     int      `json:"total_chunks"`
	ChunksProcessed int      `json:"chunks_processed"`
	ChunksFailed    int      `json:"chunks_failed"`
	Warnings        []string `json:"warnings"`
}

// NewJob creates a queued job for an uploaded file.
func NewJob(filename string, data []byte, params summarize.Params) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		DocID:     ContentHashHex(data)[:16],
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
		params:    params,
		fileData:  data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Delete removes a job and returns it, or nil if it was unknown.
func (s *JobStore) Delete(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	delete(s.jobs, id)
	return job
}

// List returns snapshots of all jobs, newest first.
func (s *JobStore) List() []JobSnapshot {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	snaps := make([]JobSnapshot, len(jobs))
	for i, j := range jobs {
		snaps[i] = j.Snapshot()
	}
	slices.SortFunc(snaps, func(a, b JobSnapshot) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return snaps
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddWarning records a non-fatal problem.
func (j *Job) AddWarning(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Warnings = append(j.Progress.Warnings, msg)
	j.UpdatedAt = time.Now()
}

// SetTotalChunks records total chunk count.
func (j *Job) SetTotalChunks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = n
	j.UpdatedAt = time.Now()
}

// SetDocument records what extraction found.
func (j *Job) SetDocument(title string, pages, skipped, chars int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if title != "" {
		j.Title = title
	}
	j.Pages = pages
	j.SkippedPages = skipped
	j.Characters = chars
	j.UpdatedAt = time.Now()
}

// Params returns the generation settings chosen at upload.
func (j *Job) Params() summarize.Params {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.params
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// ReleaseFileData drops the upload once it has been extracted.
func (j *Job) ReleaseFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// Observe updates progress from summarizer events.
func (j *Job) Observe(e summarize.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.UpdatedAt = time.Now()

	switch e.Kind {
	case summarize.EventChunkStarted:
		j.Status = StatusSummarizing
		j.Phase = fmt.Sprintf("summarizing chunk %d/%d", e.Chunk, e.Total)
	case summarize.EventChunkDone:
		j.Progress.ChunksProcessed++
	case summarize.EventChunkFailed:
		j.Progress.ChunksProcessed++
		j.Progress.ChunksFailed++
		j.Progress.Warnings = append(j.Progress.Warnings, fmt.Sprintf("chunk %d/%d dropped: %v", e.Chunk, e.Total, unwrapped(e.Err)))
	case summarize.EventContextOverflow:
		j.Progress.Warnings = append(j.Progress.Warnings, fmt.Sprintf("combine prompt (~%d tokens) may exceed the model context", e.Tokens))
	case summarize.EventCombineStarted:
		j.Status = StatusCombining
		j.Phase = "combining partial summaries"
	case summarize.EventCombineFailed:
		j.Progress.Warnings = append(j.Progress.Warnings, fmt.Sprintf("final summary failed, showing partial summaries: %v", unwrapped(e.Err)))
	}
}

func unwrapped(err error) error {
	switch e := err.(type) {
	case *summarize.ChunkError:
		return e.Err
	case *summarize.CombineError:
		return e.Err
	}
	return err
}

// Finish records the outcome of a run.
func (j *Job) Finish(out *summarize.Outcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.summary = out.Summary
	j.Phase = "done"
	switch out.State {
	case summarize.StateDone:
		j.Status = StatusCompleted
	case summarize.StateDoneWithFallback:
		j.Status = StatusDegraded
	default:
		j.Status = StatusFailed
		j.errMsg = out.Summary
	}
	j.UpdatedAt = time.Now()
}

// Fail marks the job failed during phase.
func (j *Job) Fail(phase string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusFailed
	j.Phase = phase
	j.errMsg = err.Error()
	j.UpdatedAt = time.Now()
}

// Summary returns the summary text and the current status.
func (j *Job) Summary() (string, JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.summary, j.Status
}

func (j *Job) setCancel(cancel context.CancelFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = cancel
}

// Cancel stops a running job. It is a no-op for jobs not being processed.
func (j *Job) Cancel() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID           string    `json:"job_id"`
	DocID        string    `json:"doc_id"`
	Status       JobStatus `json:"status"`
	Phase        string    `json:"phase"`
	Filename     string    `json:"filename"`
	Title        string    `json:"title"`
	Progress     Progress  `json:"progress"`
	Pages        int       `json:"pages"`
	SkippedPages int       `json:"skipped_pages"`
	Characters   int       `json:"characters"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	warnings := slices.Clone(j.Progress.Warnings)
	if warnings == nil {
		warnings = []string{}
	}
	progress := j.Progress
	progress.Warnings = warnings
	return JobSnapshot{
		ID:           j.ID,
		DocID:        j.DocID,
		Status:       j.Status,
		Phase:        j.Phase,
		Filename:     j.Filename,
		Title:        j.Title,
		Progress:     progress,
		Pages:        j.Pages,
		SkippedPages: j.SkippedPages,
		Characters:   j.Characters,
		Error:        j.errMsg,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
