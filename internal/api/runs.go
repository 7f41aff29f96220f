package api

import (
	"sync"
	"time"

	"github.com/dgallion1/corpusrag/internal/ingest"
	"github.com/google/uuid"
)

// RunStatus represents the state of an ingestion run.
type RunStatus string

const (
	StatusQueued    RunStatus = "queued"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Run tracks one asynchronous ingestion pass triggered over the API.
type Run struct {
	mu sync.Mutex

	ID        string         `json:"run_id"`
	Mode      ingest.Mode    `json:"mode"`
	Status    RunStatus      `json:"status"`
	Summary   ingest.Summary `json:"summary"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewRun creates a queued run for the given mode.
func NewRun(mode ingest.Mode) *Run {
	now := time.Now()
	return &Run{
		ID:        uuid.NewString(),
		Mode:      mode,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetRunning marks the run as started.
func (r *Run) SetRunning() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = StatusRunning
	r.UpdatedAt = time.Now()
}

// Complete records the final summary.
func (r *Run) Complete(sum ingest.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = StatusCompleted
	r.Summary = sum
	r.UpdatedAt = time.Now()
}

// Fail records a fatal setup error.
func (r *Run) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = StatusFailed
	r.Error = err.Error()
	r.UpdatedAt = time.Now()
}

// RunSnapshot is a read-only, JSON-safe copy of run state.
type RunSnapshot struct {
	ID        string         `json:"run_id"`
	Mode      ingest.Mode    `json:"mode"`
	Status    RunStatus      `json:"status"`
	Summary   ingest.Summary `json:"summary"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the run state.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RunSnapshot{
		ID:        r.ID,
		Mode:      r.Mode,
		Status:    r.Status,
		Summary:   r.Summary,
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// RunStore is a thread-safe in-memory run registry with TTL eviction.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewRunStore(ttl time.Duration) *RunStore {
	return &RunStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
	}
}

func (s *RunStore) Put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

func (s *RunStore) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// Cleanup removes runs idle past the TTL.
func (s *RunStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, run := range s.runs {
		run.mu.Lock()
		expired := now.Sub(run.UpdatedAt) > s.ttl
		run.mu.Unlock()
		if expired {
			delete(s.runs, id)
		}
	}
}
