package indexer

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyRunning is returned when a run is requested while one is in progress
var ErrAlreadyRunning = errors.New("indexing already in progress")

// Status is the lifecycle stage of the latest run
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// State is a snapshot of indexing progress. Optional fields are nil until
// they apply, so they encode as JSON null.
type State struct {
	RunID           string   `json:"run_id,omitempty"`
	Status          Status   `json:"status"`
	ProcessedFiles  int      `json:"processed_files"`
	TotalFiles      int      `json:"total_files"`
	ProcessedChunks int      `json:"processed_chunks"`
	TotalChunks     int      `json:"total_chunks"`
	CurrentFile     *string  `json:"current_file"`
	StartedAt       *float64 `json:"started_at"` // Unix seconds
	FinishedAt      *float64 `json:"finished_at"`
	Error           *string  `json:"error"`
}

// Running reports whether the snapshot was taken during a run
func (s State) Running() bool {
	return s.Status == StatusRunning
}

// Tracker guards the shared progress state. Every read and write goes through
// one mutex, and readers only ever receive copies.
type Tracker struct {
	mu    sync.Mutex
	state State
	now   func() time.Time
}

// NewTracker returns a tracker in the idle state
func NewTracker() *Tracker {
	return &Tracker{
		state: State{Status: StatusIdle},
		now:   time.Now,
	}
}

// Begin starts a new run: if none is running it resets every counter, clears
// the error and finish time, assigns a run id and marks the state running.
// Otherwise it returns ErrAlreadyRunning and leaves the state untouched.
func (t *Tracker) Begin() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Running() {
		return "", ErrAlreadyRunning
	}

	runID := uuid.NewString()
	t.state = State{
		RunID:     runID,
		Status:    StatusRunning,
		StartedAt: unixSeconds(t.now()),
	}
	return runID, nil
}

// Snapshot returns a copy of the current state
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetTotalFiles records how many files the run will visit
func (t *Tracker) SetTotalFiles(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.TotalFiles = n
}

// StartFile marks path as the file being handled and position (1-based) as
// the number of files processed so far
func (t *Tracker) StartFile(path string, position int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.CurrentFile = &path
	t.state.ProcessedFiles = position
}

// AddTotalChunks raises the expected chunk total
func (t *Tracker) AddTotalChunks(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.TotalChunks += n
}

// AddProcessedChunks records n more persisted chunks
func (t *Tracker) AddProcessedChunks(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.ProcessedChunks += n
}

// SkipChunks accounts for n chunks that are already stored, raising the
// total and processed counts together
func (t *Tracker) SkipChunks(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.TotalChunks += n
	t.state.ProcessedChunks += n
}

// Complete marks the run completed
func (t *Tracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Status = StatusCompleted
	t.state.CurrentFile = nil
	t.state.FinishedAt = unixSeconds(t.now())
}

// Fail marks the run failed with err's message
func (t *Tracker) Fail(err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Status = StatusError
	t.state.Error = &msg
	t.state.FinishedAt = unixSeconds(t.now())
}

func unixSeconds(ts time.Time) *float64 {
	secs := float64(ts.UnixNano()) / float64(time.Second)
	return &secs
}
