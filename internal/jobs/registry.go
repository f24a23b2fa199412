// Package jobs tracks background capture runs so the HTTP API can report
// progress without holding a request open for the whole batch.
package jobs

import (
	"sync"

	"github.com/google/uuid"

	"github.com/minsuoh/hipass-capture/internal/capture"
)

// Job is a point-in-time snapshot of one background capture run.
type Job struct {
	ID          string `json:"job_id"`
	Total       int    `json:"total"`
	Done        int    `json:"done"`
	CurrentDate string `json:"current_date,omitempty"`
	Finished    bool   `json:"finished"`
}

// Registry holds job snapshots and the outcomes of the most recent batch.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	outcomes []capture.Outcome
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Create registers a new job and returns its id.
func (r *Registry) Create(total int) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.jobs[id] = &Job{ID: id, Total: total}
	r.mu.Unlock()
	return id
}

// Get returns a copy of the job snapshot.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Progress records that a date finished processing.
func (r *Registry) Progress(id string, done, total int, date string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return
	}
	j.Done = done
	j.Total = total
	j.CurrentDate = date
}

// Finish marks the job complete.
func (r *Registry) Finish(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.Finished = true
	}
}

// SetOutcomes replaces the stored outcomes with the latest batch's results.
func (r *Registry) SetOutcomes(outcomes []capture.Outcome) {
	cp := make([]capture.Outcome, len(outcomes))
	copy(cp, outcomes)
	r.mu.Lock()
	r.outcomes = cp
	r.mu.Unlock()
}

// Outcomes returns the results of the most recent batch, oldest first.
func (r *Registry) Outcomes() []capture.Outcome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make([]capture.Outcome, len(r.outcomes))
	copy(cp, r.outcomes)
	return cp
}
