package biz

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// JobState is the lifecycle state of a background indexing job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Job records one background indexing run. Uploads are acknowledged before
// indexing finishes, so the job is the client's only completion signal.
type Job struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	State      JobState  `json:"state"`
	Error      string    `json:"error,omitempty"`
	Chunks     int       `json:"chunks,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// JobTracker keeps job records for the lifetime of the process.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobTracker returns an empty tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]*Job)}
}

// Create registers a pending job for the given upload and returns its ID.
func (t *JobTracker) Create(filename string) string {
	job := &Job{
		ID:        ulid.Make().String(),
		Filename:  filename,
		State:     JobPending,
		CreatedAt: time.Now(),
	}
	t.mu.Lock()
	t.jobs[job.ID] = job
	t.mu.Unlock()
	return job.ID
}

// Complete marks a job done with the number of chunks it indexed.
func (t *JobTracker) Complete(id string, chunks int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job, ok := t.jobs[id]; ok {
		job.State = JobCompleted
		job.Chunks = chunks
		job.FinishedAt = time.Now()
	}
}

// Fail marks a job failed with a reason.
func (t *JobTracker) Fail(id string, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if job, ok := t.jobs[id]; ok {
		job.State = JobFailed
		job.Error = reason
		job.FinishedAt = time.Now()
	}
}

// Get returns a copy of the job record, or false if the ID is unknown.
func (t *JobTracker) Get(id string) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Count returns job totals by state.
func (t *JobTracker) Count() (pending, completed, failed int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, job := range t.jobs {
		switch job.State {
		case JobPending:
			pending++
		case JobCompleted:
			completed++
		case JobFailed:
			failed++
		}
	}
	return pending, completed, failed
}
