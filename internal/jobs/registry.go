// Package jobs implements the bounded, in-memory JobRegistry used to track
// long-running operations so HTTP handlers can return 202 Accepted
// immediately (spec §4.3).
package jobs

import (
	"sync"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/google/uuid"
)

// Status is a job's lifecycle state. Transitions are monotone:
// pending -> running -> (completed | failed).
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Progress is the (current, total, message) tuple a worker reports back
// through a job's progress sink.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// AggregateResult is the shape required for multi-target jobs (batch
// download, batch node install/update, batch start/stop): spec §4.3.
type AggregateResult struct {
	Success int             `json:"success"`
	Failed  int             `json:"failed"`
	Details map[string]bool `json:"details"`
}

// Record is one tracked asynchronous operation.
type Record struct {
	mu sync.Mutex

	JobID       string      `json:"job_id"`
	Operation   string      `json:"operation"`
	Status      Status      `json:"status"`
	Progress    Progress    `json:"progress"`
	Result      interface{} `json:"result"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Snapshot returns a copy of the record safe to serialize without holding
// the record's lock.
func (r *Record) Snapshot() Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Record{
		JobID:       r.JobID,
		Operation:   r.Operation,
		Status:      r.Status,
		Progress:    r.Progress,
		Result:      r.Result,
		Error:       r.Error,
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}

// ProgressSink returns a (current,total,message)->void closure that
// mutates this record's progress fields; safe to call from any thread.
func (r *Record) ProgressSink() func(current, total int, message string) {
	return func(current, total int, message string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.Progress = Progress{Current: current, Total: total, Message: message}
	}
}

func (r *Record) start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = StatusRunning
	now := time.Now()
	r.StartedAt = &now
}

func (r *Record) complete(result interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = StatusCompleted
	now := time.Now()
	r.CompletedAt = &now
	r.Result = result
}

func (r *Record) fail(errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = StatusFailed
	now := time.Now()
	r.CompletedAt = &now
	r.Error = errMsg
}

// Registry is the bounded, thread-safe table of job records.
type Registry struct {
	mu      sync.Mutex
	jobs    map[string]*Record
	order   []string // insertion order, for FIFO terminal eviction
	maxJobs int
}

// NewRegistry constructs an empty registry capped at maxJobs.
func NewRegistry(maxJobs int) *Registry {
	return &Registry{
		jobs:    make(map[string]*Record),
		maxJobs: maxJobs,
	}
}

// Create allocates a new pending job and prunes if over capacity.
func (reg *Registry) Create(operation string) *Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	id := uuid.New().String()[:8]
	rec := &Record{
		JobID:     id,
		Operation: operation,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	reg.jobs[id] = rec
	reg.order = append(reg.order, id)
	reg.prune()

	logging.Log.WithField("job_id", id).WithField("operation", operation).Debug("job created")
	return rec
}

// Start transitions a job to running.
func (reg *Registry) Start(rec *Record) {
	rec.start()
}

// Complete transitions a job to completed with the given result.
func (reg *Registry) Complete(rec *Record, result interface{}) {
	rec.complete(result)
}

// Fail transitions a job to failed with the given error string.
func (reg *Registry) Fail(rec *Record, errMsg string) {
	rec.fail(errMsg)
}

// Get returns the record for id, or nil if unknown.
func (reg *Registry) Get(id string) *Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.jobs[id]
}

// List returns every tracked record.
func (reg *Registry) List() []*Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Record, 0, len(reg.jobs))
	for _, id := range reg.order {
		if rec, ok := reg.jobs[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// prune drops the oldest terminal record while the table exceeds maxJobs.
// Pending/running jobs are never evicted, so the table can transiently
// exceed maxJobs if no terminal record exists yet. Caller must hold mu.
func (reg *Registry) prune() {
	for len(reg.jobs) > reg.maxJobs {
		evicted := false
		for i, id := range reg.order {
			rec, ok := reg.jobs[id]
			if !ok {
				reg.order = append(reg.order[:i], reg.order[i+1:]...)
				evicted = true
				break
			}
			rec.mu.Lock()
			terminal := rec.Status.terminal()
			rec.mu.Unlock()
			if terminal {
				delete(reg.jobs, id)
				reg.order = append(reg.order[:i], reg.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}
