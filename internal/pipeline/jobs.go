package pipeline

import (
	"sync"
	"time"

	"github.com/dgallion1/docground/internal/document"
)

// JobStatus represents the state of an extraction job.
type JobStatus string

const (
	StatusQueued  JobStatus = "queued"
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusFailed  JobStatus = "error"
)

// Job events, in the order a successful job emits them.
const (
	EventQueued  = "queued"
	EventStarted = "started"
	EventDone    = "done"
	EventError   = "error"
)

// DefaultPriority is used when a submission names none.
const DefaultPriority = 5

// Event is one entry of a job's event log.
type Event struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
	TS    int64          `json:"ts"`
}

// Job tracks one queued extraction request.
type Job struct {
	mu sync.Mutex

	ID        string `json:"job_id"`
	RequestID string `json:"request_id"`
	Priority  int    `json:"priority"`
	Filename  string `json:"filename"`

	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	seq      uint64
	data     []byte
	template document.Template
	result   *Response
	err      string
	events   []Event
	changed  chan struct{}
}

// NewJob creates a queued job. A zero priority means DefaultPriority;
// lower numbers run first.
func NewJob(requestID, filename string, data []byte, tpl document.Template, priority int) *Job {
	if priority == 0 {
		priority = DefaultPriority
	}
	if requestID == "" {
		requestID = NewRequestID()
	}
	now := time.Now()
	return &Job{
		ID:        NewJobID(),
		RequestID: requestID,
		Priority:  priority,
		Filename:  filename,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		data:      data,
		template:  tpl,
		changed:   make(chan struct{}),
	}
}

// Emit appends an event and wakes every waiting subscriber.
func (j *Job) Emit(event string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.emitLocked(event, data)
}

func (j *Job) emitLocked(event string, data map[string]any) {
	now := time.Now()
	j.events = append(j.events, Event{Event: event, Data: data, TS: now.UnixMilli()})
	j.UpdatedAt = now
	close(j.changed)
	j.changed = make(chan struct{})
}

// Start marks the job running.
func (j *Job) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusRunning
	j.emitLocked(EventStarted, map[string]any{})
}

// Complete stores the result and marks the job done.
func (j *Job) Complete(resp *Response) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = resp
	j.Status = StatusDone
	j.data = nil
	j.emitLocked(EventDone, map[string]any{"status": resp.Status})
}

// Fail records err and marks the job failed.
func (j *Job) Fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.err = err.Error()
	j.Status = StatusFailed
	j.data = nil
	j.emitLocked(EventError, map[string]any{"error": j.err})
}

// Finished reports whether the job reached a terminal state.
func (j *Job) Finished() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finishedLocked()
}

func (j *Job) finishedLocked() bool {
	return j.Status == StatusDone || j.Status == StatusFailed
}

// EventsSince returns the events after the first n, a channel closed on the
// next event, and whether the job has finished.
func (j *Job) EventsSince(n int) ([]Event, <-chan struct{}, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Event
	if n < len(j.events) {
		out = append(out, j.events[n:]...)
	}
	return out, j.changed, j.finishedLocked()
}

// Request builds the processor request for this job.
func (j *Job) Request() Request {
	j.mu.Lock()
	defer j.mu.Unlock()
	// The processor normalizes the template in place.
	tpl := j.template
	tpl.Fields = append([]string(nil), j.template.Fields...)
	return Request{
		RequestID: j.RequestID,
		Filename:  j.Filename,
		Data:      j.data,
		Template:  tpl,
		Emit:      j.Emit,
	}
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	RequestID string    `json:"request_id"`
	Priority  int       `json:"priority"`
	Filename  string    `json:"filename"`
	Template  string    `json:"template"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Result    *Response `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSnapshot{
		ID:        j.ID,
		RequestID: j.RequestID,
		Priority:  j.Priority,
		Filename:  j.Filename,
		Template:  j.template.Name,
		Status:    j.Status,
		Error:     j.err,
		Result:    j.result,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
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

func (s *JobStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// Len is the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes finished jobs not updated within the TTL and returns how
// many were removed.
func (s *JobStore) Cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.finishedLocked() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}
