package pipeline

import (
	"container/heap"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrQueueFull is returned when the job queue is at capacity.
var ErrQueueFull = eris.New("job queue is full")

// jobHeap orders jobs by priority, then submission order.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(a, b int) bool {
	if h[a].Priority != h[b].Priority {
		return h[a].Priority < h[b].Priority
	}
	return h[a].seq < h[b].seq
}

func (h jobHeap) Swap(a, b int) { h[a], h[b] = h[b], h[a] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}

// PriorityQueue is a bounded job queue. Ready receives one token per queued
// job, so a receive from it guarantees Pop returns a job.
type PriorityQueue struct {
	mu    sync.Mutex
	jobs  jobHeap
	seq   uint64
	size  int
	ready chan struct{}
}

func NewPriorityQueue(size int) *PriorityQueue {
	if size <= 0 {
		size = 100
	}
	return &PriorityQueue{size: size, ready: make(chan struct{}, size)}
}

// Push queues job or returns ErrQueueFull.
func (q *PriorityQueue) Push(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) >= q.size {
		return eris.Wrapf(ErrQueueFull, "capacity %d", q.size)
	}
	q.seq++
	job.seq = q.seq
	heap.Push(&q.jobs, job)
	q.ready <- struct{}{}
	return nil
}

// Ready is signaled once per queued job.
func (q *PriorityQueue) Ready() <-chan struct{} { return q.ready }

// Pop removes the most urgent job, or returns nil when empty.
func (q *PriorityQueue) Pop() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil
	}
	return heap.Pop(&q.jobs).(*Job)
}

// Len is the number of queued jobs.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
