package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgallion1/docground/internal/config"
	"github.com/dgallion1/docground/internal/metrics"
	"github.com/dgallion1/docground/internal/report"
)

// cleanupInterval is how often expired jobs and reports are swept.
const cleanupInterval = 5 * time.Minute

// Orchestrator runs queued extraction jobs on a fixed set of workers.
type Orchestrator struct {
	jobs    *JobStore
	queue   *PriorityQueue
	proc    *Processor
	reports *report.Store
	metrics *metrics.Metrics
	log     *zap.Logger
	cfg     config.JobsConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the job queue. Call Start to launch workers.
func NewOrchestrator(cfg config.JobsConfig, proc *Processor, reports *report.Store, m *metrics.Metrics, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		jobs:    NewJobStore(cfg.TTL),
		queue:   NewPriorityQueue(cfg.QueueSize),
		proc:    proc,
		reports: reports,
		metrics: m,
		log:     log,
		cfg:     cfg,
	}
}

// Start launches worker goroutines and the cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	workers := o.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.proc, o.metrics, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case <-o.queue.Ready():
					if job := o.queue.Pop(); job != nil {
						w.Process(workerCtx, job)
					}
				}
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case now := <-ticker.C:
				o.Cleanup(now)
			}
		}
	}()
}

// Stop cancels running jobs and waits for the workers to exit.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Cleanup evicts expired jobs and report bundles.
func (o *Orchestrator) Cleanup(now time.Time) {
	if n := o.jobs.Cleanup(now); n > 0 {
		o.log.Info("expired jobs removed", zap.Int("count", n))
	}
	if o.reports != nil {
		o.reports.Sweep(now)
	}
}

// Submit queues a job. On a full queue the job is not tracked and
// ErrQueueFull is returned.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	job.Emit(EventQueued, map[string]any{"priority": job.Priority})
	if err := o.queue.Push(job); err != nil {
		o.jobs.Delete(job.ID)
		return err
	}
	o.metrics.JobEnqueued()
	o.log.Debug("job queued",
		zap.String("job_id", job.ID),
		zap.String("request_id", job.RequestID),
		zap.Int("priority", job.Priority),
	)
	return nil
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns the number of jobs waiting for a worker.
func (o *Orchestrator) QueueDepth() int {
	return o.queue.Len()
}
