package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dgallion1/docground/internal/metrics"
)

// Worker runs jobs through a Processor.
type Worker struct {
	proc    *Processor
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewWorker(proc *Processor, m *metrics.Metrics, log *zap.Logger) *Worker {
	return &Worker{proc: proc, metrics: m, log: log}
}

// Process runs one job to a terminal state.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With(zap.String("job_id", job.ID), zap.String("request_id", job.RequestID))
	job.Start()
	start := time.Now()

	resp, err := w.proc.Process(ctx, job.Request())
	if err != nil {
		log.Error("job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		job.Fail(err)
		w.metrics.JobCompleted(string(StatusFailed))
		return
	}
	job.Complete(resp)
	w.metrics.JobCompleted(resp.Status)
	log.Info("job done", zap.String("status", resp.Status), zap.Duration("elapsed", time.Since(start)))
}
