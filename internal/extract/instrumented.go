package extract

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Instrumented rate-limits calls to another backend and records their
// latency.
type Instrumented struct {
	inner   Extractor
	limiter *rate.Limiter
	stats   *LLMStats
	log     *zap.Logger
}

// NewInstrumented wraps inner. A nil limiter or stats disables that part.
func NewInstrumented(inner Extractor, limiter *rate.Limiter, stats *LLMStats, log *zap.Logger) *Instrumented {
	if log == nil {
		log = zap.NewNop()
	}
	return &Instrumented{inner: inner, limiter: limiter, stats: stats, log: log}
}

func (i *Instrumented) Name() string { return i.inner.Name() }

func (i *Instrumented) Extract(ctx context.Context, req Request) (*Response, error) {
	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "extract: rate limit wait")
		}
	}
	start := time.Now()
	resp, err := i.inner.Extract(ctx, req)
	elapsed := time.Since(start)
	if i.stats != nil {
		i.stats.Record(elapsed.Milliseconds(), err == nil)
	}
	if err != nil {
		i.log.Warn("extraction call failed",
			zap.String("backend", i.inner.Name()),
			zap.Strings("fields", req.Fields),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, err
	}
	i.log.Debug("extraction call done",
		zap.String("backend", i.inner.Name()),
		zap.Strings("fields", req.Fields),
		zap.Duration("elapsed", elapsed),
	)
	return resp, nil
}
