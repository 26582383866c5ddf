// Package extract asks a language model for template field values over a
// context string and parses its answer into per-field values.
package extract

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dgallion1/docground/internal/config"
	"github.com/dgallion1/docground/internal/document"
)

// Request is one extraction call.
type Request struct {
	Fields   []string
	Guidance string
	Context  string
}

// Response holds parsed values for every requested field plus the raw
// model output. Fields the model left out are present with a nil value and
// zero confidence.
type Response struct {
	Values map[string]document.FieldValue
	Prompt string
	Raw    string
}

// Extractor is a language-model backend.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, req Request) (*Response, error)
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// New builds the backend named by cfg.Backend, wrapped with rate limiting
// and latency stats.
func New(cfg config.LLMConfig, stats *LLMStats, log *zap.Logger) (Extractor, error) {
	var inner Extractor
	switch cfg.Backend {
	case "claude":
		inner = NewClaude(cfg)
	case "local":
		l, err := NewLocal(cfg)
		if err != nil {
			return nil, err
		}
		inner = l
	case "mock":
		inner = Mock{}
	default:
		return nil, eris.Errorf("extract: unknown backend %q", cfg.Backend)
	}
	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return NewInstrumented(inner, limiter, stats, log), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
