// Package embed provides the embedding strategies used for vector
// retrieval and the ordered chain that picks one per request.
package embed

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Strategy names.
const (
	NameQuantizedLocal = "quantized-local"
	NameSentence       = "sentence"
	NameTFIDF          = "tfidf"
	NameHash           = "hash"
)

// ErrNoStrategy is returned when every strategy in a chain failed.
var ErrNoStrategy = eris.New("embed: no embedding strategy succeeded")

// Strategy turns texts into vectors of a fixed dimension.
type Strategy interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Fitter is a strategy whose vocabulary comes from the corpus it indexes.
// Fit returns a request-local strategy; the receiver is left untouched.
type Fitter interface {
	Fit(corpus []string) (Strategy, error)
}

// Space is the outcome of a chain run: corpus vectors plus the strategy that
// produced them, so queries land in the same space.
type Space struct {
	Vectors   [][]float32
	strategy  Strategy
	normalize bool
}

// Backend names the strategy the space is committed to.
func (s *Space) Backend() string { return s.strategy.Name() }

// Query embeds a single query string.
func (s *Space) Query(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.strategy.Embed(ctx, []string{text})
	if err != nil {
		return nil, eris.Wrapf(err, "embed: query with %s", s.strategy.Name())
	}
	if len(vecs) != 1 {
		return nil, eris.Errorf("embed: %s returned %d query vectors", s.strategy.Name(), len(vecs))
	}
	if s.normalize {
		Normalize(vecs)
	}
	return vecs[0], nil
}

// Chain tries strategies in order and commits to the first that works.
type Chain struct {
	strategies []Strategy
	normalize  bool
	log        *zap.Logger
}

// NewChain builds a chain over strategies. When normalize is set every
// vector is scaled to unit length.
func NewChain(log *zap.Logger, normalize bool, strategies ...Strategy) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{strategies: strategies, normalize: normalize, log: log}
}

// Names lists the strategies in trial order.
func (c *Chain) Names() []string {
	out := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		out[i] = s.Name()
	}
	return out
}

// Embed embeds corpus with the first strategy whose setup and embedding call
// both succeed. No strategy mixing happens within one space.
func (c *Chain) Embed(ctx context.Context, corpus []string) (*Space, error) {
	if len(corpus) == 0 {
		return nil, eris.New("embed: empty corpus")
	}
	for _, s := range c.strategies {
		vecs, committed, err := c.try(ctx, s, corpus)
		if err != nil {
			c.log.Warn("embedding strategy failed",
				zap.String("strategy", s.Name()),
				zap.Error(err),
			)
			continue
		}
		if c.normalize {
			Normalize(vecs)
		}
		c.log.Debug("embedding strategy committed",
			zap.String("strategy", committed.Name()),
			zap.Int("texts", len(corpus)),
		)
		return &Space{Vectors: vecs, strategy: committed, normalize: c.normalize}, nil
	}
	return nil, ErrNoStrategy
}

func (c *Chain) try(ctx context.Context, s Strategy, corpus []string) ([][]float32, Strategy, error) {
	if f, ok := s.(Fitter); ok {
		fitted, err := f.Fit(corpus)
		if err != nil {
			return nil, nil, err
		}
		s = fitted
	}
	vecs, err := s.Embed(ctx, corpus)
	if err != nil {
		return nil, nil, err
	}
	if len(vecs) != len(corpus) {
		return nil, nil, eris.Errorf("embed: %s returned %d vectors for %d texts", s.Name(), len(vecs), len(corpus))
	}
	dim := -1
	for _, v := range vecs {
		if dim >= 0 && len(v) != dim {
			return nil, nil, eris.Errorf("embed: %s returned ragged vectors", s.Name())
		}
		dim = len(v)
	}
	if dim == 0 {
		return nil, nil, eris.Errorf("embed: %s returned empty vectors", s.Name())
	}
	return vecs, s, nil
}

// Normalize scales each vector to unit L2 length in place. Zero vectors are
// left as they are.
func Normalize(vecs [][]float32) {
	for _, v := range vecs {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if sum == 0 {
			continue
		}
		inv := float32(1 / math.Sqrt(sum))
		for i := range v {
			v[i] *= inv
		}
	}
}

// Dot is the inner product of two equal-length vectors.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
