package embed

import (
	"context"
	"crypto/sha256"
)

// Hash is a deterministic 16-dimension embedding derived from a SHA-256 of
// the text. It carries no meaning and exists for offline runs and tests.
type Hash struct{}

func (Hash) Name() string { return NameHash }

func (Hash) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		sum := sha256.Sum256([]byte(t))
		v := make([]float32, 16)
		for j := range v {
			v[j] = float32(sum[j]%127) / 127
		}
		out[i] = v
	}
	Normalize(out)
	return out, nil
}
