package retrieve

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/dgallion1/docground/internal/embed"
)

// FlatIP is an exact inner-product vector index.
type FlatIP struct {
	dim  int
	vecs [][]float32
}

// NewFlatIP returns an empty index for vectors of dimension dim.
func NewFlatIP(dim int) *FlatIP {
	return &FlatIP{dim: dim}
}

// Add appends vectors; their row numbers are their IDs.
func (f *FlatIP) Add(vecs [][]float32) error {
	for _, v := range vecs {
		if len(v) != f.dim {
			return eris.Errorf("retrieve: vector dim %d, index dim %d", len(v), f.dim)
		}
	}
	f.vecs = append(f.vecs, vecs...)
	return nil
}

// Len is the number of indexed vectors.
func (f *FlatIP) Len() int { return len(f.vecs) }

type scored struct {
	id    int
	score float64
}

// Search returns the k rows with the highest inner product with q, best
// first, lower row first on ties.
func (f *FlatIP) Search(q []float32, k int) []scored {
	if k > len(f.vecs) {
		k = len(f.vecs)
	}
	all := make([]scored, len(f.vecs))
	for i, v := range f.vecs {
		all[i] = scored{id: i, score: embed.Dot(q, v)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	return all[:k]
}
