package retrieve

import (
	"math"

	"github.com/rotisserie/eris"
)

// minWeightSum keeps renormalization away from a division by zero.
const minWeightSum = 1e-6

// Weights are the fusion weights of the three ranking signals.
type Weights struct {
	Lexical float64 `json:"bm25"`
	Vector  float64 `json:"vec"`
	Anchor  float64 `json:"anchor"`
}

// Renormalize scales the weights to sum to 1. A triple summing to roughly
// zero maps to all zeros instead of failing.
func (w Weights) Renormalize() Weights {
	total := math.Max(minWeightSum, w.Lexical+w.Vector+w.Anchor)
	return Weights{
		Lexical: w.Lexical / total,
		Vector:  w.Vector / total,
		Anchor:  w.Anchor / total,
	}
}

// Validate rejects negative or non-finite weights.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Lexical, w.Vector, w.Anchor} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Errorf("retrieve: invalid fusion weights %+v", w)
		}
	}
	return nil
}
