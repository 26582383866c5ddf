package retrieve

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/dgallion1/docground/internal/embed"
)

// Lexical scores every document of a corpus against a query.
type Lexical interface {
	Name() string
	Scores(query string) []float64
}

// BM25 is Okapi BM25 over lowercased word terms.
type BM25 struct {
	k1, b  float64
	tf     []map[string]int
	lens   []int
	avgLen float64
	idf    map[string]float64
}

// NewBM25 indexes docs. It fails on a corpus with no terms at all, where
// document lengths carry no information.
func NewBM25(docs []string) (*BM25, error) {
	m := &BM25{
		k1:   1.5,
		b:    0.75,
		tf:   make([]map[string]int, len(docs)),
		lens: make([]int, len(docs)),
		idf:  make(map[string]float64),
	}
	df := make(map[string]int)
	total := 0
	for i, d := range docs {
		terms := embed.Terms(d)
		counts := make(map[string]int, len(terms))
		for _, t := range terms {
			counts[t]++
		}
		for t := range counts {
			df[t]++
		}
		m.tf[i] = counts
		m.lens[i] = len(terms)
		total += len(terms)
	}
	if total == 0 {
		return nil, eris.New("retrieve: bm25 corpus has no terms")
	}
	m.avgLen = float64(total) / float64(len(docs))
	n := float64(len(docs))
	for t, f := range df {
		m.idf[t] = math.Log(1 + (n-float64(f)+0.5)/(float64(f)+0.5))
	}
	return m, nil
}

func (m *BM25) Name() string { return "bm25" }

func (m *BM25) Scores(query string) []float64 {
	out := make([]float64, len(m.tf))
	terms := embed.Terms(query)
	for i, counts := range m.tf {
		norm := m.k1 * (1 - m.b + m.b*float64(m.lens[i])/m.avgLen)
		var s float64
		for _, t := range terms {
			f := float64(counts[t])
			if f == 0 {
				continue
			}
			s += m.idf[t] * f * (m.k1 + 1) / (f + norm)
		}
		out[i] = s
	}
	return out
}

// Overlap counts query terms found in each document. It is the fallback
// when BM25 cannot be built and never fails.
type Overlap struct {
	docs []map[string]bool
}

// NewOverlap indexes docs for overlap counting.
func NewOverlap(docs []string) *Overlap {
	o := &Overlap{docs: make([]map[string]bool, len(docs))}
	for i, d := range docs {
		set := make(map[string]bool)
		for _, t := range embed.Terms(d) {
			set[t] = true
		}
		o.docs[i] = set
	}
	return o
}

func (o *Overlap) Name() string { return "overlap" }

func (o *Overlap) Scores(query string) []float64 {
	out := make([]float64, len(o.docs))
	terms := embed.Terms(query)
	for i, set := range o.docs {
		for _, t := range terms {
			if set[t] {
				out[i]++
			}
		}
	}
	return out
}

// scaleToUnit divides scores by their maximum so lexical scores share the
// [0,1] range of the other signals.
func scaleToUnit(scores []float64) {
	var top float64
	for _, s := range scores {
		if s > top {
			top = s
		}
	}
	if top <= 0 {
		return
	}
	for i := range scores {
		scores[i] /= top
	}
}
