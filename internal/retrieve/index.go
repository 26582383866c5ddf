// Package retrieve ranks document chunks for a query by fusing lexical,
// vector and anchor signals. An Index lives for one request.
package retrieve

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dgallion1/docground/internal/document"
	"github.com/dgallion1/docground/internal/embed"
)

// Vector index modes.
const (
	VectorIndexFlat = "flat"
	VectorIndexNone = "none"
)

// oversample is the candidate multiplier for vector search.
const oversample = 4

// Config controls index construction and scoring.
type Config struct {
	Weights     Weights
	VectorIndex string
}

// Index is an immutable per-request ranking index over chunks.
type Index struct {
	chunks  []document.Chunk
	lower   []string
	anchors []string
	weights Weights

	lexical Lexical
	space   *embed.Space
	flat    *FlatIP

	log *zap.Logger
}

// Build indexes chunks. Failures of the lexical or vector backends degrade
// the index rather than failing it: BM25 falls back to term overlap and a
// failed embedding chain leaves the vector signal at zero.
func Build(ctx context.Context, chunks []document.Chunk, anchors []string, cfg Config, chain *embed.Chain, log *zap.Logger) *Index {
	if log == nil {
		log = zap.NewNop()
	}
	ix := &Index{
		chunks:  chunks,
		lower:   make([]string, len(chunks)),
		weights: cfg.Weights.Renormalize(),
		log:     log,
	}
	for _, a := range anchors {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			ix.anchors = append(ix.anchors, a)
		}
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		ix.lower[i] = strings.ToLower(c.Text)
	}
	if len(chunks) == 0 {
		ix.lexical = NewOverlap(nil)
		return ix
	}

	if bm, err := NewBM25(texts); err == nil {
		ix.lexical = bm
	} else {
		log.Warn("bm25 unavailable, using term overlap", zap.Error(err))
		ix.lexical = NewOverlap(texts)
	}

	if chain == nil {
		return ix
	}
	space, err := chain.Embed(ctx, texts)
	if err != nil {
		log.Warn("no embedding backend, ranking without vectors", zap.Error(err))
		return ix
	}
	ix.space = space
	if cfg.VectorIndex != VectorIndexNone {
		flat := NewFlatIP(len(space.Vectors[0]))
		if err := flat.Add(space.Vectors); err != nil {
			log.Warn("flat index build failed, using brute force", zap.Error(err))
		} else {
			ix.flat = flat
		}
	}
	return ix
}

// Len is the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// Chunk returns the chunk with the given ID.
func (ix *Index) Chunk(id int) document.Chunk { return ix.chunks[id] }

// Backend names the embedding strategy in use, or "none".
func (ix *Index) Backend() string {
	if ix.space == nil {
		return "none"
	}
	return ix.space.Backend()
}

// LexicalBackend names the lexical scorer in use.
func (ix *Index) LexicalBackend() string { return ix.lexical.Name() }

// Search returns at most k hits ordered by descending score, earlier chunks
// first on ties. It never fails; signals that cannot be computed count as
// zero.
func (ix *Index) Search(ctx context.Context, query string, k int) []document.RetrievalHit {
	n := len(ix.chunks)
	if n == 0 || k <= 0 {
		return []document.RetrievalHit{}
	}

	lex := ix.lexical.Scores(query)
	scaleToUnit(lex)
	anchor := ix.anchorScores(query)
	vec := ix.vectorScores(ctx, query, k, lex, anchor)

	w := ix.weights
	fused := make([]scored, n)
	for i := range ix.chunks {
		fused[i] = scored{id: i, score: w.Lexical*lex[i] + w.Vector*vec[i] + w.Anchor*anchor[i]}
	}
	sort.Slice(fused, func(a, b int) bool {
		if fused[a].score != fused[b].score {
			return fused[a].score > fused[b].score
		}
		return ix.chunks[fused[a].id].Start < ix.chunks[fused[b].id].Start
	})
	if k > n {
		k = n
	}
	hits := make([]document.RetrievalHit, k)
	for i := 0; i < k; i++ {
		hits[i] = document.RetrievalHit{ChunkID: ix.chunks[fused[i].id].ID, Score: fused[i].score}
	}
	return hits
}

// Context joins the texts of hits in ranked order.
func (ix *Index) Context(hits []document.RetrievalHit) string {
	byID := make(map[int]document.Chunk, len(ix.chunks))
	for _, c := range ix.chunks {
		byID[c.ID] = c
	}
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		if c, ok := byID[h.ChunkID]; ok {
			parts = append(parts, strings.TrimSpace(c.Text))
		}
	}
	return strings.Join(parts, "\n\n")
}

func (ix *Index) anchorScores(query string) []float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]float64, len(ix.chunks))
	for i, text := range ix.lower {
		switch {
		case containsAny(text, ix.anchors):
			out[i] = 1.0
		case q != "" && strings.Contains(text, q):
			out[i] = 0.5
		}
	}
	return out
}

func containsAny(text string, subs []string) bool {
	for _, s := range subs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

// vectorScores scores only an oversampled candidate set: the flat index
// picks its own nearest rows, brute force takes the best rows by the other
// signals and computes their dot products.
func (ix *Index) vectorScores(ctx context.Context, query string, k int, lex, anchor []float64) []float64 {
	n := len(ix.chunks)
	out := make([]float64, n)
	if ix.space == nil {
		return out
	}
	qv, err := ix.space.Query(ctx, query)
	if err != nil {
		ix.log.Warn("query embedding failed", zap.String("backend", ix.space.Backend()), zap.Error(err))
		return out
	}
	m := k * oversample
	if m > n {
		m = n
	}

	if ix.flat != nil {
		for _, s := range ix.flat.Search(qv, m) {
			out[s.id] = s.score
		}
		return out
	}

	w := ix.weights
	pre := make([]scored, n)
	for i := range pre {
		pre[i] = scored{id: i, score: w.Lexical*lex[i] + w.Anchor*anchor[i]}
	}
	sort.SliceStable(pre, func(a, b int) bool { return pre[a].score > pre[b].score })
	for _, c := range pre[:m] {
		out[c.id] = embed.Dot(qv, ix.space.Vectors[c.id])
	}
	return out
}
