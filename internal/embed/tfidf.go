package embed

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
)

// Terms lowercases text and splits it into letter/digit runs.
func Terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// TFIDF is the lexical last resort. It has no model to load, so it only
// fails on a corpus without a single term.
type TFIDF struct{}

func (TFIDF) Name() string { return NameTFIDF }

func (TFIDF) Embed(context.Context, []string) ([][]float32, error) {
	return nil, eris.New("embed: tfidf must be fitted before use")
}

// Fit learns the vocabulary and smoothed inverse document frequencies of
// corpus.
func (TFIDF) Fit(corpus []string) (Strategy, error) {
	vocab := make(map[string]int)
	df := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]bool)
		for _, term := range Terms(doc) {
			if _, ok := vocab[term]; !ok {
				vocab[term] = len(vocab)
			}
			if !seen[term] {
				seen[term] = true
				df[term]++
			}
		}
	}
	if len(vocab) == 0 {
		return nil, eris.New("embed: tfidf corpus has no terms")
	}
	n := float64(len(corpus))
	idf := make([]float64, len(vocab))
	for term, col := range vocab {
		idf[col] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return &fittedTFIDF{vocab: vocab, idf: idf}, nil
}

type fittedTFIDF struct {
	vocab map[string]int
	idf   []float64
}

func (f *fittedTFIDF) Name() string { return NameTFIDF }

// Embed weights raw term counts by idf. Terms outside the vocabulary are
// dropped.
func (f *fittedTFIDF) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, len(f.idf))
		for _, term := range Terms(text) {
			if col, ok := f.vocab[term]; ok {
				v[col] += float32(f.idf[col])
			}
		}
		out[i] = v
	}
	return out, nil
}
