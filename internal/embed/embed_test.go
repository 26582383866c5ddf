package embed

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"
	"go.uber.org/zap"

	"github.com/dgallion1/docground/internal/config"
)

type failingStrategy struct {
	calls atomic.Int32
}

func (f *failingStrategy) Name() string { return "broken" }

func (f *failingStrategy) Embed(context.Context, []string) ([][]float32, error) {
	f.calls.Add(1)
	return nil, errors.New("model not installed")
}

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, f.dim)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

func (f fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedDocuments(ctx, []string{text})
	return v[0], err
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestHandle_BuildsOnceUnderConcurrency(t *testing.T) {
	var builds atomic.Int32
	release := make(chan struct{})
	h := NewHandle("model", func(context.Context) (int, error) {
		builds.Add(1)
		<-release
		return 7, nil
	})

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := h.Get(context.Background())
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	close(release)
	wg.Wait()

	v, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.True(t, h.Ready())
	// Goroutines that arrive after the first build finished reuse the value.
	assert.Equal(t, int32(1), builds.Load())
	for _, r := range results {
		assert.Equal(t, 7, r)
	}
}

func TestHandle_RetriesAfterFailure(t *testing.T) {
	attempts := 0
	h := NewHandle("flaky", func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("download failed")
		}
		return "ok", nil
	})

	_, err := h.Get(context.Background())
	require.Error(t, err)
	assert.False(t, h.Ready())

	v, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, attempts)
}

func TestHandle_BuildSurvivesCallerCancellation(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	h := NewHandle("model", func(ctx context.Context) (int, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 7, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		v   int
		err error
	}
	first := make(chan result, 1)
	go func() {
		v, err := h.Get(ctx)
		first <- result{v, err}
	}()
	<-started

	second := make(chan result, 1)
	go func() {
		v, err := h.Get(context.Background())
		second <- result{v, err}
	}()

	cancel()
	close(release)

	for _, ch := range []chan result{first, second} {
		r := <-ch
		require.NoError(t, r.err)
		assert.Equal(t, 7, r.v)
	}
	assert.True(t, h.Ready())
}

func TestChain_FallsBackToNextStrategy(t *testing.T) {
	broken := &failingStrategy{}
	chain := NewChain(zap.NewNop(), true, broken, TFIDF{})

	space, err := chain.Embed(context.Background(), []string{"iban number", "total amount"})
	require.NoError(t, err)

	assert.Equal(t, NameTFIDF, space.Backend())
	assert.Equal(t, int32(1), broken.calls.Load())
	require.Len(t, space.Vectors, 2)
	for _, v := range space.Vectors {
		assert.InDelta(t, 1.0, norm(v), 1e-5)
	}

	q, err := space.Query(context.Background(), "iban")
	require.NoError(t, err)
	assert.Len(t, q, len(space.Vectors[0]))
	assert.InDelta(t, 1.0, norm(q), 1e-5)
	assert.Greater(t, Dot(q, space.Vectors[0]), Dot(q, space.Vectors[1]))
}

func TestChain_AllFail(t *testing.T) {
	chain := NewChain(nil, false, &failingStrategy{}, TFIDF{})

	_, err := chain.Embed(context.Background(), []string{"!!!", "..."})
	assert.ErrorIs(t, err, ErrNoStrategy)
}

func TestChain_RejectsWrongVectorCount(t *testing.T) {
	short := NewModelStrategy("short", NewHandle("short", func(context.Context) (embeddings.Embedder, error) {
		return shortEmbedder{}, nil
	}))
	chain := NewChain(nil, false, short, Hash{})

	space, err := chain.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, NameHash, space.Backend())
}

type shortEmbedder struct{ fakeEmbedder }

func (shortEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return [][]float32{{1}}, nil
}

func TestModelStrategy(t *testing.T) {
	var builds atomic.Int32
	s := NewModelStrategy("fake", NewHandle("fake", func(context.Context) (embeddings.Embedder, error) {
		builds.Add(1)
		return fakeEmbedder{dim: 3}, nil
	}))

	for i := 0; i < 3; i++ {
		vecs, err := s.Embed(context.Background(), []string{"abc"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{3, 0, 0}}, vecs)
	}
	assert.Equal(t, int32(1), builds.Load())
}

func TestQuantizedLocal_OpenAICompatibleServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		for i := range req.Input {
			data[i] = item{Object: "embedding", Embedding: []float32{float32(i + 1), 0}, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  "test",
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	defer ts.Close()

	s := NewQuantizedLocal(config.EmbeddingConfig{BaseURL: ts.URL, Model: "test", BatchSize: 8})
	vecs, err := s.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{2, 0}, vecs[1])
}

func TestTFIDF(t *testing.T) {
	fitted, err := TFIDF{}.Fit([]string{"alpha beta", "beta gamma"})
	require.NoError(t, err)

	vecs, err := fitted.Embed(context.Background(), []string{"alpha", "beta", "delta"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	// "beta" appears in every document, so it weighs less than "alpha".
	assert.Greater(t, norm(vecs[0]), norm(vecs[1]))
	assert.Zero(t, norm(vecs[2]))

	_, err = TFIDF{}.Fit([]string{"   ", "--"})
	assert.Error(t, err)
}

func TestHash_Deterministic(t *testing.T) {
	a, err := Hash{}.Embed(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	b, err := Hash{}.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)

	assert.Len(t, a[0], 16)
	assert.Equal(t, a[0], b[0])
	assert.NotEqual(t, a[0], a[1])
	assert.InDelta(t, 1.0, norm(a[0]), 1e-5)
}

func TestFromConfig(t *testing.T) {
	chain, err := FromConfig(config.EmbeddingConfig{Chain: []string{"quantized-local", "sentence", "tfidf", "hash"}}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{NameQuantizedLocal, NameSentence, NameTFIDF, NameHash}, chain.Names())

	_, err = FromConfig(config.EmbeddingConfig{Chain: []string{"word2vec"}}, zap.NewNop())
	assert.Error(t, err)
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"iban", "it60x", "totale", "123", "45"}, Terms("IBAN: IT60X Totale 123,45"))
}
