package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgallion1/docground/internal/config"
	"github.com/dgallion1/docground/internal/document"
)

func samplePages() []document.PageBlocks {
	return []document.PageBlocks{
		{
			Page: 1, Width: 600, Height: 800,
			Blocks: []document.Block{
				{Type: BlockTable, Markdown: "| A1 | B1 |\n| --- | --- |", BBox: document.BBox{0, 0, 300, 100}},
				{Type: BlockText, Text: "Riga 1", BBox: document.BBox{60, 80, 300, 160}},
				{Type: BlockCell, Text: "A1", BBox: document.BBox{20, 40, 120, 70}},
			},
		},
		{
			Page: 2, Width: 600, Height: 800,
			Blocks: []document.Block{{Type: BlockText, Text: "Pagina 2", BBox: document.BBox{10, 10, 200, 30}}},
		},
	}
}

func TestBuildMarkdown(t *testing.T) {
	md := BuildMarkdown(samplePages())
	assert.Equal(t, "| A1 | B1 |\n| --- | --- |\nRiga 1\nA1\n\nPagina 2\n", md)
	assert.Empty(t, BuildMarkdown(nil))
}

func TestTokens(t *testing.T) {
	batch := Tokens(samplePages())

	assert.Equal(t, document.SpacePixel, batch.Space)
	require.Len(t, batch.Tokens, 5)
	assert.Equal(t, "Riga", batch.Tokens[0].Text)
	assert.Equal(t, "1", batch.Tokens[1].Text)
	assert.Equal(t, document.BBox{60, 80, 300, 160}, batch.Tokens[1].BBox)
	assert.Equal(t, 0, *batch.Tokens[0].LineID)
	assert.Equal(t, 1, *batch.Tokens[2].LineID)
	assert.Equal(t, 2, batch.Tokens[4].Page)
}

func TestFirstTextBlock(t *testing.T) {
	fb := FirstTextBlock(samplePages())
	require.NotNil(t, fb)
	assert.Equal(t, 1, fb.Page)
	assert.InDeltaSlice(t, []float64{0.1, 0.1, 0.5, 0.2}, fb.BBox[:], 1e-9)

	assert.Nil(t, FirstTextBlock([]document.PageBlocks{{Page: 1, Blocks: []document.Block{{Type: BlockTable}}}}))
}

func TestMockAnalyzer(t *testing.T) {
	pages, err := MockAnalyzer{}.Analyze(context.Background(), nil, "x.png")
	require.NoError(t, err)
	assert.Equal(t, "MOCK FIELD\nALTRO\n", BuildMarkdown(pages))
}

func TestNewPicksMock(t *testing.T) {
	assert.IsType(t, MockAnalyzer{}, New(config.OCRConfig{Mock: true, BaseURL: "http://x"}, nil))
	assert.IsType(t, &HTTPAnalyzer{}, New(config.OCRConfig{BaseURL: "http://x"}, nil))
}

func TestHTTPAnalyzer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		assert.Equal(t, "scan.png", hdr.Filename)
		assert.JSONEq(t, `{"pages":[]}`, r.FormValue("payload"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(samplePages())
	}))
	defer srv.Close()

	a := NewHTTPAnalyzer(config.OCRConfig{BaseURL: srv.URL}, zap.NewNop())
	pages, err := a.Analyze(context.Background(), []byte("png-bytes"), "scan.png")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "Pagina 2", pages[1].Blocks[0].Text)
	assert.Equal(t, 600.0, pages[0].Width)
}

func TestHTTPAnalyzer_ClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	a := NewHTTPAnalyzer(config.OCRConfig{BaseURL: srv.URL}, nil)
	_, err := a.Analyze(context.Background(), []byte("x"), "scan.png")
	require.Error(t, err)
}
