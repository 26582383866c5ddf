package ground

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docground/internal/document"
)

func tokens(words ...string) []document.Token {
	out := make([]document.Token, len(words))
	for i, w := range words {
		x := float64(i) * 0.1
		out[i] = document.Token{Text: w, Page: 1 + i/4, BBox: document.BBox{x, 0.1, x + 0.08, 0.12}}
	}
	return out
}

func TestAlign_EmptyValue(t *testing.T) {
	for _, toks := range [][]document.Token{nil, tokens("a", "b")} {
		for _, v := range []string{"", "   \n\t"} {
			al := Align(v, toks)
			assert.Empty(t, al.Indices)
			assert.NotNil(t, al.Indices)
			assert.Zero(t, al.Coverage)
		}
	}
}

func TestAlign_ExactMatch(t *testing.T) {
	// Scenario: digital IBAN line.
	toks := tokens("IBAN:", "IT60X0542811101000000123456", "Totale:", "123,45", "EUR")

	al := Align("IT60X0542811101000000123456", toks)

	assert.True(t, al.Exact)
	assert.Equal(t, 1.0, al.Coverage)
	assert.Equal(t, []int{1}, al.Indices)
	assert.InDelta(t, 0.97, Fuse(al.Coverage, 0.9), 1e-9)
}

func TestAlign_ExactMatchSpansContiguousTokens(t *testing.T) {
	toks := tokens("Total", "due:", "123,45", "EUR", "thanks")

	al := Align("  DUE: 123,45\n eur ", toks)

	assert.True(t, al.Exact)
	assert.Equal(t, 1.0, al.Coverage)
	assert.Equal(t, []int{1, 2, 3}, al.Indices)
}

func TestAlign_PartialTokenOverlap(t *testing.T) {
	// "tal due" starts inside the first token and ends inside the second.
	al := Align("tal du", tokens("Total", "due", "now"))

	assert.True(t, al.Exact)
	assert.Equal(t, []int{0, 1}, al.Indices)
}

func TestAlign_EmptyTokensDoNotShiftOffsets(t *testing.T) {
	toks := tokens("", "IBAN", "  ", "IT60X", "")

	al := Align("iban it60x", toks)

	assert.True(t, al.Exact)
	assert.Equal(t, []int{1, 3}, al.Indices)
}

func TestAlign_FragmentedOCRFallsBackToContainment(t *testing.T) {
	// Scenario: "123,45" split by OCR into "123" and ",45" with no
	// contiguous match in the joined text.
	toks := tokens("Totale", "123", "EUR", ",45")

	al := Align("123,45", toks)

	assert.False(t, al.Exact)
	assert.Equal(t, []int{1, 3}, al.Indices)
	assert.Less(t, al.Coverage, 1.0)
	assert.Greater(t, al.Coverage, 0.0)
}

func TestAlign_ContainmentCoverageIsRatio(t *testing.T) {
	al := Align("abcdefghij", tokens("abc", "zzz", "hij"))

	assert.False(t, al.Exact)
	assert.Equal(t, []int{0, 2}, al.Indices)
	assert.InDelta(t, 0.6, al.Coverage, 1e-9)
}

func TestAlign_ContainmentCoverageClamped(t *testing.T) {
	// Overlapping token texts would sum past the value length.
	al := Align("aaaa", tokens("aaa", "x", "aaa"))

	assert.False(t, al.Exact)
	assert.LessOrEqual(t, al.Coverage, 1.0)
}

func TestAlign_NoMatch(t *testing.T) {
	al := Align("missing", tokens("nothing", "here"))

	assert.Empty(t, al.Indices)
	assert.Zero(t, al.Coverage)
	assert.Zero(t, Fuse(al.Coverage, 0))
}

func TestAlign_ExactCoversMatchedRange(t *testing.T) {
	toks := tokens("alpha", "beta", "gamma", "delta")
	joined := "alpha beta gamma delta"
	for start := 0; start < len(joined); start++ {
		for end := start + 1; end <= len(joined); end++ {
			v := joined[start:end]
			if strings.TrimSpace(v) != v {
				continue
			}
			al := Align(v, toks)
			require.True(t, al.Exact, v)
			assert.Equal(t, 1.0, al.Coverage)
			for i := 1; i < len(al.Indices); i++ {
				assert.Equal(t, al.Indices[i-1]+1, al.Indices[i], "indices must be contiguous for %q", v)
			}
		}
	}
}

func TestFuse(t *testing.T) {
	assert.Equal(t, 0.97, Fuse(1, 0.9))
	assert.Equal(t, 0.3, Fuse(0, 1))
	assert.Equal(t, 1.0, Fuse(1, 5))
	assert.Equal(t, 0.0, Fuse(0, -3))
	assert.Equal(t, 0.7, Fuse(1, math.NaN()))
	assert.Equal(t, 0.4667, Fuse(0.5, 0.3890))
}

func TestGround_MatchedTokens(t *testing.T) {
	batch := document.TokenBatch{Space: document.SpaceNormalized, Tokens: tokens("a", "b", "c", "d", "IBAN", "IT60X")}

	got, al := Ground("iban", document.StrPtr(" IT60X "), 0.9, batch, &Fallback{Page: 1})

	require.Equal(t, []int{5}, al.Indices)
	require.NotNil(t, got.Value)
	assert.Equal(t, "IT60X", *got.Value)
	assert.Equal(t, 0.97, got.Confidence)
	assert.Equal(t, []document.BBox{batch.Tokens[5].BBox}, got.BBoxes)
	assert.Equal(t, []int{2}, got.Pages)
	assert.False(t, got.WeakProvenance)
	assert.Equal(t, document.SpaceNormalized, got.Space)
}

func TestGround_WeakProvenanceFallback(t *testing.T) {
	batch := document.TokenBatch{Space: document.SpacePixel, Tokens: tokens("unrelated")}
	fb := &Fallback{Page: 1, BBox: document.BBox{0.1, 0.2, 0.3, 0.4}}

	got, _ := Ground("total", document.StrPtr("99.00"), 0.8, batch, fb)

	assert.True(t, got.WeakProvenance)
	assert.Zero(t, got.Coverage)
	assert.Equal(t, []document.BBox{fb.BBox}, got.BBoxes)
	assert.Equal(t, []int{1}, got.Pages)
	assert.InDelta(t, 0.24, got.Confidence, 1e-9)
}

func TestGround_NullValue(t *testing.T) {
	got, _ := Ground("total", nil, 0.5, document.TokenBatch{}, &Fallback{Page: 1})

	assert.Nil(t, got.Value)
	assert.Zero(t, got.Coverage)
	assert.Equal(t, 0.15, got.Confidence)
	assert.Empty(t, got.BBoxes)
	assert.False(t, got.WeakProvenance)
}
