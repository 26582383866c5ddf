package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docground/internal/document"
)

func joinChunks(chunks []document.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

func kinds(chunks []document.Chunk) []document.ChunkKind {
	out := make([]document.ChunkKind, len(chunks))
	for i, c := range chunks {
		out[i] = c.Kind
	}
	return out
}

func TestSplit_ClassifiesStructure(t *testing.T) {
	text := "# Title\n\nIntro line one.\nline two.\n\n- a\n- b\n\n| h1 | h2 |\n|---|---|\n| 1 | 2 |\n\nTail"

	chunks := Split(text, DefaultConfig())

	require.Len(t, chunks, 5)
	assert.Equal(t, []document.ChunkKind{
		document.KindHeading,
		document.KindParagraph,
		document.KindList,
		document.KindTable,
		document.KindParagraph,
	}, kinds(chunks))
	assert.Equal(t, "# Title\n\n", chunks[0].Text)
	assert.Equal(t, "Intro line one.\nline two.\n\n", chunks[1].Text)
	assert.Equal(t, "| h1 | h2 |\n|---|---|\n| 1 | 2 |\n\n", chunks[3].Text)
	assert.Equal(t, "Tail", chunks[4].Text)
}

func TestSplit_RoundTripAndOffsets(t *testing.T) {
	inputs := []string{
		"IBAN: IT60X0542811101000000123456\n\nTotale: 123,45 EUR",
		"\n\nleading blanks\n",
		"para\n## H\nbody\n\n\n\ntrailing\n\n",
		"1. first\n   more\n2) second\nplain",
		"| a | b |\n|:-:|---|\n| 1 | 2 |\n| 3 | 4 |\nafter",
	}
	for _, in := range inputs {
		chunks := Split(in, DefaultConfig())
		require.NotEmpty(t, chunks, in)
		assert.Equal(t, in, joinChunks(chunks), "round trip")

		prevEnd := 0
		for i, c := range chunks {
			assert.Equal(t, i, c.ID)
			assert.Equal(t, prevEnd, c.Start, "chunks must be contiguous")
			assert.Equal(t, in[c.Start:c.End], c.Text)
			prevEnd = c.End
		}
		assert.Equal(t, len(in), prevEnd)
	}
}

func TestSplit_BlankLineTerminatesChunk(t *testing.T) {
	chunks := Split("first para\n\nsecond para\n", DefaultConfig())

	require.Len(t, chunks, 2)
	assert.Equal(t, "first para\n\n", chunks[0].Text)
	assert.Equal(t, "second para\n", chunks[1].Text)
}

func TestSplit_HeadingWithoutBlankLine(t *testing.T) {
	chunks := Split("para\n## H\nbody", DefaultConfig())

	require.Len(t, chunks, 3)
	assert.Equal(t, []document.ChunkKind{
		document.KindParagraph, document.KindHeading, document.KindParagraph,
	}, kinds(chunks))
	assert.Equal(t, "## H\n", chunks[1].Text)
}

func TestSplit_ListContinuation(t *testing.T) {
	chunks := Split("1. first\n   more\n2) second\nplain", DefaultConfig())

	require.Len(t, chunks, 2)
	assert.Equal(t, document.KindList, chunks[0].Kind)
	assert.Equal(t, "1. first\n   more\n2) second\n", chunks[0].Text)
	assert.Equal(t, document.KindParagraph, chunks[1].Kind)
}

func TestSplit_SizeLimitFlushes(t *testing.T) {
	text := "aaaa bbbb cccc\ndddd eeee ffff\ngggg\n"

	chunks := Split(text, Config{MaxChars: 20})

	require.Len(t, chunks, 2)
	assert.Equal(t, "aaaa bbbb cccc\n", chunks[0].Text)
	assert.Equal(t, "dddd eeee ffff\ngggg\n", chunks[1].Text)
	assert.Equal(t, text, joinChunks(chunks))
}

func TestSplit_PipeWithoutSeparatorIsParagraph(t *testing.T) {
	chunks := Split("a | b\nc | d\n", DefaultConfig())

	require.Len(t, chunks, 1)
	assert.Equal(t, document.KindParagraph, chunks[0].Kind)
}

func TestSplit_Empty(t *testing.T) {
	assert.Empty(t, Split("", DefaultConfig()))
	assert.Empty(t, Split("\n \n\t\n", DefaultConfig()))
}

func TestIsSeparatorRow(t *testing.T) {
	assert.True(t, IsSeparatorRow("|---|---|"))
	assert.True(t, IsSeparatorRow(" | :--- | ---: | "))
	assert.False(t, IsSeparatorRow("---"))
	assert.False(t, IsSeparatorRow("| a | b |"))
}
