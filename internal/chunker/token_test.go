package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApproximateTokens(t *testing.T) {
	assert.Equal(t, 1, ApproximateTokens(""))
	assert.Equal(t, 1, ApproximateTokens("a"))
	// 4 words, 18 chars: 2 + 1.125
	assert.Equal(t, 3, ApproximateTokens("one two three four"))
}

func TestApproximateTokens_Monotonic(t *testing.T) {
	prev := 0
	for n := 0; n < 200; n += 7 {
		got := ApproximateTokens(strings.Repeat("lorem ipsum ", n))
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}
