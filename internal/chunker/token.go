package chunker

import (
	"strings"
	"unicode/utf8"
)

// ApproximateTokens gives a coarse budget estimate of 0.5 per word plus one
// per sixteen characters, floored at 1. It is monotonic in text size and is
// not a tokenizer count.
func ApproximateTokens(text string) int {
	words := len(strings.Fields(text))
	chars := utf8.RuneCountInString(text)
	tokens := int(0.5*float64(words) + 0.25*float64(chars)/4)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
