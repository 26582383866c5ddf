// Package ground aligns extracted values back onto the positioned token
// stream and fuses the resulting coverage with model confidence.
package ground

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docground/internal/document"
)

// maxContainmentCoverage caps the coverage of the token-containment branch
// below an exact phrase match.
const maxContainmentCoverage = 0.95

// Alignment is the result of aligning a value with a token stream.
type Alignment struct {
	Indices  []int   `json:"token_indices"`
	Coverage float64 `json:"coverage"`
	Exact    bool    `json:"exact"`
}

// Normalize trims, lowercases and collapses internal whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Align finds the tokens that carry value.
//
// If the normalized value occurs in the space-joined normalized tokens, the
// tokens overlapping the first occurrence are returned with coverage 1.
// Otherwise every token whose text occurs inside the value matches, and
// coverage is the matched length over the value length. Tokens that
// normalize to nothing take no space in the joined text and never match.
func Align(value string, tokens []document.Token) Alignment {
	v := Normalize(value)
	if v == "" {
		return Alignment{Indices: []int{}}
	}

	norm := make([]string, len(tokens))
	starts := make([]int, len(tokens))
	var b strings.Builder
	for i, t := range tokens {
		norm[i] = Normalize(t.Text)
		if norm[i] == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		starts[i] = b.Len()
		b.WriteString(norm[i])
	}

	if at := strings.Index(b.String(), v); at >= 0 {
		end := at + len(v)
		indices := []int{}
		for i, t := range norm {
			if t == "" {
				continue
			}
			if max(starts[i], at) < min(starts[i]+len(t), end) {
				indices = append(indices, i)
			}
		}
		return Alignment{Indices: indices, Coverage: 1, Exact: true}
	}

	indices := []int{}
	matched := 0
	for i, t := range norm {
		if t != "" && strings.Contains(v, t) {
			indices = append(indices, i)
			matched += utf8.RuneCountInString(t)
		}
	}
	coverage := float64(matched) / float64(utf8.RuneCountInString(v))
	if coverage > maxContainmentCoverage {
		coverage = maxContainmentCoverage
	}
	return Alignment{Indices: indices, Coverage: coverage}
}
