// Package tables detects tabular structure, either from positioned tokens or
// from markdown, to decide whether a document needs layout re-analysis.
package tables

import (
	"sort"
	"strings"

	"github.com/dgallion1/docground/internal/chunker"
	"github.com/dgallion1/docground/internal/document"
)

// SniffConfig holds the thresholds for Sniff.
type SniffConfig struct {
	MinRows    int
	MinCols    int
	XTolerance float64
}

// DefaultSniffConfig returns thresholds suited to normalized coordinates.
func DefaultSniffConfig() SniffConfig {
	return SniffConfig{MinRows: 3, MinCols: 3, XTolerance: 0.02}
}

type lineKey struct {
	page int
	line int
}

// Sniff is a cheap structural proxy for "this page holds a table". It counts
// distinct line groups per page and, if there are at least minRows on some
// page, counts column clusters among the sorted token centers. Tokens
// without a line ID belong to no line group.
func Sniff(tokens []document.Token, minRows, minCols int, xTol float64) bool {
	lines := make(map[lineKey]struct{})
	for _, t := range tokens {
		if t.LineID == nil {
			continue
		}
		lines[lineKey{t.Page, *t.LineID}] = struct{}{}
	}
	perPage := make(map[int]int)
	rowCount := 0
	for k := range lines {
		perPage[k.page]++
		if perPage[k.page] > rowCount {
			rowCount = perPage[k.page]
		}
	}
	if rowCount < minRows || len(tokens) == 0 {
		return false
	}

	centers := make([]float64, len(tokens))
	for i, t := range tokens {
		centers[i] = t.BBox.CenterX()
	}
	sort.Float64s(centers)

	clusters := 1
	for i := 1; i < len(centers); i++ {
		if centers[i]-centers[i-1] > xTol {
			clusters++
		}
	}
	return clusters >= minCols
}

// MarkdownHasTable reports whether md contains a pipe row directly followed
// by a delimiter row.
func MarkdownHasTable(md string) bool {
	lines := strings.Split(md, "\n")
	for i := 0; i+1 < len(lines); i++ {
		if strings.Contains(lines[i], "|") && chunker.IsSeparatorRow(lines[i+1]) {
			return true
		}
	}
	return false
}
