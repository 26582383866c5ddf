package ocr

import (
	"context"

	"github.com/dgallion1/docground/internal/document"
)

// MockAnalyzer returns one fixed page with two text blocks.
type MockAnalyzer struct{}

func (MockAnalyzer) Analyze(context.Context, []byte, string) ([]document.PageBlocks, error) {
	return []document.PageBlocks{{
		Page:   1,
		Width:  600,
		Height: 800,
		Blocks: []document.Block{
			{Type: BlockText, Text: "MOCK FIELD", BBox: document.BBox{60, 60, 260, 110}},
			{Type: BlockText, Text: "ALTRO", BBox: document.BBox{80, 200, 300, 240}},
		},
	}}, nil
}
