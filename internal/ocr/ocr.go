// Package ocr talks to the layout/OCR service and turns its page blocks into
// markdown, pixel-space tokens and weak-provenance boxes.
package ocr

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dgallion1/docground/internal/config"
	"github.com/dgallion1/docground/internal/document"
	"github.com/dgallion1/docground/internal/ground"
)

// Block types reported by the layout service.
const (
	BlockText  = "text"
	BlockCell  = "cell"
	BlockTable = "table"
	BlockTitle = "title"
)

// Analyzer runs layout analysis on a document.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, filename string) ([]document.PageBlocks, error)
}

// New returns the analyzer configured by cfg.
func New(cfg config.OCRConfig, log *zap.Logger) Analyzer {
	if cfg.Mock || cfg.BaseURL == "" {
		return MockAnalyzer{}
	}
	return NewHTTPAnalyzer(cfg, log)
}

// BuildMarkdown lays out page blocks as markdown. Table blocks contribute
// their markdown, all others their text. Pages are separated by a blank line.
func BuildMarkdown(pages []document.PageBlocks) string {
	var out []string
	for _, pg := range pages {
		var lines []string
		for _, b := range pg.Blocks {
			s := b.Text
			if b.Type == BlockTable {
				s = b.Markdown
			}
			if s = strings.TrimSpace(s); s != "" {
				lines = append(lines, s)
			}
		}
		if len(lines) > 0 {
			out = append(out, strings.Join(lines, "\n"))
		}
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n\n") + "\n"
}

// Tokens splits block text into words. Every word carries its block's box in
// pixel space and the block ordinal as line id. Table blocks are skipped;
// their cells arrive as separate blocks.
func Tokens(pages []document.PageBlocks) document.TokenBatch {
	batch := document.TokenBatch{Space: document.SpacePixel}
	ordinal := 0
	for _, pg := range pages {
		for _, b := range pg.Blocks {
			if b.Type == BlockTable {
				continue
			}
			line := ordinal
			ordinal++
			for _, w := range strings.Fields(b.Text) {
				batch.Tokens = append(batch.Tokens, document.Token{
					Text:   w,
					Page:   pg.Page,
					BBox:   b.BBox,
					LineID: &line,
				})
			}
		}
	}
	return batch
}

// FirstTextBlock returns the first text or cell block, normalized by its
// page size, or nil when there is none.
func FirstTextBlock(pages []document.PageBlocks) *ground.Fallback {
	for _, pg := range pages {
		for _, b := range pg.Blocks {
			if b.Type != BlockText && b.Type != BlockCell {
				continue
			}
			w, h := pg.Width, pg.Height
			if w <= 0 {
				w = 1
			}
			if h <= 0 {
				h = 1
			}
			return &ground.Fallback{
				Page: pg.Page,
				BBox: document.BBox{b.BBox[0] / w, b.BBox[1] / h, b.BBox[2] / w, b.BBox[3] / h},
			}
		}
	}
	return nil
}
