package document

// BBox is a box as x0, y0, x1, y1.
type BBox [4]float64

// CenterX is the horizontal center of the box.
func (b BBox) CenterX() float64 { return (b[0] + b[2]) / 2 }

// CoordSpace records which coordinate system a token batch uses.
type CoordSpace string

const (
	// SpaceNormalized boxes are divided by page width/height into [0,1].
	SpaceNormalized CoordSpace = "normalized"
	// SpacePixel boxes are raw raster pixels as reported by OCR.
	SpacePixel CoordSpace = "pixel"
)

// Token is a positioned word used for grounding.
type Token struct {
	Text   string `json:"text"`
	Page   int    `json:"page"`
	BBox   BBox   `json:"bbox"`
	LineID *int   `json:"line_id,omitempty"`
}

// TokenBatch is a token stream whose boxes all share one coordinate space.
type TokenBatch struct {
	Space  CoordSpace `json:"space"`
	Tokens []Token    `json:"tokens"`
}

// Word is a positioned word in page pixel coordinates.
type Word struct {
	Text   string `json:"text"`
	BBox   BBox   `json:"bbox"`
	LineID int    `json:"line_id"`
}

// PageWords holds the words of one page and the page size in pixels.
type PageWords struct {
	Page   int     `json:"page"`
	Width  float64 `json:"page_w"`
	Height float64 `json:"page_h"`
	Words  []Word  `json:"words"`
}

// NormalizeWords divides every word box by its page size. Pages with a
// non-positive size are skipped.
func NormalizeWords(pages []PageWords) TokenBatch {
	batch := TokenBatch{Space: SpaceNormalized}
	for _, p := range pages {
		if p.Width <= 0 || p.Height <= 0 {
			continue
		}
		for _, w := range p.Words {
			line := w.LineID
			batch.Tokens = append(batch.Tokens, Token{
				Text: w.Text,
				Page: p.Page,
				BBox: BBox{
					w.BBox[0] / p.Width,
					w.BBox[1] / p.Height,
					w.BBox[2] / p.Width,
					w.BBox[3] / p.Height,
				},
				LineID: &line,
			})
		}
	}
	return batch
}

// Block is a layout block reported by an OCR/layout service.
type Block struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Markdown string `json:"markdown,omitempty"`
	BBox     BBox   `json:"bbox"`
}

// PageBlocks holds the layout blocks of one page.
type PageBlocks struct {
	Page   int     `json:"page"`
	Width  float64 `json:"page_w"`
	Height float64 `json:"page_h"`
	Blocks []Block `json:"blocks"`
}
