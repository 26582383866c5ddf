package ground

import (
	"math"
	"strings"

	"github.com/dgallion1/docground/internal/document"
)

const (
	coverageWeight = 0.7
	modelWeight    = 0.3
)

// Fuse combines grounding coverage with the model's own confidence, clamped
// to [0,1] and rounded to four decimals.
func Fuse(coverage, modelConf float64) float64 {
	if math.IsNaN(modelConf) {
		modelConf = 0
	}
	c := coverageWeight*coverage + modelWeight*modelConf
	c = math.Max(0, math.Min(1, c))
	return math.Round(c*1e4) / 1e4
}

// Fallback is a best-effort location used when nothing matched on a raster
// source. Its box is normalized to the page.
type Fallback struct {
	Page int
	BBox document.BBox
}

// Ground builds the final record for one field. When no token matched and a
// fallback is given, its box is attached and the record is marked as weak
// provenance; coverage stays 0.
func Ground(key string, value *string, modelConf float64, batch document.TokenBatch, fallback *Fallback) (document.FieldExtraction, Alignment) {
	out := document.FieldExtraction{
		Key:    key,
		BBoxes: []document.BBox{},
		Pages:  []int{},
	}
	var text string
	if value != nil {
		text = strings.TrimSpace(*value)
	}
	if text != "" {
		out.Value = &text
	}

	al := Align(text, batch.Tokens)
	out.Coverage = al.Coverage
	out.Confidence = Fuse(al.Coverage, modelConf)
	for _, i := range al.Indices {
		tok := batch.Tokens[i]
		out.BBoxes = append(out.BBoxes, tok.BBox)
		out.Pages = append(out.Pages, tok.Page)
	}
	if len(al.Indices) > 0 {
		out.Space = batch.Space
		return out, al
	}
	if fallback != nil && out.Value != nil {
		out.BBoxes = append(out.BBoxes, fallback.BBox)
		out.Pages = append(out.Pages, fallback.Page)
		out.WeakProvenance = true
		out.Space = document.SpaceNormalized
	}
	return out, al
}
