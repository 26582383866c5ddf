package document

// FieldValue is what the extraction model reports for one field.
type FieldValue struct {
	Value      *string `json:"value"`
	Confidence float64 `json:"confidence"`
}

// FieldExtraction is the grounded result for one template field.
//
// WeakProvenance is set when BBoxes holds a best-effort fallback box rather
// than matched tokens; Coverage is 0 in that case.
type FieldExtraction struct {
	Key            string     `json:"key"`
	Value          *string    `json:"value"`
	Confidence     float64    `json:"confidence"`
	Coverage       float64    `json:"coverage"`
	BBoxes         []BBox     `json:"bboxes"`
	Pages          []int      `json:"pages"`
	WeakProvenance bool       `json:"weak_provenance,omitempty"`
	Space          CoordSpace `json:"bbox_space,omitempty"`
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string { return &s }
