package document

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidTemplate is returned for templates that cannot be extracted.
var ErrInvalidTemplate = eris.New("invalid template")

// ChunkKind is the structural class of a chunk.
type ChunkKind string

const (
	KindHeading   ChunkKind = "heading"
	KindParagraph ChunkKind = "paragraph"
	KindList      ChunkKind = "list"
	KindTable     ChunkKind = "table"
)

// Chunk is a contiguous, typed span of document text. Start and End are byte
// offsets into the source text, so Text == src[Start:End].
type Chunk struct {
	ID    int       `json:"chunk_id"`
	Text  string    `json:"text"`
	Kind  ChunkKind `json:"kind"`
	Start int       `json:"start"`
	End   int       `json:"end"`
}

// Len is the chunk length in bytes.
func (c Chunk) Len() int { return c.End - c.Start }

// RetrievalHit is one ranked chunk for a query.
type RetrievalHit struct {
	ChunkID int     `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// Template names the fields to extract and optional free-text guidance.
type Template struct {
	Name     string   `json:"name"`
	Fields   []string `json:"fields"`
	Guidance string   `json:"llm_text,omitempty"`
}

// Normalize trims field names and fills in the default template name.
func (t *Template) Normalize() {
	if strings.TrimSpace(t.Name) == "" {
		t.Name = "default"
	}
	for i, f := range t.Fields {
		t.Fields[i] = strings.TrimSpace(f)
	}
}

// Anchors returns the lowercased field names, used as retrieval anchors.
func (t Template) Anchors() []string {
	out := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		out = append(out, strings.ToLower(f))
	}
	return out
}

// Validate checks that the template names at least one field and no field
// is blank or repeated.
func (t Template) Validate() error {
	if len(t.Fields) == 0 {
		return eris.Wrap(ErrInvalidTemplate, "template has no fields")
	}
	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		f = strings.TrimSpace(f)
		if f == "" {
			return eris.Wrap(ErrInvalidTemplate, "blank field name")
		}
		if seen[f] {
			return eris.Wrapf(ErrInvalidTemplate, "duplicate field %q", f)
		}
		seen[f] = true
	}
	return nil
}

// ParseTemplate decodes and validates a JSON template.
func ParseTemplate(data []byte) (Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return t, eris.Wrapf(ErrInvalidTemplate, "decode: %v", err)
	}
	t.Normalize()
	return t, t.Validate()
}
