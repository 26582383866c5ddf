package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dgallion1/docground/internal/document"
)

// Mock answers MOCK_<FIELD> with confidence 0.9 for every field. It never
// calls out and is the default backend for offline runs.
type Mock struct{}

func (Mock) Name() string { return "mock" }

func (Mock) Extract(_ context.Context, req Request) (*Response, error) {
	values := make(map[string]document.FieldValue, len(req.Fields))
	for _, f := range req.Fields {
		values[f] = document.FieldValue{Value: document.StrPtr("MOCK_" + strings.ToUpper(f)), Confidence: 0.9}
	}
	raw, _ := json.Marshal(values)
	return &Response{Values: values, Prompt: BuildPrompt(req), Raw: string(raw)}, nil
}
