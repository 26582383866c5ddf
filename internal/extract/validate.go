package extract

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/docground/internal/document"
)

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|override|` +
		`new\s+instructions)`,
)

// SanitizeGuidance drops guidance lines that try to steer the model away
// from extraction.
func SanitizeGuidance(g string) string {
	lines := strings.Split(g, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if injectionPattern.MatchString(l) {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// jsonObject returns the outermost {...} span of s.
func jsonObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// ParseFields reads the model's JSON answer. Unparseable output yields a
// nil value for every field; a bare value in place of an object is kept with
// zero confidence.
func ParseFields(raw string, fields []string) map[string]document.FieldValue {
	out := make(map[string]document.FieldValue, len(fields))
	for _, f := range fields {
		out[f] = document.FieldValue{}
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonObject(stripCodeBlock(raw))), &data); err != nil {
		return out
	}
	for _, f := range fields {
		msg, ok := data[f]
		if !ok {
			continue
		}
		var item struct {
			Value      json.RawMessage `json:"value"`
			Confidence json.RawMessage `json:"confidence"`
		}
		if err := json.Unmarshal(msg, &item); err == nil && (item.Value != nil || item.Confidence != nil) {
			out[f] = document.FieldValue{
				Value:      scalarString(item.Value),
				Confidence: clampConfidence(scalarFloat(item.Confidence)),
			}
			continue
		}
		out[f] = document.FieldValue{Value: scalarString(msg)}
	}
	return out
}

// scalarString renders a JSON scalar as a string. null, blank strings and
// composite values give nil.
func scalarString(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(x)
	default:
		return nil
	}
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func scalarFloat(raw json.RawMessage) float64 {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	return math.Max(0, math.Min(1, c))
}
