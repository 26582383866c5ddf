package extract

import (
	"strings"
)

// SystemPrompt frames every extraction call.
const SystemPrompt = `You are an information extractor. Given the CONTEXT and the EXTRACTION_GUIDE, output a compact JSON object with the requested fields.
- Output only JSON, no prose.
- Copy values exactly as they appear in the context.
- If a value is missing, use null and confidence 0.0.`

const schemaExample = `{
  "field_name": {"value": "<string|null>", "confidence": <0..1>}
}`

// BuildPrompt renders the user message for req.
func BuildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("EXTRACTION_GUIDE:\n")
	sb.WriteString(SanitizeGuidance(req.Guidance))
	sb.WriteString("\n\nREQUESTED_FIELDS: [")
	sb.WriteString(strings.Join(req.Fields, ", "))
	sb.WriteString("]\n\nCONTEXT:\n")
	sb.WriteString(req.Context)
	sb.WriteString("\n\nJSON SCHEMA EXAMPLE:\n")
	sb.WriteString(schemaExample)
	sb.WriteString("\n")
	return sb.String()
}
