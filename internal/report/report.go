// Package report writes and serves the per-request forensic bundle.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgallion1/docground/internal/document"
	"github.com/dgallion1/docground/internal/mode"
	"github.com/dgallion1/docground/internal/retrieve"
	"github.com/dgallion1/docground/internal/tables"
)

// RetrievalEntry is one retrieved chunk as recorded for a field.
type RetrievalEntry struct {
	ChunkID int                `json:"chunk_id"`
	Score   float64            `json:"score"`
	Kind    document.ChunkKind `json:"kind"`
	Start   int                `json:"start"`
	Len     int                `json:"len"`
}

// FieldDetail records how one field was extracted and grounded.
type FieldDetail struct {
	Mode           mode.Mode           `json:"mode"`
	LLMMs          int64               `json:"llm_ms"`
	Confidence     float64             `json:"confidence"`
	Coverage       float64             `json:"coverage"`
	Retrieval      []RetrievalEntry    `json:"retrieval"`
	Prompt         string              `json:"prompt"`
	Context        string              `json:"context"`
	LLMRaw         string              `json:"llm_raw"`
	TokenIndices   []int               `json:"token_indices"`
	BBoxes         []document.BBox     `json:"bboxes"`
	Pages          []int               `json:"bbox_pages"`
	Space          document.CoordSpace `json:"bbox_space,omitempty"`
	WeakProvenance bool                `json:"weak_provenance"`
	Error          string              `json:"error,omitempty"`
}

// LLMPolicy is the model configuration a request ran with.
type LLMPolicy struct {
	Backend     string  `json:"backend"`
	NCtx        int     `json:"n_ctx"`
	Seed        int     `json:"seed"`
	Temperature float64 `json:"temperature"`
	JSONStrict  bool    `json:"json_strict"`
}

// Policy is the retrieval and layout configuration a request ran with.
type Policy struct {
	RAGTopK        int              `json:"rag_topk"`
	RAGWeights     retrieve.Weights `json:"rag_weights"`
	PPStructPolicy string           `json:"ppstruct_policy"`
	LLM            LLMPolicy        `json:"llm"`
}

// Manifest summarizes one request.
type Manifest struct {
	RequestID        string              `json:"request_id"`
	File             string              `json:"file"`
	Template         string              `json:"template"`
	Policy           Policy              `json:"policy"`
	Source           string              `json:"source"`
	Mode             mode.Mode           `json:"llm_context_mode"`
	TokenEstimate    int                 `json:"md_token_estimate"`
	CEff             int                 `json:"c_eff"`
	ChunkCount       int                 `json:"chunk_count"`
	Layout           *tables.Decision    `json:"layout,omitempty"`
	RetrievalBackend string              `json:"retrieval_backend,omitempty"`
	LexicalBackend   string              `json:"lexical_backend,omitempty"`
	TokenSpace       document.CoordSpace `json:"token_space"`
	TimingsMs        map[string]int64    `json:"timings_ms"`
}

// Report is the content of report.json.
type Report struct {
	RequestID  string                 `json:"request_id"`
	CreatedAt  int64                  `json:"created_at"`
	Manifest   Manifest               `json:"manifest"`
	FieldOrder []string               `json:"field_order"`
	Fields     map[string]FieldDetail `json:"fields"`
	Artifacts  map[string]string      `json:"artifacts"`
}

// RenderMarkdown renders r as a human-readable report.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Forensic Report: request `%s`\n\n", r.RequestID)
	sb.WriteString("## Manifest\n\n```json\n")
	sb.WriteString(indentJSON(r.Manifest))
	sb.WriteString("\n```\n\n## Artifacts\n\n")
	for _, name := range sortedKeys(r.Artifacts) {
		fmt.Fprintf(&sb, "- **%s**: `%s`\n", name, r.Artifacts[name])
	}
	for _, key := range r.FieldOrder {
		det, ok := r.Fields[key]
		if !ok {
			continue
		}
		sb.WriteString("\n---\n\n")
		fmt.Fprintf(&sb, "## Field: `%s`\n\n", key)
		fmt.Fprintf(&sb, "**Mode**: `%s`  \n**LLM ms**: %d  \n**Confidence**: %v  \n**Coverage**: %v\n",
			det.Mode, det.LLMMs, det.Confidence, det.Coverage)
		if det.WeakProvenance {
			sb.WriteString("\n_Location is a best-effort fallback, not a token match._\n")
		}
		if det.Error != "" {
			fmt.Fprintf(&sb, "\n**Error**: %s\n", det.Error)
		}
		sb.WriteString("\n### Retrieval (Top-K chunks)\n\n```json\n")
		sb.WriteString(indentJSON(det.Retrieval))
		sb.WriteString("\n```\n\n### Prompt\n\n```text\n")
		sb.WriteString(det.Prompt)
		sb.WriteString("\n```\n\n### Context sent to LLM\n\n```markdown\n")
		sb.WriteString(det.Context)
		sb.WriteString("\n```\n\n### LLM Raw Output\n\n```json\n")
		sb.WriteString(det.LLMRaw)
		sb.WriteString("\n```\n\n### Token Alignment\n\n```json\n")
		sb.WriteString(indentJSON(map[string]any{
			"token_indices": det.TokenIndices,
			"bbox_pages":    det.Pages,
			"bboxes":        det.BBoxes,
		}))
		sb.WriteString("\n```\n")
	}
	return sb.String()
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "null"
	}
	return string(b)
}
