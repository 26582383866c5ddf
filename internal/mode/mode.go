// Package mode decides whether a document goes to the model whole or one
// field at a time over retrieved context.
package mode

// Mode is the extraction strategy for a request.
type Mode string

const (
	SinglePass Mode = "single_pass"
	FieldWise  Mode = "rag_field_wise"
)

// Input is what the decision depends on.
type Input struct {
	TokenEstimate  int
	ChunkCount     int
	ContextWindow  int
	ReservedMargin int
	MinSegments    int
}

// Decision is the selected mode and the budget it was judged against.
type Decision struct {
	Mode Mode `json:"llm_context_mode"`
	CEff int  `json:"c_eff"`
}

// Select picks single-pass when the document fits the effective budget and
// has fewer chunks than the minimum-segment threshold.
func Select(in Input) Decision {
	cEff := in.ContextWindow - in.ReservedMargin
	if cEff < 1 {
		cEff = 1
	}
	if in.TokenEstimate <= cEff && in.ChunkCount < in.MinSegments {
		return Decision{Mode: SinglePass, CEff: cEff}
	}
	return Decision{Mode: FieldWise, CEff: cEff}
}
