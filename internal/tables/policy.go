package tables

import (
	"github.com/rotisserie/eris"

	"github.com/dgallion1/docground/internal/document"
)

// Policy controls when layout re-analysis is requested.
type Policy string

const (
	PolicyAuto   Policy = "auto"
	PolicyAlways Policy = "always"
	PolicyNever  Policy = "never"
)

// ParsePolicy validates a configured policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyAuto, PolicyAlways, PolicyNever:
		return p, nil
	case "":
		return PolicyAuto, nil
	}
	return "", eris.Errorf("unknown layout policy %q", s)
}

// Decision explains why layout analysis was or was not requested.
type Decision struct {
	Analyze       bool   `json:"analyze"`
	Reason        string `json:"reason"`
	MarkdownTable bool   `json:"markdown_table"`
	TokenTable    bool   `json:"token_table"`
}

// Decide applies policy to a digital document. Raster sources always need
// analysis and are not routed through here.
func Decide(policy Policy, md string, tokens []document.Token, cfg SniffConfig) Decision {
	switch policy {
	case PolicyAlways:
		return Decision{Analyze: true, Reason: "policy_always"}
	case PolicyNever:
		return Decision{Reason: "policy_never"}
	}
	d := Decision{
		MarkdownTable: MarkdownHasTable(md),
		TokenTable:    Sniff(tokens, cfg.MinRows, cfg.MinCols, cfg.XTolerance),
	}
	switch {
	case d.MarkdownTable:
		d.Analyze, d.Reason = true, "markdown_table"
	case d.TokenTable:
		d.Analyze, d.Reason = true, "token_table"
	default:
		d.Reason = "no_table"
	}
	return d
}
