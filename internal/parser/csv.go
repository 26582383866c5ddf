package parser

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
)

// CSVParser renders a CSV file as one pipe table, the first record being
// the header.
type CSVParser struct{}

func (p *CSVParser) Parse(_ context.Context, r io.Reader, _ string) (*Converted, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "parse csv")
	}
	md := pipeTable(records)
	if md != "" {
		md += "\n"
	}
	return &Converted{Markdown: md, Source: SourceText}, nil
}
