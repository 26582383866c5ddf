package parser

import (
	"context"
	"io"
	"strings"
)

// TextParser passes plain text through, normalizing line endings.
type TextParser struct{}

func (p *TextParser) Parse(_ context.Context, r io.Reader, _ string) (*Converted, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	s = strings.TrimPrefix(s, "\ufeff")
	return &Converted{Markdown: s, Source: SourceText}, nil
}
