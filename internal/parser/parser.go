// Package parser converts uploaded documents into markdown and, for PDFs with
// a text layer, positioned words.
package parser

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/dgallion1/docground/internal/document"
)

// ErrUnsupported is returned for binary files of an unknown type.
var ErrUnsupported = eris.New("unsupported file type")

// Source says where the markdown of a converted document came from.
type Source string

const (
	// SourceDigital documents have a usable PDF text layer.
	SourceDigital Source = "digital"
	// SourceRaster documents need OCR before any markdown exists.
	SourceRaster Source = "raster"
	// SourceText documents are text formats converted directly.
	SourceText Source = "text"
)

// Converted is the result of converting one document.
type Converted struct {
	Markdown string
	Words    []document.PageWords
	Source   Source
	IsPDF    bool
}

// Parser converts raw document bytes.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, filename string) (*Converted, error)
}

// Options tunes conversion.
type Options struct {
	// TextLayerMinChars is the word-character count below which a PDF is
	// treated as raster.
	TextLayerMinChars int
	// FallbackPdftotext shells out to pdftotext when the PDF library fails.
	FallbackPdftotext bool
}

// DefaultOptions matches the service defaults.
func DefaultOptions() Options {
	return Options{TextLayerMinChars: 200, FallbackPdftotext: true}
}

// SupportedExtensions lists file extensions with a dedicated parser.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
	".png":      true,
	".jpg":      true,
	".jpeg":     true,
	".tif":      true,
	".tiff":     true,
}

// ForFile returns the parser for a filename, or nil when the extension has
// no dedicated parser.
func ForFile(filename string, opts Options) Parser {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return &TextParser{}
	case ".md", ".markdown":
		return &MarkdownParser{}
	case ".csv":
		return &CSVParser{}
	case ".html", ".htm":
		return &HTMLParser{}
	case ".pdf":
		return &PDFParser{MinChars: opts.TextLayerMinChars, FallbackPdftotext: opts.FallbackPdftotext}
	case ".docx":
		return &DOCXParser{}
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return ImageParser{}
	}
	return nil
}

// IsSupportedExtension checks if a file extension has a dedicated parser.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Convert picks a parser by extension and runs it. Files of unknown type are
// decoded as UTF-8 text unless they look binary.
func Convert(ctx context.Context, data []byte, filename string, opts Options) (*Converted, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := ForFile(filename, opts)
	if p == nil {
		if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
			return nil, eris.Wrapf(ErrUnsupported, "parser: %s", filepath.Ext(filename))
		}
		p = &TextParser{}
	}
	conv, err := p.Parse(ctx, bytes.NewReader(data), filename)
	if err != nil {
		return nil, eris.Wrapf(err, "parser: convert %s", filename)
	}
	return conv, nil
}

// ImageParser marks raster images; their markdown comes from OCR.
type ImageParser struct{}

func (ImageParser) Parse(_ context.Context, _ io.Reader, _ string) (*Converted, error) {
	return &Converted{Source: SourceRaster}, nil
}

// escapeCell makes s safe inside a pipe-table cell.
func escapeCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// pipeTable renders rows as a markdown pipe table, the first row being the
// header. Short rows are padded to the widest row.
func pipeTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	if width == 0 {
		return ""
	}
	var sb strings.Builder
	writeRow := func(r []string) {
		sb.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(r) {
				cell = escapeCell(r[i])
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
	}
	writeRow(rows[0])
	sb.WriteString("|")
	for i := 0; i < width; i++ {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
	for _, r := range rows[1:] {
		writeRow(r)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// joinBlocks joins non-empty markdown blocks with blank lines.
func joinBlocks(blocks []string) string {
	kept := blocks[:0]
	for _, b := range blocks {
		if strings.TrimSpace(b) != "" {
			kept = append(kept, b)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, "\n\n") + "\n"
}
