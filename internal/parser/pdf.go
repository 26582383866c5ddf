package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"

	"github.com/dgallion1/docground/internal/document"
)

const (
	defaultPageW = 612.0
	defaultPageH = 792.0
)

// PDFParser reads the PDF text layer into positioned words and markdown.
// Documents whose text layer has fewer than MinChars word characters are
// reported as raster.
type PDFParser struct {
	MinChars          int
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(ctx context.Context, r io.Reader, _ string) (*Converted, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "read pdf")
	}

	pages, err := extractPDFWords(data)
	var md string
	if err == nil {
		md = wordsMarkdown(pages)
	} else if p.FallbackPdftotext {
		md, err = extractPdftotext(ctx, data)
		pages = nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "extract pdf text")
	}

	conv := &Converted{IsPDF: true, Source: SourceRaster}
	if textLayerChars(pages, md) >= p.MinChars {
		conv.Source = SourceDigital
		conv.Markdown = md
		conv.Words = pages
	}
	return conv, nil
}

// textLayerChars counts word characters. Without positioned words the
// non-space characters of the fallback text are counted.
func textLayerChars(pages []document.PageWords, md string) int {
	if pages == nil {
		n := 0
		for _, r := range md {
			if !unicode.IsSpace(r) {
				n++
			}
		}
		return n
	}
	n := 0
	for _, pg := range pages {
		for _, w := range pg.Words {
			n += utf8.RuneCountInString(w.Text)
		}
	}
	return n
}

func extractPDFWords(data []byte) ([]document.PageWords, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	var out []document.PageWords
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		w, h := mediaBox(page)
		glyphs, err := pageGlyphs(page)
		if err != nil {
			continue
		}
		out = append(out, document.PageWords{
			Page:   i,
			Width:  w,
			Height: h,
			Words:  groupWords(glyphs, h),
		})
	}
	return out, nil
}

// pageGlyphs reads a page's content stream. The library panics on some
// malformed streams.
func pageGlyphs(page pdflib.Page) (glyphs []pdflib.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf content: %v", r)
		}
	}()
	return page.Content().Text, nil
}

func mediaBox(page pdflib.Page) (float64, float64) {
	box := page.V.Key("MediaBox")
	if box.Len() != 4 {
		return defaultPageW, defaultPageH
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return defaultPageW, defaultPageH
	}
	return w, h
}

// groupWords turns glyph runs into words with top-left-origin boxes. Glyphs
// on the same baseline form a line; a space glyph or a gap wider than a
// fifth of the font size ends a word.
func groupWords(glyphs []pdflib.Text, pageH float64) []document.Word {
	if len(glyphs) == 0 {
		return nil
	}
	sorted := make([]pdflib.Text, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > lineTolerance(sorted[i], sorted[j]) {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var words []document.Word
	var cur strings.Builder
	var box document.BBox
	line := 0
	lastY, lastEnd := sorted[0].Y, sorted[0].X
	flush := func() {
		if t := strings.TrimSpace(cur.String()); t != "" {
			words = append(words, document.Word{Text: t, BBox: box, LineID: line})
		}
		cur.Reset()
	}
	for i, g := range sorted {
		size := g.FontSize
		if size <= 0 {
			size = 10
		}
		if i > 0 && math.Abs(g.Y-lastY) > lineTolerance(g, sorted[i-1]) {
			flush()
			line++
		} else if i > 0 && g.X-lastEnd > size/5 {
			flush()
		}
		lastY, lastEnd = g.Y, g.X+g.W
		if strings.TrimSpace(g.S) == "" {
			flush()
			continue
		}
		top := pageH - (g.Y + size)
		bottom := pageH - g.Y
		if cur.Len() == 0 {
			box = document.BBox{g.X, top, g.X + g.W, bottom}
		} else {
			box[0] = math.Min(box[0], g.X)
			box[1] = math.Min(box[1], top)
			box[2] = math.Max(box[2], g.X+g.W)
			box[3] = math.Max(box[3], bottom)
		}
		cur.WriteString(g.S)
	}
	flush()
	return words
}

func lineTolerance(a, b pdflib.Text) float64 {
	size := math.Max(a.FontSize, b.FontSize)
	if size <= 0 {
		size = 10
	}
	return size / 2
}

// wordsMarkdown lays the words out line by line, pages separated by a
// blank line.
func wordsMarkdown(pages []document.PageWords) string {
	var blocks []string
	for _, pg := range pages {
		var lines []string
		var cur []string
		line := -1
		for _, w := range pg.Words {
			if w.LineID != line && len(cur) > 0 {
				lines = append(lines, strings.Join(cur, " "))
				cur = cur[:0]
			}
			line = w.LineID
			cur = append(cur, w.Text)
		}
		if len(cur) > 0 {
			lines = append(lines, strings.Join(cur, " "))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return joinBlocks(blocks)
}

func extractPdftotext(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "docground-pdf-*.pdf")
	if err != nil {
		return "", eris.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", eris.Wrap(err, "write temp file")
	}
	tmp.Close()

	out, err := exec.CommandContext(ctx, "pdftotext", "-layout", tmp.Name(), "-").Output()
	if err != nil {
		return "", eris.Wrap(err, "pdftotext")
	}
	return strings.ReplaceAll(string(out), "\f", "\n\n"), nil
}
