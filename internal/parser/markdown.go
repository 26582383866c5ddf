package parser

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser re-emits markdown in a normalized form: ATX headings, "-"
// bullets and pipe tables, one blank line between blocks.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(_ context.Context, r io.Reader, _ string) (*Converted, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &Converted{Markdown: NormalizeMarkdown(src), Source: SourceText}, nil
}

// NormalizeMarkdown parses src with GFM tables enabled and renders it back.
func NormalizeMarkdown(src []byte) string {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	var blocks []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		blocks = append(blocks, renderBlock(n, src))
	}
	return joinBlocks(blocks)
}

func renderBlock(n ast.Node, src []byte) string {
	switch node := n.(type) {
	case *ast.Heading:
		return strings.Repeat("#", node.Level) + " " + inlineText(node, src)
	case *ast.Paragraph, *ast.TextBlock:
		return inlineText(node, src)
	case *ast.List:
		return renderList(node, src, "")
	case *east.Table:
		return renderTable(node, src)
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		return strings.TrimRight(rawLines(node, src), "\n")
	case *ast.Blockquote:
		var inner []string
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			inner = append(inner, renderBlock(c, src))
		}
		lines := strings.Split(strings.TrimSpace(joinBlocks(inner)), "\n")
		for i, l := range lines {
			lines[i] = strings.TrimRight("> "+l, " ")
		}
		return strings.Join(lines, "\n")
	case *ast.ThematicBreak:
		return "***"
	}
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		parts = append(parts, renderBlock(c, src))
	}
	return strings.Join(parts, "\n")
}

func renderList(l *ast.List, src []byte, indent string) string {
	var sb strings.Builder
	num := l.Start
	if num == 0 {
		num = 1
	}
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "- "
		if l.IsOrdered() {
			marker = strconv.Itoa(num) + ". "
			num++
		}
		first := true
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				sb.WriteString(renderList(sub, src, indent+"  "))
				continue
			}
			for _, line := range strings.Split(renderBlock(c, src), "\n") {
				if first {
					sb.WriteString(indent + marker + line + "\n")
					first = false
				} else {
					sb.WriteString(indent + "  " + line + "\n")
				}
			}
		}
		if first {
			sb.WriteString(indent + strings.TrimSpace(marker) + "\n")
		}
	}
	if indent == "" {
		return strings.TrimSuffix(sb.String(), "\n")
	}
	return sb.String()
}

func renderTable(t *east.Table, src []byte) string {
	var rows [][]string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, inlineText(cell, src))
		}
		rows = append(rows, cells)
	}
	return pipeTable(rows)
}

func rawLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if fc, ok := n.(*ast.FencedCodeBlock); ok {
		buf.WriteString("```")
		if fc.Info != nil {
			buf.Write(fc.Info.Segment.Value(src))
		}
		buf.WriteByte('\n')
	}
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	if _, ok := n.(*ast.FencedCodeBlock); ok {
		if buf.Len() > 0 && buf.Bytes()[buf.Len()-1] != '\n' {
			buf.WriteByte('\n')
		}
		buf.WriteString("```")
	}
	return buf.String()
}

// inlineText flattens the inline children of n. Soft and hard line breaks
// become newlines.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				if t.HardLineBreak() || t.SoftLineBreak() {
					buf.WriteByte('\n')
				}
			case *ast.String:
				buf.Write(t.Value)
			case *ast.AutoLink:
				buf.Write(t.Label(src))
			case *ast.RawHTML:
				for i := 0; i < t.Segments.Len(); i++ {
					seg := t.Segments.At(i)
					buf.Write(seg.Value(src))
				}
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}
