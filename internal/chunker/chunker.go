// Package chunker splits normalized document text into typed,
// offset-addressed chunks with a line-classifying state machine.
//
// Each line is classified as blank, heading, table, list or paragraph and
// drives the machine through the states none, heading, table, list and
// paragraph:
//
//	state     | blank            | heading          | same kind        | other kind
//	----------+------------------+------------------+------------------+-----------------
//	none      | extend last      | emit heading     | open buffer      | open buffer
//	heading   | (never; headings are emitted on the line that opens them)
//	X         | append, flush    | flush, emit      | append (flush    | flush, open
//	          | -> none          | heading -> none  | first if full)   | buffer -> kind
//
// "extend last" attaches a blank line to the chunk that precedes it, so every
// blank line belongs to the chunk it terminates. Blank lines before the first
// chunk are carried into it. Concatenating chunk texts in ID order
// reproduces the source exactly.
package chunker

import (
	"strings"

	"github.com/dgallion1/docground/internal/document"
)

// Config controls chunking behavior.
type Config struct {
	MaxChars int // Size limit that flushes a growing buffer.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxChars: 1200}
}

type lineClass int

const (
	classBlank lineClass = iota
	classHeading
	classTable
	classList
	classParagraph
)

type state int

const (
	stateNone state = iota
	stateTable
	stateList
	stateParagraph
)

func (s state) kind() document.ChunkKind {
	switch s {
	case stateTable:
		return document.KindTable
	case stateList:
		return document.KindList
	default:
		return document.KindParagraph
	}
}

func stateFor(c lineClass) state {
	switch c {
	case classTable:
		return stateTable
	case classList:
		return stateList
	default:
		return stateParagraph
	}
}

// splitter carries the machine between lines.
type splitter struct {
	src      string
	cfg      Config
	chunks   []document.Chunk
	st       state
	bufStart int
}

// Split splits text into chunks in document order. Empty or whitespace-only
// input yields no chunks.
func Split(text string, cfg Config) []document.Chunk {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultConfig().MaxChars
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	s := &splitter{src: text, cfg: cfg}
	lines := splitLines(text)

	pos := 0
	for i, line := range lines {
		var prev, next string
		if i > 0 {
			prev = lines[i-1]
		}
		if i+1 < len(lines) {
			next = lines[i+1]
		}
		s.step(classify(line, prev, next, s.st), pos, pos+len(line))
		pos += len(line)
	}
	if s.st != stateNone {
		s.flush(len(text))
	}
	return s.chunks
}

func (s *splitter) step(c lineClass, start, end int) {
	switch {
	case c == classBlank:
		if s.st != stateNone {
			s.flush(end)
			return
		}
		// Leading blanks stay pending until the first chunk opens.
		if n := len(s.chunks); n > 0 && s.chunks[n-1].End == start {
			s.chunks[n-1].End = end
			s.chunks[n-1].Text = s.src[s.chunks[n-1].Start:end]
			s.bufStart = end
		}
	case c == classHeading:
		if s.st != stateNone {
			s.flush(start)
		}
		s.emit(document.KindHeading, s.bufStart, end)
	default:
		next := stateFor(c)
		if s.st != stateNone && s.st != next {
			s.flush(start)
		} else if s.st == next && end-s.bufStart > s.cfg.MaxChars {
			s.flush(start)
		}
		s.st = next
	}
}

// flush emits the buffer up to end and resets the machine.
func (s *splitter) flush(end int) {
	if end > s.bufStart {
		s.emit(s.st.kind(), s.bufStart, end)
	}
	s.st = stateNone
}

func (s *splitter) emit(kind document.ChunkKind, start, end int) {
	s.chunks = append(s.chunks, document.Chunk{
		ID:    len(s.chunks),
		Text:  s.src[start:end],
		Kind:  kind,
		Start: start,
		End:   end,
	})
	s.bufStart = end
	s.st = stateNone
}

// splitLines splits text after each newline, keeping the newline.
func splitLines(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

func classify(line, prev, next string, current state) lineClass {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return classBlank
	case strings.HasPrefix(trimmed, "#"):
		return classHeading
	case isTableLine(trimmed, prev, next, current):
		return classTable
	case isListItem(trimmed):
		return classList
	case current == stateList && startsIndented(line):
		return classList
	default:
		return classParagraph
	}
}

func isTableLine(trimmed, prev, next string, current state) bool {
	if !strings.Contains(trimmed, "|") {
		return false
	}
	if current == stateTable || IsSeparatorRow(trimmed) {
		return true
	}
	return IsSeparatorRow(prev) || IsSeparatorRow(next)
}

// IsSeparatorRow reports whether line is a markdown table delimiter row such
// as "|---|:--:|".
func IsSeparatorRow(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.Contains(line, "|") || !strings.Contains(line, "-") {
		return false
	}
	for _, r := range line {
		switch r {
		case '-', ':', '|', ' ', '\t':
		default:
			return false
		}
	}
	return true
}

func isListItem(trimmed string) bool {
	for _, marker := range []string{"- ", "* ", "+ ", "• "} {
		if strings.HasPrefix(trimmed, marker) {
			return true
		}
	}
	digits := 0
	for digits < len(trimmed) && trimmed[digits] >= '0' && trimmed[digits] <= '9' {
		digits++
	}
	if digits == 0 || digits+1 >= len(trimmed) {
		return false
	}
	return (trimmed[digits] == '.' || trimmed[digits] == ')') && trimmed[digits+1] == ' '
}

func startsIndented(line string) bool {
	return strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")
}
