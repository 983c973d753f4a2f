// Package dump splits registry dump text into entries and dispatches them by
// the key pattern of their first line.
package dump

import (
	"bufio"
	"io"
	"strings"
)

const maxLineBytes = 1 << 20

// Entry is one blank-line separated block of a dump.
type Entry struct {
	// Pattern is "^" followed by the first word of the block, without a
	// trailing colon, e.g. "^inetnum".
	Pattern string
	Text    string
	// Line is the 1-based line number the block starts at.
	Line int
}

type Stats struct {
	Blocks       int
	Comments     int
	Unrecognized int
	Dispatched   int
}

// Scanner yields the entries whose pattern is configured. Comment blocks and
// unrecognized patterns are dropped silently and only counted.
type Scanner struct {
	lines    *bufio.Scanner
	patterns map[string]struct{}
	line     int
	entry    Entry
	stats    Stats
	done     bool
}

// NewScanner reads r. A nil or empty pattern list accepts every block.
func NewScanner(r io.Reader, patterns []string) *Scanner {
	lines := bufio.NewScanner(r)
	lines.Buffer(make([]byte, 64*1024), maxLineBytes)

	var set map[string]struct{}
	if len(patterns) > 0 {
		set = make(map[string]struct{}, len(patterns))
		for _, p := range patterns {
			set[p] = struct{}{}
		}
	}
	return &Scanner{lines: lines, patterns: set}
}

// Next advances to the next dispatched entry.
func (s *Scanner) Next() bool {
	for !s.done {
		text, start, ok := s.readBlock()
		if !ok {
			s.done = true
			return false
		}
		s.stats.Blocks++
		if isComment(text) {
			s.stats.Comments++
			continue
		}
		pattern := PatternOf(text)
		if !s.accepts(pattern) {
			s.stats.Unrecognized++
			continue
		}
		s.stats.Dispatched++
		s.entry = Entry{Pattern: pattern, Text: text, Line: start}
		return true
	}
	return false
}

func (s *Scanner) Entry() Entry { return s.entry }

func (s *Scanner) Err() error { return s.lines.Err() }

func (s *Scanner) Stats() Stats { return s.stats }

func (s *Scanner) accepts(pattern string) bool {
	if s.patterns == nil {
		return true
	}
	_, ok := s.patterns[pattern]
	return ok
}

func (s *Scanner) readBlock() (string, int, bool) {
	var b strings.Builder
	start := 0
	for s.lines.Scan() {
		s.line++
		line := strings.TrimRight(s.lines.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if b.Len() > 0 {
				return b.String(), start, true
			}
			continue
		}
		if b.Len() == 0 {
			start = s.line
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if b.Len() > 0 {
		return b.String(), start, true
	}
	return "", 0, false
}

func isComment(block string) bool {
	return strings.HasPrefix(block, "#") || strings.HasPrefix(block, "%")
}

// PatternOf derives the dispatch pattern of a block from its first word.
func PatternOf(block string) string {
	first := block
	if i := strings.IndexAny(block, " \t\n"); i >= 0 {
		first = block[:i]
	}
	return "^" + strings.TrimSuffix(first, ":")
}
