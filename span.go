package fastc

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// Span is a half-open byte range [Start, End) into the source text.
// Every AST node and diagnostic carries one.
type Span struct {
	Start int
	End   int
}

func NewSpan(start, end int) Span {
	return Span{Start: start, End: end}
}

func (s Span) String() string {
	if s.Start == s.End {
		return fmt.Sprintf("%d", s.Start)
	}
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}

func (s Span) Str(src string) string {
	if s.Start < 0 || s.End > len(src) || s.Start > s.End {
		return ""
	}
	return src[s.Start:s.End]
}

func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

// Location is a resolved position within the source text.  Line and
// Column are 1-indexed; Column counts runes, not bytes.
type Location struct {
	Line   int
	Column int
	Cursor int
}

// LineIndex allows fast conversion from byte offsets to line/column.
//
// It stores the start byte offset of each line (0-based).  Given a
// cursor, it finds the line by binary searching line starts and
// computes the column as (runes since lineStart + 1).
//
// Construction is O(n) over the input and is intended to be cached
// per input.
type LineIndex struct {
	input     string
	lineStart []int
}

func NewLineIndex(input string) *LineIndex {
	// Always include line 1 starting at offset 0.
	lineStart := make([]int, 1, 64)
	lineStart[0] = 0
	for i := 0; i < len(input); i++ {
		if input[i] == '\n' {
			// next line starts after '\n'
			lineStart = append(lineStart, i+1)
		}
	}
	return &LineIndex{input: input, lineStart: lineStart}
}

func (li *LineIndex) LocationAt(cursor int) Location {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(li.input) {
		cursor = len(li.input)
	}

	// Find first lineStart > cursor, then step back one.
	lineIdx := sort.Search(len(li.lineStart), func(i int) bool {
		return li.lineStart[i] > cursor
	}) - 1
	if lineIdx < 0 {
		lineIdx = 0
	}

	lineStart := li.lineStart[lineIdx]
	col := utf8.RuneCountInString(li.input[lineStart:cursor]) + 1

	return Location{
		Line:   lineIdx + 1,
		Column: col,
		Cursor: cursor,
	}
}
