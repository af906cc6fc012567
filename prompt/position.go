package prompt

import "unicode/utf8"

// Position represents a line/column position in prompt text.
// Lines are 1-based; Character counts runes from the start of the line.
type Position struct {
	Line      int `json:"line" yaml:"line"`
	Character int `json:"character" yaml:"character"`
	Offset    int `json:"offset" yaml:"offset"` // 0-based byte offset in the whole prompt
}

// Range represents a span from start to end position
type Range struct {
	Start Position `json:"start" yaml:"start"`
	End   Position `json:"end" yaml:"end"`
}

// positionAt walks source up to offset, tracking lines and runes.
func positionAt(source string, offset int) Position {
	if offset > len(source) {
		offset = len(source)
	}
	pos := Position{Line: 1}
	for i := 0; i < offset; {
		r, size := utf8.DecodeRuneInString(source[i:])
		if r == '\n' {
			pos.Line++
			pos.Character = 0
		} else {
			pos.Character++
		}
		i += size
	}
	pos.Offset = offset
	return pos
}

// rangeOf converts a byte span of source into a Range.
func rangeOf(source string, start, end int) Range {
	if end < start {
		end = start
	}
	return Range{Start: positionAt(source, start), End: positionAt(source, end)}
}
