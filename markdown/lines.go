// Package markdown classifies and styles markdown text held in a rune
// buffer.
//
// The package is pure: every function is a function of the text it is
// given.  Scan finds fenced and indented code blocks, Diff reconciles block
// sets across an edit, and Rules styles inline constructs outside code.
package markdown

import "github.com/cptaffe/acme-mdstyle/style"

// MaxWalk bounds every line walk.  A walk that exhausts it stops where it is
// and returns what it has covered so far.
const MaxWalk = 4096

// lineStart returns the start of the line containing pos.
func lineStart(text []rune, pos int) int {
	pos = min(max(pos, 0), len(text))
	for pos > 0 && text[pos-1] != '\n' {
		pos--
	}
	return pos
}

// lineEnd returns the end of the line containing pos, including its newline.
func lineEnd(text []rune, pos int) int {
	pos = min(max(pos, 0), len(text))
	for pos < len(text) {
		if text[pos] == '\n' {
			return pos + 1
		}
		pos++
	}
	return pos
}

// lineContent strips the trailing newline from the line [start, end).
func lineContent(text []rune, start, end int) []rune {
	if end > start && text[end-1] == '\n' {
		end--
	}
	return text[start:end]
}

// ParagraphRange returns the range of whole lines covering r, including the
// trailing newline of the last line.  An empty r at the very end of a buffer
// that ends in a newline yields an empty range there.
func ParagraphRange(text []rune, r style.Range) style.Range {
	r = r.Clamp(len(text))
	if r.Location == len(text) && (len(text) == 0 || text[len(text)-1] == '\n') {
		return style.Range{Location: len(text)}
	}
	last := r.Location
	if r.Length > 0 {
		last = r.End() - 1
	}
	return style.Span(lineStart(text, r.Location), lineEnd(text, last))
}

// EditScope returns the whole lines of text that e touched: the lines of
// the inserted range and, when the insertion ends in a newline, the line it
// pushed down.
func EditScope(text []rune, e Edit) style.Range {
	r := style.Range{Location: e.Range.Location, Length: e.Range.Length + 1}
	return ParagraphRange(text, r.Clamp(len(text)))
}

// BlankBlockRange widens r to the surrounding lines up to (not including)
// the nearest empty lines on either side.
func BlankBlockRange(text []rune, r style.Range) style.Range {
	p := ParagraphRange(text, r)
	start, end := p.Location, p.End()
	for i := 0; i < MaxWalk && start > 0; i++ {
		prev := lineStart(text, start-1)
		if isEmptyLine(lineContent(text, prev, start)) {
			break
		}
		start = prev
	}
	for i := 0; i < MaxWalk && end < len(text); i++ {
		next := lineEnd(text, end)
		if isEmptyLine(lineContent(text, end, next)) {
			break
		}
		end = next
	}
	return style.Span(start, end)
}

// Window widens region to the line window that indented-block
// classification needs: whole lines, extended over adjacent indented or
// whitespace-only lines, plus one context line on each side.
func Window(text []rune, region style.Range) style.Range {
	p := ParagraphRange(text, region)
	start, end := p.Location, p.End()

	for i := 0; i < MaxWalk && start > 0; i++ {
		prev := lineStart(text, start-1)
		start = prev
		if !isRunLine(lineContent(text, prev, lineEnd(text, prev))) {
			break
		}
	}
	for i := 0; i < MaxWalk && end < len(text); i++ {
		next := lineEnd(text, end)
		c := lineContent(text, end, next)
		end = next
		if !isRunLine(c) {
			break
		}
	}
	return style.Span(start, end)
}

func isEmptyLine(line []rune) bool {
	return len(line) == 0 || (len(line) == 1 && line[0] == '\r')
}

func isBlankLine(line []rune) bool {
	for _, r := range line {
		if r != ' ' && r != '\t' && r != '\r' {
			return false
		}
	}
	return true
}

// isIndentedLine reports whether line starts with a tab or four spaces.
func isIndentedLine(line []rune) bool {
	if len(line) > 0 && line[0] == '\t' {
		return true
	}
	return len(line) >= 4 && line[0] == ' ' && line[1] == ' ' && line[2] == ' ' && line[3] == ' '
}

// isRunLine reports whether line can belong to an indented run: either an
// indented line or a whitespace-only line that bridges two of them.
func isRunLine(line []rune) bool {
	if isEmptyLine(line) {
		return false
	}
	return isIndentedLine(line) || isBlankLine(line)
}

// isListMarkerLine reports whether line opens a list item whose
// continuation lines are indented: "1. ", "- ", " - " or a leading '*'.
func isListMarkerLine(line []rune) bool {
	if len(line) == 0 {
		return false
	}
	switch {
	case line[0] == '*':
		return true
	case hasPrefix(line, "- "), hasPrefix(line, " - "):
		return true
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	return i > 0 && i+1 < len(line) && line[i] == '.' && line[i+1] == ' '
}

func hasPrefix(line []rune, prefix string) bool {
	i := 0
	for _, r := range prefix {
		if i >= len(line) || line[i] != r {
			return false
		}
		i++
	}
	return true
}
