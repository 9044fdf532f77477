package markdown

import (
	"sort"
	"strings"

	"github.com/cptaffe/acme-mdstyle/style"
)

// Block is a code-block range.  Ranges cover whole lines, including the
// newline of the last line.
type Block struct {
	style.Range
	Fenced   bool
	Language string // raw token after the opening fence; "" when absent
}

// Scan returns the code blocks of text, sorted and non-overlapping.
//
// With a nil region the whole buffer is scanned.  Otherwise indented blocks
// are classified only within Window(text, *region), while fenced blocks are
// always found over the whole buffer so that a fence opened before the
// region and closed after it is still reported in full.  Only blocks that
// intersect the window are returned.
func Scan(text []rune, region *style.Range) []Block {
	blocks, _ := ScanRegion(text, region)
	return blocks
}

// ScanRegion is Scan that also reports the window that was classified.
func ScanRegion(text []rune, region *style.Range) ([]Block, style.Range) {
	window := style.Range{Location: 0, Length: len(text)}
	if region != nil {
		window = Window(text, *region)
	}
	fences := Fences(text)
	indented := scanIndented(text, window, fences)

	var out []Block
	for _, f := range fences {
		if region == nil || f.Intersects(window) {
			out = append(out, f)
		}
	}
	out = append(out, indented...)
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out, window
}

// Fences returns the fenced code blocks of text.  An opening fence without a
// closing line extends to the end of the buffer.
func Fences(text []rune) []Block {
	var out []Block
	open := -1
	lang := ""
	for pos := 0; pos < len(text); {
		end := lineEnd(text, pos)
		line := lineContent(text, pos, end)
		switch {
		case open < 0 && hasPrefix(line, "```"):
			open = pos
			lang = fenceLanguage(line)
		case open >= 0 && isClosingFence(line):
			out = append(out, Block{Range: style.Span(open, end), Fenced: true, Language: lang})
			open = -1
		}
		pos = end
	}
	if open >= 0 {
		out = append(out, Block{Range: style.Span(open, len(text)), Fenced: true, Language: lang})
	}
	return out
}

// fenceLanguage returns the first field following the backticks of an
// opening fence line.
func fenceLanguage(line []rune) string {
	fields := strings.Fields(string(line[3:]))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func isClosingFence(line []rune) bool {
	return strings.TrimRight(string(line), " \t\r") == "```"
}

// scanIndented classifies indented runs inside window, which must be line
// aligned.  Lines covered by a fence never take part in a run.
func scanIndented(text []rune, window style.Range, fences []Block) []Block {
	window = window.Clamp(len(text))
	var out []Block
	runStart, runEnd := -1, -1
	fi := 0

	flush := func() {
		if runStart < 0 {
			return
		}
		if !precededByListMarker(text, runStart) {
			out = append(out, Block{Range: style.Span(runStart, runEnd)})
		}
		runStart, runEnd = -1, -1
	}

	for pos := window.Location; pos < window.End(); {
		end := lineEnd(text, pos)
		for fi < len(fences) && fences[fi].End() <= pos {
			fi++
		}
		if fi < len(fences) && fences[fi].Contains(pos) {
			flush()
			pos = end
			continue
		}
		line := lineContent(text, pos, end)
		switch {
		case isEmptyLine(line):
			flush()
		case isBlankLine(line):
			// Bridges two indented lines; never starts or ends a run.
		case isIndentedLine(line):
			if runStart < 0 {
				runStart = pos
			}
			runEnd = end
		default:
			flush()
		}
		pos = end
	}
	flush()
	return out
}

// precededByListMarker reports whether the line before pos opens a list
// item, making the indented run at pos list continuation.
func precededByListMarker(text []rune, pos int) bool {
	if pos == 0 {
		return false
	}
	prev := lineStart(text, pos-1)
	return isListMarkerLine(lineContent(text, prev, pos))
}

// Code returns the part of a fenced block between its fence lines; for an
// indented block it is the block itself.
func (b Block) Code(text []rune) style.Range {
	r := b.Range.Clamp(len(text))
	if !b.Fenced || r.IsEmpty() {
		return r
	}
	start := lineEnd(text, r.Location)
	end := r.End()
	if start < end {
		last := lineStart(text, end-1)
		if last >= start && isClosingFence(lineContent(text, last, end)) {
			end = last
		}
	}
	return style.Span(min(start, end), end)
}
