package markdown

import (
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/cptaffe/acme-mdstyle/style"
)

// Rules is the inline rule set.  The zero value styles without hiding
// delimiters.
type Rules struct {
	// HideSyntax adds Hidden spans over delimiter characters.
	HideSyntax bool
}

// match is one regexp match with byte offsets into the scope text.
type match struct {
	src  string
	loc  []int
	prev rune // rune before the match, 0 at scope start
	next rune // rune after the match, 0 at scope end
}

// rule styles the matches of re.  apply reports false to reject a match;
// the search then resumes one rune past the rejected start.  Line rules only
// accept matches that begin a line of the scope.
type rule struct {
	re    *regexp.Regexp
	line  bool
	apply func(m match, e *emitter) bool
}

// rules is applied in order: line-level constructs first so that inline
// emphasis inside a header or quote still lands on top of it.
var rules = []rule{
	{
		re:   regexp.MustCompile(`(?m)^(#{1,6})[ \t]+.*$`),
		line: true,
		apply: func(m match, e *emitter) bool {
			e.level = m.loc[3] - m.loc[2]
			e.span(style.KindHeader, m.loc[0], m.loc[1])
			e.level = 0
			e.hide(style.KindHeader, m.loc[2], skipSpace(m.src, m.loc[3], m.loc[1]))
			return true
		},
	},
	{
		re:   regexp.MustCompile(`(?m)^>.*$`),
		line: true,
		apply: func(m match, e *emitter) bool {
			e.span(style.KindQuote, m.loc[0], m.loc[1])
			return true
		},
	},
	{
		re:   regexp.MustCompile(`(?m)^[ \t]*([-*+]|[0-9]+[.)])[ \t]+`),
		line: true,
		apply: func(m match, e *emitter) bool {
			e.span(style.KindListMarker, m.loc[2], m.loc[3])
			return true
		},
	},
	{
		re: regexp.MustCompile(`!\[([^\]\n]*)\]\(([^)\n]*)\)`),
		apply: func(m match, e *emitter) bool {
			e.span(style.KindImage, m.loc[0], m.loc[1])
			e.hide(style.KindImage, m.loc[0], m.loc[2])
			e.hide(style.KindImage, m.loc[3], m.loc[4])
			e.hide(style.KindImage, m.loc[5], m.loc[1])
			return true
		},
	},
	{
		re: regexp.MustCompile(`\[([^\]\n]+)\]\(([^)\n]*)\)`),
		apply: func(m match, e *emitter) bool {
			if m.prev == '!' {
				return false
			}
			e.span(style.KindLink, m.loc[0], m.loc[1])
			e.hide(style.KindLink, m.loc[0], m.loc[2])
			e.hide(style.KindLink, m.loc[3], m.loc[4])
			e.hide(style.KindLink, m.loc[5], m.loc[1])
			return true
		},
	},
	{
		re:    regexp.MustCompile(`\*\*([^*\n]+?)\*\*`),
		apply: delimited(style.KindStrong, 2, false),
	},
	{
		re:    regexp.MustCompile(`__([^_\n]+?)__`),
		apply: delimited(style.KindStrong, 2, true),
	},
	{
		re:    regexp.MustCompile(`\*([^*\n]+?)\*`),
		apply: delimited(style.KindEmphasis, 1, false),
	},
	{
		re:    regexp.MustCompile(`_([^_\n]+?)_`),
		apply: delimited(style.KindEmphasis, 1, true),
	},
	{
		re: regexp.MustCompile("`([^`\n]+)`"),
		apply: func(m match, e *emitter) bool {
			e.span(style.KindCodeSpan, m.loc[0], m.loc[1])
			e.hide(style.KindCodeSpan, m.loc[0], m.loc[2])
			e.hide(style.KindCodeSpan, m.loc[3], m.loc[1])
			return true
		},
	},
}

// delimited styles a construct wrapped in n identical delimiter runes.
// Matches glued to another copy of the delimiter are skipped, and so are
// underscore forms inside words.
func delimited(kind style.Kind, n int, intraword bool) func(match, *emitter) bool {
	return func(m match, e *emitter) bool {
		delim := rune(m.src[m.loc[0]])
		if m.prev == delim || m.next == delim {
			return false
		}
		if intraword && (isWordRune(m.prev) || isWordRune(m.next)) {
			return false
		}
		if body := m.src[m.loc[2]:m.loc[3]]; body[0] == ' ' || body[len(body)-1] == ' ' {
			return false
		}
		e.span(kind, m.loc[0], m.loc[1])
		e.hide(kind, m.loc[0], m.loc[0]+n)
		e.hide(kind, m.loc[1]-n, m.loc[1])
		return true
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func skipSpace(s string, i, end int) int {
	for i < end && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

// Apply returns the spans for text inside scope.  scope should be line
// aligned; it is clamped to the buffer.  The result is purely additive:
// callers clear prior styling in scope first.
func (rs Rules) Apply(text []rune, scope style.Range) []style.StyledSpan {
	scope = scope.Clamp(len(text))
	if scope.IsEmpty() {
		return nil
	}
	src := string(text[scope.Location:scope.End()])
	e := &emitter{
		base:   scope.Location,
		runeAt: runeOffsets(src),
		hidden: rs.HideSyntax,
	}
	for _, r := range rules {
		for pos := 0; pos < len(src); {
			loc := r.re.FindStringSubmatchIndex(src[pos:])
			if loc == nil {
				break
			}
			for i := range loc {
				if loc[i] >= 0 {
					loc[i] += pos
				}
			}
			m := match{src: src, loc: loc}
			if loc[0] > 0 {
				m.prev, _ = utf8.DecodeLastRuneInString(src[:loc[0]])
			}
			if loc[1] < len(src) {
				m.next, _ = utf8.DecodeRuneInString(src[loc[1]:])
			}
			switch {
			case r.line && loc[0] > 0 && src[loc[0]-1] != '\n', !r.apply(m, e):
				_, size := utf8.DecodeRuneInString(src[loc[0]:])
				pos = loc[0] + max(size, 1)
			case loc[1] > loc[0]:
				pos = loc[1]
			default:
				pos = loc[1] + 1
			}
		}
	}
	return e.out
}

// runeOffsets maps each byte offset of s that starts a rune, and len(s),
// to a rune offset.
func runeOffsets(s string) []int {
	at := make([]int, len(s)+1)
	n := 0
	for i := range s {
		at[i] = n
		n++
	}
	at[len(s)] = n
	return at
}

// emitter converts byte offsets within the scope into buffer spans.
type emitter struct {
	base   int
	runeAt []int
	hidden bool
	level  int
	out    []style.StyledSpan
}

func (e *emitter) rng(b0, b1 int) style.Range {
	return style.Span(e.base+e.runeAt[b0], e.base+e.runeAt[b1])
}

func (e *emitter) span(kind style.Kind, b0, b1 int) {
	if b1 <= b0 {
		return
	}
	e.out = append(e.out, style.StyledSpan{Range: e.rng(b0, b1), Kind: kind, Level: e.level})
}

func (e *emitter) hide(kind style.Kind, b0, b1 int) {
	if !e.hidden || b1 <= b0 {
		return
	}
	e.out = append(e.out, style.StyledSpan{Range: e.rng(b0, b1), Kind: kind, Hidden: true})
}
