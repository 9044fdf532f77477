// Package style defines the styling vocabulary shared by the markdown engine
// and its hosts.
//
// StyledSpan is what the engine produces: a buffer range tagged with a Kind.
// PaletteEntry and StyleRun are the acme-styles compositor wire types; hosts
// that publish through the compositor flatten spans into runs (see Runs) and
// serialise them with Format.
package style

import (
	"fmt"
	"strings"
)

// Kind classifies a styled span.
type Kind int

const (
	KindNone Kind = iota
	KindHeader
	KindEmphasis
	KindStrong
	KindLink
	KindImage
	KindQuote
	KindListMarker
	KindCodeSpan
	KindCodeBlock
	KindCodeToken // token class reported by the language highlighter
)

var kindNames = [...]string{
	KindNone:       "none",
	KindHeader:     "header",
	KindEmphasis:   "emphasis",
	KindStrong:     "strong",
	KindLink:       "link",
	KindImage:      "image",
	KindQuote:      "quote",
	KindListMarker: "list",
	KindCodeSpan:   "codespan",
	KindCodeBlock:  "codeblock",
	KindCodeToken:  "token",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// StyledSpan is a range of the buffer tagged with a visual classification.
// Hidden marks syntax delimiters that render invisibly in hide-syntax mode.
type StyledSpan struct {
	Range    Range
	Kind     Kind
	Hidden   bool
	Level    int    // header level, 1-6
	Language string // KindCodeBlock: resolved fence language, or ""
	Token    string // KindCodeToken: highlighter token class, e.g. "Keyword"
}

// PaletteEntry is a named visual style definition.
type PaletteEntry struct {
	Name      string // e.g. "md.header"
	FontName  string // absolute font path, or ""
	FG        string // "#rrggbb", or ""
	BG        string // "#rrggbb", or ""
	Bold      bool
	Italic    bool
	Underline bool
}

// StyleRun is a named style span.  Start and End are file-absolute rune
// offsets; End is exclusive.
type StyleRun struct {
	Name  string
	Start int
	End   int // exclusive
}

// Format serialises palette entries and style runs into the acme-styles wire
// format.
func Format(palette []PaletteEntry, runs []StyleRun) string {
	var sb strings.Builder
	for _, e := range palette {
		writePaletteLine(&sb, e)
	}
	for _, r := range runs {
		fmt.Fprintf(&sb, "%d %d %s\n", r.Start, r.End-r.Start, r.Name)
	}
	return sb.String()
}

func writePaletteLine(sb *strings.Builder, e PaletteEntry) {
	fmt.Fprintf(sb, ":%s", e.Name)
	if e.FontName != "" {
		fmt.Fprintf(sb, " font=%s", e.FontName)
	}
	if e.FG != "" {
		fmt.Fprintf(sb, " fg=%s", e.FG)
	}
	if e.BG != "" {
		fmt.Fprintf(sb, " bg=%s", e.BG)
	}
	if e.Bold {
		sb.WriteString(" bold")
	}
	if e.Italic {
		sb.WriteString(" italic")
	}
	if e.Underline {
		sb.WriteString(" underline")
	}
	sb.WriteByte('\n')
}
