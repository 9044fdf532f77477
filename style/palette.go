package style

// Palette names used for markdown spans.  Code tokens are named
// TokenPrefix+class, e.g. "md.token.keyword".
const (
	HiddenName  = "md.hidden"
	TokenPrefix = "md.token."
)

// PaletteName returns the palette entry name a span is published under.
func (s StyledSpan) PaletteName() string {
	if s.Hidden {
		return HiddenName
	}
	switch s.Kind {
	case KindNone:
		return ""
	case KindHeader:
		if s.Level >= 1 && s.Level <= 2 {
			return "md.header" + string(rune('0'+s.Level))
		}
		return "md.header"
	case KindCodeToken:
		if s.Token == "" {
			return ""
		}
		return TokenPrefix + s.Token
	}
	return "md." + s.Kind.String()
}

// Priority orders overlapping spans when they are flattened into runs;
// higher wins.  Hidden delimiters always win so that the compositor can
// render them invisibly whatever lies underneath.
func (s StyledSpan) Priority() int {
	if s.Hidden {
		return 100
	}
	switch s.Kind {
	case KindCodeToken:
		return 90
	case KindCodeBlock:
		return 80
	case KindCodeSpan:
		return 70
	case KindLink, KindImage:
		return 60
	case KindStrong:
		return 50
	case KindEmphasis:
		return 40
	case KindListMarker:
		return 30
	case KindHeader:
		return 20
	case KindQuote:
		return 10
	}
	return 0
}

// DefaultPalette is the master palette for markdown spans.  A styles file may
// override any entry by name.
func DefaultPalette() []PaletteEntry {
	return []PaletteEntry{
		{Name: "md.header1", Bold: true, FG: "#1f3d7a"},
		{Name: "md.header2", Bold: true, FG: "#2b5797"},
		{Name: "md.header", Bold: true},
		{Name: "md.emphasis", Italic: true},
		{Name: "md.strong", Bold: true},
		{Name: "md.link", FG: "#0b6e99", Underline: true},
		{Name: "md.image", FG: "#7a3e9d"},
		{Name: "md.quote", FG: "#6a737d", Italic: true},
		{Name: "md.list", FG: "#b35900", Bold: true},
		{Name: "md.codespan", BG: "#eeeeee"},
		{Name: "md.codeblock", BG: "#f3f3f3"},
		{Name: HiddenName, FG: "#ffffea"},
		{Name: TokenPrefix + "keyword", FG: "#8959a8", BG: "#f3f3f3", Bold: true},
		{Name: TokenPrefix + "type", FG: "#3e999f", BG: "#f3f3f3"},
		{Name: TokenPrefix + "string", FG: "#718c00", BG: "#f3f3f3"},
		{Name: TokenPrefix + "number", FG: "#f5871f", BG: "#f3f3f3"},
		{Name: TokenPrefix + "comment", FG: "#8e908c", BG: "#f3f3f3", Italic: true},
		{Name: TokenPrefix + "function", FG: "#4271ae", BG: "#f3f3f3"},
		{Name: TokenPrefix + "builtin", FG: "#c82829", BG: "#f3f3f3"},
		{Name: TokenPrefix + "operator", FG: "#3e999f", BG: "#f3f3f3"},
	}
}
