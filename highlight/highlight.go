// Package highlight adapts an external language highlighter to the
// markdown engine and runs it off the owner's goroutine.
package highlight

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/cptaffe/acme-mdstyle/style"
)

// ErrUnknownLanguage is returned by Highlight for a language outside the
// allow-list.
var ErrUnknownLanguage = errors.New("highlight: unknown language")

// Token is a highlighted range of the code passed to Highlight.  Range is
// relative to the start of that code, in runes.
type Token struct {
	Range style.Range
	Class string // e.g. "keyword"; see Classes
}

// Classes lists every token class a Highlighter reports.  The default
// palette carries an entry for each.
var Classes = []string{"keyword", "type", "string", "number", "comment", "function", "builtin", "operator"}

// Highlighter colours source code.
type Highlighter interface {
	// Highlight tokenises code in lang.  Tokens without a class are
	// omitted.
	Highlight(code string, lang string) ([]Token, error)
	// Languages returns the sorted allow-list of language names and
	// aliases, lower case.
	Languages() []string
	// Resolve maps a fence language token to an allow-listed name, or ""
	// when it names no known language.
	Resolve(token string) string
}

// Chroma is a Highlighter backed by the chroma lexer registry.  The zero
// value is ready to use.
type Chroma struct {
	once  sync.Once
	names []string
	known map[string]bool

	mu    sync.RWMutex
	cache map[string]chroma.Lexer
}

var _ Highlighter = (*Chroma)(nil)

// NewChroma returns a chroma-backed Highlighter.
func NewChroma() *Chroma { return &Chroma{} }

func (c *Chroma) load() {
	c.once.Do(func() {
		c.known = make(map[string]bool)
		for _, n := range lexers.Names(true) {
			n = strings.ToLower(n)
			if n == "" || c.known[n] {
				continue
			}
			c.known[n] = true
			c.names = append(c.names, n)
		}
		sort.Strings(c.names)
	})
}

// Languages implements Highlighter.
func (c *Chroma) Languages() []string {
	c.load()
	return c.names
}

// Resolve implements Highlighter.
func (c *Chroma) Resolve(token string) string {
	c.load()
	token = strings.ToLower(strings.TrimSpace(token))
	if c.known[token] {
		return token
	}
	return ""
}

func (c *Chroma) lexer(lang string) chroma.Lexer {
	c.mu.RLock()
	l, ok := c.cache[lang]
	c.mu.RUnlock()
	if ok {
		return l
	}
	l = lexers.Get(lang)
	if l != nil {
		l = chroma.Coalesce(l)
	}
	c.mu.Lock()
	if c.cache == nil {
		c.cache = make(map[string]chroma.Lexer)
	}
	c.cache[lang] = l
	c.mu.Unlock()
	return l
}

// Highlight implements Highlighter.
func (c *Chroma) Highlight(code string, lang string) ([]Token, error) {
	name := c.Resolve(lang)
	if name == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	l := c.lexer(name)
	if l == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	it, err := l.Tokenise(nil, code)
	if err != nil {
		return nil, fmt.Errorf("tokenise %s: %w", name, err)
	}

	// Lexers may append a newline the code did not have.
	n := utf8.RuneCountInString(code)
	var out []Token
	pos := 0
	for _, t := range it.Tokens() {
		start := pos
		pos += utf8.RuneCountInString(t.Value)
		if start >= n {
			break
		}
		class := tokenClass(t.Type)
		if class == "" {
			continue
		}
		r := style.Span(start, min(pos, n))
		if k := len(out) - 1; k >= 0 && out[k].Class == class && out[k].Range.End() == r.Location {
			out[k].Range = out[k].Range.Union(r)
			continue
		}
		out = append(out, Token{Range: r, Class: class})
	}
	return out, nil
}

// tokenClass folds chroma's token hierarchy into Classes.
func tokenClass(t chroma.TokenType) string {
	switch {
	case t == chroma.KeywordType, t == chroma.NameClass:
		return "type"
	case t.InCategory(chroma.Keyword):
		return "keyword"
	case t.InSubCategory(chroma.LiteralString):
		return "string"
	case t.InSubCategory(chroma.LiteralNumber):
		return "number"
	case t.InCategory(chroma.Comment):
		return "comment"
	case t == chroma.NameFunction:
		return "function"
	case t == chroma.NameBuiltin, t == chroma.NameBuiltinPseudo:
		return "builtin"
	case t.InCategory(chroma.Operator):
		return "operator"
	}
	return ""
}
