package highlight

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/cptaffe/acme-mdstyle/logger"
	"github.com/cptaffe/acme-mdstyle/style"
)

func TestResolve(t *testing.T) {
	c := NewChroma()
	tests := []struct {
		token, want string
	}{
		{"python", "python"},
		{"Python", "python"},
		{" go ", "go"},
		{"nosuchlang", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := c.Resolve(tt.token); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestLanguagesSorted(t *testing.T) {
	names := NewChroma().Languages()
	if len(names) == 0 {
		t.Fatal("empty allow-list")
	}
	if !sort.StringsAreSorted(names) {
		t.Error("allow-list not sorted")
	}
}

func TestHighlightGo(t *testing.T) {
	code := "func f() {\n\ts := \"é\"\n}\n"
	toks, err := NewChroma().Highlight(code, "go")
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) == 0 || toks[0] != (Token{Range: style.Range{Location: 0, Length: 4}, Class: "keyword"}) {
		t.Fatalf("first token = %+v, want keyword at 0+4", toks)
	}
	n := len([]rune(code))
	var str *Token
	for i, tok := range toks {
		if tok.Range.End() > n || tok.Range.IsEmpty() {
			t.Errorf("token %+v outside code of %d runes", tok, n)
		}
		if tok.Class == "string" {
			str = &toks[i]
		}
	}
	want := style.Range{Location: 17, Length: 3}
	if str == nil || str.Range != want {
		t.Errorf("string token = %+v, want %+v", str, want)
	}
}

func TestHighlightUnknownLanguage(t *testing.T) {
	_, err := NewChroma().Highlight("x", "nosuchlang")
	if !errors.Is(err, ErrUnknownLanguage) {
		t.Errorf("err = %v, want ErrUnknownLanguage", err)
	}
}

// gated blocks every Highlight call until the gate is closed.
type gated struct {
	started chan string
	gate    chan struct{}
}

func (g *gated) Highlight(code, lang string) ([]Token, error) {
	g.started <- code
	<-g.gate
	return []Token{{Range: style.Range{Length: len(code)}, Class: lang}}, nil
}

func (g *gated) Languages() []string   { return nil }
func (g *gated) Resolve(string) string { return "" }

func TestPool(t *testing.T) {
	ctx := logger.NewContext(context.Background(), zaptest.NewLogger(t))
	g := &gated{started: make(chan string, 4), gate: make(chan struct{})}

	var (
		mu  sync.Mutex
		got []Result
	)
	p := NewPool(ctx, g, 1, 1, func(r Result) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
	})

	if err := p.Submit(Job{DocID: 1, Text: "a", Language: "x"}); err != nil {
		t.Fatal(err)
	}
	<-g.started
	if err := p.Submit(Job{DocID: 1, Text: "bb", Language: "y"}); err != nil {
		t.Fatal(err)
	}
	if err := p.Submit(Job{DocID: 1, Text: "ccc"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("third submit: err = %v, want ErrQueueFull", err)
	}
	if p.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", p.Dropped())
	}

	close(g.gate)
	p.Close()
	if err := p.Submit(Job{}); !errors.Is(err, ErrClosed) {
		t.Errorf("submit after close: err = %v, want ErrClosed", err)
	}

	want := []Result{
		{Job: Job{DocID: 1, Text: "a", Language: "x"}, Tokens: []Token{{Range: style.Range{Length: 1}, Class: "x"}}},
		{Job: Job{DocID: 1, Text: "bb", Language: "y"}, Tokens: []Token{{Range: style.Range{Length: 2}, Class: "y"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}
