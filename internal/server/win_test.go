package server

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/cptaffe/acme-mdstyle/highlight"
	"github.com/cptaffe/acme-mdstyle/logger"
	"github.com/cptaffe/acme-mdstyle/style"
)

type sinkWrite struct {
	partial bool
	q0, q1  int
	text    string
}

type fakeSink struct {
	writes  []sinkWrite
	fail    bool
	deleted bool
}

func (f *fakeSink) Write(text string) error {
	if f.fail {
		return errors.New("compositor gone")
	}
	f.writes = append(f.writes, sinkWrite{text: text})
	return nil
}

func (f *fakeSink) WriteAt(q0, q1 int, text string) error {
	if f.fail {
		return errors.New("compositor gone")
	}
	f.writes = append(f.writes, sinkWrite{partial: true, q0: q0, q1: q1, text: text})
	return nil
}

func (f *fakeSink) Delete() { f.deleted = true }

func (f *fakeSink) last(t *testing.T) sinkWrite {
	t.Helper()
	if len(f.writes) == 0 {
		t.Fatal("nothing written")
	}
	return f.writes[len(f.writes)-1]
}

// newTestWin returns a window with no acme connection, driven directly
// rather than through run().
func newTestWin(t *testing.T, cfg Config) (*WinState, *fakeSink) {
	t.Helper()
	ctx := logger.NewContext(context.Background(), zaptest.NewLogger(t))
	s := NewServer(ctx, cfg, nil)
	sink := &fakeSink{}
	s.openSink = func(int) (Sink, error) { return sink, nil }
	t.Cleanup(s.eng.Close)

	wctx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	ws := s.newWin(wctx, cancel, 1)
	ws.flushTimer = time.NewTimer(time.Hour)
	ws.flushTimer.Stop()
	return ws, sink
}

func TestWinFullThenPartialWrites(t *testing.T) {
	ws, sink := newTestWin(t, DefaultConfig())

	ws.reset([]rune("# T\n"))
	ws.flush()
	w := sink.last(t)
	if w.partial {
		t.Fatalf("first write is partial: %+v", w)
	}
	palette, runs := ParseStyleContent(w.text)
	if len(palette) != len(style.DefaultPalette()) {
		t.Errorf("full write carries %d palette entries, want %d", len(palette), len(style.DefaultPalette()))
	}
	if diff := cmp.Diff([]style.StyleRun{run("md.header1", 0, 3)}, runs); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}

	ws.insert(3, 1, []rune("x"))
	ws.flush()
	want := sinkWrite{partial: true, q0: 0, q1: 4, text: "0 4 md.header1\n"}
	if got := sink.last(t); got != want {
		t.Errorf("after insert wrote %+v, want %+v", got, want)
	}

	ws.delete(0, 2)
	ws.flush()
	want = sinkWrite{partial: true, q0: 0, q1: 2}
	if got := sink.last(t); got != want {
		t.Errorf("after delete wrote %+v, want %+v", got, want)
	}
	if got := string(ws.body); got != "Tx\n" {
		t.Errorf("body = %q, want %q", got, "Tx\n")
	}
}

func TestWinNoWriteWhenUnchanged(t *testing.T) {
	ws, sink := newTestWin(t, DefaultConfig())
	ws.reset([]rune("plain\n"))
	ws.flush()
	n := len(sink.writes)

	ws.insert(0, 1, []rune("a"))
	ws.flush()
	if len(sink.writes) != n {
		t.Errorf("unstyled edit wrote %+v", sink.writes[n:])
	}
}

func TestWinCodeBlock(t *testing.T) {
	ws, sink := newTestWin(t, DefaultConfig())
	ws.reset([]rune("para\n\tcode\n"))
	ws.flush()
	_, runs := ParseStyleContent(sink.last(t).text)
	if diff := cmp.Diff([]style.StyleRun{run("md.codeblock", 5, 11)}, runs); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}
}

func TestWinHideSyntax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HideSyntax = true
	ws, sink := newTestWin(t, cfg)
	ws.reset([]rune("**b**\n"))
	ws.flush()
	_, runs := ParseStyleContent(sink.last(t).text)
	want := []style.StyleRun{run(style.HiddenName, 0, 2), run("md.strong", 2, 3), run(style.HiddenName, 3, 5)}
	if diff := cmp.Diff(want, runs); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}
}

func TestWinFailedWriteFallsBackToFull(t *testing.T) {
	ws, sink := newTestWin(t, DefaultConfig())
	ws.reset([]rune("*a*\n"))
	ws.flush()

	sink.fail = true
	ws.insert(1, 1, []rune("b"))
	ws.flush()
	if !ws.pending {
		t.Error("failed write did not reschedule a flush")
	}

	sink.fail = false
	ws.flush()
	w := sink.last(t)
	if w.partial {
		t.Errorf("write after failure is partial: %+v", w)
	}
	if !strings.Contains(w.text, "0 4 md.emphasis\n") {
		t.Errorf("full write %q lacks the emphasis run", w.text)
	}
}

func TestWinBadEventResyncs(t *testing.T) {
	ws, _ := newTestWin(t, DefaultConfig())
	ws.reset([]rune("abc\n"))
	ws.delete(2, 10)
	ws.insert(9, 1, []rune("x"))
	if got := string(ws.body); got != "abc\n" {
		t.Errorf("body = %q after out-of-range events", got)
	}
}

// keywords marks every line of go code a keyword.
type keywords struct{}

func (keywords) Highlight(code, lang string) ([]highlight.Token, error) {
	return []highlight.Token{{Range: style.Range{Length: len([]rune(code))}, Class: "keyword"}}, nil
}

func (keywords) Languages() []string { return []string{"go"} }

func (keywords) Resolve(token string) string {
	if token == "go" {
		return token
	}
	return ""
}

func TestWinActorAppliesAsyncResults(t *testing.T) {
	ctx := logger.NewContext(context.Background(), zaptest.NewLogger(t))
	cfg := DefaultConfig()
	cfg.AsyncThreshold = 1
	s := NewServer(ctx, cfg, keywords{})
	sink := &fakeSink{}
	s.openSink = func(int) (Sink, error) { return sink, nil }

	wctx, cancel := context.WithCancel(ctx)
	ws := s.newWin(wctx, cancel, 3)
	s.mu.Lock()
	s.wins[3] = ws
	s.mu.Unlock()
	s.wg.Add(1)
	go ws.run()

	ws.submit(func(ws *WinState) { ws.reset([]rune("```go\nabc\n```\n")) })

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(ws.ComposedText(), "6 4 md.token.keyword\n") {
		if time.Now().After(deadline) {
			t.Fatalf("async tokens never composed; have %q", ws.ComposedText())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if blocks := ws.Blocks(); len(blocks) != 1 || !blocks[0].Fenced {
		t.Errorf("blocks = %+v, want one fenced block", blocks)
	}

	s.DelWin(3)
	s.Wait()
	if !sink.deleted {
		t.Error("layer not deleted when the window went away")
	}
	if s.eng.Document(3) != nil {
		t.Error("document still attached")
	}
}
