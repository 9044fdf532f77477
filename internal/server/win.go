package server

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"9fans.net/go/acme"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-mdstyle/engine"
	"github.com/cptaffe/acme-mdstyle/logger"
	"github.com/cptaffe/acme-mdstyle/markdown"
	"github.com/cptaffe/acme-mdstyle/style"
)

// coalesceDelay is the window during which several edits are batched into
// a single write to the compositor.
const coalesceDelay = 20 * time.Millisecond

// callTimeout is the maximum time call() waits for the window goroutine.
const callTimeout = 5 * time.Second

// Sink receives the composed styles of one window.  *layer.StyleLayer is
// the production implementation.
type Sink interface {
	Write(text string) error
	WriteAt(q0, q1 int, text string) error
	Delete()
}

// WinState is the actor for one acme window.
//
// ID, ctx, cancel, cmdCh and srv are set at construction and may be read
// from any goroutine.  Every other field is owned by the run() goroutine.
type WinState struct {
	ID     int
	ctx    context.Context
	cancel context.CancelFunc
	cmdCh  chan func(*WinState)
	srv    *Server

	// Owned by run().
	win        *acme.Win
	doc        *engine.Document
	sink       Sink
	body       []rune
	rev        uint64
	spans      []style.StyledSpan
	prevRuns   []style.StyleRun
	written    bool // the sink holds a full write of prevRuns
	pending    bool
	flushTimer *time.Timer
	eventCh    <-chan *acme.Event
}

// submit enqueues fn to run in the window's goroutine.  Drops fn if ctx is
// already cancelled.
func (ws *WinState) submit(fn func(*WinState)) {
	select {
	case ws.cmdCh <- fn:
	case <-ws.ctx.Done():
	}
}

// call enqueues fn and waits until it has run.  Reports false if the window
// went away or callTimeout elapsed first.
func (ws *WinState) call(fn func(*WinState)) bool {
	done := make(chan struct{})
	ws.submit(func(ws *WinState) {
		fn(ws)
		close(done)
	})
	select {
	case <-done:
		return true
	case <-ws.ctx.Done():
		return false
	case <-time.After(callTimeout):
		logger.L(ws.ctx).Warn("call timed out; window goroutine unresponsive")
		return false
	}
}

// run is the window goroutine.
func (ws *WinState) run() {
	defer ws.srv.wg.Done()
	log := logger.L(ws.ctx)

	ws.flushTimer = time.NewTimer(coalesceDelay)
	ws.flushTimer.Stop()

	if ws.win != nil {
		if err := ws.load(); err != nil {
			log.Error("load body", zap.Error(err))
		}
		ws.eventCh = ws.startEvents()
	}

	for {
		select {
		case fn := <-ws.cmdCh:
			fn(ws)

		case ev, ok := <-ws.eventCh:
			if !ok {
				// Event file closed: the window is going away and the acme
				// log will report it.  Keep serving commands until then.
				ws.eventCh = nil
				continue
			}
			ws.handleEvent(ev)

		case <-ws.flushTimer.C:
			if ws.pending {
				ws.flush()
			}

		case <-ws.ctx.Done():
			ws.flushTimer.Stop()
			ws.srv.eng.Detach(ws.ID)
			if ws.sink != nil {
				ws.sink.Delete()
			}
			if ws.win != nil {
				ws.win.CloseFiles()
				ws.win = nil
			}
			return
		}
	}
}

// startEvents opens a second handle on the window for its event file, so
// that the reader goroutine never shares fids with run().  Look and execute
// events are written back so acme handles them as usual; body edits are
// delivered on the returned channel.
func (ws *WinState) startEvents() <-chan *acme.Event {
	log := logger.L(ws.ctx)
	w, err := acme.Open(ws.ID, nil)
	if err != nil {
		log.Error("open window for events", zap.Error(err))
		return nil
	}
	ch := make(chan *acme.Event)
	go func() {
		defer w.CloseFiles()
		defer close(ch)
		for ev := range w.EventChan() {
			switch ev.C2 {
			case 'x', 'X', 'l', 'L':
				if err := w.WriteEvent(ev); err != nil {
					log.Debug("write back event", zap.Error(err))
				}
				continue
			case 'I', 'D':
			default:
				continue
			}
			select {
			case ch <- ev:
			case <-ws.ctx.Done():
				return
			}
		}
	}()
	return ch
}

// load reads the body and styles it from scratch.
func (ws *WinState) load() error {
	data, err := ws.win.ReadAll("body")
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	ws.reset([]rune(string(data)))
	return nil
}

// reset replaces the shadow body and restyles it in full.
func (ws *WinState) reset(body []rune) {
	ws.body = body
	ws.rev++
	ws.apply(ws.doc.Rescan(ws.buffer()))
}

func (ws *WinState) buffer() engine.Buffer {
	return engine.Buffer{Text: ws.body, Revision: ws.rev}
}

func (ws *WinState) handleEvent(ev *acme.Event) {
	switch ev.C2 {
	case 'I':
		var text []rune
		if n := ev.Q1 - ev.Q0; ev.Nr == n && utf8.RuneCount(ev.Text) == n {
			text = []rune(string(ev.Text))
		}
		ws.insert(ev.Q0, ev.Q1-ev.Q0, text)
	case 'D':
		ws.delete(ev.Q0, ev.Q1)
	}
}

// insert records n runes inserted at q0.  text is nil when the event did
// not carry it, in which case the body is read back from acme.
func (ws *WinState) insert(q0, n int, text []rune) {
	if q0 < 0 || q0 > len(ws.body) || n <= 0 {
		ws.resync()
		return
	}
	if text == nil {
		if ws.win == nil {
			return
		}
		data, err := ws.win.ReadAll("body")
		if err != nil {
			logger.L(ws.ctx).Error("read body", zap.Error(err))
			return
		}
		body := []rune(string(data))
		if len(body) != len(ws.body)+n {
			ws.reset(body)
			return
		}
		ws.body = body
	} else {
		next := make([]rune, 0, len(ws.body)+n)
		next = append(next, ws.body[:q0]...)
		next = append(next, text...)
		ws.body = append(next, ws.body[q0:]...)
	}
	ws.edit(markdown.Insert(q0, n))
}

// delete records the removal of [q0, q1).
func (ws *WinState) delete(q0, q1 int) {
	if q0 < 0 || q1 > len(ws.body) || q0 >= q1 {
		ws.resync()
		return
	}
	next := make([]rune, 0, len(ws.body)-(q1-q0))
	next = append(next, ws.body[:q0]...)
	ws.body = append(next, ws.body[q1:]...)
	ws.edit(markdown.Delete(q0, q1-q0))
}

// resync reloads the body after an event that does not fit the shadow copy.
func (ws *WinState) resync() {
	logger.L(ws.ctx).Warn("edit outside shadow body; reloading")
	if ws.win == nil {
		return
	}
	if err := ws.load(); err != nil {
		logger.L(ws.ctx).Error("reload body", zap.Error(err))
	}
}

func (ws *WinState) edit(e markdown.Edit) {
	ws.rev++
	ws.spans = adjustSpans(ws.spans, e)
	ws.prevRuns = adjustRuns(ws.prevRuns, e)
	ws.apply(ws.doc.OnEdit(ws.buffer(), e))
}

// apply merges an engine update into the span store and schedules a flush.
func (ws *WinState) apply(u engine.Update) {
	if u.IsEmpty() {
		return
	}
	ws.spans = clearSpans(ws.spans, u.Clear)
	ws.spans = append(ws.spans, u.Spans...)
	ws.scheduleFlush()
}

func (ws *WinState) scheduleFlush() {
	ws.pending = true
	resetTimer(ws.flushTimer, coalesceDelay)
}

// flush composes the span store and writes what changed to the sink.
func (ws *WinState) flush() {
	ws.pending = false
	log := logger.L(ws.ctx)
	if ws.sink == nil {
		sink, err := ws.srv.openSink(ws.ID)
		if err != nil {
			log.Debug("open layer", zap.Error(err))
			return
		}
		ws.sink = sink
	}
	palette := ws.srv.cfg.Palette
	runs := compose(palette, ws.spans)
	if !ws.written {
		if err := ws.sink.Write(style.Format(palette, runs)); err != nil {
			log.Error("full style write", zap.Error(err))
			return
		}
		ws.written = true
		ws.prevRuns = runs
		return
	}
	q0, q1, changed := diffRuns(ws.prevRuns, runs)
	if !changed {
		return
	}
	if err := ws.sink.WriteAt(q0, q1, formatAt(nil, runs, q0, q1)); err != nil {
		log.Error("partial style write", zap.Error(err), zap.Int("q0", q0), zap.Int("q1", q1))
		ws.written = false
		ws.scheduleFlush()
		return
	}
	ws.prevRuns = runs
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// ---- public API (safe to call from any goroutine) ----

// Rescan restyles the window from its current body.
func (ws *WinState) Rescan() {
	ws.submit(func(ws *WinState) {
		if ws.win != nil {
			if err := ws.load(); err != nil {
				logger.L(ws.ctx).Error("rescan", zap.Error(err))
			}
			return
		}
		ws.reset(ws.body)
	})
}

// Blocks returns the window's current code blocks.
func (ws *WinState) Blocks() []markdown.Block {
	var blocks []markdown.Block
	ws.call(func(ws *WinState) { blocks = ws.doc.Blocks() })
	return blocks
}

// ComposedText returns the last styles written to the compositor.
func (ws *WinState) ComposedText() string {
	var result string
	ws.call(func(ws *WinState) {
		result = style.Format(ws.srv.cfg.Palette, ws.prevRuns)
	})
	return result
}
