// Package server attaches acme windows holding markdown to the styling
// engine and publishes their styles as a compositor layer.
package server

import (
	"context"
	"sort"
	"sync"

	"9fans.net/go/acme"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-mdstyle/engine"
	"github.com/cptaffe/acme-mdstyle/highlight"
	"github.com/cptaffe/acme-mdstyle/layer"
	"github.com/cptaffe/acme-mdstyle/logger"
)

// Server is the global service state.
//
// cfg, eng and openSink are read-only after NewServer returns.  mu protects
// only the wins map; it is never held while doing any I/O.
type Server struct {
	cfg      Config
	eng      *engine.Engine
	openSink func(winID int) (Sink, error)
	mu       sync.Mutex
	wins     map[int]*WinState
	ctx      context.Context // root context; cancelled on shutdown
	wg       sync.WaitGroup  // tracks live window goroutines
}

// NewServer constructs a Server from the parsed config and root context.
// Code blocks are coloured with hl.
func NewServer(ctx context.Context, cfg Config, hl highlight.Highlighter) *Server {
	s := &Server{
		cfg:  cfg,
		wins: make(map[int]*WinState),
		ctx:  ctx,
	}
	s.openSink = func(winID int) (Sink, error) {
		sl, err := layer.Open(winID, cfg.Layer)
		if err != nil {
			return nil, err
		}
		return sl, nil
	}
	s.eng = engine.New(ctx, hl, engine.Options{
		HideSyntax:     cfg.HideSyntax,
		AsyncThreshold: cfg.AsyncThreshold,
		Workers:        cfg.Workers,
		OnResult:       s.deliver,
	})
	return s
}

// Ctx returns the root context of the server.
func (s *Server) Ctx() context.Context {
	return s.ctx
}

// Wait blocks until all window goroutines have exited, then stops the
// highlight workers.
func (s *Server) Wait() {
	s.wg.Wait()
	s.eng.Close()
}

// deliver routes an async highlight result to its window's goroutine.
func (s *Server) deliver(res highlight.Result) {
	ws := s.GetWin(res.DocID)
	if ws == nil {
		return
	}
	ws.submit(func(ws *WinState) {
		ws.apply(ws.doc.Apply(res))
	})
}

// AddWin starts styling window id if name matches the configured suffixes.
// Returns nil if the window is not markdown or was already registered.
//
// s.mu is not held across acme.Open; if another goroutine raced to add the
// same ID, the loser discards what it opened.
func (s *Server) AddWin(id int, name string) *WinState {
	if !s.cfg.Matches(name) {
		return nil
	}
	s.mu.Lock()
	if _, ok := s.wins[id]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(s.ctx)
	ctx = logger.NewContext(ctx, logger.L(s.ctx).With(zap.Int("window", id), zap.String("name", name)))

	awin, err := acme.Open(id, nil)
	if err != nil {
		logger.L(ctx).Error("open acme window", zap.Error(err))
		cancel()
		return nil
	}

	ws := s.newWin(ctx, cancel, id)
	ws.win = awin

	s.mu.Lock()
	if _, ok := s.wins[id]; ok {
		s.mu.Unlock()
		cancel()
		awin.CloseFiles()
		return nil
	}
	s.wins[id] = ws
	s.mu.Unlock()

	logger.L(ctx).Info("styling window")
	s.wg.Add(1)
	go ws.run()
	return ws
}

func (s *Server) newWin(ctx context.Context, cancel context.CancelFunc, id int) *WinState {
	return &WinState{
		ID:     id,
		ctx:    ctx,
		cancel: cancel,
		cmdCh:  make(chan func(*WinState), 64),
		srv:    s,
		doc:    s.eng.Attach(id),
	}
}

// DelWin removes the window from the registry and cancels its goroutine.
func (s *Server) DelWin(id int) {
	s.mu.Lock()
	ws := s.wins[id]
	delete(s.wins, id)
	s.mu.Unlock()
	if ws != nil {
		ws.cancel()
	}
}

// GetWin returns the WinState for the given window ID, or nil if not found.
func (s *Server) GetWin(id int) *WinState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wins[id]
}

// WinIDs returns all registered window IDs in ascending order.
func (s *Server) WinIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.wins))
	for id := range s.wins {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
