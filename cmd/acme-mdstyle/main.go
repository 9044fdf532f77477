// Command acme-mdstyle styles markdown windows in acme.
//
// It watches the acme log for windows whose names match the configured
// suffixes, follows their edits, and publishes headers, emphasis, links,
// quotes, lists and highlighted code blocks as a layer of the acme-styles
// compositor.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"9fans.net/go/acme"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cptaffe/acme-mdstyle/highlight"
	"github.com/cptaffe/acme-mdstyle/internal/server"
	"github.com/cptaffe/acme-mdstyle/logger"
)

func main() {
	stylesFile := flag.String("styles", "", "styles file: palette overrides and set lines")
	layerName := flag.String("layer", "", "compositor layer name (default \"markdown\")")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	var err error
	var l *zap.Logger
	if *verbose {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	zap.ReplaceGlobals(l)
	defer l.Sync() //nolint:errcheck

	cfg := server.DefaultConfig()
	if *stylesFile != "" {
		data, err := os.ReadFile(*stylesFile)
		if err != nil {
			l.Fatal("read styles", zap.String("path", *stylesFile), zap.Error(err))
		}
		cfg, err = server.ParseConfig(string(data))
		for _, e := range multierr.Errors(err) {
			l.Warn("styles", zap.String("path", *stylesFile), zap.Error(e))
		}
		l.Info("loaded styles",
			zap.Int("palette", len(cfg.Palette)),
			zap.Strings("suffixes", cfg.Suffixes),
			zap.String("path", *stylesFile))
	}
	if *layerName != "" {
		cfg.Layer = *layerName
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.NewContext(ctx, l)

	s := server.NewServer(ctx, cfg, highlight.NewChroma())
	watchLog(s)

	l.Info("shutting down; waiting for window goroutines")
	done := make(chan struct{})
	go func() { s.Wait(); close(done) }()
	select {
	case <-done:
		l.Info("shutdown complete")
	case <-time.After(5 * time.Second):
		l.Warn("shutdown timed out; exiting anyway")
	}
}

// watchLog attaches the markdown windows already open, then follows the
// acme log until the context is cancelled.
//
// acme.Windows and acme.Log are retried: a previous process that exited
// abruptly may leave acme's fid table busy for a moment.
//
// lr.Read blocks, so each read runs in a goroutine and is selected against
// ctx.Done for a clean exit on signal.
func watchLog(s *server.Server) {
	ctx := s.Ctx()
	l := logger.L(ctx)

	wins, err := retryOn(ctx, 10, 200*time.Millisecond, acme.Windows)
	if err != nil {
		l.Fatal("acme.Windows", zap.Error(err))
	}
	for _, w := range wins {
		s.AddWin(w.ID, w.Name)
	}

	lr, err := retryOn(ctx, 10, 200*time.Millisecond, acme.Log)
	if err != nil {
		l.Fatal("acme.Log", zap.Error(err))
	}
	defer lr.Close()

	type logResult struct {
		ev  acme.LogEvent
		err error
	}
	ch := make(chan logResult, 1)
	readNext := func() {
		go func() {
			ev, err := lr.Read()
			ch <- logResult{ev, err}
		}()
	}
	readNext()

	for {
		select {
		case <-ctx.Done():
			for _, id := range s.WinIDs() {
				s.DelWin(id)
			}
			return
		case res := <-ch:
			if res.err != nil {
				if ctx.Err() != nil {
					return
				}
				l.Fatal("acme log", zap.Error(res.err))
			}
			handleLogEvent(s, res.ev)
			readNext()
		}
	}
}

func handleLogEvent(s *server.Server, ev acme.LogEvent) {
	switch ev.Op {
	case "new", "focus", "put":
		// A window may be named, or renamed, after it is created.
		s.AddWin(ev.ID, ev.Name)
	case "get":
		if ws := s.GetWin(ev.ID); ws != nil {
			ws.Rescan()
		} else {
			s.AddWin(ev.ID, ev.Name)
		}
	case "del":
		s.DelWin(ev.ID)
	}
}

// retryOn calls fn until it succeeds, the context is cancelled, or
// maxAttempts is exhausted, waiting delay between attempts.
func retryOn[T any](ctx context.Context, maxAttempts int, delay time.Duration, fn func() (T, error)) (T, error) {
	var (
		zero T
		err  error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var v T
		v, err = fn()
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, err
}
