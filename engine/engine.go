// Package engine keeps markdown documents styled as they are edited.
//
// A host attaches a document, then reports every edit through
// (*Document).OnEdit and applies the returned Update to its view.  Code
// blocks too large to colour inline are highlighted on a worker pool; their
// results come back through Options.OnResult and must be handed to
// (*Document).Apply on the goroutine that owns the document.
package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/cptaffe/acme-mdstyle/highlight"
	"github.com/cptaffe/acme-mdstyle/logger"
	"github.com/cptaffe/acme-mdstyle/markdown"
)

const (
	DefaultAsyncThreshold = 1000
	DefaultWorkers        = 2
	DefaultQueueSize      = 64

	// NarrowCodeLimit is the indented-block length below which a
	// single-character edit recolours the whole block.
	NarrowCodeLimit = 500
)

// Options configures an Engine.  Zero values select the defaults.
type Options struct {
	HideSyntax     bool
	AsyncThreshold int // code length, in runes, above which highlighting is async
	Workers        int
	QueueSize      int
	ForceRescan    bool // rescan fully whenever an edit inserts a fence
	// OnResult receives async highlight results for attached documents.  It
	// runs on a pool worker; hosts forward the result to the document's
	// owner.
	OnResult func(highlight.Result)
}

func (o *Options) setDefaults() {
	if o.AsyncThreshold <= 0 {
		o.AsyncThreshold = DefaultAsyncThreshold
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
}

// Engine owns the attached documents and the highlight pool.
type Engine struct {
	log   *zap.Logger
	hl    highlight.Highlighter
	opts  Options
	rules markdown.Rules
	pool  *highlight.Pool

	mu   sync.Mutex
	docs map[int]*Document
}

// New returns an engine using hl for code blocks.  hl may be nil, in which
// case code blocks get their background only.
func New(ctx context.Context, hl highlight.Highlighter, opts Options) *Engine {
	opts.setDefaults()
	e := &Engine{
		log:   logger.L(ctx).Named("engine"),
		hl:    hl,
		opts:  opts,
		rules: markdown.Rules{HideSyntax: opts.HideSyntax},
		docs:  make(map[int]*Document),
	}
	if hl != nil {
		e.pool = highlight.NewPool(ctx, hl, opts.Workers, opts.QueueSize, e.deliver)
	}
	return e
}

func (e *Engine) deliver(res highlight.Result) {
	if e.Document(res.DocID) == nil {
		e.log.Debug("result for detached document", zap.Int("doc", res.DocID))
		return
	}
	if e.opts.OnResult != nil {
		e.opts.OnResult(res)
	}
}

// Attach returns the document for id, creating it if needed.
func (e *Engine) Attach(id int) *Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.docs[id]; ok {
		return d
	}
	d := newDocument(e, id)
	e.docs[id] = d
	e.log.Debug("attach", zap.Int("doc", id))
	return d
}

// Detach forgets id.  Its document stops producing styling and pending
// results for it are dropped.
func (e *Engine) Detach(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.docs[id]; ok {
		d.detached.Store(true)
		delete(e.docs, id)
		e.log.Debug("detach", zap.Int("doc", id))
	}
}

// Document returns the attached document for id, or nil.
func (e *Engine) Document(id int) *Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docs[id]
}

// Close waits for outstanding highlight jobs and stops the pool.
func (e *Engine) Close() {
	if e.pool != nil {
		e.pool.Close()
	}
}
