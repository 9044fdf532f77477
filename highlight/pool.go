package highlight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cptaffe/acme-mdstyle/logger"
	"github.com/cptaffe/acme-mdstyle/style"
)

// ErrQueueFull is returned by Submit when no worker can take the job.
var ErrQueueFull = errors.New("highlight: queue full")

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("highlight: pool closed")

// Job is a block of code to highlight off the owner's goroutine.  Text is an
// immutable copy of the code at Range when the job was made.
type Job struct {
	DocID      int
	Generation uint64
	Range      style.Range
	Text       string
	Language   string
}

// Result carries the tokens for a Job.  Token ranges are relative to
// Job.Range.Location.
type Result struct {
	Job
	Tokens []Token
	Err    error
}

// Pool runs highlight jobs on a fixed set of workers and hands each result
// to deliver, on the worker's goroutine.
type Pool struct {
	hl      Highlighter
	deliver func(Result)
	log     *zap.Logger

	mu     sync.Mutex // guards queue against Submit after Close
	queue  chan Job
	closed bool
	wg     sync.WaitGroup

	dropped atomic.Uint64
}

// NewPool starts workers goroutines with room for queueSize pending jobs.
func NewPool(ctx context.Context, hl Highlighter, workers, queueSize int, deliver func(Result)) *Pool {
	p := &Pool{
		hl:      hl,
		deliver: deliver,
		log:     logger.L(ctx).Named("highlight"),
		queue:   make(chan Job, max(queueSize, 1)),
	}
	for n := max(workers, 1); n > 0; n-- {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit queues j without blocking.
func (p *Pool) Submit(j Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- j:
		return nil
	default:
		p.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped returns the number of jobs refused because the queue was full.
func (p *Pool) Dropped() uint64 { return p.dropped.Load() }

// Close stops accepting jobs and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.queue {
		p.run(j)
	}
}

func (p *Pool) run(j Job) {
	res := Result{Job: j}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("highlighter panic", zap.Int("doc", j.DocID), zap.String("lang", j.Language), zap.Any("panic", r))
		}
	}()
	res.Tokens, res.Err = p.hl.Highlight(j.Text, j.Language)
	if res.Err != nil {
		p.log.Debug("highlight failed", zap.Int("doc", j.DocID), zap.String("lang", j.Language), zap.Error(res.Err))
	}
	if p.deliver != nil {
		p.deliver(res)
	}
}
