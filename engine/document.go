package engine

import (
	"slices"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cptaffe/acme-mdstyle/highlight"
	"github.com/cptaffe/acme-mdstyle/markdown"
	"github.com/cptaffe/acme-mdstyle/style"
)

// Buffer is a snapshot of a document's text.  The engine copies what it
// keeps and never writes to Text.
type Buffer struct {
	Text     []rune
	Revision uint64
}

// Update is the styling change produced by one edit.  Hosts remove every
// span in Clear first, then add Spans.
type Update struct {
	Clear    []style.Range
	Spans    []style.StyledSpan
	Revision uint64
}

// IsEmpty reports whether u changes nothing.
func (u Update) IsEmpty() bool { return len(u.Clear) == 0 && len(u.Spans) == 0 }

// Document is the engine state of one attached buffer.  Its methods must be
// called from a single goroutine.
type Document struct {
	id       int
	eng      *Engine
	log      *zap.Logger
	detached atomic.Bool

	blocks     []markdown.Block
	tracker    Tracker
	generation uint64
	text       []rune
	revision   uint64
	awaiting   []style.Range // code ranges with a highlight job outstanding
}

func newDocument(e *Engine, id int) *Document {
	return &Document{
		id:  id,
		eng: e,
		log: e.log.With(zap.Int("doc", id)),
	}
}

// ID returns the id the document was attached under.
func (d *Document) ID() int { return d.id }

// Blocks returns the current code blocks.
func (d *Document) Blocks() []markdown.Block { return slices.Clone(d.blocks) }

// Generation returns the edit generation async results are checked against.
func (d *Document) Generation() uint64 { return d.generation }

// Pending returns the number of code blocks awaiting async tokens.
func (d *Document) Pending() int { return len(d.awaiting) }

// Rescan styles the whole of buf from scratch.
func (d *Document) Rescan(buf Buffer) Update {
	if d.detached.Load() {
		return Update{Revision: buf.Revision}
	}
	d.generation++
	text := buf.Text
	d.blocks = markdown.Scan(text, nil)

	p := d.newPass(text, buf.Revision)
	p.full = true
	whole := style.Range{Location: 0, Length: len(text)}
	if !whole.IsEmpty() {
		p.u.Clear = append(p.u.Clear, whole)
	}
	p.restyle(whole)
	for _, b := range d.blocks {
		p.highlight(b, b.Range, b.Range)
	}
	d.finish(p, buf)
	return p.u
}

// OnEdit reconciles the document with buf, the buffer after e, and returns
// the styling to apply.
func (d *Document) OnEdit(buf Buffer, e markdown.Edit) Update {
	if d.detached.Load() {
		return Update{Revision: buf.Revision}
	}
	text := buf.Text
	removed, lastLoneTick := d.tracker.Record(d.text, e)
	if d.tracker.Unchanged(text) {
		d.log.Debug("content unchanged", zap.Uint64("rev", buf.Revision))
		return d.touch(buf, e)
	}

	ins := e.Range.Clamp(len(text))
	inserted := string(text[ins.Location:ins.End()])
	if reason := d.fullReason(text, e, inserted, lastLoneTick); reason != "" {
		d.log.Debug("full rescan", zap.String("reason", reason), zap.Uint64("rev", buf.Revision))
		return d.Rescan(buf)
	}

	d.generation++
	para := markdown.EditScope(text, e)
	previous := d.blocks
	current := d.reconcile(text, e, para)
	delta := markdown.Diff(text, previous, e, current)
	d.blocks = current

	narrow := e.Delta == 1 || e.Delta == -1
	d.log.Debug("partial",
		zap.Bool("narrow", narrow),
		zap.Int("added", len(delta.Added)),
		zap.Int("demoted", len(delta.Demoted)),
		zap.Bool("edited", delta.Edited != nil),
		zap.Uint64("rev", buf.Revision))

	p := d.newPass(text, buf.Revision)
	for _, r := range delta.Demoted {
		p.restyle(markdown.ParagraphRange(text, r))
	}
	for _, b := range delta.Added {
		p.highlight(b, b.Range, b.Range)
	}
	for i, b := range current {
		if delta.Classes[i] == markdown.Unchanged && !slices.ContainsFunc(delta.Adjusted, func(a markdown.Block) bool { return a.Range == b.Range }) {
			// Moved without the edit inside it.
			p.highlight(b, b.Range, b.Range)
		}
	}
	if eb := delta.Edited; eb != nil {
		if narrow {
			p.narrow(e, inserted, *eb)
		} else {
			p.highlight(eb.Block, eb.Block.Range, eb.Block.Range)
		}
	}
	if strings.ContainsRune(inserted, '`') || strings.ContainsRune(removed, '`') {
		para = markdown.BlankBlockRange(text, para)
	}
	p.restyle(para)
	p.carry(e, d.awaiting)
	d.finish(p, buf)
	return p.u
}

// touch handles an edit that left the text as it was last styled.  Nothing
// is rescanned, but an edit that replaced text with identical text has still
// moved the host's styles through it, so the lines it touched are styled
// again.
func (d *Document) touch(buf Buffer, e markdown.Edit) Update {
	d.snapshot(buf)
	if e.Range.Length == 0 && e.Removed() == 0 {
		return Update{Revision: buf.Revision}
	}
	p := d.newPass(buf.Text, buf.Revision)
	scope := markdown.EditScope(buf.Text, e)
	for _, b := range d.blocks {
		if b.Intersects(scope) {
			p.highlight(b, b.Range, b.Range)
		}
	}
	p.restyle(scope)
	for _, r := range p.awaiting {
		if !slices.Contains(d.awaiting, r) {
			d.awaiting = append(d.awaiting, r)
		}
	}
	return p.u
}

// fullReason returns why e needs a full rescan, or "".
func (d *Document) fullReason(text []rune, e markdown.Edit, inserted string, lastLoneTick bool) string {
	switch {
	case !d.tracker.Known():
		return "first edit"
	case Whole(e, len(text)):
		return "whole buffer"
	case inserted == "`" || inserted == "`\n":
		return "backtick"
	case lastLoneTick:
		return "backtick removed"
	case d.eng.opts.ForceRescan && strings.Contains(inserted, "```"):
		return "fence inserted"
	case fencesMoved(text, d.blocks, e):
		return "fence topology"
	}
	return ""
}

// fencesMoved reports whether the fenced blocks of text differ from the
// previous ones carried through e.  Text typed at the end of an unterminated
// fence that runs to the end of the buffer only lengthens it.
func fencesMoved(text []rune, previous []markdown.Block, e markdown.Edit) bool {
	var was []markdown.Block
	for _, b := range previous {
		if b.Fenced {
			was = append(was, b)
		}
	}
	was = markdown.AdjustBlocks(was, e)
	now := markdown.Fences(text)
	if len(was) != len(now) {
		return true
	}
	for i := range now {
		if was[i].Range == now[i].Range {
			continue
		}
		last := i == len(now)-1
		if last && now[i].End() == len(text) && e.Range.End() == len(text) &&
			was[i].Location == now[i].Location && was[i].End() == e.Range.Location {
			continue
		}
		return true
	}
	return false
}

// reconcile returns the block set for text: fences from the whole buffer,
// indented blocks rescanned in the window around para, and the previous
// indented blocks elsewhere carried through e.
func (d *Document) reconcile(text []rune, e markdown.Edit, para style.Range) []markdown.Block {
	scanned, window := markdown.ScanRegion(text, &para)
	out := markdown.Fences(text)
	for _, b := range scanned {
		if !b.Fenced {
			out = append(out, b)
		}
	}
	for _, b := range markdown.AdjustBlocks(d.blocks, e) {
		if !b.Fenced && !b.Intersects(window) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b markdown.Block) int { return a.Location - b.Location })
	return out
}

// Apply merges an async highlight result.  Results from an older generation,
// or whose code no longer matches the buffer, are dropped.
func (d *Document) Apply(res highlight.Result) Update {
	if d.detached.Load() || res.DocID != d.id {
		return Update{}
	}
	if res.Generation != d.generation {
		d.log.Debug("stale result", zap.Uint64("gen", res.Generation), zap.Uint64("want", d.generation))
		return Update{}
	}
	r := res.Range
	if r.Location < 0 || r.End() > len(d.text) || string(d.text[r.Location:r.End()]) != res.Text {
		d.log.Debug("result text moved", zap.Int("q0", r.Location), zap.Int("q1", r.End()))
		return Update{}
	}
	d.awaiting = slices.DeleteFunc(d.awaiting, func(a style.Range) bool { return a == r })
	if res.Err != nil {
		return Update{}
	}
	return Update{Spans: tokenSpans(r.Location, res.Tokens), Revision: d.revision}
}

func (d *Document) snapshot(buf Buffer) {
	d.text = slices.Clone(buf.Text)
	d.revision = buf.Revision
}

func (d *Document) finish(p *pass, buf Buffer) {
	d.awaiting = p.awaiting
	d.snapshot(buf)
	d.tracker.Applied(buf.Text)
}

// pass accumulates the update for one edit.
type pass struct {
	d      *Document
	text   []rune
	blocks []markdown.Block
	cover  []style.Range
	full   bool // the update already clears the whole buffer

	u        Update
	coloured []style.Range // blocks highlighted in this pass
	awaiting []style.Range
}

func (d *Document) newPass(text []rune, rev uint64) *pass {
	cover := make([]style.Range, len(d.blocks))
	for i, b := range d.blocks {
		cover[i] = b.Range
	}
	return &pass{d: d, text: text, blocks: d.blocks, cover: cover, u: Update{Revision: rev}}
}

func (p *pass) clear(r style.Range) {
	if !p.full && !r.IsEmpty() {
		p.u.Clear = append(p.u.Clear, r)
	}
}

// restyle applies the inline rules to the parts of scope outside code.
func (p *pass) restyle(scope style.Range) {
	scope = scope.Clamp(len(p.text))
	if scope.IsEmpty() {
		return
	}
	for _, gap := range scope.Subtract(p.cover) {
		p.clear(gap)
		p.u.Spans = append(p.u.Spans, p.d.eng.rules.Apply(p.text, gap)...)
	}
}

// highlight clears clr and colours the part sub of block b.
func (p *pass) highlight(b markdown.Block, sub, clr style.Range) {
	p.clear(clr)
	p.coloured = append(p.coloured, b.Range)
	lang := p.language(b)
	p.u.Spans = append(p.u.Spans, style.StyledSpan{Range: sub, Kind: style.KindCodeBlock, Language: lang})
	p.tokens(b, sub, lang)
}

func (p *pass) language(b markdown.Block) string {
	if !b.Fenced || b.Language == "" || p.d.eng.hl == nil {
		return ""
	}
	return p.d.eng.hl.Resolve(b.Language)
}

// tokens adds the highlighter's tokens for the code of b inside sub, or
// queues them when the code is long.
func (p *pass) tokens(b markdown.Block, sub style.Range, lang string) {
	if lang == "" {
		return
	}
	code := b.Code(p.text).Intersection(sub)
	if code.IsEmpty() {
		return
	}
	eng := p.d.eng
	src := string(p.text[code.Location:code.End()])
	if code.Length > eng.opts.AsyncThreshold && eng.pool != nil {
		p.awaiting = append(p.awaiting, code)
		job := highlight.Job{
			DocID:      p.d.id,
			Generation: p.d.generation,
			Range:      code,
			Text:       src,
			Language:   lang,
		}
		if err := eng.pool.Submit(job); err != nil {
			p.d.log.Debug("highlight not queued", zap.String("lang", lang), zap.Error(err))
		}
		return
	}
	toks, err := eng.hl.Highlight(src, lang)
	if err != nil {
		p.d.log.Warn("highlight", zap.String("lang", lang), zap.Error(err))
		return
	}
	p.u.Spans = append(p.u.Spans, tokenSpans(code.Location, toks)...)
}

// narrow colours the block holding a single-character edit.
func (p *pass) narrow(e markdown.Edit, inserted string, eb markdown.EditedBlock) {
	b := eb.Block
	switch {
	case b.Fenced:
		clr := b.Range
		var next style.Range
		if inserted == "\n" && b.Length > 0 {
			last := markdown.ParagraphRange(p.text, style.Range{Location: b.End() - 1})
			if e.Range.End() >= last.Location {
				next = markdown.ParagraphRange(p.text, style.Range{Location: b.End()})
				if slices.ContainsFunc(p.cover, next.Intersects) {
					// The next line is code of its own.
					next = style.Range{}
				} else {
					clr = clr.Union(next)
				}
			}
		}
		p.highlight(b, b.Range, clr)
		p.restyle(next)
	case b.Length < NarrowCodeLimit:
		p.highlight(b, b.Range, b.Range)
	default:
		p.highlight(b, eb.Paragraph, eb.Paragraph)
	}
}

// carry resubmits code still waiting on a result from before e, unless this
// pass already coloured its block.
func (p *pass) carry(e markdown.Edit, awaiting []style.Range) {
	for _, r := range awaiting {
		adj, ok := markdown.Adjust(r, e)
		if !ok || slices.ContainsFunc(p.coloured, func(c style.Range) bool { return c.ContainsRange(adj) }) {
			continue
		}
		for _, b := range p.blocks {
			if b.Fenced && b.Code(p.text) == adj {
				p.coloured = append(p.coloured, b.Range)
				p.tokens(b, b.Range, p.language(b))
				break
			}
		}
	}
}

func tokenSpans(base int, toks []highlight.Token) []style.StyledSpan {
	out := make([]style.StyledSpan, 0, len(toks))
	for _, t := range toks {
		r := t.Range
		r.Location += base
		out = append(out, style.StyledSpan{Range: r, Kind: style.KindCodeToken, Token: t.Class})
	}
	return out
}
