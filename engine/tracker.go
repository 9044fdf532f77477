package engine

import (
	"hash/fnv"

	"github.com/cptaffe/acme-mdstyle/markdown"
)

// Tracker remembers what the previous edit did and what the buffer looked
// like when styling was last applied.
type Tracker struct {
	hash     uint64
	known    bool
	removed  string
	loneTick bool // previous edit removed a lone backtick
}

// Hash returns the FNV-1a 64 hash of text.
func Hash(text []rune) uint64 {
	h := fnv.New64a()
	h.Write([]byte(string(text)))
	return h.Sum64()
}

// Record notes e, applied to prev, and returns the text it removed together
// with whether the edit before it removed a lone backtick.
func (t *Tracker) Record(prev []rune, e markdown.Edit) (removed string, lastLoneTick bool) {
	q0 := min(max(e.Range.Location, 0), len(prev))
	q1 := min(q0+e.Removed(), len(prev))
	removed = string(prev[q0:q1])
	lastLoneTick = t.loneTick
	t.removed = removed
	t.loneTick = removed == "`"
	return removed, lastLoneTick
}

// Removed returns the text removed by the last recorded edit.
func (t *Tracker) Removed() string { return t.removed }

// Applied records text as the last styled content.
func (t *Tracker) Applied(text []rune) {
	t.hash = Hash(text)
	t.known = true
}

// Known reports whether any content has been applied yet.
func (t *Tracker) Known() bool { return t.known }

// Unchanged reports whether text hashes equal to the last applied content.
func (t *Tracker) Unchanged(text []rune) bool {
	return t.known && Hash(text) == t.hash
}

// Whole reports whether e replaced the entire buffer of n units.
func Whole(e markdown.Edit, n int) bool {
	return e.Range.Location <= 0 && e.Range.Length >= n
}
