package markdown

import "github.com/cptaffe/acme-mdstyle/style"

// Edit describes one change to a buffer.  Range covers the replacement text
// in the new buffer; Delta is the change in buffer length.
type Edit struct {
	Range style.Range
	Delta int
}

// Insert is the edit for n units inserted at pos.
func Insert(pos, n int) Edit {
	return Edit{Range: style.Range{Location: pos, Length: n}, Delta: n}
}

// Delete is the edit for n units removed at pos.
func Delete(pos, n int) Edit {
	return Edit{Range: style.Range{Location: pos}, Delta: -n}
}

// Replace is the edit for oldLen units at pos replaced by newLen units.
func Replace(pos, oldLen, newLen int) Edit {
	return Edit{Range: style.Range{Location: pos, Length: newLen}, Delta: newLen - oldLen}
}

// Removed returns the number of units the edit removed from the old buffer.
func (e Edit) Removed() int {
	return max(e.Range.Length-e.Delta, 0)
}

// IsInsertion reports whether the edit only added text.
func (e Edit) IsInsertion() bool {
	return e.Removed() == 0 && e.Range.Length > 0
}

// Adjust maps r from the old buffer to the new one.  The removed span is
// cut out first, then the inserted text is added: ranges that start at or
// after the edit shift, ranges that end at or before it are unchanged, and
// ranges containing it grow or shrink.  ok is false when nothing of r is
// left.
func Adjust(r style.Range, e Edit) (style.Range, bool) {
	q0 := e.Range.Location
	q1 := q0 + e.Removed()
	start, end := r.Location, r.End()

	// Delete [q0, q1).
	n := q1 - q0
	switch {
	case end <= q0:
	case start >= q1:
		start, end = start-n, end-n
	case start < q0 && end > q1:
		end -= n
	case start < q0:
		end = q0
	case end > q1:
		start, end = q0, end-n
	default:
		return style.Range{}, false
	}

	// Insert Range.Length units at q0.
	m := e.Range.Length
	switch {
	case q0 <= start:
		start, end = start+m, end+m
	case q0 < end:
		end += m
	}
	if end <= start {
		return style.Range{}, false
	}
	return style.Span(start, end), true
}
