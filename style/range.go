package style

// Range is the half-open interval [Location, Location+Length) over buffer
// units.
type Range struct {
	Location int
	Length   int
}

// Span returns the range [start, end).  An inverted pair yields an empty
// range at start.
func Span(start, end int) Range {
	if end < start {
		end = start
	}
	return Range{Location: start, Length: end - start}
}

// End returns the exclusive upper bound of r.
func (r Range) End() int { return r.Location + r.Length }

// IsEmpty reports whether r covers no units.
func (r Range) IsEmpty() bool { return r.Length <= 0 }

// Contains reports whether pos lies inside r.
func (r Range) Contains(pos int) bool {
	return pos >= r.Location && pos < r.End()
}

// ContainsRange reports whether o lies entirely inside r.
func (r Range) ContainsRange(o Range) bool {
	return o.Location >= r.Location && o.End() <= r.End()
}

// Intersects reports whether r and o share at least one unit.
func (r Range) Intersects(o Range) bool {
	return r.Location < o.End() && o.Location < r.End()
}

// Intersection returns the overlap of r and o; empty when they are disjoint.
func (r Range) Intersection(o Range) Range {
	start := max(r.Location, o.Location)
	end := min(r.End(), o.End())
	if end <= start {
		return Range{Location: start}
	}
	return Span(start, end)
}

// Union returns the smallest range covering both r and o.
func (r Range) Union(o Range) Range {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	return Span(min(r.Location, o.Location), max(r.End(), o.End()))
}

// Clamp limits r to [0, n).  A range entirely out of bounds becomes empty.
func (r Range) Clamp(n int) Range {
	if n < 0 {
		n = 0
	}
	start := min(max(r.Location, 0), n)
	end := min(max(r.End(), start), n)
	return Span(start, end)
}

// Subtract returns the parts of r not covered by any range in cover.  cover
// must be sorted by Location.
func (r Range) Subtract(cover []Range) []Range {
	var out []Range
	pos := r.Location
	for _, c := range cover {
		if c.End() <= pos || c.IsEmpty() {
			continue
		}
		if c.Location >= r.End() {
			break
		}
		if c.Location > pos {
			out = append(out, Span(pos, c.Location))
		}
		pos = max(pos, c.End())
		if pos >= r.End() {
			return out
		}
	}
	if pos < r.End() {
		out = append(out, Span(pos, r.End()))
	}
	return out
}
