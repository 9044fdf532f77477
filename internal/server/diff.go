package server

import (
	"sort"

	"github.com/cptaffe/acme-mdstyle/markdown"
	"github.com/cptaffe/acme-mdstyle/style"
)

// adjustSpans carries the span store through an edit.  Text inserted
// strictly inside a span extends it; insertions at a boundary fall into the
// right neighbour.  Spans left empty are dropped.
func adjustSpans(spans []style.StyledSpan, e markdown.Edit) []style.StyledSpan {
	out := spans[:0]
	for _, s := range spans {
		r, ok := markdown.Adjust(s.Range, e)
		if !ok {
			continue
		}
		s.Range = r
		out = append(out, s)
	}
	return out
}

// adjustRuns is adjustSpans for the last runs written to the compositor,
// which shifts its copy of the layer the same way.
func adjustRuns(runs []style.StyleRun, e markdown.Edit) []style.StyleRun {
	out := runs[:0]
	for _, r := range runs {
		adj, ok := markdown.Adjust(style.Span(r.Start, r.End), e)
		if !ok {
			continue
		}
		out = append(out, style.StyleRun{Name: r.Name, Start: adj.Location, End: adj.End()})
	}
	return out
}

// clearSpans removes everything inside clr from the store, trimming spans
// that straddle a cleared range.
func clearSpans(spans []style.StyledSpan, clr []style.Range) []style.StyledSpan {
	if len(clr) == 0 {
		return spans
	}
	clr = append([]style.Range(nil), clr...)
	sort.Slice(clr, func(i, j int) bool { return clr[i].Location < clr[j].Location })

	var out []style.StyledSpan
	for _, s := range spans {
		for _, r := range s.Range.Subtract(clr) {
			s.Range = r
			out = append(out, s)
		}
	}
	return out
}

// diffRuns finds the minimal dirty interval between two sorted,
// non-overlapping run slices.
func diffRuns(old, new []style.StyleRun) (q0, q1 int, changed bool) {
	i, j := 0, 0
	for i < len(old) && j < len(new) && old[i] == new[j] {
		i++
		j++
	}
	if i == len(old) && j == len(new) {
		return 0, 0, false
	}

	ei, ej := len(old)-1, len(new)-1
	for ei >= i && ej >= j && old[ei] == new[ej] {
		ei--
		ej--
	}

	const maxInt = int(^uint(0) >> 1)
	q0 = maxInt
	for _, r := range old[i : ei+1] {
		q0 = min(q0, r.Start)
		q1 = max(q1, r.End)
	}
	for _, r := range new[j : ej+1] {
		q0 = min(q0, r.Start)
		q1 = max(q1, r.End)
	}
	if q0 == maxInt || q0 >= q1 {
		return 0, 0, false
	}
	return q0, q1, true
}
