package server

import (
	"sort"

	"github.com/cptaffe/acme-mdstyle/style"
)

// compose flattens the span store into a sorted, non-overlapping list of
// style runs.  Where spans overlap, the one with the higher Priority wins;
// ties go to the span added last.  Spans whose palette name has no entry in
// palette are skipped so that they stay transparent instead of hiding a
// lower-priority span beneath them.
func compose(palette []style.PaletteEntry, spans []style.StyledSpan) []style.StyleRun {
	known := make(map[string]bool, len(palette))
	for _, e := range palette {
		known[e.Name] = true
	}

	type event struct {
		pos   int
		span  int
		isEnd bool
	}
	var events []event
	names := make([]string, len(spans))
	for i, s := range spans {
		if s.Range.IsEmpty() {
			continue
		}
		name := s.PaletteName()
		if name == "" || !known[name] {
			continue
		}
		names[i] = name
		events = append(events, event{s.Range.Location, i, false})
		events = append(events, event{s.Range.End(), i, true})
	}
	if len(events) == 0 {
		return nil
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].pos != events[j].pos {
			return events[i].pos < events[j].pos
		}
		if events[i].isEnd != events[j].isEnd {
			return events[i].isEnd
		}
		return events[i].span < events[j].span
	})

	active := make(map[int]bool)
	best := func() string {
		bestSpan, bestPrio := -1, -1
		for i := range active {
			p := spans[i].Priority()
			if p > bestPrio || (p == bestPrio && i > bestSpan) {
				bestSpan, bestPrio = i, p
			}
		}
		if bestSpan < 0 {
			return ""
		}
		return names[bestSpan]
	}

	var result []style.StyleRun
	curName, curPos := "", 0
	for i := 0; i < len(events); {
		pos := events[i].pos
		if pos > curPos && curName != "" {
			if n := len(result); n > 0 && result[n-1].Name == curName && result[n-1].End == curPos {
				result[n-1].End = pos
			} else {
				result = append(result, style.StyleRun{Name: curName, Start: curPos, End: pos})
			}
		}
		for i < len(events) && events[i].pos == pos {
			ev := events[i]
			if ev.isEnd {
				delete(active, ev.span)
			} else {
				active[ev.span] = true
			}
			i++
		}
		curPos = pos
		curName = best()
	}
	return result
}
