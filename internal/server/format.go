package server

import "github.com/cptaffe/acme-mdstyle/style"

// formatAt returns the wire form of the runs overlapping [q0, q1), clipped
// to it, with offsets relative to q0.  palette may be nil when the layer
// already holds it.
func formatAt(palette []style.PaletteEntry, runs []style.StyleRun, q0, q1 int) string {
	out := make([]style.StyleRun, 0, len(runs))
	for _, r := range runs {
		if r.End <= q0 || r.Start >= q1 {
			continue
		}
		start := max(r.Start, q0)
		end := min(r.End, q1)
		out = append(out, style.StyleRun{Name: r.Name, Start: start - q0, End: end - q0})
	}
	return style.Format(palette, out)
}
