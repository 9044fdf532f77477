package markdown

import (
	"sort"

	"github.com/cptaffe/acme-mdstyle/style"
)

// Class is how a current block relates to the blocks known before an edit.
type Class int

const (
	Unchanged Class = iota
	New             // intersects no previous block
	Split           // one of several fragments of a single previous block
	Merged          // coalesces two or more previous blocks
	Expanded        // contains exactly one previous block and is longer
	Edited          // contains the edit point
)

var classNames = [...]string{"unchanged", "new", "split", "merged", "expanded", "edited"}

func (c Class) String() string {
	if c < 0 || int(c) >= len(classNames) {
		return "invalid"
	}
	return classNames[c]
}

// EditedBlock is the block containing the edit, with the lines the edit
// touched clipped to it.
type EditedBlock struct {
	Block     Block
	Paragraph style.Range
}

// Delta is the outcome of Diff.
type Delta struct {
	// Adjusted holds the previous blocks mapped through the edit.
	Adjusted []Block
	// Classes is parallel to the current blocks passed to Diff.
	Classes []Class
	// Added holds every New, Split, Merged or Expanded block; these are
	// highlighted in full.
	Added []Block
	// Edited is nil when no remaining block contains the edit point.
	Edited *EditedBlock
	// Demoted holds ranges that were code before the edit and are not now.
	Demoted []style.Range
}

// AdjustBlocks maps blocks through an edit, dropping those reduced to
// nothing.
func AdjustBlocks(blocks []Block, e Edit) []Block {
	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		r, ok := Adjust(b.Range, e)
		if !ok {
			continue
		}
		b.Range = r
		out = append(out, b)
	}
	return out
}

// Diff classifies the current blocks against the previous ones.  previous
// holds block ranges from before the edit; current is the freshly scanned
// set for text, the buffer after the edit.
//
// Precedence is New, Merged, Split, Expanded, Edited; every current block
// receives exactly one class.
func Diff(text []rune, previous []Block, e Edit, current []Block) Delta {
	adjusted := AdjustBlocks(previous, e)
	d := Delta{
		Adjusted: adjusted,
		Classes:  make([]Class, len(current)),
	}

	hits := make([][]int, len(current))
	owners := make([]int, len(adjusted))
	for i, c := range current {
		for j, p := range adjusted {
			if c.Intersects(p.Range) {
				hits[i] = append(hits[i], j)
				owners[j]++
			}
		}
	}

	for i, c := range current {
		switch {
		case len(hits[i]) == 0:
			d.Classes[i] = New
		case len(hits[i]) >= 2:
			d.Classes[i] = Merged
		case owners[hits[i][0]] >= 2:
			d.Classes[i] = Split
		default:
			p := adjusted[hits[i][0]]
			if c.ContainsRange(p.Range) && c.Length > p.Length {
				d.Classes[i] = Expanded
			}
		}
		if d.Classes[i] != Unchanged {
			d.Added = append(d.Added, c)
		}
	}

	for i, c := range current {
		if d.Classes[i] != Unchanged || !containsEditPoint(c.Range, e) {
			continue
		}
		d.Classes[i] = Edited
		para := EditScope(text, e).Intersection(c.Range)
		d.Edited = &EditedBlock{Block: c, Paragraph: para}
		break
	}

	cover := make([]style.Range, len(current))
	for i, c := range current {
		cover[i] = c.Range
	}
	sort.Slice(cover, func(i, j int) bool { return cover[i].Location < cover[j].Location })
	for _, p := range adjusted {
		d.Demoted = append(d.Demoted, p.Subtract(cover)...)
	}
	return d
}

// containsEditPoint reports whether r holds the edit location, or touches
// the edit's upper bound when the edit only inserted or only removed text
// at a block boundary.
func containsEditPoint(r style.Range, e Edit) bool {
	if r.Contains(e.Range.Location) {
		return true
	}
	if e.IsInsertion() && r.End() == e.Range.End() {
		return true
	}
	return e.Range.Length == 0 && e.Removed() > 0 && r.End() == e.Range.Location
}
