package server

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cptaffe/acme-mdstyle/markdown"
	"github.com/cptaffe/acme-mdstyle/style"
)

func span(loc, n int, kind style.Kind) style.StyledSpan {
	return style.StyledSpan{Range: style.Range{Location: loc, Length: n}, Kind: kind}
}

func run(name string, start, end int) style.StyleRun {
	return style.StyleRun{Name: name, Start: start, End: end}
}

func TestCompose(t *testing.T) {
	header := span(0, 10, style.KindHeader)
	hidden := span(0, 1, style.KindCodeBlock)
	hidden.Hidden = true

	tests := []struct {
		name    string
		palette []style.PaletteEntry
		spans   []style.StyledSpan
		want    []style.StyleRun
	}{
		{
			name:  "higher priority occludes",
			spans: []style.StyledSpan{header, span(2, 4, style.KindStrong)},
			want:  []style.StyleRun{run("md.header", 0, 2), run("md.strong", 2, 6), run("md.header", 6, 10)},
		},
		{
			name:    "unknown names are transparent",
			palette: []style.PaletteEntry{{Name: "md.header"}},
			spans:   []style.StyledSpan{header, span(2, 4, style.KindStrong)},
			want:    []style.StyleRun{run("md.header", 0, 10)},
		},
		{
			name:  "hidden wins",
			spans: []style.StyledSpan{span(0, 5, style.KindCodeBlock), hidden},
			want:  []style.StyleRun{run(style.HiddenName, 0, 1), run("md.codeblock", 1, 5)},
		},
		{
			name:  "adjacent runs of one name merge",
			spans: []style.StyledSpan{span(0, 2, style.KindEmphasis), span(2, 2, style.KindEmphasis)},
			want:  []style.StyleRun{run("md.emphasis", 0, 4)},
		},
		{
			name:  "token over block",
			spans: []style.StyledSpan{span(0, 8, style.KindCodeBlock), {Range: style.Range{Location: 2, Length: 3}, Kind: style.KindCodeToken, Token: "keyword"}},
			want:  []style.StyleRun{run("md.codeblock", 0, 2), run("md.token.keyword", 2, 5), run("md.codeblock", 5, 8)},
		},
		{
			name: "empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			palette := tt.palette
			if palette == nil {
				palette = style.DefaultPalette()
			}
			got := compose(palette, tt.spans)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("compose mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiffRuns(t *testing.T) {
	old := []style.StyleRun{run("a", 0, 2), run("b", 5, 8), run("c", 10, 12)}
	tests := []struct {
		name    string
		new     []style.StyleRun
		q0, q1  int
		changed bool
	}{
		{"same", old, 0, 0, false},
		{"middle moved", []style.StyleRun{run("a", 0, 2), run("b", 6, 9), run("c", 10, 12)}, 5, 9, true},
		{"tail removed", []style.StyleRun{run("a", 0, 2), run("b", 5, 8)}, 10, 12, true},
		{"all gone", nil, 0, 12, true},
	}
	for _, tt := range tests {
		q0, q1, changed := diffRuns(old, tt.new)
		if q0 != tt.q0 || q1 != tt.q1 || changed != tt.changed {
			t.Errorf("%s: diffRuns = %d, %d, %v; want %d, %d, %v", tt.name, q0, q1, changed, tt.q0, tt.q1, tt.changed)
		}
	}
}

func TestClearSpans(t *testing.T) {
	spans := []style.StyledSpan{span(0, 10, style.KindQuote), span(20, 2, style.KindStrong)}
	got := clearSpans(spans, []style.Range{{Location: 18, Length: 10}, {Location: 3, Length: 2}})
	want := []style.StyledSpan{span(0, 3, style.KindQuote), span(5, 5, style.KindQuote)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("clearSpans mismatch (-want +got):\n%s", diff)
	}
}

func TestAdjustSpans(t *testing.T) {
	spans := []style.StyledSpan{span(0, 4, style.KindHeader), span(6, 2, style.KindStrong), span(10, 1, style.KindLink)}
	got := adjustSpans(spans, markdown.Delete(5, 4))
	want := []style.StyledSpan{span(0, 4, style.KindHeader), span(6, 1, style.KindLink)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("adjustSpans mismatch (-want +got):\n%s", diff)
	}

	runs := adjustRuns([]style.StyleRun{run("a", 2, 4)}, markdown.Insert(3, 2))
	if diff := cmp.Diff([]style.StyleRun{run("a", 2, 6)}, runs); diff != "" {
		t.Errorf("adjustRuns mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatAt(t *testing.T) {
	runs := []style.StyleRun{run("a", 0, 4), run("b", 6, 9), run("c", 20, 22)}
	got := formatAt(nil, runs, 2, 8)
	want := "0 2 a\n4 2 b\n"
	if got != want {
		t.Errorf("formatAt = %q, want %q", got, want)
	}
}
