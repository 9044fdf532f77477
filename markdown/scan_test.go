package markdown

import (
	"testing"

	"github.com/cptaffe/acme-mdstyle/style"
	"github.com/google/go-cmp/cmp"
)

func blk(loc, n int) Block { return Block{Range: style.Range{Location: loc, Length: n}} }

func fence(loc, n int, lang string) Block {
	return Block{Range: style.Range{Location: loc, Length: n}, Fenced: true, Language: lang}
}

func TestScan(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Block
	}{
		{"plain then tab line", "a\n\tb\n", []Block{blk(2, 3)}},
		{"fenced with language", "```python\nx = 1\n```\n", []Block{fence(0, 20, "python")}},
		{"fence language is first field", "``` go extra\nx\n```\n", []Block{fence(0, 19, "go")}},
		{"unterminated fence", "text\n```go\nfoo\n", []Block{fence(5, 10, "go")}},
		{"closing fence with trailing space", "```\nx\n```  \ny\n", []Block{fence(0, 12, "")}},
		{"four spaces", "para\n    code\n", []Block{blk(5, 9)}},
		{"dash list continuation", "- item\n    cont\n", nil},
		{"spaced dash list continuation", " - item\n\tcont\n", nil},
		{"ordered list continuation", "1. item\n\tcont\n", nil},
		{"star list continuation", "* item\n\tcont\n", nil},
		{"bridged by whitespace line", "\tA\n  \n\tB\n", []Block{blk(0, 9)}},
		{"separated by empty line", "\tA\n\n\tB\n", []Block{blk(0, 3), blk(4, 3)}},
		{"trailing whitespace line not included", "\tA\n  \nx\n", []Block{blk(0, 3)}},
		{"indented inside fence", "```\n    x\n```\n", []Block{fence(0, 14, "")}},
		{"no trailing newline", "x\n\tcode", []Block{blk(2, 5)}},
		{"fence then indented", "```\na\n```\n\n\tb\n", []Block{fence(0, 10, ""), blk(11, 3)}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Scan([]rune(tt.text), nil)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Scan(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestScanRegionFindsEnclosingFence(t *testing.T) {
	text := []rune("intro\n```\na\nb\nc\n```\noutro\n")
	region := style.Range{Location: 12, Length: 1} // "b"
	got := Scan(text, &region)
	want := []Block{fence(6, 14, "")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("region scan mismatch (-want +got):\n%s", diff)
	}
}

// Every block a windowed scan reports must be one the full scan reports.
func TestScanRegionAgreesWithFullScan(t *testing.T) {
	docs := []string{
		"# Title\n\n\tA\n\tB\n\ntext\n    C\n- list\n    cont\n```go\nx\n```\n",
		"\tA\n  \n\tB\n\n\tC\n",
		"1. one\n\tcont\n\n\tcode\n",
	}
	for _, doc := range docs {
		text := []rune(doc)
		full := Scan(text, nil)
		for pos := 0; pos <= len(text); pos++ {
			region := style.Range{Location: pos}
			for _, b := range Scan(text, &region) {
				found := false
				for _, f := range full {
					if f == b {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("%q at %d: windowed block %+v not in full scan %+v", doc, pos, b, full)
				}
			}
		}
	}
}

func TestBlockCode(t *testing.T) {
	tests := []struct {
		text  string
		block Block
		want  style.Range
	}{
		{"```go\nfoo\n```\n", fence(0, 14, "go"), style.Range{Location: 6, Length: 4}},
		{"```go\nfoo\n", fence(0, 10, "go"), style.Range{Location: 6, Length: 4}},
		{"```\n", fence(0, 4, ""), style.Range{Location: 4}},
		{"\tx\n", blk(0, 3), style.Range{Location: 0, Length: 3}},
	}
	for _, tt := range tests {
		if got := tt.block.Code([]rune(tt.text)); got != tt.want {
			t.Errorf("Code(%q) = %+v, want %+v", tt.text, got, tt.want)
		}
	}
}

func TestParagraphRange(t *testing.T) {
	text := []rune("one\ntwo\nthree")
	tests := []struct {
		r    style.Range
		want style.Range
	}{
		{style.Range{Location: 0}, style.Range{Location: 0, Length: 4}},
		{style.Range{Location: 5}, style.Range{Location: 4, Length: 4}},
		{style.Range{Location: 2, Length: 4}, style.Range{Location: 0, Length: 8}},
		{style.Range{Location: 13}, style.Range{Location: 8, Length: 5}},
		{style.Range{Location: 40, Length: 3}, style.Range{Location: 8, Length: 5}},
	}
	for _, tt := range tests {
		if got := ParagraphRange(text, tt.r); got != tt.want {
			t.Errorf("ParagraphRange(%+v) = %+v, want %+v", tt.r, got, tt.want)
		}
	}
	if got := ParagraphRange([]rune("a\n"), style.Range{Location: 2}); got != (style.Range{Location: 2}) {
		t.Errorf("paragraph at end after newline = %+v, want empty", got)
	}
}

func TestEditScope(t *testing.T) {
	text := []rune("ab\ncd\nef\n")
	tests := []struct {
		name string
		e    Edit
		want style.Range
	}{
		{"newline pushes the tail down", Insert(2, 1), style.Range{Location: 0, Length: 6}},
		{"insert inside a line", Insert(0, 1), style.Range{Location: 0, Length: 3}},
		{"lines joined", Delete(3, 2), style.Range{Location: 3, Length: 3}},
		{"appended lines", Insert(6, 3), style.Range{Location: 6, Length: 3}},
		{"deleted at the end", Delete(9, 1), style.Range{Location: 9}},
	}
	for _, tt := range tests {
		if got := EditScope(text, tt.e); got != tt.want {
			t.Errorf("%s: EditScope(%+v) = %+v, want %+v", tt.name, tt.e, got, tt.want)
		}
	}
}

func TestBlankBlockRange(t *testing.T) {
	text := []rune("a\n\nb `x\ny` c\nd\n\ne\n")
	got := BlankBlockRange(text, style.Range{Location: 8})
	want := style.Range{Location: 3, Length: 12}
	if got != want {
		t.Errorf("BlankBlockRange = %+v, want %+v", got, want)
	}
}

func TestWindow(t *testing.T) {
	text := []rune("top\n- item\n\tA\n  \n\tB\nend\nafter\n")
	// Editing "B" must widen to the list marker above the run and the line
	// after it.
	got := Window(text, style.Range{Location: 18})
	want := style.Range{Location: 4, Length: 20}
	if got != want {
		t.Errorf("Window = %+v (%q), want %+v (%q)", got, string(text[got.Location:got.End()]), want, string(text[want.Location:want.End()]))
	}
}
