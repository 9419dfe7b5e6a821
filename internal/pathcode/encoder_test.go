package pathcode

import (
	"fmt"
	"testing"

	"github.com/dgallion1/docstruct/internal/docmodel"
)

func node(text string, height float64) docmodel.RawNode {
	return docmodel.RawNode{
		Page:       1,
		Text:       text,
		Height:     height,
		Confidence: 1.0,
		Hint:       docmodel.HintText,
	}
}

func TestAnnotate_DecimalNumbering(t *testing.T) {
	e := New(DefaultRules())
	nodes := []docmodel.RawNode{
		node("1. Overview", 14),
		node("This section describes the general rules.", 10),
		node("1.2 Scoring", 12),
		node("Points are awarded per target.", 10),
		node("2. Rules", 14),
	}
	out := e.Annotate(nodes)

	want := []string{"001", "001.blk.001", "001.002", "001.002.blk.001", "002"}
	for i, a := range out {
		if a.Path != want[i] {
			t.Errorf("node %d: path %q, want %q", i, a.Path, want[i])
		}
	}
	for _, i := range []int{0, 2, 4} {
		if !out[i].IsHeading {
			t.Errorf("node %d: expected heading flag", i)
		}
	}
	for _, i := range []int{1, 3} {
		if out[i].IsHeading {
			t.Errorf("node %d: unexpected heading flag", i)
		}
	}
}

func TestAnnotate_DepthDecreaseTruncatesStack(t *testing.T) {
	e := New(DefaultRules())
	out := e.Annotate([]docmodel.RawNode{
		node("1.2.3 Deep section", 12),
		node("body text under the deep section", 10),
		node("2. Back to top", 12),
		node("body text at the top level", 10),
	})

	if out[0].Path != "001.002.003" {
		t.Errorf("deep path: got %q", out[0].Path)
	}
	if out[1].Path != "001.002.003.blk.001" {
		t.Errorf("deep block: got %q", out[1].Path)
	}
	if out[2].Path != "002" {
		t.Errorf("truncated path: got %q", out[2].Path)
	}
	if out[3].Path != "002.blk.001" {
		t.Errorf("block after truncation: got %q", out[3].Path)
	}
}

func TestAnnotate_NoNumberingDegeneratesToAutoBlocks(t *testing.T) {
	e := New(DefaultRules())
	var nodes []docmodel.RawNode
	for i := 0; i < 5; i++ {
		nodes = append(nodes, node(fmt.Sprintf("plain prose line %d with no structure at all", i), 10))
	}
	out := e.Annotate(nodes)

	for i, a := range out {
		want := fmt.Sprintf("blk.%03d", i+1)
		if a.Path != want {
			t.Errorf("node %d: path %q, want %q", i, a.Path, want)
		}
		if a.IsHeading {
			t.Errorf("node %d: unexpected heading flag", i)
		}
		if a.ParentPath != "" {
			t.Errorf("node %d: parent %q, want empty", i, a.ParentPath)
		}
	}
}

func TestAnnotate_AppendixBand(t *testing.T) {
	e := New(DefaultRules())
	out := e.Annotate([]docmodel.RawNode{
		node("Appendix A Penalty Tables", 14),
		node("Appendix B Field Layout", 14),
		node("Annex 3", 14),
	})

	want := []string{"901", "902", "903"}
	for i, a := range out {
		if a.Path != want[i] {
			t.Errorf("appendix %d: path %q, want %q", i, a.Path, want[i])
		}
		if !a.IsHeading {
			t.Errorf("appendix %d: expected heading flag", i)
		}
	}
}

func TestAnnotate_CaptionMarkerPaths(t *testing.T) {
	e := New(DefaultRules())
	out := e.Annotate([]docmodel.RawNode{
		node("2. Field", 14),
		node("Table 3 Penalty summary", 10),
		node("Figure 2.1 Arena layout", 10),
	})

	if out[1].Path != "002.tbl.003" {
		t.Errorf("table caption: got %q", out[1].Path)
	}
	if out[1].IsHeading {
		t.Errorf("caption should not carry the heading flag")
	}
	if out[2].Path != "002.fig.002.001" {
		t.Errorf("figure caption: got %q", out[2].Path)
	}
	if got := e.ParentPath(out[1].Path); got != "002" {
		t.Errorf("caption parent: got %q, want %q", got, "002")
	}
}

func TestAnnotate_ChapterAndSectionMarkers(t *testing.T) {
	e := New(DefaultRules())
	out := e.Annotate([]docmodel.RawNode{
		node("Chapter 2 Robot Requirements", 16),
		node("Section 3 Weight Limits", 13),
		node("some body text about weight", 10),
	})

	if out[0].Path != "002" {
		t.Errorf("chapter: got %q", out[0].Path)
	}
	if out[1].Path != "002.003" {
		t.Errorf("section: got %q", out[1].Path)
	}
	if out[2].Path != "002.003.blk.001" {
		t.Errorf("block: got %q", out[2].Path)
	}
}

func TestAnnotate_PathUniqueness(t *testing.T) {
	e := New(DefaultRules())
	out := e.Annotate([]docmodel.RawNode{
		node("1. Overview", 14),
		node("1. Overview", 14), // duplicated numbering in a malformed scan
		node("prose", 10),
		node("more prose", 10),
	})

	seen := make(map[string]bool)
	for i, a := range out {
		if seen[a.Path] {
			t.Errorf("node %d: duplicate path %q", i, a.Path)
		}
		seen[a.Path] = true
	}
}

func TestAnnotate_ShortLineHeightJumpCue(t *testing.T) {
	e := New(DefaultRules())
	out := e.Annotate([]docmodel.RawNode{
		node("regular body line one describing rules at length", 10),
		node("regular body line two describing rules at length", 10),
		node("Referee Signals", 16), // short + 1.6x avg height
	})

	if !out[2].IsHeading {
		t.Errorf("short line with height jump should be a heading candidate")
	}
	if out[0].IsHeading || out[1].IsHeading {
		t.Errorf("body lines should not be heading candidates")
	}
}

func TestAnnotate_EmptyInput(t *testing.T) {
	e := New(DefaultRules())
	if out := e.Annotate(nil); len(out) != 0 {
		t.Fatalf("expected no output for empty input, got %d", len(out))
	}
}
