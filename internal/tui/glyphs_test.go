package tui

import (
	"strings"
	"testing"

	"moodboard/internal/stack"

	"github.com/muesli/termenv"
)

func TestGlyphs_FromEnv(t *testing.T) {
	t.Setenv("MOODBOARD_TUI_GLYPHS", "")
	setGlyphs(glyphSetUnicode)
	applyGlyphPreference()
	if got := glyphs(); got != glyphSetUnicode {
		t.Fatalf("expected unicode glyphs by default; got %s", got.name)
	}

	t.Setenv("MOODBOARD_TUI_GLYPHS", "ascii")
	applyGlyphPreference()
	if got := glyphs(); got != glyphSetASCII {
		t.Fatalf("expected ascii glyphs; got %s", got.name)
	}

	// Unknown values should be ignored (keep current).
	t.Setenv("MOODBOARD_TUI_GLYPHS", "bogus")
	applyGlyphPreference()
	if got := glyphs(); got != glyphSetASCII {
		t.Fatalf("expected unknown to be ignored; got %s", got.name)
	}
	setGlyphs(glyphSetUnicode)
}

func TestRowItem_Title(t *testing.T) {
	setGlyphs(glyphSetASCII)
	defer setGlyphs(glyphSetUnicode)

	grp := rowItem{row: stack.Row{Kind: stack.RowGroup, GroupID: "group-1", Name: "Refs", Visible: true, Collapsed: true, Members: 3}}
	if got, want := grp.Title(), "o > Refs (3)"; got != want {
		t.Fatalf("group title: got %q want %q", got, want)
	}

	layer := rowItem{row: stack.Row{Kind: stack.RowLayer, Entry: stack.Entry{ID: "layer-1"}, LayerKind: "text", Depth: 1}}
	got := layer.Title()
	if !strings.HasPrefix(got, "  - layer-1") {
		t.Fatalf("expected indented hidden row named by id; got %q", got)
	}
}

func TestFitRow(t *testing.T) {
	setGlyphs(glyphSetASCII)
	defer setGlyphs(glyphSetUnicode)

	if got, want := fitRow("o sky  image", "z2", 20), "o sky  image      z2"; got != want {
		t.Fatalf("padded row: got %q want %q", got, want)
	}
	if got, want := fitRow("o a very long layer name", "z10", 16), "o a very lo~ z10"; got != want {
		t.Fatalf("truncated row: got %q want %q", got, want)
	}
	if got, want := fitRow("o sky", "z2", 6), "o sky "; got != want {
		t.Fatalf("narrow row drops the badge: got %q want %q", got, want)
	}
	if got, want := fitRow("o v Refs (3)", "", 8), "o v Refs"; got != want {
		t.Fatalf("group row: got %q want %q", got, want)
	}
}

func TestPanelColorProfile_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("COLORTERM", "truecolor")
	if got := panelColorProfile(); got != termenv.Ascii {
		t.Fatalf("NO_COLOR should disable color; got %v", got)
	}
}
