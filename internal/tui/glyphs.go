package tui

import (
	"os"
	"strings"
	"sync"
)

// glyphSet holds the panel's markers. Fonts without the geometric shapes get the ASCII set
// via MOODBOARD_TUI_GLYPHS=ascii.
type glyphSet struct {
	name      string
	collapsed string
	expanded  string
	visible   string
	hidden    string
	ellipsis  string
}

var (
	glyphSetUnicode = glyphSet{name: "unicode", collapsed: "▸", expanded: "▾", visible: "●", hidden: "○", ellipsis: "…"}
	glyphSetASCII   = glyphSet{name: "ascii", collapsed: ">", expanded: "v", visible: "o", hidden: "-", ellipsis: "~"}
)

var (
	glyphsMu      sync.RWMutex
	currentGlyphs = glyphSetUnicode
)

// applyGlyphPreference reads MOODBOARD_TUI_GLYPHS. Unrecognized values keep the current set.
func applyGlyphPreference() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("MOODBOARD_TUI_GLYPHS"))) {
	case "", "unicode", "utf8":
		setGlyphs(glyphSetUnicode)
	case "ascii":
		setGlyphs(glyphSetASCII)
	}
}

func setGlyphs(gs glyphSet) {
	glyphsMu.Lock()
	defer glyphsMu.Unlock()
	currentGlyphs = gs
}

func glyphs() glyphSet {
	glyphsMu.RLock()
	defer glyphsMu.RUnlock()
	return currentGlyphs
}

func glyphTwistyCollapsed() string { return glyphs().collapsed }
func glyphTwistyExpanded() string  { return glyphs().expanded }
func glyphVisible() string         { return glyphs().visible }
func glyphHidden() string          { return glyphs().hidden }
func glyphEllipsis() string        { return glyphs().ellipsis }
