package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// applyColorProfilePreference picks the panel's color profile. NO_COLOR wins; otherwise
// termenv's detection is used, raised to true color when COLORTERM says so. CLICOLOR is
// left to the one-shot commands: the panel always owns a terminal.
func applyColorProfilePreference() {
	lipgloss.SetColorProfile(panelColorProfile())
}

func panelColorProfile() termenv.Profile {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return termenv.Ascii
	}
	profile := termenv.ColorProfile()
	colorterm := strings.ToLower(os.Getenv("COLORTERM"))
	if profile != termenv.Ascii && (strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit")) {
		return termenv.TrueColor
	}
	return profile
}
