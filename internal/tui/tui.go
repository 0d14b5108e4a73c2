// Package tui is the terminal layer panel for one open board window.
package tui

import (
	"moodboard/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the layer panel for s until the user quits. It does not close s.
func Run(s *session.Session) error {
	applyGlyphPreference()
	applyColorProfilePreference()

	changes := make(chan session.Change, 64)
	detach := s.OnChange(func(c session.Change) {
		// Every change triggers a full redraw, so a full buffer can drop the rest.
		select {
		case changes <- c:
		default:
		}
	})
	defer detach()

	m := newPanelModel(s, changes)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
