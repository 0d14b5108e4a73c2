package tui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"moodboard/internal/stack"
)

// layerRowDelegate draws a panel row on one line: the title on the left and, for layers,
// the z-index right-aligned. Hidden layers render faint; the cursor row is highlighted.
type layerRowDelegate struct {
	plain  lipgloss.Style
	hidden lipgloss.Style
	cursor lipgloss.Style
}

func newLayerRowDelegate() layerRowDelegate {
	return layerRowDelegate{
		plain:  lipgloss.NewStyle(),
		hidden: lipgloss.NewStyle().Faint(true),
		cursor: lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("236")).
			Bold(true),
	}
}

func (layerRowDelegate) Height() int                          { return 1 }
func (layerRowDelegate) Spacing() int                         { return 0 }
func (layerRowDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d layerRowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ri, ok := item.(rowItem)
	if !ok || m.Width() < 4 {
		return
	}
	style := d.plain
	switch {
	case index == m.Index():
		style = d.cursor
	case !ri.row.Visible:
		style = d.hidden
	}
	fmt.Fprint(w, style.Render(fitRow(ri.Title(), zBadge(ri.row), m.Width())))
}

// zBadge is the right-hand column of a layer row. Group rows have none.
func zBadge(r stack.Row) string {
	if r.Kind == stack.RowGroup {
		return ""
	}
	return "z" + strconv.Itoa(r.Entry.ZIndex)
}

// fitRow spreads title and badge over exactly width cells. A long title is truncated
// before the badge is given up; below a badge-plus-four-cells width only the title shows.
func fitRow(title, badge string, width int) string {
	bw := xansi.StringWidth(badge)
	if badge == "" || width < bw+5 {
		return padOrCut(title, width)
	}
	room := width - bw - 1
	if xansi.StringWidth(title) > room {
		title = xansi.Truncate(title, room, glyphEllipsis())
	}
	return title + strings.Repeat(" ", width-xansi.StringWidth(title)-bw) + badge
}

func padOrCut(s string, width int) string {
	sw := xansi.StringWidth(s)
	if sw > width {
		return xansi.Cut(s, 0, width)
	}
	return s + strings.Repeat(" ", width-sw)
}
