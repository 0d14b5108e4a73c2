package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"moodboard/internal/drag"
	"moodboard/internal/session"
	"moodboard/internal/stack"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// changeMsg carries a session change (local or from a sibling window) into the program.
type changeMsg session.Change

type flushedMsg struct{ err error }

type panelModel struct {
	s       *session.Session
	changes <-chan session.Change

	width  int
	height int

	rows list.Model
	keys keyMap
	help help.Model

	status string
}

func newPanelModel(s *session.Session, changes <-chan session.Change) panelModel {
	m := panelModel{
		s:       s,
		changes: changes,
		keys:    defaultKeyMap(),
		help:    help.New(),
	}
	m.rows = newList()
	m.refresh()
	return m
}

func newList() list.Model {
	l := list.New(nil, newLayerRowDelegate(), 0, 0)
	// The panel renders its own header and footer, so keep list chrome minimal.
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(false)
	l.SetStatusBarItemName("layer", "layers")
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)
	return l
}

func (m panelModel) Init() tea.Cmd { return waitForChange(m.changes) }

func waitForChange(ch <-chan session.Change) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return changeMsg(c)
	}
}

func (m panelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeList()
		return m, nil

	case changeMsg:
		m.refresh()
		if msg.Remote {
			m.status = "updated from another window"
		}
		return m, waitForChange(m.changes)

	case flushedMsg:
		if msg.err != nil {
			m.status = "save failed: " + msg.err.Error()
		} else {
			m.status = "saved"
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.MoveUp):
			m.move(-1)
			return m, nil
		case key.Matches(msg, m.keys.MoveDown):
			m.move(1)
			return m, nil
		case key.Matches(msg, m.keys.Visible):
			m.toggleVisible()
			return m, nil
		case key.Matches(msg, m.keys.Collapse):
			m.toggleCollapsed()
			return m, nil
		case key.Matches(msg, m.keys.Flush):
			return m, flush(m.s)
		}
	}

	var cmd tea.Cmd
	m.rows, cmd = m.rows.Update(msg)
	return m, cmd
}

func flush(s *session.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return flushedMsg{err: s.Flush(ctx)}
	}
}

func (m panelModel) View() string {
	b := m.s.Board()
	header := lipgloss.NewStyle().
		Bold(true).
		Render(fmt.Sprintf("Moodboard  %s  Bg=%s  Window=%s",
			nameOr(b.Name, b.ID),
			b.BgColor,
			m.s.Role(),
		))

	body := m.rows.View()
	if len(m.rows.Items()) == 0 {
		body = lipgloss.NewStyle().Faint(true).Render("No layers yet.")
	}

	state := "saved"
	if m.s.Pending() {
		state = "unsaved changes"
	}
	if m.status != "" {
		state += "  " + m.status
	}
	footer := lipgloss.NewStyle().Faint(true).Render(state + "\n" + m.help.View(m.keys))
	return strings.Join([]string{header, body, footer}, "\n\n")
}

func (m *panelModel) resizeList() {
	// Leave room for header/footer.
	h := m.height - 7
	if h < 4 {
		h = 4
	}
	w := m.width
	if w < 30 {
		w = 30
	}
	m.rows.SetSize(w, h)
	m.help.Width = w
}

// refresh rebuilds the rows from the session and keeps the selection on the same item.
func (m *panelModel) refresh() {
	curID := ""
	if it, ok := m.rows.SelectedItem().(rowItem); ok {
		curID = it.id()
	}
	m.rows.SetItems(itemsFromRows(m.s.Rows()))
	if curID != "" {
		selectListItemByID(&m.rows, curID)
	}
}

func (m *panelModel) selected() (rowItem, bool) {
	it, ok := m.rows.SelectedItem().(rowItem)
	return it, ok
}

// move brings the selected row forward (dir < 0, up the panel) or sends it backward.
// The panel lists the front-most layer first, so the row above is the next one forward.
func (m *panelModel) move(dir int) {
	cur, ok := m.selected()
	if !ok {
		return
	}
	target, ok := m.neighbour(cur, dir)
	if !ok {
		return
	}
	edge := drag.Before
	if dir < 0 {
		edge = drag.After
	}
	res, err := m.s.MoveLayer(cur.source(), target, edge)
	if err != nil {
		m.status = err.Error()
		return
	}
	if res.Cancelled || len(res.Changed) == 0 {
		return
	}
	m.status = ""
	m.refresh()
	selectListItemByID(&m.rows, cur.id())
}

// neighbour finds the unit the selected row hops over. Rows of another group resolve to
// that whole group. A group member only trades places with its siblings.
func (m *panelModel) neighbour(cur rowItem, dir int) (drag.Target, bool) {
	items := m.rows.Items()
	isGroup := cur.row.Kind == stack.RowGroup
	for i := m.rows.Index() + dir; i >= 0 && i < len(items); i += dir {
		it, ok := items[i].(rowItem)
		if !ok {
			continue
		}
		switch {
		case isGroup && it.row.GroupID == cur.row.GroupID:
			continue
		case !isGroup && cur.row.GroupID != "":
			if it.row.GroupID != cur.row.GroupID || it.row.Kind == stack.RowGroup {
				return drag.Target{}, false
			}
			return it.target(), true
		case it.row.GroupID != "":
			return drag.Target{Kind: drag.TargetGroup, ID: it.row.GroupID}, true
		default:
			return it.target(), true
		}
	}
	return drag.Target{}, false
}

func (m *panelModel) toggleVisible() {
	cur, ok := m.selected()
	if !ok {
		return
	}
	var err error
	if cur.row.Kind == stack.RowGroup {
		err = m.setGroupVisible(cur)
	} else {
		_, err = m.s.ToggleVisible(cur.row.Entry.ID)
	}
	if err != nil {
		m.status = err.Error()
		return
	}
	m.refresh()
}

// setGroupVisible hides every member when any is visible, and shows all of them otherwise.
func (m *panelModel) setGroupVisible(cur rowItem) error {
	want := !cur.row.Visible
	for _, g := range m.s.Board().Groups {
		if g.ID != cur.row.GroupID {
			continue
		}
		for _, id := range g.MemberIDs() {
			if err := m.s.SetVisible(id, want); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *panelModel) toggleCollapsed() {
	cur, ok := m.selected()
	if !ok || cur.row.GroupID == "" {
		return
	}
	if err := m.s.ToggleGroup(cur.row.GroupID); err != nil {
		m.status = err.Error()
		return
	}
	m.refresh()
	selectListItemByID(&m.rows, cur.row.GroupID)
}
