package tui

import (
	"strconv"
	"strings"

	"moodboard/internal/drag"
	"moodboard/internal/stack"

	"github.com/charmbracelet/bubbles/list"
)

// rowItem is one line of the layer panel, front-most layer first.
type rowItem struct {
	row stack.Row
}

func (i rowItem) id() string {
	if i.row.Kind == stack.RowGroup {
		return i.row.GroupID
	}
	return i.row.Entry.ID
}

func (i rowItem) FilterValue() string { return i.row.Name }

func (i rowItem) Title() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", i.row.Depth))
	if i.row.Visible {
		b.WriteString(glyphVisible())
	} else {
		b.WriteString(glyphHidden())
	}
	b.WriteString(" ")
	if i.row.Kind == stack.RowGroup {
		if i.row.Collapsed {
			b.WriteString(glyphTwistyCollapsed())
		} else {
			b.WriteString(glyphTwistyExpanded())
		}
		b.WriteString(" ")
		b.WriteString(nameOr(i.row.Name, i.row.GroupID))
		b.WriteString(" (")
		b.WriteString(strconv.Itoa(i.row.Members))
		b.WriteString(")")
		return b.String()
	}
	b.WriteString(nameOr(i.row.Name, i.row.Entry.ID))
	b.WriteString("  ")
	b.WriteString(string(i.row.LayerKind))
	return b.String()
}

func (i rowItem) Description() string { return i.id() }

// source is what a keyboard move drags. Keyboard moves never carry group bounds, so
// moving a member never evicts it from its group.
func (i rowItem) source() drag.Source {
	if i.row.Kind == stack.RowGroup {
		return drag.Source{ID: i.row.GroupID, IsGroup: true}
	}
	return drag.Source{ID: i.row.Entry.ID}
}

func (i rowItem) target() drag.Target {
	if i.row.Kind == stack.RowGroup {
		return drag.Target{Kind: drag.TargetGroup, ID: i.row.GroupID}
	}
	return drag.Target{Kind: drag.TargetLayer, ID: i.row.Entry.ID}
}

func itemsFromRows(rows []stack.Row) []list.Item {
	items := make([]list.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, rowItem{row: r})
	}
	return items
}

func nameOr(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

func selectListItemByID(l *list.Model, id string) {
	for i, it := range l.Items() {
		if ri, ok := it.(rowItem); ok && ri.id() == id {
			l.Select(i)
			return
		}
	}
}
