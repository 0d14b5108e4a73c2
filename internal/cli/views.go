package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"moodboard/internal/model"
	"moodboard/internal/stack"
)

type boardList []model.BoardMeta

func (l boardList) Headers() []string { return []string{"ID", "NAME", "BG", "UPDATED"} }

func (l boardList) Rows() [][]string {
	out := make([][]string, 0, len(l))
	for _, b := range l {
		out = append(out, []string{b.ID, b.Name, b.BgColor, b.UpdatedAt.Local().Format(time.DateTime)})
	}
	return out
}

// layerRow is one line of `layers list`, front-most first.
type layerRow struct {
	ID        string          `json:"id"`
	Kind      model.LayerKind `json:"kind"`
	Name      string          `json:"name,omitempty"`
	ZIndex    int             `json:"zIndex"`
	Visible   bool            `json:"visible"`
	GroupID   string          `json:"groupId,omitempty"`
	GroupName string          `json:"groupName,omitempty"`
}

type layerList []layerRow

func (l layerList) Headers() []string {
	return []string{"Z", "ID", "KIND", "NAME", "VISIBLE", "GROUP"}
}

func (l layerList) Rows() [][]string {
	out := make([][]string, 0, len(l))
	for _, r := range l {
		vis := "yes"
		if !r.Visible {
			vis = "no"
		}
		out = append(out, []string{strconv.Itoa(r.ZIndex), r.ID, string(r.Kind), r.Name, vis, r.GroupName})
	}
	return out
}

func layersOf(b *model.Board) layerList {
	st := stack.New(b)
	groups := stack.NewGroups(st)
	display := st.ReversedForDisplay()
	out := make(layerList, 0, len(display))
	for _, e := range display {
		l, _, _ := st.Find(e.ID)
		row := layerRow{ID: l.ID, Kind: l.Kind, Name: l.Name, ZIndex: l.ZIndex, Visible: l.Visible}
		if g, ok := groups.ResolveGroupFor(l.ID); ok {
			row.GroupID = g.ID
			row.GroupName = g.Name
		}
		out = append(out, row)
	}
	return out
}

type groupList []model.Group

func (l groupList) Headers() []string { return []string{"ID", "NAME", "MEMBERS", "COLLAPSED"} }

func (l groupList) Rows() [][]string {
	out := make([][]string, 0, len(l))
	for _, g := range l {
		out = append(out, []string{g.ID, g.Name, strconv.Itoa(len(g.MemberIDs())), strconv.FormatBool(g.Collapsed)})
	}
	return out
}

// boardSummary is the text and markdown form of `boards show`.
type boardSummary struct {
	b *model.Board
}

func (s boardSummary) Headers() []string { return layerList(nil).Headers() }

func (s boardSummary) Rows() [][]string { return layersOf(s.b).Rows() }

func (s boardSummary) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", mdEscape(s.b.Name))
	fmt.Fprintf(&sb, "- id: `%s`\n- background: `%s`\n- updated: %s\n\n",
		s.b.ID, s.b.BgColor, s.b.UpdatedAt.Local().Format(time.DateTime))

	layers := layersOf(s.b)
	fmt.Fprintf(&sb, "## Layers (%d, front to back)\n\n", len(layers))
	if len(layers) > 0 {
		sb.WriteString("| z | name | kind | visible | group |\n|---|---|---|---|---|\n")
		for _, l := range layers {
			name := l.Name
			if name == "" {
				name = "`" + l.ID + "`"
			}
			fmt.Fprintf(&sb, "| %d | %s | %s | %t | %s |\n", l.ZIndex, mdEscape(name), l.Kind, l.Visible, mdEscape(l.GroupName))
		}
		sb.WriteString("\n")
	}

	if len(s.b.Groups) > 0 {
		sb.WriteString("## Groups\n\n")
		for _, g := range s.b.Groups {
			state := "expanded"
			if g.Collapsed {
				state = "collapsed"
			}
			fmt.Fprintf(&sb, "- **%s** (%d layers, %s)\n", mdEscape(g.Name), len(g.MemberIDs()), state)
		}
	}
	return sb.String()
}

func mdEscape(s string) string {
	return strings.NewReplacer("|", "\\|", "*", "\\*", "_", "\\_").Replace(s)
}
