package stack

import "moodboard/internal/model"

type RowKind int

const (
	RowLayer RowKind = iota
	RowGroup
)

// Row is one line of a top-down layer panel.
type Row struct {
	Kind      RowKind
	Entry     Entry // zero for group rows
	GroupID   string
	Name      string
	LayerKind model.LayerKind
	Visible   bool
	Depth     int
	Collapsed bool
	Members   int
}

// Rows renders the stack front to back. Each group gets a header row where its front-most
// member sits, followed by its members unless the group is collapsed.
func (g *Groups) Rows() []Row {
	display := g.st.ReversedForDisplay()
	emitted := map[string]bool{}
	out := make([]Row, 0, len(display)+len(g.board().Groups))

	layerRow := func(e Entry, depth int, groupID string) Row {
		l, _, _ := g.st.Find(e.ID)
		return Row{
			Kind:      RowLayer,
			Entry:     e,
			GroupID:   groupID,
			Name:      l.Name,
			LayerKind: l.Kind,
			Visible:   l.Visible,
			Depth:     depth,
		}
	}

	for _, e := range display {
		grp, ok := g.ResolveGroupFor(e.ID)
		if !ok {
			out = append(out, layerRow(e, 0, ""))
			continue
		}
		if emitted[grp.ID] {
			continue
		}
		emitted[grp.ID] = true
		var members []Entry
		for _, m := range display {
			if grp.Has(m.ID) {
				members = append(members, m)
			}
		}
		out = append(out, Row{
			Kind:      RowGroup,
			GroupID:   grp.ID,
			Name:      grp.Name,
			Visible:   anyVisible(g.st, members),
			Collapsed: grp.Collapsed,
			Members:   len(members),
		})
		if grp.Collapsed {
			continue
		}
		for _, m := range members {
			out = append(out, layerRow(m, 1, grp.ID))
		}
	}
	return out
}

func anyVisible(st *Stack, entries []Entry) bool {
	for _, e := range entries {
		if l, _, ok := st.Find(e.ID); ok && l.Visible {
			return true
		}
	}
	return false
}
