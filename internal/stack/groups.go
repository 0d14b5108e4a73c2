package stack

import (
	"fmt"
	"strings"

	"moodboard/internal/model"
)

// Groups is the group model of one board. It shares the board and dirty hook of its Stack.
//
// Membership is exclusive: a layer belongs to at most one group. Groups never own their
// members. A group whose membership becomes empty is removed before any operation returns.
type Groups struct {
	st *Stack
}

func NewGroups(st *Stack) *Groups {
	return &Groups{st: st}
}

func (g *Groups) board() *model.Board { return g.st.board }

func (g *Groups) List() []model.Group {
	return g.board().Groups
}

func (g *Groups) Find(groupID string) (*model.Group, bool) {
	groupID = strings.TrimSpace(groupID)
	for i := range g.board().Groups {
		if g.board().Groups[i].ID == groupID {
			return &g.board().Groups[i], true
		}
	}
	return nil, false
}

// ResolveGroupFor returns the group layerID belongs to, if any.
func (g *Groups) ResolveGroupFor(layerID string) (*model.Group, bool) {
	for i := range g.board().Groups {
		if g.board().Groups[i].Has(layerID) {
			return &g.board().Groups[i], true
		}
	}
	return nil, false
}

// AddMember moves layerID into groupID, removing it from any other group first.
func (g *Groups) AddMember(groupID, layerID string) error {
	grp, ok := g.Find(groupID)
	if !ok {
		return NotFoundError{Kind: "group", ID: groupID}
	}
	_, kind, ok := g.st.Find(layerID)
	if !ok {
		return NotFoundError{Kind: "layer", ID: layerID}
	}
	if grp.Has(layerID) {
		return nil
	}

	removeEverywhere(g.board(), layerID)
	if kind == model.EntryObject {
		grp.ObjectIDs = append(grp.ObjectIDs, layerID)
	} else {
		grp.LayerIDs = append(grp.LayerIDs, layerID)
	}
	// grp is invalid past this point: collecting compacts the slice.
	collectEmptyGroups(g.board())
	g.st.markDirty()
	return nil
}

// RemoveMember drops layerID from groupID. It reports false when the layer was not a member.
func (g *Groups) RemoveMember(groupID, layerID string) (bool, error) {
	grp, ok := g.Find(groupID)
	if !ok {
		return false, NotFoundError{Kind: "group", ID: groupID}
	}
	if !grp.Has(layerID) {
		return false, nil
	}
	grp.LayerIDs = without(grp.LayerIDs, layerID)
	grp.ObjectIDs = without(grp.ObjectIDs, layerID)
	collectEmptyGroups(g.board())
	g.st.markDirty()
	return true, nil
}

// Evict removes layerID from whatever group holds it.
func (g *Groups) Evict(layerID string) bool {
	if _, ok := g.ResolveGroupFor(layerID); !ok {
		return false
	}
	removeEverywhere(g.board(), layerID)
	collectEmptyGroups(g.board())
	g.st.markDirty()
	return true
}

// Create makes a new group from at least two distinct existing layers. Members are taken
// out of their previous groups and gathered into one contiguous block in the stack.
func (g *Groups) Create(name string, memberIDs []string) (model.Group, error) {
	var ids []string
	seen := map[string]bool{}
	for _, id := range memberIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) < 2 {
		return model.Group{}, InvalidArgumentError{Op: "create group", Reason: "a group needs at least 2 members"}
	}
	kinds := make(map[string]model.EntryKind, len(ids))
	for _, id := range ids {
		_, kind, ok := g.st.Find(id)
		if !ok {
			return model.Group{}, NotFoundError{Kind: "layer", ID: id}
		}
		kinds[id] = kind
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Group %d", len(g.board().Groups)+1)
	}
	grp := model.Group{ID: model.NewID("group"), Name: name, LayerIDs: []string{}, ObjectIDs: []string{}}
	// Members are recorded in stack order so the group's listing matches what is drawn.
	for _, e := range g.st.Flatten() {
		if !seen[e.ID] {
			continue
		}
		removeEverywhere(g.board(), e.ID)
		if kinds[e.ID] == model.EntryObject {
			grp.ObjectIDs = append(grp.ObjectIDs, e.ID)
		} else {
			grp.LayerIDs = append(grp.LayerIDs, e.ID)
		}
	}
	collectEmptyGroups(g.board())
	g.board().Groups = append(g.board().Groups, grp)

	if _, err := g.st.Gather(ids); err != nil {
		return model.Group{}, err
	}
	g.st.markDirty()
	return grp, nil
}

// Delete removes the group. Its members stay on the board.
func (g *Groups) Delete(groupID string) error {
	if _, ok := g.Find(groupID); !ok {
		return NotFoundError{Kind: "group", ID: groupID}
	}
	out := g.board().Groups[:0]
	for _, grp := range g.board().Groups {
		if grp.ID != groupID {
			out = append(out, grp)
		}
	}
	g.board().Groups = out
	g.st.markDirty()
	return nil
}

func (g *Groups) Rename(groupID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return InvalidArgumentError{Op: "rename group", Reason: "name is empty"}
	}
	grp, ok := g.Find(groupID)
	if !ok {
		return NotFoundError{Kind: "group", ID: groupID}
	}
	if grp.Name == name {
		return nil
	}
	grp.Name = name
	g.st.markDirty()
	return nil
}

func (g *Groups) SetCollapsed(groupID string, collapsed bool) (bool, error) {
	grp, ok := g.Find(groupID)
	if !ok {
		return false, NotFoundError{Kind: "group", ID: groupID}
	}
	if grp.Collapsed == collapsed {
		return false, nil
	}
	grp.Collapsed = collapsed
	g.st.markDirty()
	return true, nil
}

// Replace overwrites the group list with one received from another window. Unknown layer
// identities are dropped, exclusivity is enforced first-come, and empty groups are
// collected. Replace never marks the board dirty.
func (g *Groups) Replace(groups []model.Group) {
	claimed := map[string]bool{}
	keep := func(ids []string) []string {
		out := []string{}
		for _, id := range ids {
			if claimed[id] {
				continue
			}
			if _, _, ok := g.st.Find(id); !ok {
				continue
			}
			claimed[id] = true
			out = append(out, id)
		}
		return out
	}
	out := make([]model.Group, 0, len(groups))
	for _, grp := range groups {
		grp.LayerIDs = keep(grp.LayerIDs)
		grp.ObjectIDs = keep(grp.ObjectIDs)
		out = append(out, grp)
	}
	g.board().Groups = out
	collectEmptyGroups(g.board())
}

// MemberRange returns the indices in order occupied by groupID's members, in order.
func (g *Groups) MemberRange(groupID string, order []Entry) []int {
	grp, ok := g.Find(groupID)
	if !ok {
		return nil
	}
	var idx []int
	for i, e := range order {
		if grp.Has(e.ID) {
			idx = append(idx, i)
		}
	}
	return idx
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func removeEverywhere(b *model.Board, layerID string) {
	for i := range b.Groups {
		b.Groups[i].LayerIDs = without(b.Groups[i].LayerIDs, layerID)
		b.Groups[i].ObjectIDs = without(b.Groups[i].ObjectIDs, layerID)
	}
}

func collectEmptyGroups(b *model.Board) {
	out := b.Groups[:0]
	for _, grp := range b.Groups {
		if !grp.Empty() {
			out = append(out, grp)
		}
	}
	b.Groups = out
}
