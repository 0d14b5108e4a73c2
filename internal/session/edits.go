package session

import (
	"strings"

	"moodboard/internal/drag"
	"moodboard/internal/model"
	"moodboard/internal/stack"
	"moodboard/internal/syncchan"
)

// CommitOrder replaces the stack order. Nothing is broadcast or saved when no z-index
// changed.
func (s *Session) CommitOrder(order []stack.Entry) ([]string, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	changed, err := s.st.CommitOrder(order)
	flat := s.st.Flatten()
	s.mu.Unlock()
	if err != nil || len(changed) == 0 {
		return changed, err
	}
	s.publish(syncchan.Message{Type: syncchan.TypeOrderChanged, Order: flat})
	s.emit(Change{Kind: ChangeOrder, IDs: changed})
	return changed, nil
}

// MoveLayer moves one layer (or a whole group when id names a group) next to target.
// It runs the same path as a pointer drag.
func (s *Session) MoveLayer(src drag.Source, target drag.Target, edge drag.Edge) (drag.Result, error) {
	if err := s.StartDrag(src); err != nil {
		return drag.Result{}, err
	}
	if _, err := s.DragOverEdge(target, edge); err != nil {
		s.CancelDrag()
		return drag.Result{}, err
	}
	return s.Drop(0)
}

func (s *Session) StartDrag(src drag.Source) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.drag.Start(src)
}

// DragOver returns the candidate order for the current hover. Nothing is committed.
func (s *Session) DragOver(t drag.Target, pointerY float64) ([]stack.Entry, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.drag.Over(t, pointerY)
}

func (s *Session) DragOverEdge(t drag.Target, edge drag.Edge) ([]stack.Entry, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.drag.OverEdge(t, edge)
}

func (s *Session) CancelDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drag.Cancel()
}

func (s *Session) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drag.Phase() == drag.Dragging
}

// Drop commits the drag. A changed order is broadcast; an eviction also broadcasts the
// new group list.
func (s *Session) Drop(pointerY float64) (drag.Result, error) {
	if err := s.lock(); err != nil {
		return drag.Result{}, err
	}
	res, err := s.drag.Drop(pointerY)
	groups := cloneGroups(s.groups.List())
	s.mu.Unlock()
	if err != nil || res.Cancelled {
		return res, err
	}
	if len(res.Changed) > 0 {
		s.publish(syncchan.Message{Type: syncchan.TypeOrderChanged, Order: res.Order})
		s.emit(Change{Kind: ChangeOrder, IDs: res.Changed})
	}
	if res.Evicted != "" {
		s.publish(syncchan.Message{Type: syncchan.TypeGroupsChanged, Groups: groups})
		s.emit(Change{Kind: ChangeGroups, IDs: []string{res.Evicted}})
	}
	return res, nil
}

// AddLayer puts l at the front of the stack.
func (s *Session) AddLayer(l model.Layer) (model.Layer, error) {
	if err := s.lock(); err != nil {
		return model.Layer{}, err
	}
	added, err := s.st.AddLayer(l)
	flat := s.st.Flatten()
	s.mu.Unlock()
	if err != nil {
		return model.Layer{}, err
	}
	wire := added
	s.publish(syncchan.Message{Type: syncchan.TypeImageAdded, Layer: &wire})
	s.publish(syncchan.Message{Type: syncchan.TypeOrderChanged, Order: flat})
	s.emit(Change{Kind: ChangeLayers, IDs: []string{added.ID}})
	return added, nil
}

func (s *Session) RemoveLayer(id string) error {
	if err := s.lock(); err != nil {
		return err
	}
	err := s.st.RemoveLayer(id)
	flat := s.st.Flatten()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(syncchan.Message{Type: syncchan.TypeLayerRemoved, LayerID: strings.TrimSpace(id)})
	s.publish(syncchan.Message{Type: syncchan.TypeOrderChanged, Order: flat})
	s.emit(Change{Kind: ChangeLayers, IDs: []string{id}})
	return nil
}

func (s *Session) SetVisible(id string, visible bool) error {
	if err := s.lock(); err != nil {
		return err
	}
	changed, err := s.st.SetVisible(id, visible)
	s.mu.Unlock()
	if err != nil || !changed {
		return err
	}
	v := visible
	s.publish(syncchan.Message{Type: syncchan.TypeVisibilityChanged, LayerID: id, Visible: &v})
	s.emit(Change{Kind: ChangeVisibility, IDs: []string{id}})
	return nil
}

// ToggleVisible flips a layer's visibility and returns the new value.
func (s *Session) ToggleVisible(id string) (bool, error) {
	s.mu.Lock()
	l, _, ok := s.st.Find(id)
	visible := ok && l.Visible
	s.mu.Unlock()
	if !ok {
		return false, stack.NotFoundError{Kind: "layer", ID: id}
	}
	return !visible, s.SetVisible(id, !visible)
}

// SetFilters replaces a layer's filters; nil clears them.
func (s *Session) SetFilters(id string, f *model.Filters) error {
	if err := s.lock(); err != nil {
		return err
	}
	changed, err := s.st.SetFilters(id, f)
	s.mu.Unlock()
	if err != nil || !changed {
		return err
	}
	var wire *model.Filters
	if f != nil {
		c := *f
		wire = &c
	}
	s.publish(syncchan.Message{Type: syncchan.TypeFiltersChanged, LayerID: id, Filters: wire})
	s.emit(Change{Kind: ChangeFilters, IDs: []string{id}})
	return nil
}

func (s *Session) SetBackground(color string) error {
	color = strings.TrimSpace(color)
	if color == "" {
		return stack.InvalidArgumentError{Op: "set background", Reason: "color is empty"}
	}
	if err := s.lock(); err != nil {
		return err
	}
	if s.board.BgColor == color {
		s.mu.Unlock()
		return nil
	}
	s.board.BgColor = color
	s.sched.MarkDirty()
	s.mu.Unlock()
	s.publish(syncchan.Message{Type: syncchan.TypeBackgroundChanged, BgColor: color})
	s.emit(Change{Kind: ChangeBackground})
	return nil
}

// SetViewState stores this window's pan and zoom. View state is per window and not
// broadcast.
func (s *Session) SetViewState(vs model.ViewState) error {
	if vs.Zoom <= 0 {
		return stack.InvalidArgumentError{Op: "set view", Reason: "zoom must be positive"}
	}
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if s.board.ViewState == vs {
		return nil
	}
	s.board.ViewState = vs
	s.sched.MarkDirty()
	return nil
}

func (s *Session) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return stack.InvalidArgumentError{Op: "rename board", Reason: "name is empty"}
	}
	if err := s.lock(); err != nil {
		return err
	}
	if s.board.Name == name {
		s.mu.Unlock()
		return nil
	}
	s.board.Name = name
	s.sched.MarkDirty()
	s.mu.Unlock()
	s.emit(Change{Kind: ChangeBoard})
	return nil
}

// CreateGroup groups at least two layers and gathers them into one block.
func (s *Session) CreateGroup(name string, memberIDs []string) (model.Group, error) {
	if err := s.lock(); err != nil {
		return model.Group{}, err
	}
	grp, err := s.groups.Create(name, memberIDs)
	flat := s.st.Flatten()
	groups := cloneGroups(s.groups.List())
	s.mu.Unlock()
	if err != nil {
		return model.Group{}, err
	}
	s.publish(syncchan.Message{Type: syncchan.TypeGroupsChanged, Groups: groups})
	s.publish(syncchan.Message{Type: syncchan.TypeOrderChanged, Order: flat})
	s.emit(Change{Kind: ChangeGroups, IDs: []string{grp.ID}})
	return grp, nil
}

func (s *Session) AddToGroup(groupID, layerID string) error {
	return s.groupEdit(groupID, func(g *stack.Groups) (bool, error) {
		before := g.List()
		wasMember := false
		for _, grp := range before {
			if grp.ID == groupID && grp.Has(layerID) {
				wasMember = true
			}
		}
		return !wasMember, g.AddMember(groupID, layerID)
	})
}

func (s *Session) RemoveFromGroup(groupID, layerID string) error {
	return s.groupEdit(groupID, func(g *stack.Groups) (bool, error) {
		return g.RemoveMember(groupID, layerID)
	})
}

func (s *Session) DeleteGroup(groupID string) error {
	return s.groupEdit(groupID, func(g *stack.Groups) (bool, error) {
		return true, g.Delete(groupID)
	})
}

func (s *Session) RenameGroup(groupID, name string) error {
	return s.groupEdit(groupID, func(g *stack.Groups) (bool, error) {
		grp, ok := g.Find(groupID)
		if !ok {
			return false, stack.NotFoundError{Kind: "group", ID: groupID}
		}
		same := grp.Name == strings.TrimSpace(name)
		return !same, g.Rename(groupID, name)
	})
}

func (s *Session) SetGroupCollapsed(groupID string, collapsed bool) error {
	return s.groupEdit(groupID, func(g *stack.Groups) (bool, error) {
		return g.SetCollapsed(groupID, collapsed)
	})
}

// ToggleGroup flips a group's collapsed flag.
func (s *Session) ToggleGroup(groupID string) error {
	s.mu.Lock()
	grp, ok := s.groups.Find(groupID)
	collapsed := ok && grp.Collapsed
	s.mu.Unlock()
	if !ok {
		return stack.NotFoundError{Kind: "group", ID: groupID}
	}
	return s.SetGroupCollapsed(groupID, !collapsed)
}

func (s *Session) groupEdit(groupID string, fn func(g *stack.Groups) (bool, error)) error {
	if err := s.lock(); err != nil {
		return err
	}
	changed, err := fn(s.groups)
	groups := cloneGroups(s.groups.List())
	s.mu.Unlock()
	if err != nil || !changed {
		return err
	}
	s.publish(syncchan.Message{Type: syncchan.TypeGroupsChanged, Groups: groups})
	s.emit(Change{Kind: ChangeGroups, IDs: []string{groupID}})
	return nil
}

func cloneGroups(in []model.Group) []model.Group {
	b := model.Board{Groups: in}
	return b.Clone().Groups
}
