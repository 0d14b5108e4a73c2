// Package stack owns the z-order of a board's layers and its group membership.
//
// Z-indices are kept unique and contiguous (0..N-1) across the flattened stack of
// images and objects after every committed change.
package stack

import (
	"sort"
	"strings"

	"moodboard/internal/model"
)

// Entry is one position in the flattened stack.
type Entry struct {
	Kind   model.EntryKind `json:"kind"`
	ID     string          `json:"id"`
	ZIndex int             `json:"zIndex"`
}

// IDs returns the identities of entries in order.
func IDs(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

// Stack is the layer order model for one board. It mutates the board it wraps in place
// and is not safe for concurrent use; the owning session serializes access.
type Stack struct {
	board   *model.Board
	onDirty func()
}

func New(b *model.Board) *Stack {
	if b.Layers == nil {
		b.Layers = []model.Layer{}
	}
	if b.Objects == nil {
		b.Objects = []model.Layer{}
	}
	if b.Groups == nil {
		b.Groups = []model.Group{}
	}
	return &Stack{board: b}
}

// OnDirty registers the hook called after every local mutation.
func (s *Stack) OnDirty(fn func()) { s.onDirty = fn }

func (s *Stack) Board() *model.Board { return s.board }

func (s *Stack) Len() int { return len(s.board.Layers) + len(s.board.Objects) }

func (s *Stack) markDirty() {
	if s.onDirty != nil {
		s.onDirty()
	}
}

// Flatten returns every layer sorted back to front. Ties (only possible on boards that
// were never normalized) keep images before objects, then list order.
func (s *Stack) Flatten() []Entry {
	out := make([]Entry, 0, s.Len())
	for _, l := range s.board.Layers {
		out = append(out, Entry{Kind: model.EntryImage, ID: l.ID, ZIndex: l.ZIndex})
	}
	for _, l := range s.board.Objects {
		out = append(out, Entry{Kind: model.EntryObject, ID: l.ID, ZIndex: l.ZIndex})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}

// ReversedForDisplay returns the flattened stack front to back, for a top-down panel.
func (s *Stack) ReversedForDisplay() []Entry {
	flat := s.Flatten()
	for i, j := 0, len(flat)-1; i < j; i, j = i+1, j-1 {
		flat[i], flat[j] = flat[j], flat[i]
	}
	return flat
}

// Find returns a pointer into the board's layer lists.
func (s *Stack) Find(id string) (*model.Layer, model.EntryKind, bool) {
	id = strings.TrimSpace(id)
	for i := range s.board.Layers {
		if s.board.Layers[i].ID == id {
			return &s.board.Layers[i], model.EntryImage, true
		}
	}
	for i := range s.board.Objects {
		if s.board.Objects[i].ID == id {
			return &s.board.Objects[i], model.EntryObject, true
		}
	}
	return nil, "", false
}

// CommitOrder assigns zIndex = position to every entry of order and returns the
// identities whose zIndex changed. order must be a permutation of the current stack.
// An empty result means nothing changed; callers skip broadcast and save in that case.
func (s *Stack) CommitOrder(order []Entry) ([]string, error) {
	if len(order) != s.Len() {
		return nil, InvalidArgumentError{Op: "commit order", Reason: "order does not cover every layer"}
	}
	seen := make(map[string]bool, len(order))
	targets := make([]*model.Layer, len(order))
	for i, e := range order {
		if seen[e.ID] {
			return nil, InvalidArgumentError{Op: "commit order", Reason: "duplicate layer " + e.ID}
		}
		seen[e.ID] = true
		l, _, ok := s.Find(e.ID)
		if !ok {
			return nil, NotFoundError{Kind: "layer", ID: e.ID}
		}
		targets[i] = l
	}

	changed := assign(targets)
	if len(changed) > 0 {
		s.markDirty()
	}
	return changed, nil
}

func assign(targets []*model.Layer) []string {
	var changed []string
	for z, l := range targets {
		if l.ZIndex != z {
			l.ZIndex = z
			changed = append(changed, l.ID)
		}
	}
	return changed
}

// Normalize renumbers the stack to 0..N-1 keeping the current relative order. It does not
// mark the board dirty; it only repairs what was loaded.
func (s *Stack) Normalize() []string {
	flat := s.Flatten()
	targets := make([]*model.Layer, 0, len(flat))
	for _, e := range flat {
		l, _, _ := s.Find(e.ID)
		targets = append(targets, l)
	}
	return assign(targets)
}

// Apply overwrites local z-indices with a full order received from another window.
// Identities unknown locally are ignored; local layers absent from entries keep their
// relative position. The result is renumbered, so the contiguity invariant holds even
// when the two windows disagree on membership. Apply never marks the board dirty.
func (s *Stack) Apply(entries []Entry) []string {
	want := make(map[string]int, len(entries))
	for _, e := range entries {
		want[e.ID] = e.ZIndex
	}

	type keyed struct {
		l   *model.Layer
		key int
		pos int
	}
	var all []keyed
	for i, e := range s.Flatten() {
		l, _, _ := s.Find(e.ID)
		k := l.ZIndex
		if z, ok := want[l.ID]; ok {
			k = z
		}
		all = append(all, keyed{l: l, key: k, pos: i})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].key != all[j].key {
			return all[i].key < all[j].key
		}
		return all[i].pos < all[j].pos
	})
	targets := make([]*model.Layer, len(all))
	for i, k := range all {
		targets[i] = k.l
	}
	return assign(targets)
}

// AddLayer places l at the front of the stack. An empty ID is filled in.
func (s *Stack) AddLayer(l model.Layer) (model.Layer, error) {
	if l.Kind == "" {
		l.Kind = model.LayerKindImage
	}
	if !l.Kind.Valid() {
		return model.Layer{}, InvalidArgumentError{Op: "add layer", Reason: "unknown kind " + string(l.Kind)}
	}
	if strings.TrimSpace(l.ID) == "" {
		l.ID = model.NewID("layer")
	}
	if _, _, ok := s.Find(l.ID); ok {
		return model.Layer{}, InvalidArgumentError{Op: "add layer", Reason: "duplicate layer " + l.ID}
	}
	s.Normalize()
	l.ZIndex = s.Len()
	if l.Kind.Entry() == model.EntryObject {
		s.board.Objects = append(s.board.Objects, l)
	} else {
		s.board.Layers = append(s.board.Layers, l)
	}
	s.markDirty()
	return l, nil
}

// Adopt places a layer announced by another window at the z-index it carries, ahead of
// any local layer already there, and renumbers. Known identities are ignored. Adopt never
// marks the board dirty.
func (s *Stack) Adopt(l model.Layer) bool {
	if strings.TrimSpace(l.ID) == "" {
		return false
	}
	if _, _, ok := s.Find(l.ID); ok {
		return false
	}
	if !l.Kind.Valid() {
		l.Kind = model.LayerKindImage
	}
	order := s.Flatten()
	at := l.ZIndex
	if at < 0 || at > len(order) {
		at = len(order)
	}
	if l.Kind.Entry() == model.EntryObject {
		s.board.Objects = append(s.board.Objects, l)
	} else {
		s.board.Layers = append(s.board.Layers, l)
	}
	full := InsertBlock(order, []Entry{{Kind: l.Kind.Entry(), ID: l.ID}}, at)
	targets := make([]*model.Layer, len(full))
	for i, e := range full {
		targets[i], _, _ = s.Find(e.ID)
	}
	assign(targets)
	return true
}

// RemoveLayer deletes a layer, drops it from its group and closes the z-index gap.
func (s *Stack) RemoveLayer(id string) error {
	if !s.Detach(id) {
		return NotFoundError{Kind: "layer", ID: id}
	}
	s.markDirty()
	return nil
}

// Detach is RemoveLayer without the dirty mark, for removals received from another window.
func (s *Stack) Detach(id string) bool {
	_, kind, ok := s.Find(id)
	if !ok {
		return false
	}
	if kind == model.EntryObject {
		s.board.Objects = removeLayer(s.board.Objects, id)
	} else {
		s.board.Layers = removeLayer(s.board.Layers, id)
	}
	removeEverywhere(s.board, id)
	collectEmptyGroups(s.board)
	s.Normalize()
	return true
}

func removeLayer(in []model.Layer, id string) []model.Layer {
	out := in[:0]
	for _, l := range in {
		if l.ID != id {
			out = append(out, l)
		}
	}
	return out
}

// SetVisible reports whether the flag changed.
func (s *Stack) SetVisible(id string, visible bool) (bool, error) {
	l, _, ok := s.Find(id)
	if !ok {
		return false, NotFoundError{Kind: "layer", ID: id}
	}
	if l.Visible == visible {
		return false, nil
	}
	l.Visible = visible
	s.markDirty()
	return true, nil
}

// SetFilters replaces a layer's filters. nil clears them.
func (s *Stack) SetFilters(id string, f *model.Filters) (bool, error) {
	l, _, ok := s.Find(id)
	if !ok {
		return false, NotFoundError{Kind: "layer", ID: id}
	}
	if sameFilters(l.Filters, f) {
		return false, nil
	}
	if f == nil {
		l.Filters = nil
	} else {
		c := *f
		l.Filters = &c
	}
	s.markDirty()
	return true, nil
}

func sameFilters(a, b *model.Filters) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Gather moves ids into one contiguous block at the position of the front-most member,
// preserving their relative order, and commits the result.
func (s *Stack) Gather(ids []string) ([]string, error) {
	members := make(map[string]bool, len(ids))
	for _, id := range ids {
		members[id] = true
	}
	flat := s.Flatten()
	front := -1
	for i, e := range flat {
		if members[e.ID] {
			front = i
		}
	}
	if front < 0 {
		return nil, nil
	}
	block := make([]Entry, 0, len(ids))
	rest := make([]Entry, 0, len(flat))
	insertAt := 0
	for i, e := range flat {
		if members[e.ID] {
			block = append(block, e)
			continue
		}
		if i < front {
			insertAt++
		}
		rest = append(rest, e)
	}
	return s.CommitOrder(InsertBlock(rest, block, insertAt))
}

// InsertBlock returns a new slice with block inserted into rest at index at.
func InsertBlock(rest, block []Entry, at int) []Entry {
	if at < 0 {
		at = 0
	}
	if at > len(rest) {
		at = len(rest)
	}
	out := make([]Entry, 0, len(rest)+len(block))
	out = append(out, rest[:at]...)
	out = append(out, block...)
	out = append(out, rest[at:]...)
	return out
}
