// Package drag turns pointer-drag gestures over a layer panel into committed stack orders.
//
// During a drag every candidate order is computed on a private copy of the flattened
// stack. Only Drop touches the stack, so intermediate hovers never broadcast or save.
package drag

import (
	"errors"

	"moodboard/internal/stack"
)

var (
	ErrNotDragging     = errors.New("drag: not dragging")
	ErrAlreadyDragging = errors.New("drag: already dragging")
)

type Phase int

const (
	Idle Phase = iota
	Dragging
)

func (p Phase) String() string {
	if p == Dragging {
		return "dragging"
	}
	return "idle"
}

// Edge says where, relative to the hovered target, the dragged unit lands. Before is a lower
// index in the back-to-front order (further back), After a higher one.
type Edge int

const (
	Before Edge = iota
	After
)

// Bounds is a vertical extent in surface coordinates.
type Bounds struct {
	Top    float64
	Bottom float64
}

func (b Bounds) IsZero() bool { return b.Top == 0 && b.Bottom == 0 }

func (b Bounds) Mid() float64 { return b.Top + (b.Bottom-b.Top)/2 }

func (b Bounds) Contains(y float64) bool { return y >= b.Top && y <= b.Bottom }

// EdgeFor compares the pointer against the target's vertical midpoint.
func EdgeFor(pointerY float64, target Bounds) Edge {
	if pointerY < target.Mid() {
		return Before
	}
	return After
}

type TargetKind int

const (
	TargetLayer TargetKind = iota
	TargetGroup
	TargetEmpty
)

// Source is what the pointer picked up.
type Source struct {
	ID      string
	IsGroup bool
	// GroupBounds are the on-screen bounds of the group the layer was dragged from. When the
	// drop lands outside them the layer leaves the group. Zero bounds disable eviction.
	GroupBounds Bounds
}

// Target is the item currently under the pointer.
type Target struct {
	Kind   TargetKind
	ID     string
	Bounds Bounds
}

type Result struct {
	Order     []stack.Entry
	Changed   []string
	Evicted   string // group the dragged layer left, if any
	Cancelled bool
}

// Engine is the Idle -> Dragging -> (Committed | Cancelled) -> Idle state machine.
type Engine struct {
	st     *stack.Stack
	groups *stack.Groups

	phase       Phase
	src         Source
	originGroup string
	working     []stack.Entry
	hovered     bool
}

func New(st *stack.Stack, groups *stack.Groups) *Engine {
	return &Engine{st: st, groups: groups}
}

func (e *Engine) Phase() Phase { return e.phase }

// Working returns a copy of the current candidate order.
func (e *Engine) Working() []stack.Entry {
	return append([]stack.Entry{}, e.working...)
}

// Start snapshots the flattened stack and remembers what is being dragged.
func (e *Engine) Start(src Source) error {
	if e.phase == Dragging {
		return ErrAlreadyDragging
	}
	if src.IsGroup {
		if _, ok := e.groups.Find(src.ID); !ok {
			return stack.NotFoundError{Kind: "group", ID: src.ID}
		}
	} else if _, _, ok := e.st.Find(src.ID); !ok {
		return stack.NotFoundError{Kind: "layer", ID: src.ID}
	}

	e.src = src
	e.originGroup = ""
	if !src.IsGroup {
		if grp, ok := e.groups.ResolveGroupFor(src.ID); ok {
			e.originGroup = grp.ID
		}
	}
	e.working = e.st.Flatten()
	e.hovered = false
	e.phase = Dragging
	return nil
}

// Over recomputes the candidate order for a hover at pointerY.
func (e *Engine) Over(t Target, pointerY float64) ([]stack.Entry, error) {
	return e.OverEdge(t, EdgeFor(pointerY, t.Bounds))
}

// OverEdge is Over with the edge already decided by the caller.
func (e *Engine) OverEdge(t Target, edge Edge) ([]stack.Entry, error) {
	if e.phase != Dragging {
		return nil, ErrNotDragging
	}
	e.working = rebase(e.working, e.st.Flatten())
	moving := e.unitOf(e.src.ID, e.src.IsGroup)

	if t.Kind == TargetEmpty {
		e.working = moveUnit(e.working, moving, nil, Before)
		e.hovered = true
		return e.Working(), nil
	}

	target, ok := e.targetUnit(t)
	if !ok {
		// The target has not reached this window yet; keep the last candidate.
		return e.Working(), nil
	}
	for id := range target {
		if moving[id] {
			return e.Working(), nil
		}
	}
	e.working = moveUnit(e.working, moving, target, edge)
	e.hovered = true
	return e.Working(), nil
}

// Drop commits the candidate order. A drag that never hovered a valid target is cancelled.
func (e *Engine) Drop(pointerY float64) (Result, error) {
	if e.phase != Dragging {
		return Result{}, ErrNotDragging
	}
	defer e.reset()
	if !e.hovered {
		return Result{Cancelled: true}, nil
	}

	// Sibling windows may have added or removed layers since Start.
	order := rebase(e.working, e.st.Flatten())
	changed, err := e.st.CommitOrder(order)
	if err != nil {
		return Result{}, err
	}
	res := Result{Order: e.st.Flatten(), Changed: changed}

	if !e.src.IsGroup && e.originGroup != "" && !e.src.GroupBounds.IsZero() && !e.src.GroupBounds.Contains(pointerY) {
		if e.groups.Evict(e.src.ID) {
			res.Evicted = e.originGroup
		}
	}
	return res, nil
}

// Cancel discards the candidate order without touching the stack.
func (e *Engine) Cancel() {
	e.reset()
}

func (e *Engine) reset() {
	e.phase = Idle
	e.src = Source{}
	e.originGroup = ""
	e.working = nil
	e.hovered = false
}

func (e *Engine) unitOf(id string, isGroup bool) map[string]bool {
	if !isGroup {
		return map[string]bool{id: true}
	}
	grp, ok := e.groups.Find(id)
	if !ok {
		return map[string]bool{}
	}
	out := map[string]bool{}
	for _, m := range grp.MemberIDs() {
		out[m] = true
	}
	return out
}

// targetUnit resolves the set of identities the dragged unit is placed against.
// Groups are indivisible when a group is dragged, or when the target is a group row.
func (e *Engine) targetUnit(t Target) (map[string]bool, bool) {
	switch t.Kind {
	case TargetGroup:
		if _, ok := e.groups.Find(t.ID); !ok {
			return nil, false
		}
		return e.unitOf(t.ID, true), true
	case TargetLayer:
		if _, _, ok := e.st.Find(t.ID); !ok {
			return nil, false
		}
		if grp, ok := e.groups.ResolveGroupFor(t.ID); ok && (e.src.IsGroup || grp.Collapsed) {
			return e.unitOf(grp.ID, true), true
		}
		return map[string]bool{t.ID: true}, true
	}
	return nil, false
}

// rebase carries a candidate order over to the current stack. Identities gone from current
// are dropped. Identities new in current go directly before the entry that follows them
// there, or to the front when nothing does.
func rebase(working, current []stack.Entry) []stack.Entry {
	now := make(map[string]stack.Entry, len(current))
	for _, en := range current {
		now[en.ID] = en
	}
	known := make(map[string]bool, len(working))
	out := make([]stack.Entry, 0, len(current))
	for _, en := range working {
		if cur, ok := now[en.ID]; ok && !known[en.ID] {
			out = append(out, cur)
			known[en.ID] = true
		}
	}
	if len(out) == len(current) {
		return out
	}

	next := ""
	for i := len(current) - 1; i >= 0; i-- {
		en := current[i]
		if !known[en.ID] {
			at := len(out)
			if next != "" {
				at = indexOf(out, next)
			}
			out = stack.InsertBlock(out, []stack.Entry{en}, at)
		}
		next = en.ID
	}
	return out
}

func indexOf(order []stack.Entry, id string) int {
	for i, en := range order {
		if en.ID == id {
			return i
		}
	}
	return len(order)
}

// moveUnit extracts the moving entries as a block (keeping their relative order) and
// reinserts it before the first or after the last entry of target. A nil target means the
// back of the stack.
func moveUnit(order []stack.Entry, moving, target map[string]bool, edge Edge) []stack.Entry {
	block := make([]stack.Entry, 0, len(moving))
	rest := make([]stack.Entry, 0, len(order))
	for _, en := range order {
		if moving[en.ID] {
			block = append(block, en)
		} else {
			rest = append(rest, en)
		}
	}
	if len(block) == 0 {
		return order
	}
	if target == nil {
		return stack.InsertBlock(rest, block, 0)
	}

	first, last := -1, -1
	for i, en := range rest {
		if target[en.ID] {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return order
	}
	at := first
	if edge == After {
		at = last + 1
	}
	return stack.InsertBlock(rest, block, at)
}
