package stack

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"moodboard/internal/model"
)

// testBoard builds a board whose images are ids in back-to-front order.
func testBoard(ids ...string) *model.Board {
	b := &model.Board{ID: "board-t", Name: "T"}
	for i, id := range ids {
		b.Layers = append(b.Layers, model.Layer{ID: id, Kind: model.LayerKindImage, Visible: true, ZIndex: i})
	}
	return b
}

func orderOf(st *Stack) []string {
	return IDs(st.Flatten())
}

func assertContiguous(t *testing.T, st *Stack) {
	t.Helper()
	seen := map[int]bool{}
	for _, e := range st.Flatten() {
		l, _, _ := st.Find(e.ID)
		if l.ZIndex < 0 || l.ZIndex >= st.Len() || seen[l.ZIndex] {
			t.Fatalf("z-indices not contiguous: %+v", st.Flatten())
		}
		seen[l.ZIndex] = true
	}
}

func entries(st *Stack, ids ...string) []Entry {
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		_, kind, _ := st.Find(id)
		out = append(out, Entry{Kind: kind, ID: id})
	}
	return out
}

func TestFlatten_InterleavesImagesAndObjects(t *testing.T) {
	b := testBoard("a", "c")
	b.Layers[1].ZIndex = 2
	b.Objects = []model.Layer{{ID: "t1", Kind: model.LayerKindText, ZIndex: 1}}
	st := New(b)

	got := st.Flatten()
	want := []Entry{
		{Kind: model.EntryImage, ID: "a", ZIndex: 0},
		{Kind: model.EntryObject, ID: "t1", ZIndex: 1},
		{Kind: model.EntryImage, ID: "c", ZIndex: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("flatten: got %+v want %+v", got, want)
	}
	rev := IDs(st.ReversedForDisplay())
	if !reflect.DeepEqual(rev, []string{"c", "t1", "a"}) {
		t.Fatalf("reversed: got %v", rev)
	}
}

func TestCommitOrder_ReportsChangedAndIsIdempotent(t *testing.T) {
	st := New(testBoard("a", "b", "c", "d"))
	dirty := 0
	st.OnDirty(func() { dirty++ })

	changed, err := st.CommitOrder(entries(st, "b", "a", "c", "d"))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !reflect.DeepEqual(changed, []string{"b", "a"}) {
		t.Fatalf("changed: got %v", changed)
	}
	if dirty != 1 {
		t.Fatalf("expected one dirty mark, got %d", dirty)
	}
	assertContiguous(t, st)

	again, err := st.CommitOrder(entries(st, "b", "a", "c", "d"))
	if err != nil {
		t.Fatalf("commit again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second commit should be a no-op, got %v", again)
	}
	if dirty != 1 {
		t.Fatalf("no-op commit marked dirty")
	}
}

func TestCommitOrder_RejectsPartialOrders(t *testing.T) {
	st := New(testBoard("a", "b", "c"))

	if _, err := st.CommitOrder(entries(st, "a", "b")); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for short order, got %v", err)
	}
	if _, err := st.CommitOrder(entries(st, "a", "a", "b")); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for duplicate, got %v", err)
	}
	bad := entries(st, "a", "b")
	bad = append(bad, Entry{ID: "zz"})
	if _, err := st.CommitOrder(bad); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := orderOf(st); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("rejected commit mutated order: %v", got)
	}
}

func TestCommitOrder_KeepsContiguityAcrossManyCommits(t *testing.T) {
	st := New(testBoard("a", "b", "c", "d", "e"))
	orders := [][]string{
		{"e", "d", "c", "b", "a"},
		{"c", "a", "e", "b", "d"},
		{"a", "b", "c", "d", "e"},
		{"d", "a", "b", "e", "c"},
	}
	for _, o := range orders {
		if _, err := st.CommitOrder(entries(st, o...)); err != nil {
			t.Fatalf("commit %v: %v", o, err)
		}
		assertContiguous(t, st)
		if got := orderOf(st); !reflect.DeepEqual(got, o) {
			t.Fatalf("order: got %v want %v", got, o)
		}
	}
}

func TestNormalize_RepairsLoadedDuplicates(t *testing.T) {
	var b model.Board
	raw := `{"id":"board-x","layers":[{"id":"a"},{"id":"b"}],"objects":[{"id":"t","kind":"text"}]}`
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !b.Layers[0].Visible || b.Groups == nil {
		t.Fatalf("load defaults not applied: %+v", b)
	}
	st := New(&b)
	st.Normalize()
	assertContiguous(t, st)
	if got := orderOf(st); !reflect.DeepEqual(got, []string{"a", "b", "t"}) {
		t.Fatalf("normalized order: %v", got)
	}
}

func TestApply_OverwritesAndIgnoresUnknown(t *testing.T) {
	st := New(testBoard("a", "b", "c"))
	dirty := false
	st.OnDirty(func() { dirty = true })

	msg := []Entry{
		{Kind: model.EntryImage, ID: "c", ZIndex: 0},
		{Kind: model.EntryImage, ID: "ghost", ZIndex: 1},
		{Kind: model.EntryImage, ID: "b", ZIndex: 2},
		{Kind: model.EntryImage, ID: "a", ZIndex: 3},
	}
	st.Apply(msg)
	first := st.Flatten()
	if got := IDs(first); !reflect.DeepEqual(got, []string{"c", "b", "a"}) {
		t.Fatalf("apply: got %v", got)
	}
	assertContiguous(t, st)

	if changed := st.Apply(msg); len(changed) != 0 {
		t.Fatalf("second apply should change nothing, got %v", changed)
	}
	if !reflect.DeepEqual(st.Flatten(), first) {
		t.Fatalf("apply is not idempotent")
	}
	if dirty {
		t.Fatalf("remote apply must not mark dirty")
	}
}

func TestAddAndRemoveLayer(t *testing.T) {
	st := New(testBoard("a", "b"))
	l, err := st.AddLayer(model.Layer{Kind: model.LayerKindShape, Visible: true})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if l.ZIndex != 2 || l.ID == "" {
		t.Fatalf("added layer: %+v", l)
	}
	if _, err := st.AddLayer(model.Layer{ID: "a"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	if _, err := st.AddLayer(model.Layer{Kind: "hologram"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected kind rejection, got %v", err)
	}

	if err := st.RemoveLayer("a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	assertContiguous(t, st)
	if got := orderOf(st); !reflect.DeepEqual(got, []string{"b", l.ID}) {
		t.Fatalf("after remove: %v", got)
	}
	if err := st.RemoveLayer("a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetVisibleAndFilters(t *testing.T) {
	st := New(testBoard("a"))
	changed, err := st.SetVisible("a", false)
	if err != nil || !changed {
		t.Fatalf("SetVisible: changed=%v err=%v", changed, err)
	}
	changed, _ = st.SetVisible("a", false)
	if changed {
		t.Fatalf("expected no-op")
	}
	f := model.DefaultFilters()
	f.Blur = 3
	if changed, _ := st.SetFilters("a", &f); !changed {
		t.Fatalf("expected filters change")
	}
	if changed, _ := st.SetFilters("a", &f); changed {
		t.Fatalf("expected filters no-op")
	}
	if _, err := st.SetVisible("nope", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGather_BlockLandsAtFrontMostMember(t *testing.T) {
	st := New(testBoard("a", "b", "c", "d", "e"))
	if _, err := st.Gather([]string{"b", "d"}); err != nil {
		t.Fatalf("gather: %v", err)
	}
	if got := orderOf(st); !reflect.DeepEqual(got, []string{"a", "c", "b", "d", "e"}) {
		t.Fatalf("gather: got %v", got)
	}
}

func TestAdoptAndDetach_DoNotMarkDirty(t *testing.T) {
	st := New(testBoard("a", "b", "c"))
	dirty := 0
	st.OnDirty(func() { dirty++ })

	if !st.Adopt(model.Layer{ID: "t", Kind: model.LayerKindText, ZIndex: 1}) {
		t.Fatalf("adopt refused a new layer")
	}
	if got := orderOf(st); !reflect.DeepEqual(got, []string{"a", "t", "b", "c"}) {
		t.Fatalf("adopt order: %v", got)
	}
	if len(st.Board().Objects) != 1 {
		t.Fatalf("text layer should land in objects")
	}
	if st.Adopt(model.Layer{ID: "t", ZIndex: 0}) {
		t.Fatalf("adopting a known layer twice must be a no-op")
	}
	assertContiguous(t, st)

	g := NewGroups(st)
	if _, err := g.Create("", []string{"a", "t"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	dirty = 0
	if !st.Detach("t") {
		t.Fatalf("detach failed")
	}
	if st.Detach("t") {
		t.Fatalf("second detach should report false")
	}
	if len(g.List()) != 1 || g.List()[0].Has("t") || !g.List()[0].Has("a") {
		t.Fatalf("detach should only drop t from its group: %+v", g.List())
	}
	if dirty != 0 {
		t.Fatalf("remote removal marked dirty")
	}
	assertContiguous(t, st)
}
