package stack

import (
	"errors"
	"reflect"
	"testing"

	"moodboard/internal/model"
)

func groupsFor(t *testing.T, b *model.Board) (*Stack, *Groups) {
	t.Helper()
	st := New(b)
	return st, NewGroups(st)
}

func membership(g *Groups, layerID string) int {
	n := 0
	for _, grp := range g.List() {
		if grp.Has(layerID) {
			n++
		}
	}
	return n
}

func TestCreateGroup_RequiresTwoMembers(t *testing.T) {
	st, g := groupsFor(t, testBoard("a", "b"))
	before := orderOf(st)

	if _, err := g.Create("solo", []string{"a"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := g.Create("dupes", []string{"a", "a"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for duplicate ids, got %v", err)
	}
	if _, err := g.Create("ghost", []string{"a", "zz"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(g.List()) != 0 {
		t.Fatalf("rejected create left a group behind: %+v", g.List())
	}
	if !reflect.DeepEqual(orderOf(st), before) {
		t.Fatalf("rejected create changed order")
	}
}

func TestCreateGroup_SplitsKindsAndGathers(t *testing.T) {
	b := testBoard("a", "b", "c")
	b.Objects = []model.Layer{{ID: "t", Kind: model.LayerKindText, ZIndex: 3}}
	st, g := groupsFor(t, b)

	grp, err := g.Create("refs", []string{"t", "a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !reflect.DeepEqual(grp.LayerIDs, []string{"a"}) || !reflect.DeepEqual(grp.ObjectIDs, []string{"t"}) {
		t.Fatalf("membership lists: %+v", grp)
	}
	if got := orderOf(st); !reflect.DeepEqual(got, []string{"b", "c", "a", "t"}) {
		t.Fatalf("gathered order: %v", got)
	}
	assertContiguous(t, st)
}

func TestAddMember_IsExclusiveAndCollectsEmptyGroups(t *testing.T) {
	_, g := groupsFor(t, testBoard("a", "b", "c", "d"))
	g1, err := g.Create("one", []string{"a", "b"})
	if err != nil {
		t.Fatalf("create g1: %v", err)
	}
	g2, err := g.Create("two", []string{"c", "d"})
	if err != nil {
		t.Fatalf("create g2: %v", err)
	}

	if err := g.AddMember(g2.ID, "a"); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if membership(g, "a") != 1 {
		t.Fatalf("a should belong to exactly one group")
	}
	if grp, _ := g.ResolveGroupFor("a"); grp.ID != g2.ID {
		t.Fatalf("a resolved to %s", grp.ID)
	}

	// Moving the last member out of g1 removes it.
	if err := g.AddMember(g2.ID, "b"); err != nil {
		t.Fatalf("add b: %v", err)
	}
	if _, ok := g.Find(g1.ID); ok {
		t.Fatalf("empty group was not collected")
	}

	// Re-adding an existing member is a no-op.
	if err := g.AddMember(g2.ID, "b"); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	grp, _ := g.Find(g2.ID)
	if n := len(grp.MemberIDs()); n != 4 {
		t.Fatalf("expected 4 members, got %d", n)
	}
}

func TestRemoveMember_LastMemberDeletesGroup(t *testing.T) {
	_, g := groupsFor(t, testBoard("a", "b"))
	grp, _ := g.Create("pair", []string{"a", "b"})

	removed, err := g.RemoveMember(grp.ID, "a")
	if err != nil || !removed {
		t.Fatalf("remove a: removed=%v err=%v", removed, err)
	}
	if removed, _ := g.RemoveMember(grp.ID, "a"); removed {
		t.Fatalf("second removal should report false")
	}
	if _, err := g.RemoveMember(grp.ID, "b"); err != nil {
		t.Fatalf("remove b: %v", err)
	}
	if len(g.List()) != 0 {
		t.Fatalf("group should be gone: %+v", g.List())
	}
}

func TestDeleteGroup_KeepsLayers(t *testing.T) {
	st, g := groupsFor(t, testBoard("a", "b"))
	grp, _ := g.Create("pair", []string{"a", "b"})
	if err := g.Delete(grp.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if st.Len() != 2 {
		t.Fatalf("layers were deleted with the group")
	}
	if err := g.Delete(grp.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveLayer_DropsMembership(t *testing.T) {
	st, g := groupsFor(t, testBoard("a", "b", "c"))
	grp, _ := g.Create("pair", []string{"a", "b"})
	if err := st.RemoveLayer("a"); err != nil {
		t.Fatalf("remove layer: %v", err)
	}
	got, ok := g.Find(grp.ID)
	if !ok || got.Has("a") {
		t.Fatalf("membership not cleaned: %+v", got)
	}
}

func TestReplace_EnforcesExclusivity(t *testing.T) {
	_, g := groupsFor(t, testBoard("a", "b", "c"))
	g.Replace([]model.Group{
		{ID: "g1", LayerIDs: []string{"a", "b"}},
		{ID: "g2", LayerIDs: []string{"b", "ghost"}},
		{ID: "g3", LayerIDs: []string{"c"}},
	})
	if len(g.List()) != 2 {
		t.Fatalf("expected g2 to be collected, got %+v", g.List())
	}
	if membership(g, "b") != 1 {
		t.Fatalf("b claimed twice")
	}
}

func TestRows_FrontToBackWithHeaders(t *testing.T) {
	_, g := groupsFor(t, testBoard("a", "b", "c", "d"))
	grp, _ := g.Create("mid", []string{"b", "c"})

	rows := g.Rows()
	var got []string
	for _, r := range rows {
		if r.Kind == RowGroup {
			got = append(got, "group:"+r.GroupID)
			continue
		}
		got = append(got, r.Entry.ID)
	}
	want := []string{"d", "group:" + grp.ID, "c", "b", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rows: got %v want %v", got, want)
	}

	if _, err := g.SetCollapsed(grp.ID, true); err != nil {
		t.Fatalf("collapse: %v", err)
	}
	if n := len(g.Rows()); n != 3 {
		t.Fatalf("collapsed rows: expected 3, got %d", n)
	}
}
