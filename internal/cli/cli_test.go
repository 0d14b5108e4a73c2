package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

type cliEnv struct {
	t    *testing.T
	base []string
}

func newEnv(t *testing.T, storeBackend string) cliEnv {
	return cliEnv{t: t, base: []string{"--dir", t.TempDir(), "--store", storeBackend, "--sync", "memory"}}
}

func (e cliEnv) run(args ...string) map[string]any {
	e.t.Helper()
	full := append(append([]string{}, e.base...), args...)
	stdout, stderr, err := runCLI(e.t, full)
	if err != nil {
		e.t.Fatalf("command failed: moodboard %v\nerr: %v\nstderr:\n%s\nstdout:\n%s", args, err, stderr, stdout)
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		e.t.Fatalf("unmarshal stdout as json envelope: %v\nstdout:\n%s\nargs: %v", err, stdout, args)
	}
	if _, ok := env["data"]; !ok {
		e.t.Fatalf("expected JSON envelope to contain data key; got: %v", env)
	}
	return env
}

func (e cliEnv) fail(args ...string) string {
	e.t.Helper()
	full := append(append([]string{}, e.base...), args...)
	_, stderr, err := runCLI(e.t, full)
	if err == nil {
		e.t.Fatalf("expected moodboard %v to fail", args)
	}
	return string(stderr)
}

func (e cliEnv) createBoard(name string) string {
	e.t.Helper()
	env := e.run("boards", "create", "--name", name)
	id, _ := env["data"].(map[string]any)["id"].(string)
	if id == "" {
		e.t.Fatalf("expected boards create to return an id; got %#v", env["data"])
	}
	return id
}

func (e cliEnv) layerIDs(boardID string) []string {
	e.t.Helper()
	env := e.run("layers", "list", boardID)
	return idsOf(e.t, env["data"])
}

func idsOf(t *testing.T, v any) []string {
	t.Helper()
	xs, ok := v.([]any)
	if !ok {
		t.Fatalf("expected a list; got %#v", v)
	}
	var out []string
	for _, x := range xs {
		id, _ := x.(map[string]any)["id"].(string)
		out = append(out, id)
	}
	return out
}

func equalIDs(a, b []string) bool {
	return strings.Join(a, ",") == strings.Join(b, ",")
}

func TestBoards_CreateListShowRenameDelete(t *testing.T) {
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			e := newEnv(t, backend)
			id := e.createBoard("Refs")

			list := idsOf(t, e.run("boards", "list")["data"])
			if !equalIDs(list, []string{id}) {
				t.Fatalf("boards list: got %v", list)
			}

			shown := e.run("boards", "show", id)["data"].(map[string]any)
			if shown["name"] != "Refs" || shown["bgColor"] != "#1e1e1e" {
				t.Fatalf("unexpected board: %#v", shown)
			}

			renamed := e.run("boards", "rename", id, "Mood")["data"].(map[string]any)
			if renamed["name"] != "Mood" {
				t.Fatalf("expected rename to persist; got %#v", renamed)
			}

			e.run("boards", "delete", id)
			if got := e.run("boards", "list")["data"].([]any); len(got) != 0 {
				t.Fatalf("expected no boards after delete; got %v", got)
			}
			e.fail("boards", "show", id)
		})
	}
}

func TestLayers_AddMoveHideRemove(t *testing.T) {
	e := newEnv(t, "file")
	board := e.createBoard("Stack")
	for _, id := range []string{"a", "b", "c"} {
		e.run("layers", "add", board, "--id", id, "--name", id, "--src", id+".png")
	}
	if got := e.layerIDs(board); !equalIDs(got, []string{"c", "b", "a"}) {
		t.Fatalf("expected newest layer in front; got %v", got)
	}

	moved := e.run("layers", "move", board, "a", "--after", "c")["data"].(map[string]any)
	if changed, _ := moved["changed"].([]any); len(changed) != 3 {
		t.Fatalf("expected 3 changed ids; got %#v", moved["changed"])
	}
	if got := e.layerIDs(board); !equalIDs(got, []string{"a", "c", "b"}) {
		t.Fatalf("after move: got %v", got)
	}

	e.run("layers", "move", board, "a", "--back")
	if got := e.layerIDs(board); !equalIDs(got, []string{"c", "b", "a"}) {
		t.Fatalf("after --back: got %v", got)
	}
	e.run("layers", "move", board, "b", "--front")
	if got := e.layerIDs(board); !equalIDs(got, []string{"b", "c", "a"}) {
		t.Fatalf("after --front: got %v", got)
	}

	e.run("layers", "hide", board, "c")
	for _, l := range e.run("layers", "list", board)["data"].([]any) {
		row := l.(map[string]any)
		if row["id"] == "c" && row["visible"] != false {
			t.Fatalf("expected c hidden; got %#v", row)
		}
	}

	e.run("layers", "remove", board, "c")
	if got := e.layerIDs(board); !equalIDs(got, []string{"b", "a"}) {
		t.Fatalf("after remove: got %v", got)
	}
	zs := e.run("layers", "list", board)["data"].([]any)
	if z := zs[0].(map[string]any)["zIndex"]; z != float64(1) {
		t.Fatalf("expected contiguous z-indices after remove; front z=%v", z)
	}
}

func TestLayers_MoveValidation(t *testing.T) {
	e := newEnv(t, "file")
	board := e.createBoard("Stack")
	e.run("layers", "add", board, "--id", "a")
	e.run("layers", "add", board, "--id", "b")

	if msg := e.fail("layers", "move", board, "a"); !strings.Contains(msg, "exactly one of") {
		t.Fatalf("expected a flag error; got %q", msg)
	}
	if msg := e.fail("layers", "move", board, "a", "--after", "nope"); !strings.Contains(msg, "layer not found: nope") {
		t.Fatalf("expected a not-found error; got %q", msg)
	}
	e.fail("layers", "add", board, "--kind", "sculpture")
	e.fail("layers", "hide", "board-missing", "a")
}

func TestLayers_FilterKeepsUnsetValues(t *testing.T) {
	e := newEnv(t, "file")
	board := e.createBoard("Filters")
	e.run("layers", "add", board, "--id", "a")

	out := e.run("layers", "filter", board, "a", "--brightness", "50")["data"].(map[string]any)
	f := out["filters"].(map[string]any)
	if f["brightness"] != float64(50) || f["contrast"] != float64(100) {
		t.Fatalf("unexpected filters: %#v", f)
	}
	out = e.run("layers", "filter", board, "a", "--blur", "4")["data"].(map[string]any)
	f = out["filters"].(map[string]any)
	if f["brightness"] != float64(50) || f["blur"] != float64(4) {
		t.Fatalf("expected earlier filter values kept; got %#v", f)
	}

	e.run("layers", "filter", board, "a", "--reset")
	shown := e.run("boards", "show", board)["data"].(map[string]any)
	layer := shown["layers"].([]any)[0].(map[string]any)
	if _, ok := layer["filters"]; ok {
		t.Fatalf("expected filters cleared; got %#v", layer)
	}
}

func TestGroups_Lifecycle(t *testing.T) {
	e := newEnv(t, "file")
	board := e.createBoard("Groups")
	for _, id := range []string{"a", "b", "c", "d"} {
		e.run("layers", "add", board, "--id", id)
	}
	// Back to front: a b c d. Grouping a and c gathers them at c.
	grp := e.run("groups", "create", board, "--name", "Pair", "--layers", "a,c")["data"].(map[string]any)
	groupID, _ := grp["id"].(string)
	if groupID == "" {
		t.Fatalf("expected group id; got %#v", grp)
	}
	if got := e.layerIDs(board); !equalIDs(got, []string{"d", "c", "a", "b"}) {
		t.Fatalf("expected members gathered; got %v", got)
	}

	e.run("layers", "move", board, groupID, "--front")
	if got := e.layerIDs(board); !equalIDs(got, []string{"c", "a", "d", "b"}) {
		t.Fatalf("expected group moved as a unit; got %v", got)
	}

	groups := e.run("groups", "collapse", board, groupID)["data"].([]any)
	if groups[0].(map[string]any)["collapsed"] != true {
		t.Fatalf("expected group collapsed; got %#v", groups)
	}
	groups = e.run("groups", "rename", board, groupID, "Refs")["data"].([]any)
	if groups[0].(map[string]any)["name"] != "Refs" {
		t.Fatalf("expected group renamed; got %#v", groups)
	}
	e.run("groups", "add", board, groupID, "b")
	e.run("groups", "remove", board, groupID, "a")

	// Removing the remaining members collects the group.
	e.run("groups", "remove", board, groupID, "c")
	groups = e.run("groups", "remove", board, groupID, "b")["data"].([]any)
	if len(groups) != 0 {
		t.Fatalf("expected empty group to be collected; got %#v", groups)
	}
	e.fail("groups", "delete", board, groupID)
}

func TestGroups_CreateNeedsTwoMembers(t *testing.T) {
	e := newEnv(t, "file")
	board := e.createBoard("Groups")
	e.run("layers", "add", board, "--id", "a")
	if msg := e.fail("groups", "create", board, "--layers", "a"); !strings.Contains(msg, "at least 2") {
		t.Fatalf("expected a member-count error; got %q", msg)
	}
}

func TestBackgroundAndView(t *testing.T) {
	e := newEnv(t, "sqlite")
	board := e.createBoard("Props")

	meta := e.run("background", board, "#fafafa")["data"].(map[string]any)
	if meta["bgColor"] != "#fafafa" {
		t.Fatalf("expected background saved; got %#v", meta)
	}

	e.run("view", board, "--zoom", "2.5", "--pan-x", "10")
	shown := e.run("boards", "show", board)["data"].(map[string]any)
	vs := shown["viewState"].(map[string]any)
	if vs["zoom"] != 2.5 || vs["pan"].(map[string]any)["x"] != float64(10) {
		t.Fatalf("unexpected view state: %#v", vs)
	}
	e.fail("view", board, "--zoom", "0")
}

func TestTextFormat_RendersTables(t *testing.T) {
	e := newEnv(t, "file")
	board := e.createBoard("Tables")
	e.run("layers", "add", board, "--id", "a", "--name", "sky")

	args := append(append([]string{}, e.base...), "--format", "text", "layers", "list", board)
	stdout, stderr, err := runCLI(t, args)
	if err != nil {
		t.Fatalf("layers list --format text: %v\n%s", err, stderr)
	}
	out := string(stdout)
	for _, want := range []string{"KIND", "sky", "image"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table; got:\n%s", want, out)
		}
	}
}

func TestBoardsShow_Markdown(t *testing.T) {
	t.Setenv("MOODBOARD_MD_STYLE", "notty")
	e := newEnv(t, "file")
	board := e.createBoard("Summary")
	e.run("layers", "add", board, "--id", "a", "--name", "sky")
	e.run("layers", "add", board, "--id", "b", "--name", "sea")
	e.run("groups", "create", board, "--name", "Water", "--layers", "a,b")

	args := append(append([]string{}, e.base...), "--format", "markdown", "boards", "show", board)
	stdout, stderr, err := runCLI(t, args)
	if err != nil {
		t.Fatalf("boards show --format markdown: %v\n%s", err, stderr)
	}
	out := string(stdout)
	for _, want := range []string{"Summary", "sky", "sea", "Water", "2 layers"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in summary; got:\n%s", want, out)
		}
	}
}

func TestWatch_PrintsMessagesFromOtherProcesses(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()
	base := []string{"--dir", dir, "--store", "file", "--sync", "redis", "--redis-url", "redis://" + mr.Addr()}

	stdout, stderr, err := runCLI(t, append(append([]string{}, base...), "boards", "create", "--name", "Watched"))
	if err != nil {
		t.Fatalf("create: %v\n%s", err, stderr)
	}
	var env map[string]map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	board := env["data"]["id"].(string)
	if _, stderr, err := runCLI(t, append(append([]string{}, base...), "layers", "add", board, "--id", "a")); err != nil {
		t.Fatalf("add: %v\n%s", err, stderr)
	}

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		cmd := NewRootCmd()
		var outBuf, errBuf bytes.Buffer
		cmd.SetOut(&outBuf)
		cmd.SetErr(&errBuf)
		cmd.SetArgs(append(append([]string{}, base...), "watch", board, "--count", "1"))
		err := cmd.Execute()
		done <- result{out: outBuf.Bytes(), err: err}
	}()

	// The watcher subscribes asynchronously; keep editing until it reports a message.
	visible := false
	deadline := time.After(5 * time.Second)
	for {
		verb := "hide"
		if visible {
			verb = "show"
		}
		if _, stderr, err := runCLI(t, append(append([]string{}, base...), "layers", verb, board, "a")); err != nil {
			t.Fatalf("%s: %v\n%s", verb, err, stderr)
		}
		visible = !visible

		select {
		case r := <-done:
			if r.err != nil {
				t.Fatalf("watch: %v", r.err)
			}
			var msg map[string]any
			if err := json.Unmarshal(bytes.TrimSpace(r.out), &msg); err != nil {
				t.Fatalf("watch output is not a JSON line: %v\n%s", err, r.out)
			}
			if msg["type"] != "visibility-changed" || msg["boardId"] != board || msg["layerId"] != "a" {
				t.Fatalf("unexpected message: %#v", msg)
			}
			return
		case <-deadline:
			t.Fatalf("watch never printed a message")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
