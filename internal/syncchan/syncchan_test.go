package syncchan

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"moodboard/internal/model"
	"moodboard/internal/stack"
)

func recv(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			t.Fatalf("stream closed")
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return Message{}
}

func orderMsg(boardID, origin string, ids ...string) Message {
	var order []stack.Entry
	for i, id := range ids {
		order = append(order, stack.Entry{Kind: model.EntryImage, ID: id, ZIndex: i})
	}
	return Message{Type: TypeOrderChanged, BoardID: boardID, Origin: origin, Order: order}
}

func TestDecode_RejectsUnknownAndIncomplete(t *testing.T) {
	cases := []string{
		`{"type":"bogus","boardId":"b"}`,
		`{"type":"order-changed"}`,
		`{"type":"visibility-changed","boardId":"b","layerId":"x"}`,
		`{"type":"image-added","boardId":"b"}`,
		`not json`,
	}
	for _, raw := range cases {
		if _, err := Decode([]byte(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}

	raw, err := Encode(orderMsg("b", "w1", "x", "y"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(raw), `"type":"order-changed"`) {
		t.Fatalf("wire form missing type: %s", raw)
	}
	m, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(m.Order) != 2 || m.Order[1].ID != "y" || m.Origin != "w1" {
		t.Fatalf("unexpected message: %+v", m)
	}
}

func TestHub_DeliversToEveryBoardSubscriber(t *testing.T) {
	h := NewHub()
	defer h.Close()
	ctx := context.Background()

	a, cancelA, _ := h.Subscribe(ctx, "b1")
	b, cancelB, _ := h.Subscribe(ctx, "b1")
	other, cancelOther, _ := h.Subscribe(ctx, "b2")
	defer cancelB()
	defer cancelOther()

	if err := h.Publish(ctx, orderMsg("b1", "w1", "x")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if m := recv(t, a); m.Origin != "w1" {
		t.Fatalf("a: %+v", m)
	}
	if m := recv(t, b); m.Origin != "w1" {
		t.Fatalf("b: %+v", m)
	}
	select {
	case m := <-other:
		t.Fatalf("message leaked to another board: %+v", m)
	case <-time.After(20 * time.Millisecond):
	}

	cancelA()
	if _, ok := <-a; ok {
		t.Fatalf("cancelled stream still open")
	}
	if h.Subscribers("b1") != 1 {
		t.Fatalf("subscribers: %d", h.Subscribers("b1"))
	}
}

func TestHub_SlowReaderLosesNothing(t *testing.T) {
	h := NewHub()
	defer h.Close()
	ctx := context.Background()
	ch, cancel, _ := h.Subscribe(ctx, "b")
	defer cancel()

	const n = 500
	for i := 0; i < n; i++ {
		if err := h.Publish(ctx, Message{Type: TypeStateRequest, BoardID: "b", Origin: "w"}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	for i := 0; i < n; i++ {
		recv(t, ch)
	}
}

func TestHub_PublishAfterClose(t *testing.T) {
	h := NewHub()
	ch, _, _ := h.Subscribe(context.Background(), "b")
	_ = h.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("stream should close with the hub")
	}
	if err := h.Publish(context.Background(), orderMsg("b", "w")); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRedisChannel_PublishSubscribe(t *testing.T) {
	s := miniredis.RunT(t)
	c1, err := NewRedisChannel("redis://"+s.Addr(), nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c1.Close()
	c2, err := NewRedisChannel("redis://"+s.Addr(), nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c2.Close()

	ctx := context.Background()
	ch, cancel, err := c2.Subscribe(ctx, "b1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if err := c1.Publish(ctx, orderMsg("b1", "w1", "x", "y")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	m := recv(t, ch)
	if m.Type != TypeOrderChanged || len(m.Order) != 2 || m.Order[0].ID != "x" {
		t.Fatalf("unexpected message: %+v", m)
	}

	// Malformed payloads published by someone else are skipped.
	s.Publish(redisTopicPrefix+"b1", "garbage")
	if err := c1.Publish(ctx, Message{Type: TypeStateRequest, BoardID: "b1", Origin: "w2"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if m := recv(t, ch); m.Type != TypeStateRequest {
		t.Fatalf("expected state-request, got %+v", m)
	}
}

func TestRedisChannel_BadURL(t *testing.T) {
	if _, err := NewRedisChannel("not-a-url://", nil); err == nil {
		t.Fatalf("expected error")
	}
}

type fakeLoader struct {
	mu sync.Mutex
	b  *model.Board
}

func (f *fakeLoader) Load(ctx context.Context, id string) (*model.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.b.Clone(), nil
}

func (f *fakeLoader) set(fn func(b *model.Board)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.b)
	f.b.UpdatedAt = f.b.UpdatedAt.Add(time.Second)
}

func TestPollingChannel_ReplaysStoredChanges(t *testing.T) {
	loader := &fakeLoader{b: &model.Board{
		ID:        "b1",
		BgColor:   "#000",
		UpdatedAt: time.UnixMilli(1_000),
		Layers: []model.Layer{
			{ID: "x", Kind: model.LayerKindImage, Visible: true, ZIndex: 0},
			{ID: "y", Kind: model.LayerKindImage, Visible: true, ZIndex: 1},
		},
	}}
	c := NewPollingChannel(loader, 10*time.Millisecond, nil)
	defer c.Close()

	ch, cancel, err := c.Subscribe(context.Background(), "b1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	// Let the baseline be recorded, then change the stored record.
	time.Sleep(30 * time.Millisecond)
	loader.set(func(b *model.Board) {
		b.BgColor = "#fff"
		b.Layers[0].ZIndex, b.Layers[1].ZIndex = 1, 0
		b.Layers[1].Visible = false
	})

	var sawState, sawHidden bool
	deadline := time.After(2 * time.Second)
	for !(sawState && sawHidden) {
		select {
		case m := <-ch:
			if m.Origin != PollOrigin {
				t.Fatalf("unexpected origin %q", m.Origin)
			}
			switch m.Type {
			case TypeStateResponse:
				if m.BgColor != "#fff" || stack.IDs(m.Order)[0] != "y" {
					t.Fatalf("stale state: %+v", m)
				}
				sawState = true
			case TypeVisibilityChanged:
				if m.LayerID == "y" && !*m.Visible {
					sawHidden = true
				}
			}
		case <-deadline:
			t.Fatalf("poll never replayed the change (state=%v hidden=%v)", sawState, sawHidden)
		}
	}
}

func TestPollingChannel_PublishIsLocal(t *testing.T) {
	c := NewPollingChannel(&fakeLoader{b: &model.Board{ID: "b1"}}, time.Hour, nil)
	defer c.Close()
	ch, cancel, _ := c.Subscribe(context.Background(), "b1")
	defer cancel()
	if err := c.Publish(context.Background(), orderMsg("b1", "w1", "x")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if m := recv(t, ch); m.Origin != "w1" {
		t.Fatalf("unexpected: %+v", m)
	}
}

func TestOpen_FallsBackToPollingAndLogsOnce(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	loader := &fakeLoader{b: &model.Board{ID: "b1"}}

	ch, err := Open(context.Background(), Config{Mode: ModeRedis, Loader: loader, Logger: log})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ch.Close()
	if _, ok := ch.(*PollingChannel); !ok {
		t.Fatalf("expected polling fallback, got %T", ch)
	}
	if n := strings.Count(buf.String(), "falling back"); n != 1 {
		t.Fatalf("expected one warning, got %d: %s", n, buf.String())
	}

	if _, err := Open(context.Background(), Config{Mode: ModeWS}); err == nil {
		t.Fatalf("fallback without a loader should fail")
	}
	if _, err := Open(context.Background(), Config{Mode: "carrier-pigeon"}); err == nil {
		t.Fatalf("unknown mode should fail")
	}
}

func TestOpen_MemorySharesHub(t *testing.T) {
	h := NewHub()
	ch, err := Open(context.Background(), Config{Mode: ModeMemory, Hub: h})
	if err != nil || ch != Channel(h) {
		t.Fatalf("expected shared hub, got %v %v", ch, err)
	}
}

func TestNewWSChannel_Schemes(t *testing.T) {
	c, err := NewWSChannel("http://127.0.0.1:9/", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := c.boardURL("board-1"); got != "ws://127.0.0.1:9/boards/board-1/ws" {
		t.Fatalf("board url: %s", got)
	}
	if _, err := NewWSChannel("ftp://x", nil); err == nil {
		t.Fatalf("expected scheme error")
	}
}

func TestFingerprintOf(t *testing.T) {
	at := time.UnixMilli(5_000)
	a := &model.Board{ID: "b1", BgColor: "#000", UpdatedAt: at}
	b := &model.Board{ID: "b1", BgColor: "#fff", UpdatedAt: at}
	if FingerprintOf(a) == FingerprintOf(b) {
		t.Fatalf("same millisecond with different content should differ")
	}

	loaded, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back model.Board
	if err := json.Unmarshal(loaded, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if FingerprintOf(a) != FingerprintOf(&back) {
		t.Fatalf("saved and loaded revision disagree: %+v vs %+v", FingerprintOf(a), FingerprintOf(&back))
	}
}

func TestPollingChannel_SkipsOwnRevisions(t *testing.T) {
	loader := &fakeLoader{b: &model.Board{
		ID:        "b1",
		BgColor:   "#000",
		UpdatedAt: time.UnixMilli(1_000),
		Layers:    []model.Layer{{ID: "x", Kind: model.LayerKindImage, Visible: true}},
	}}
	c := NewPollingChannel(loader, 10*time.Millisecond, nil)
	defer c.Close()

	ch, cancel, err := c.Subscribe(context.Background(), "b1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	time.Sleep(30 * time.Millisecond)

	mine, _ := loader.Load(context.Background(), "b1")
	mine.BgColor = "#111"
	mine.UpdatedAt = mine.UpdatedAt.Add(time.Second)
	c.NoteSaved(mine)
	loader.set(func(b *model.Board) { b.BgColor = "#111" })

	select {
	case m := <-ch:
		t.Fatalf("own revision replayed: %+v", m)
	case <-time.After(100 * time.Millisecond):
	}

	loader.set(func(b *model.Board) { b.BgColor = "#222" })
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-ch:
			if m.Type == TypeStateResponse && m.BgColor == "#222" {
				return
			}
		case <-deadline:
			t.Fatalf("foreign revision never replayed")
		}
	}
}
