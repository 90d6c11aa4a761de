package liveview

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type wsFrameMessage struct {
	Type string    `json:"type"`
	Data FrameData `json:"data"`
}

type wsInitialMessage struct {
	Type string      `json:"type"`
	Data InitialData `json:"data"`
}

func startBroadcaster(t *testing.T) (*Broadcaster, *httptest.Server) {
	t.Helper()
	cfg := DefaultBroadcasterConfig()
	cfg.ImageScale = 2
	b := NewBroadcaster(cfg, zap.NewNop())
	go b.Start(t.Context())

	srv := httptest.NewServer(http.HandlerFunc(b.HandleConnection))
	t.Cleanup(srv.Close)
	return b, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func waitForClients(t *testing.T, b *Broadcaster, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", b.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcaster_InitialMessage(t *testing.T) {
	b, srv := startBroadcaster(t)
	conn := dial(t, srv)

	var msg wsInitialMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != MessageTypeInitial {
		t.Errorf("type = %q, want %q", msg.Type, MessageTypeInitial)
	}
	if msg.Data.Latest != nil {
		t.Error("expected no latest frame before any publish")
	}
	if msg.Data.Clients != 1 {
		t.Errorf("clients = %d, want 1", msg.Data.Clients)
	}
	waitForClients(t, b, 1)
}

func TestBroadcaster_PublishDeliversFrame(t *testing.T) {
	b, srv := startBroadcaster(t)
	conn := dial(t, srv)

	var initial wsInitialMessage
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	waitForClients(t, b, 1)

	b.Publish(newTestCapture(7))

	var msg wsFrameMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if msg.Type != MessageTypeFrame {
		t.Fatalf("type = %q, want %q", msg.Type, MessageTypeFrame)
	}
	if msg.Data.Seq != 7 || msg.Data.SessionID != "session-id" {
		t.Errorf("frame = seq %d session %q", msg.Data.Seq, msg.Data.SessionID)
	}
	if msg.Data.Stats.MaxC != 40 || msg.Data.Stats.HotX != 2 || msg.Data.Stats.HotY != 1 {
		t.Errorf("stats = %+v", msg.Data.Stats)
	}
	if !msg.Data.CapturedAt.Equal(testCapturedAt) {
		t.Errorf("captured_at = %v", msg.Data.CapturedAt)
	}

	img, err := png.Decode(bytes.NewReader(msg.Data.Image))
	if err != nil {
		t.Fatalf("decode image: %v", err)
	}
	if got := img.Bounds().Size(); got.X != 8 || got.Y != 6 {
		t.Errorf("image size = %v, want 8x6 at scale 2", got)
	}

	if b.Latest() == nil || b.Latest().Seq != 7 {
		t.Error("Latest() did not return the published capture")
	}
}

func TestBroadcaster_LateJoinerGetsLatest(t *testing.T) {
	b, srv := startBroadcaster(t)
	first := dial(t, srv)
	first.ReadJSON(&wsInitialMessage{})
	waitForClients(t, b, 1)

	b.Publish(newTestCapture(3))
	var frame wsFrameMessage
	if err := first.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}

	second := dial(t, srv)
	var msg wsInitialMessage
	if err := second.ReadJSON(&msg); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if msg.Data.Latest == nil || msg.Data.Latest.Seq != 3 {
		t.Errorf("latest = %+v, want seq 3", msg.Data.Latest)
	}
}

func TestBroadcaster_CloseDisconnectsClients(t *testing.T) {
	b, srv := startBroadcaster(t)
	conn := dial(t, srv)
	conn.ReadJSON(&wsInitialMessage{})
	waitForClients(t, b, 1)

	b.Close()

	if b.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after Close", b.ClientCount())
	}
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("read after Close = %v, want normal closure", err)
	}

	// DOING: connect after Close
	// EXPECT: the connection is dropped and never registered
	late := dial(t, srv)
	if _, _, err := late.ReadMessage(); err == nil {
		t.Error("expected late connection to be closed")
	}
	if b.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", b.ClientCount())
	}
}

func TestBroadcaster_PublishNeverBlocks(t *testing.T) {
	cfg := DefaultBroadcasterConfig()
	cfg.BroadcastBufferSize = 1
	// Not started, so nothing drains the queue.
	b := NewBroadcaster(cfg, nil)

	done := make(chan struct{})
	go func() {
		for i := range 10 {
			b.Publish(newTestCapture(int64(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with a full queue")
	}
	if b.Latest().Seq != 9 {
		t.Errorf("Latest().Seq = %d, want 9", b.Latest().Seq)
	}
}

func TestNewErrorMessage(t *testing.T) {
	data, err := json.Marshal(NewErrorMessage("acquisition", "frame read failed"))
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	for _, want := range []string{`"type":"error"`, `"code":"acquisition"`, `"message":"frame read failed"`} {
		if !strings.Contains(got, want) {
			t.Errorf("%s should contain %s", got, want)
		}
	}
}
