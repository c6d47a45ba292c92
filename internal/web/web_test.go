package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Illakiya-ilios/voxlate/internal/history"
	"github.com/Illakiya-ilios/voxlate/internal/pipeline"
)

// fakeControl records session commands.
type fakeControl struct {
	mu       sync.Mutex
	started  []string
	stopped  int
	changed  []string
	err      error
	active   bool
	startCtx context.Context
}

func (f *fakeControl) Start(ctx context.Context, direction string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, direction)
	f.active = true
	f.startCtx = ctx
	return nil
}

func (f *fakeControl) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.stopped++
	f.active = false
	return nil
}

func (f *fakeControl) ChangeDirection(_ context.Context, direction string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.changed = append(f.changed, direction)
	return nil
}

func (f *fakeControl) Active() (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, ""
}

func (f *fakeControl) startedDirections() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

func newTestServer(t *testing.T, ctrl SessionControl, store history.Store) (*Server, *Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	s := NewServer(ServerConfig{
		Addr:             ":0",
		Control:          ctrl,
		DefaultDirection: "fr-en",
		Hub:              hub,
		History:          store,
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, hub, ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// readEvent reads one frame and decodes it into a generic map.
func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("websocket read: %v", err)
	}
	var ev map[string]any
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

func TestHubBroadcastsPipelineEvents(t *testing.T) {
	t.Parallel()

	_, hub, ts := newTestServer(t, &fakeControl{}, nil)
	conn := dialWS(t, ts)

	waitForClients(t, hub, 1)
	hub.Transcript(7, "bonjour", true)

	ev := readEvent(t, conn)
	if ev["type"] != "transcript" || ev["text"] != "bonjour" || ev["is_final"] != true {
		t.Errorf("event = %v", ev)
	}
	if ev["generation"] != float64(7) {
		t.Errorf("generation = %v", ev["generation"])
	}

	hub.Translated(7, pipeline.Translation{Source: "bonjour", Target: "hello", SourceLang: "fr", TargetLang: "en"})
	ev = readEvent(t, conn)
	if ev["type"] != "translation_result" || ev["target"] != "hello" {
		t.Errorf("event = %v", ev)
	}
}

func TestHubReplaysStatusToNewClients(t *testing.T) {
	t.Parallel()

	_, hub, ts := newTestServer(t, &fakeControl{}, nil)
	hub.Status(true, "fr-en")

	conn := dialWS(t, ts)
	ev := readEvent(t, conn)
	if ev["type"] != "status" || ev["active"] != true || ev["direction"] != "fr-en" {
		t.Errorf("replayed status = %v", ev)
	}
}

func TestCommandsReachControl(t *testing.T) {
	t.Parallel()

	ctrl := &fakeControl{}
	_, hub, ts := newTestServer(t, ctrl, nil)
	conn := dialWS(t, ts)
	waitForClients(t, hub, 1)

	writeCommand(t, conn, `{"type":"start_translation","direction":"en-fr"}`)
	waitFor(t, func() bool { return len(ctrl.startedDirections()) == 1 }, "start command never arrived")
	if got := ctrl.startedDirections()[0]; got != "en-fr" {
		t.Errorf("started direction = %q", got)
	}

	writeCommand(t, conn, `{"type":"stop_translation"}`)
	waitFor(t, func() bool {
		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		return ctrl.stopped == 1
	}, "stop command never arrived")
}

// The session must not be tied to the lifetime of the client connection that
// started it: the recognition stream lives on the context handed to Start, so
// closing the starting browser tab must not cancel it.
func TestSessionSurvivesStartingClientDisconnect(t *testing.T) {
	t.Parallel()

	ctrl := &fakeControl{}
	_, hub, ts := newTestServer(t, ctrl, nil)
	conn := dialWS(t, ts)
	waitForClients(t, hub, 1)

	writeCommand(t, conn, `{"type":"start_translation","direction":"fr-en"}`)
	waitFor(t, func() bool { return len(ctrl.startedDirections()) == 1 }, "start command never arrived")

	conn.Close(websocket.StatusNormalClosure, "tab closed")
	waitForClients(t, hub, 0)

	ctrl.mu.Lock()
	startCtx := ctrl.startCtx
	ctrl.mu.Unlock()
	select {
	case <-startCtx.Done():
		t.Fatal("start context was cancelled by the client disconnect")
	default:
	}
}

func TestStartDefaultsDirection(t *testing.T) {
	t.Parallel()

	ctrl := &fakeControl{}
	_, hub, ts := newTestServer(t, ctrl, nil)
	conn := dialWS(t, ts)
	waitForClients(t, hub, 1)

	writeCommand(t, conn, `{"type":"start_translation"}`)
	waitFor(t, func() bool { return len(ctrl.startedDirections()) == 1 }, "start command never arrived")
	if got := ctrl.startedDirections()[0]; got != "fr-en" {
		t.Errorf("started direction = %q, want the configured default", got)
	}
}

func TestFailedCommandRepliesError(t *testing.T) {
	t.Parallel()

	ctrl := &fakeControl{err: errors.New("device busy")}
	_, hub, ts := newTestServer(t, ctrl, nil)
	conn := dialWS(t, ts)
	waitForClients(t, hub, 1)

	writeCommand(t, conn, `{"type":"start_translation"}`)
	ev := readEvent(t, conn)
	if ev["type"] != "error" {
		t.Fatalf("event = %v, want an error event", ev)
	}
	if msg, _ := ev["message"].(string); !strings.Contains(msg, "device busy") {
		t.Errorf("message = %q", msg)
	}
}

func TestUnknownCommandRepliesError(t *testing.T) {
	t.Parallel()

	_, hub, ts := newTestServer(t, &fakeControl{}, nil)
	conn := dialWS(t, ts)
	waitForClients(t, hub, 1)

	writeCommand(t, conn, `{"type":"reboot"}`)
	ev := readEvent(t, conn)
	if ev["type"] != "error" {
		t.Errorf("event = %v, want an error event", ev)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	t.Parallel()

	store := history.NewMemory()
	_ = store.Write(context.Background(), history.Utterance{
		SessionID:      "s1",
		Direction:      "fr-en",
		SourceText:     "bonjour",
		TranslatedText: "hello",
		SourceLang:     "fr",
		TargetLang:     "en",
	})

	_, _, ts := newTestServer(t, &fakeControl{}, store)

	resp, err := http.Get(ts.URL + "/api/history")
	if err != nil {
		t.Fatalf("GET /api/history: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var entries []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0]["translated_text"] != "hello" {
		t.Errorf("entry = %v", entries[0])
	}
}

func writeCommand(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(payload)); err != nil {
		t.Fatalf("websocket write: %v", err)
	}
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	waitFor(t, func() bool { return hub.ClientCount() == n }, "client never registered")
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
