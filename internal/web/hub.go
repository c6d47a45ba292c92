// Package web exposes the live translation pipeline over HTTP: a WebSocket
// endpoint streaming pipeline events to browsers and accepting session
// commands, plus health, metrics and history endpoints.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/Illakiya-ilios/voxlate/internal/pipeline"
)

// sendBuffer is the per-client outbound queue. A client that cannot drain
// this many events is disconnected rather than allowed to stall the pipeline.
const sendBuffer = 64

// Hub fans pipeline events out to every connected WebSocket client. It
// implements [pipeline.Notifier], so it plugs straight into the session
// controller and dispatcher. All methods are safe for concurrent use and
// never block: slow clients are dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}

	// last session status, replayed to newly connected clients
	haveStatus bool
	lastStatus statusEvent
}

var _ pipeline.Notifier = (*Hub)(nil)

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	cancel context.CancelFunc
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Outbound event shapes. Every frame is a JSON object with a "type" field.
type (
	readyEvent struct {
		Type       string `json:"type"`
		Generation uint64 `json:"generation"`
	}
	transcriptEvent struct {
		Type       string `json:"type"`
		Generation uint64 `json:"generation"`
		Text       string `json:"text"`
		IsFinal    bool   `json:"is_final"`
	}
	translationStatusEvent struct {
		Type       string `json:"type"`
		Generation uint64 `json:"generation"`
		Status     string `json:"status"`
	}
	translationResultEvent struct {
		Type       string `json:"type"`
		Generation uint64 `json:"generation"`
		Source     string `json:"source"`
		Target     string `json:"target"`
		SourceLang string `json:"source_lang"`
		TargetLang string `json:"target_lang"`
	}
	errorEvent struct {
		Type       string `json:"type"`
		Generation uint64 `json:"generation,omitempty"`
		Message    string `json:"message"`
	}
	statusEvent struct {
		Type      string `json:"type"`
		Active    bool   `json:"active"`
		Direction string `json:"direction,omitempty"`
	}
)

// Ready implements [pipeline.Notifier].
func (h *Hub) Ready(gen uint64) {
	h.broadcast(readyEvent{Type: "ready", Generation: gen})
}

// Transcript implements [pipeline.Notifier].
func (h *Hub) Transcript(gen uint64, text string, final bool) {
	h.broadcast(transcriptEvent{Type: "transcript", Generation: gen, Text: text, IsFinal: final})
}

// Translating implements [pipeline.Notifier].
func (h *Hub) Translating(gen uint64) {
	h.broadcast(translationStatusEvent{Type: "translation_status", Generation: gen, Status: "translating"})
}

// Translated implements [pipeline.Notifier].
func (h *Hub) Translated(gen uint64, tr pipeline.Translation) {
	h.broadcast(translationResultEvent{
		Type:       "translation_result",
		Generation: gen,
		Source:     tr.Source,
		Target:     tr.Target,
		SourceLang: tr.SourceLang,
		TargetLang: tr.TargetLang,
	})
}

// Error implements [pipeline.Notifier].
func (h *Hub) Error(gen uint64, msg string) {
	h.broadcast(errorEvent{Type: "error", Generation: gen, Message: msg})
}

// Status implements [pipeline.Notifier]. The latest status is retained and
// replayed to clients that connect later.
func (h *Hub) Status(active bool, direction string) {
	ev := statusEvent{Type: "status", Active: active, Direction: direction}
	h.mu.Lock()
	h.haveStatus = true
	h.lastStatus = ev
	h.mu.Unlock()
	h.broadcast(ev)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal event", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// The write loop is stalled; cut the client loose.
			slog.Warn("dropping slow websocket client")
			delete(h.clients, c)
			c.cancel()
		}
	}
}

// register adds a client and replays the last known session status to it.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	replay := h.haveStatus
	status := h.lastStatus
	h.mu.Unlock()

	if replay {
		if data, err := json.Marshal(status); err == nil {
			select {
			case c.send <- data:
			default:
			}
		}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.cancel()
}

// writeLoop pushes queued events to the connection until ctx ends.
func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.send:
			if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
				c.cancel()
				return
			}
		}
	}
}
