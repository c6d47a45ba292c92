package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Illakiya-ilios/voxlate/internal/health"
	"github.com/Illakiya-ilios/voxlate/internal/history"
	"github.com/Illakiya-ilios/voxlate/internal/observe"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// SessionControl is the slice of the session controller the web layer needs.
// *session.Controller satisfies it.
type SessionControl interface {
	Start(ctx context.Context, direction string) error
	Stop() error
	ChangeDirection(ctx context.Context, direction string) error
	Active() (bool, string)
}

// command is an inbound WebSocket control frame.
type command struct {
	Type      string `json:"type"`
	Direction string `json:"direction,omitempty"`
}

// ServerConfig wires a Server.
type ServerConfig struct {
	// Addr is the TCP listen address (":8080").
	Addr string

	// CertFile and KeyFile enable TLS when both are set.
	CertFile string
	KeyFile  string

	// Control drives the live session. Required.
	Control SessionControl

	// DefaultDirection is used when a start command does not name one.
	DefaultDirection string

	// Hub receives pipeline events and serves them to clients. Required.
	Hub *Hub

	// History serves the /api/history endpoint. Optional.
	History history.Store

	// RecentLimit caps /api/history responses. Default 50.
	RecentLimit int

	// Health serves /healthz and /readyz. Optional.
	Health *health.Handler

	// SessionCtx is the context handed to Start and ChangeDirection. It must
	// outlive any single client connection: the recognition stream opened by
	// Start lives on this context, and a session must survive the browser tab
	// that started it. Defaults to context.Background().
	SessionCtx context.Context

	Metrics *observe.Metrics
}

// Server is the voxlate HTTP server: WebSocket control and event stream,
// health probes, Prometheus metrics and utterance history.
type Server struct {
	cfg  ServerConfig
	srv  *http.Server
	done chan struct{}
}

// NewServer builds the route table and returns a ready-to-run Server.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 50
	}
	if cfg.SessionCtx == nil {
		cfg.SessionCtx = context.Background()
	}
	s := &Server{cfg: cfg, done: make(chan struct{})}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())
	if cfg.History != nil {
		mux.HandleFunc("GET /api/history", s.handleHistory)
	}
	if cfg.Health != nil {
		cfg.Health.Register(mux)
	}

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           observe.Middleware(cfg.Metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
			err = s.srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			err = s.srv.ListenAndServe()
		}
		errCh <- err
	}()

	slog.Info("http server listening", "addr", s.cfg.Addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("web: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web: serve: %w", err)
	}
	return nil
}

// handleWS upgrades the connection, registers it with the hub and runs the
// command read loop until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		cancel: cancel,
	}
	s.cfg.Hub.register(c)
	defer func() {
		s.cfg.Hub.unregister(c)
		conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	go c.writeLoop(ctx)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		s.handleCommand(c, data)
	}
}

// handleCommand decodes and executes one control frame. Failures are
// reported back to the issuing client only; pipeline events keep flowing to
// everyone else. Session commands run on the server's session context, not
// the connection's: the session belongs to the room, not to the client that
// started it.
func (s *Server) handleCommand(c *client, data []byte) {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.replyError(c, "malformed command")
		return
	}

	direction := cmd.Direction
	if direction == "" {
		direction = s.cfg.DefaultDirection
	}

	var err error
	switch cmd.Type {
	case "start_translation":
		err = s.cfg.Control.Start(s.cfg.SessionCtx, direction)
	case "stop_translation":
		err = s.cfg.Control.Stop()
	case "change_direction":
		err = s.cfg.Control.ChangeDirection(s.cfg.SessionCtx, direction)
	default:
		s.replyError(c, fmt.Sprintf("unknown command %q", cmd.Type))
		return
	}
	if err != nil {
		slog.Warn("session command failed", "command", cmd.Type, "err", err)
		s.replyError(c, err.Error())
	}
}

// replyError queues an error event for a single client.
func (s *Server) replyError(c *client, msg string) {
	data, err := json.Marshal(errorEvent{Type: "error", Message: msg})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// handleHistory returns recent utterances, newest first. The optional
// "session" query parameter filters by session id.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	utterances, err := s.cfg.History.Recent(r.Context(), r.URL.Query().Get("session"), s.cfg.RecentLimit)
	if err != nil {
		slog.Error("history query failed", "err", err)
		http.Error(w, `{"error":"history unavailable"}`, http.StatusInternalServerError)
		return
	}

	type entry struct {
		SessionID      string    `json:"session_id"`
		Direction      string    `json:"direction"`
		SourceText     string    `json:"source_text"`
		TranslatedText string    `json:"translated_text"`
		SourceLang     string    `json:"source_lang"`
		TargetLang     string    `json:"target_lang"`
		CreatedAt      time.Time `json:"created_at"`
	}
	out := make([]entry, 0, len(utterances))
	for _, u := range utterances {
		out = append(out, entry{
			SessionID:      u.SessionID,
			Direction:      u.Direction,
			SourceText:     u.SourceText,
			TranslatedText: u.TranslatedText,
			SourceLang:     u.SourceLang,
			TargetLang:     u.TargetLang,
			CreatedAt:      u.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		slog.Error("encode history response", "err", err)
	}
}
