// Package deepgram implements stt.Provider on the Deepgram live
// transcription WebSocket API (wss://api.deepgram.com/v1/listen).
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/coder/websocket"

	"github.com/Illakiya-ilios/voxlate/pkg/provider/stt"
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

const defaultBaseURL = "wss://api.deepgram.com/v1/listen"

// Provider implements stt.Provider using Deepgram live transcription.
type Provider struct {
	apiKey  string
	baseURL string
	model   string
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the WebSocket endpoint, mainly for tests and
// self-hosted Deepgram.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = u }
}

// WithModel selects the Deepgram model. Defaults to "nova-2".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// New creates a Provider authenticated with the given API key.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{apiKey: apiKey, baseURL: defaultBaseURL, model: "nova-2"}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// streamURL builds the listen URL for a session config.
func (p *Provider) streamURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return "", fmt.Errorf("deepgram: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("model", p.model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	q.Set("channels", strconv.Itoa(cfg.Channels))
	q.Set("interim_results", strconv.FormatBool(cfg.InterimResults))
	q.Set("punctuate", strconv.FormatBool(cfg.Punctuate))
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// StartStream dials the live transcription socket and starts the read and
// write loops.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	streamURL, err := p.streamURL(cfg)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+p.apiKey)

	conn, resp, err := websocket.Dial(ctx, streamURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, &stt.RecognitionError{Provider: "deepgram",
			Err: fmt.Errorf("dial (status %d): %w", status, err)}
	}

	s := &session{
		conn:    conn,
		audio:   make(chan []byte, 64),
		results: make(chan stt.Transcript, 64),
		done:    make(chan struct{}),
	}
	s.wg.Add(2)
	go s.writeLoop(ctx)
	go s.readLoop(ctx)
	return s, nil
}

// session implements stt.SessionHandle over one Deepgram WebSocket.
type session struct {
	conn *websocket.Conn

	audio   chan []byte
	results chan stt.Transcript

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("deepgram: session is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("deepgram: session is closed")
	}
}

func (s *session) Results() <-chan stt.Transcript { return s.results }

// Close asks Deepgram to flush remaining results, then tears the socket down
// after both loops exit.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		_ = s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// writeLoop forwards queued PCM as binary frames; on shutdown it sends the
// CloseStream control message so the server flushes pending transcripts.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			closeMsg, _ := json.Marshal(map[string]string{"type": "CloseStream"})
			if err := s.conn.Write(ctx, websocket.MessageText, closeMsg); err != nil {
				slog.Debug("deepgram: send CloseStream", "error", err)
			}
			return
		case chunk := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				slog.Debug("deepgram: send audio", "error", err)
				return
			}
		}
	}
}

// readLoop receives server messages until the socket closes and forwards
// transcripts in arrival order.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.results)

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			select {
			case <-s.done:
			default:
				if ctx.Err() == nil {
					slog.Error("deepgram: socket receive failed", "error", err)
				}
			}
			return
		}

		t, ok := parseMessage(data)
		if !ok {
			continue
		}
		select {
		case s.results <- t:
		case <-s.done:
			return
		}
	}
}

// resultMessage mirrors the subset of the Deepgram live response we consume.
type resultMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseMessage extracts a transcript from a server message. Non-result
// messages (Metadata, UtteranceEnd) and empty hypotheses return ok=false.
func parseMessage(data []byte) (stt.Transcript, bool) {
	var msg resultMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Debug("deepgram: unparseable message", "error", err)
		return stt.Transcript{}, false
	}
	if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
		return stt.Transcript{}, false
	}
	alt := msg.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return stt.Transcript{}, false
	}
	return stt.Transcript{
		Text:       alt.Transcript,
		IsFinal:    msg.IsFinal,
		Confidence: alt.Confidence,
	}, true
}
