// Package google implements stt.Provider on the Google Cloud Speech-to-Text
// v1 API. Streaming sessions use the bidirectional gRPC stream; the offline
// batch path uses LongRunningRecognize. Credentials come from Application
// Default Credentials.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/Illakiya-ilios/voxlate/pkg/provider/stt"
)

// Compile-time assertions.
var (
	_ stt.Provider         = (*Provider)(nil)
	_ stt.BatchTranscriber = (*Provider)(nil)
)

// Provider implements stt.Provider and stt.BatchTranscriber against Google
// Cloud Speech. One Provider holds one gRPC client, shared by all sessions.
type Provider struct {
	client *speech.Client
	model  string
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel selects the recognition model (e.g. "latest_long", "latest_short").
// Empty lets the service pick its default.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// New creates a Provider. The caller must call Close when done.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google stt: create client: %w", err)
	}
	p := &Provider{client: client}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the underlying gRPC client.
func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) recognitionConfig(sampleRate, channels int, language string, punctuate bool) *speechpb.RecognitionConfig {
	return &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            int32(sampleRate),
		AudioChannelCount:          int32(channels),
		LanguageCode:               language,
		EnableAutomaticPunctuation: punctuate,
		Model:                      p.model,
	}
}

// StartStream opens a bidirectional streaming recognition session.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if cfg.Language == "" {
		return nil, errors.New("google stt: language is required")
	}

	grpcStream, err := p.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, &stt.RecognitionError{Provider: "google", Err: fmt.Errorf("open stream: %w", err)}
	}

	// The first request carries the configuration, before any audio.
	err = grpcStream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:         p.recognitionConfig(cfg.SampleRate, cfg.Channels, cfg.Language, cfg.Punctuate),
				InterimResults: cfg.InterimResults,
			},
		},
	})
	if err != nil {
		return nil, &stt.RecognitionError{Provider: "google", Err: fmt.Errorf("send config: %w", err)}
	}

	s := &session{
		stream:  grpcStream,
		audio:   make(chan []byte, 64),
		results: make(chan stt.Transcript, 64),
		done:    make(chan struct{}),
	}
	s.wg.Add(2)
	go s.writeLoop()
	go s.readLoop()
	return s, nil
}

// Transcribe implements stt.BatchTranscriber via LongRunningRecognize, which
// handles recordings beyond the one-minute synchronous limit.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte, cfg stt.BatchConfig) (string, error) {
	op, err := p.client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: p.recognitionConfig(cfg.SampleRate, cfg.Channels, cfg.Language, true),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google stt: start batch recognize: %w", err)
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("google stt: batch recognize: %w", err)
	}
	return joinBatchResults(resp), nil
}

// joinBatchResults concatenates the top alternative of every result with
// single spaces, matching how the results arrive per ~minute of audio.
func joinBatchResults(resp *speechpb.LongRunningRecognizeResponse) string {
	out := ""
	for _, res := range resp.GetResults() {
		alts := res.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		t := alts[0].GetTranscript()
		if t == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += t
	}
	return out
}

// session implements stt.SessionHandle over one gRPC stream.
type session struct {
	stream speechpb.Speech_StreamingRecognizeClient

	audio   chan []byte
	results chan stt.Transcript

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// SendAudio queues a PCM chunk for the stream writer.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("google stt: session is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("google stt: session is closed")
	}
}

func (s *session) Results() <-chan stt.Transcript { return s.results }

// Close half-closes the gRPC stream so the service can flush trailing
// results, then waits for both loops to exit.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// writeLoop forwards queued audio to the stream and half-closes it on done.
func (s *session) writeLoop() {
	defer s.wg.Done()
	defer func() {
		if err := s.stream.CloseSend(); err != nil {
			slog.Debug("google stt: close send", "error", err)
		}
	}()

	for {
		select {
		case <-s.done:
			return
		case chunk := <-s.audio:
			req := &speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
			}
			if err := s.stream.Send(req); err != nil {
				// Recv surfaces the stream error; stop writing.
				slog.Debug("google stt: send audio", "error", err)
				return
			}
		}
	}
}

// readLoop receives responses until the stream ends and forwards transcripts
// in arrival order.
func (s *session) readLoop() {
	defer s.wg.Done()
	defer close(s.results)

	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			select {
			case <-s.done:
			default:
				slog.Error("google stt: stream receive failed", "error", err)
			}
			return
		}
		for _, t := range convertResponse(resp) {
			s.deliver(t)
		}
	}
}

// deliver sends without blocking forever: a stuck consumer must not stall the
// gRPC receive loop past session shutdown.
func (s *session) deliver(t stt.Transcript) {
	select {
	case s.results <- t:
	case <-s.done:
	}
}

// convertResponse flattens a streaming response into transcripts, keeping the
// top alternative per result and skipping empty hypotheses.
func convertResponse(resp *speechpb.StreamingRecognizeResponse) []stt.Transcript {
	var out []stt.Transcript
	for _, res := range resp.GetResults() {
		alts := res.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		text := alts[0].GetTranscript()
		if text == "" {
			continue
		}
		out = append(out, stt.Transcript{
			Text:       text,
			IsFinal:    res.GetIsFinal(),
			Confidence: float64(alts[0].GetConfidence()),
		})
	}
	return out
}
