// Package session owns the live translation session lifecycle: one capture
// device feeding one recognition stream, started and stopped on demand.
//
// The [Controller] is the single authority over session state. It enforces
// that at most one capture+recognition pair is ever open, tags every
// downstream event with a generation number so stale events from a stopped
// session can be discarded, and tears the pair down again when the client
// asks or when the provider-side stream dies.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Illakiya-ilios/voxlate/internal/observe"
	"github.com/Illakiya-ilios/voxlate/internal/pipeline"
	"github.com/Illakiya-ilios/voxlate/internal/transcript"
	"github.com/Illakiya-ilios/voxlate/pkg/audio"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/stt"
)

// Lifecycle errors returned by Start and Stop.
var (
	ErrAlreadyActive    = errors.New("session: a session is already active")
	ErrNotActive        = errors.New("session: no session is active")
	ErrUnknownDirection = errors.New("session: unknown direction")
)

// popTimeout bounds how long the feed loop waits for a frame before checking
// whether the session is shutting down.
const popTimeout = 1 * time.Second

// defaultQueueCapacity holds ~6.4s of audio at 100 ms frames.
const defaultQueueCapacity = 64

// Direction describes one translation direction.
type Direction struct {
	// SourceLang and TargetLang are the ISO-639 codes handed to translation
	// ("fr", "en").
	SourceLang string
	TargetLang string

	// Recognition is the BCP-47 language tag for the recognizer ("fr-FR").
	Recognition string
}

// ControllerConfig wires a Controller.
type ControllerConfig struct {
	// Directions maps direction names ("fr-en") to their language setup.
	Directions map[string]Direction

	// Recognizer opens streaming recognition sessions.
	Recognizer stt.Provider

	// OpenCapture opens the input device and starts delivering frames. The
	// returned closer stops the stream.
	OpenCapture func(deliver func(audio.Frame)) (io.Closer, error)

	// Dispatch hands a final utterance to the translation dispatcher. Must
	// not block.
	Dispatch func(context.Context, pipeline.Job)

	// JobCtx is the context passed to Dispatch. It should span the process,
	// not the session: utterances in flight finish after Stop.
	JobCtx context.Context

	// Corrector applies glossary corrections before dispatch. Optional.
	Corrector *transcript.Corrector

	SampleRate int
	Channels   int

	// QueueCapacity bounds the capture frame queue. Default 64.
	QueueCapacity int

	// OnFailure is called after a session is torn down because its
	// recognition stream died, with the direction that was active. Optional;
	// used to trigger automatic restart. Must not block.
	OnFailure func(direction string)

	Notifier pipeline.Notifier
	Metrics  *observe.Metrics
}

// active holds everything belonging to one running session.
type active struct {
	gen       uint64
	direction string
	capture   io.Closer
	stream    stt.SessionHandle
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type state int

const (
	stateIdle state = iota
	stateStarting
	stateActive
	stateStopping
)

// Controller starts and stops live translation sessions. All methods are
// safe for concurrent use.
type Controller struct {
	cfg   ControllerConfig
	queue *audio.FrameQueue
	gen   atomic.Uint64

	mu      sync.Mutex
	state   state
	current *active
}

// NewController creates a Controller. The frame queue is shared across
// sessions and drained on every start so a new session never replays audio
// captured by the previous one.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Notifier == nil {
		cfg.Notifier = pipeline.NopNotifier{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.JobCtx == nil {
		cfg.JobCtx = context.Background()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = defaultQueueCapacity
	}
	return &Controller{
		cfg:   cfg,
		queue: audio.NewFrameQueue(cfg.QueueCapacity),
	}
}

// Active reports whether a session is running and in which direction.
func (c *Controller) Active() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateActive && c.current != nil {
		return true, c.current.direction
	}
	return false, ""
}

// Start opens the capture device and a recognition stream for the named
// direction. Returns ErrAlreadyActive when a session is running and
// ErrUnknownDirection when the direction is not configured. On any open
// failure everything already opened is rolled back and the controller
// returns to idle.
func (c *Controller) Start(ctx context.Context, direction string) error {
	dir, ok := c.cfg.Directions[direction]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDirection, direction)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateIdle {
		return ErrAlreadyActive
	}
	c.state = stateStarting

	gen := c.gen.Add(1)
	if n := c.queue.Drain(); n > 0 {
		slog.Debug("drained stale frames", "generation", gen, "frames", n)
	}

	stream, err := c.cfg.Recognizer.StartStream(ctx, stt.StreamConfig{
		SampleRate:     c.cfg.SampleRate,
		Channels:       c.cfg.Channels,
		Language:       dir.Recognition,
		InterimResults: true,
		Punctuate:      true,
	})
	if err != nil {
		c.state = stateIdle
		return fmt.Errorf("session: open recognition stream: %w", err)
	}

	capture, err := c.cfg.OpenCapture(c.deliver)
	if err != nil {
		if cerr := stream.Close(); cerr != nil {
			slog.Warn("closing stream after failed capture open", "err", cerr)
		}
		c.state = stateIdle
		return fmt.Errorf("session: open capture: %w", err)
	}

	sess := &active{
		gen:       gen,
		direction: direction,
		capture:   capture,
		stream:    stream,
		done:      make(chan struct{}),
	}
	c.current = sess
	c.state = stateActive

	sess.wg.Add(2)
	go c.feedLoop(sess)
	go c.eventLoop(sess, dir)

	c.cfg.Metrics.ActiveSessions.Add(ctx, 1)
	c.cfg.Notifier.Ready(gen)
	c.cfg.Notifier.Status(true, direction)
	slog.Info("session started", "generation", gen, "direction", direction)
	return nil
}

// Stop tears down the running session. Utterance jobs already dispatched
// keep running; only capture and recognition stop.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state != stateActive || c.current == nil {
		c.mu.Unlock()
		return ErrNotActive
	}
	c.state = stateStopping
	sess := c.current
	c.mu.Unlock()

	c.teardown(sess)

	c.mu.Lock()
	c.current = nil
	c.state = stateIdle
	c.mu.Unlock()

	c.cfg.Metrics.ActiveSessions.Add(context.Background(), -1)
	c.cfg.Notifier.Status(false, sess.direction)
	slog.Info("session stopped", "generation", sess.gen)
	return nil
}

// ChangeDirection stops the running session, if any, and starts a new one in
// the named direction.
func (c *Controller) ChangeDirection(ctx context.Context, direction string) error {
	if _, ok := c.cfg.Directions[direction]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDirection, direction)
	}
	if err := c.Stop(); err != nil && !errors.Is(err, ErrNotActive) {
		return err
	}
	return c.Start(ctx, direction)
}

// teardown closes capture first so no more frames arrive, then signals the
// loops and closes the stream, then waits for the loops to drain out.
func (c *Controller) teardown(sess *active) {
	if err := sess.capture.Close(); err != nil {
		slog.Warn("closing capture", "generation", sess.gen, "err", err)
	}
	sess.closeOnce.Do(func() { close(sess.done) })
	if err := sess.stream.Close(); err != nil {
		slog.Warn("closing recognition stream", "generation", sess.gen, "err", err)
	}
	sess.wg.Wait()
}

// deliver runs on the realtime audio thread.
func (c *Controller) deliver(frame audio.Frame) {
	if !c.queue.Push(frame) {
		c.cfg.Metrics.DroppedFrames.Add(context.Background(), 1)
	}
}

// feedLoop moves frames from the capture queue into the recognition stream.
func (c *Controller) feedLoop(sess *active) {
	defer sess.wg.Done()
	for {
		select {
		case <-sess.done:
			return
		default:
		}
		frame, ok := c.queue.Pop(popTimeout)
		if !ok {
			continue
		}
		if err := sess.stream.SendAudio(frame.Data); err != nil {
			select {
			case <-sess.done:
			default:
				slog.Warn("sending audio", "generation", sess.gen, "err", err)
			}
		}
	}
}

// eventLoop consumes recognizer transcripts until the result channel closes.
// The single channel preserves the provider's emission order, so a partial
// can never be observed after the final that supersedes it. When the channel
// closes without Stop having been called, the provider-side stream died and
// the session is shut down in the background.
func (c *Controller) eventLoop(sess *active, dir Direction) {
	defer sess.wg.Done()

	agg := pipeline.NewAggregator(pipeline.AggregatorConfig{
		Generation: sess.gen,
		SessionID:  fmt.Sprintf("s%d", sess.gen),
		Direction:  sess.direction,
		SourceLang: dir.SourceLang,
		TargetLang: dir.TargetLang,
		Corrector:  c.cfg.Corrector,
		Dispatch:   func(j pipeline.Job) { c.cfg.Dispatch(c.cfg.JobCtx, j) },
		Notifier:   c.cfg.Notifier,
		Metrics:    c.cfg.Metrics,
	})

	for tr := range sess.stream.Results() {
		agg.Consume(c.cfg.JobCtx, tr)
	}

	select {
	case <-sess.done:
		// Normal shutdown via Stop.
	default:
		slog.Error("recognition stream ended unexpectedly", "generation", sess.gen)
		c.cfg.Notifier.Error(sess.gen, "recognition stream ended")
		go c.stopAfterFailure(sess)
	}
}

// stopAfterFailure tears down a session whose recognition stream died. It
// runs outside the event loop so teardown can wait for that loop to exit.
func (c *Controller) stopAfterFailure(sess *active) {
	c.mu.Lock()
	if c.current != sess || c.state != stateActive {
		c.mu.Unlock()
		return
	}
	c.state = stateStopping
	c.mu.Unlock()

	c.teardown(sess)

	c.mu.Lock()
	c.current = nil
	c.state = stateIdle
	c.mu.Unlock()

	c.cfg.Metrics.ActiveSessions.Add(context.Background(), -1)
	c.cfg.Notifier.Status(false, sess.direction)
	slog.Info("session stopped after stream failure", "generation", sess.gen)

	if c.cfg.OnFailure != nil {
		c.cfg.OnFailure(sess.direction)
	}
}
