package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Illakiya-ilios/voxlate/internal/observe"
	"github.com/Illakiya-ilios/voxlate/internal/pipeline"
	"github.com/Illakiya-ilios/voxlate/pkg/audio"
	sttmock "github.com/Illakiya-ilios/voxlate/pkg/provider/stt/mock"
)

// fakeCapture stands in for a running input device.
type fakeCapture struct {
	mu     sync.Mutex
	closed bool
}

func (f *fakeCapture) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeCapture) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeOpener hands out fakeCaptures and records the deliver callback so
// tests can inject frames as if they came off the device.
type fakeOpener struct {
	mu       sync.Mutex
	err      error
	captures []*fakeCapture
	deliver  func(audio.Frame)
}

func (f *fakeOpener) open(deliver func(audio.Frame)) (io.Closer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	src := &fakeCapture{}
	f.captures = append(f.captures, src)
	f.deliver = deliver
	return src, nil
}

func (f *fakeOpener) opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.captures)
}

func (f *fakeOpener) inject(frame audio.Frame) {
	f.mu.Lock()
	deliver := f.deliver
	f.mu.Unlock()
	deliver(frame)
}

// eventNotifier records pipeline events for assertions.
type eventNotifier struct {
	mu          sync.Mutex
	ready       []uint64
	statuses    []statusEvent
	errors      []string
	transcripts []transcriptEvent
}

type statusEvent struct {
	active    bool
	direction string
}

type transcriptEvent struct {
	text  string
	final bool
}

func (n *eventNotifier) Ready(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ready = append(n.ready, gen)
}
func (n *eventNotifier) Transcript(_ uint64, text string, final bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transcripts = append(n.transcripts, transcriptEvent{text: text, final: final})
}

func (n *eventNotifier) Translating(uint64)                      {}
func (n *eventNotifier) Translated(uint64, pipeline.Translation) {}

func (n *eventNotifier) Error(_ uint64, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *eventNotifier) Status(active bool, direction string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, statusEvent{active: active, direction: direction})
}

func (n *eventNotifier) lastStatus() (statusEvent, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.statuses) == 0 {
		return statusEvent{}, false
	}
	return n.statuses[len(n.statuses)-1], true
}

func (n *eventNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

func (n *eventNotifier) transcriptEvents() []transcriptEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]transcriptEvent(nil), n.transcripts...)
}

type testRig struct {
	ctrl     *Controller
	provider *sttmock.Provider
	opener   *fakeOpener
	notifier *eventNotifier
	jobs     chan pipeline.Job
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	rig := &testRig{
		provider: &sttmock.Provider{},
		opener:   &fakeOpener{},
		notifier: &eventNotifier{},
		jobs:     make(chan pipeline.Job, 16),
	}
	rig.ctrl = NewController(ControllerConfig{
		Directions: map[string]Direction{
			"fr-en": {SourceLang: "fr", TargetLang: "en", Recognition: "fr-FR"},
			"en-fr": {SourceLang: "en", TargetLang: "fr", Recognition: "en-US"},
		},
		Recognizer:  rig.provider,
		OpenCapture: rig.opener.open,
		Dispatch:    func(_ context.Context, j pipeline.Job) { rig.jobs <- j },
		Notifier:    rig.notifier,
		Metrics:     m,
	})
	return rig
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

func TestStartOpensOneCaptureAndOneStream(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	if err := rig.ctrl.Start(context.Background(), "fr-en"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rig.ctrl.Stop()

	if rig.opener.opened() != 1 {
		t.Errorf("opened %d captures, want 1", rig.opener.opened())
	}
	if rig.provider.OpenSessions() != 1 {
		t.Errorf("opened %d streams, want 1", rig.provider.OpenSessions())
	}
	if active, dir := rig.ctrl.Active(); !active || dir != "fr-en" {
		t.Errorf("Active() = %v, %q; want true, fr-en", active, dir)
	}
	if st, ok := rig.notifier.lastStatus(); !ok || !st.active || st.direction != "fr-en" {
		t.Errorf("last status = %+v", st)
	}
}

func TestStartWhileActiveFails(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	if err := rig.ctrl.Start(context.Background(), "fr-en"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rig.ctrl.Stop()

	if err := rig.ctrl.Start(context.Background(), "en-fr"); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("second Start error = %v, want ErrAlreadyActive", err)
	}
	if rig.opener.opened() != 1 || rig.provider.OpenSessions() != 1 {
		t.Error("second Start opened additional resources")
	}
}

func TestStartUnknownDirection(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	if err := rig.ctrl.Start(context.Background(), "de-en"); !errors.Is(err, ErrUnknownDirection) {
		t.Errorf("Start error = %v, want ErrUnknownDirection", err)
	}
}

func TestStartRollsBackStreamWhenCaptureFails(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	rig.opener.err = errors.New("device busy")

	if err := rig.ctrl.Start(context.Background(), "fr-en"); err == nil {
		t.Fatal("Start succeeded with a failing capture device")
	}
	if rig.provider.OpenSessions() != 0 {
		t.Error("recognition stream left open after capture failure")
	}
	if active, _ := rig.ctrl.Active(); active {
		t.Error("controller active after failed start")
	}

	// The controller recovers: a later Start works.
	rig.opener.err = nil
	if err := rig.ctrl.Start(context.Background(), "fr-en"); err != nil {
		t.Fatalf("Start after rollback: %v", err)
	}
	rig.ctrl.Stop()
}

func TestStopClosesEverything(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	if err := rig.ctrl.Start(context.Background(), "fr-en"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rig.ctrl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if rig.provider.OpenSessions() != 0 {
		t.Error("recognition stream still open after Stop")
	}
	if !rig.opener.captures[0].isClosed() {
		t.Error("capture device still open after Stop")
	}
	if st, ok := rig.notifier.lastStatus(); !ok || st.active {
		t.Errorf("last status = %+v, want inactive", st)
	}
	if err := rig.ctrl.Stop(); !errors.Is(err, ErrNotActive) {
		t.Errorf("second Stop error = %v, want ErrNotActive", err)
	}
}

func TestFramesReachRecognizer(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	if err := rig.ctrl.Start(context.Background(), "fr-en"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rig.ctrl.Stop()

	chunk := []byte{1, 2, 3, 4}
	rig.opener.inject(audio.Frame{Data: chunk, SampleRate: 16000, Channels: 1})

	sess := rig.provider.Last()
	waitFor(t, func() bool { return len(sess.Sent()) == 1 }, "frame never reached the recognizer")
	if got := sess.Sent()[0]; string(got) != string(chunk) {
		t.Errorf("sent chunk = %v, want %v", got, chunk)
	}
}

func TestFinalsAreDispatched(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	if err := rig.ctrl.Start(context.Background(), "fr-en"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rig.ctrl.Stop()

	rig.provider.Last().EmitFinal("bonjour tout le monde")

	select {
	case job := <-rig.jobs:
		if job.Text != "bonjour tout le monde" {
			t.Errorf("job text = %q", job.Text)
		}
		if job.SourceLang != "fr" || job.TargetLang != "en" {
			t.Errorf("job languages = %q -> %q, want fr -> en", job.SourceLang, job.TargetLang)
		}
		if job.Generation == 0 {
			t.Error("job has no generation")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("final transcript never dispatched")
	}
}

// Partials and finals share one ordered stream; a partial emitted before a
// final must reach clients before it, and one emitted after must follow it.
func TestTranscriptEventsKeepEmissionOrder(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	if err := rig.ctrl.Start(context.Background(), "fr-en"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rig.ctrl.Stop()

	sess := rig.provider.Last()
	sess.EmitPartial("bonjour")
	sess.EmitPartial("bonjour tout")
	sess.EmitFinal("bonjour tout le monde.")
	sess.EmitPartial("et maintenant")

	waitFor(t, func() bool { return len(rig.notifier.transcriptEvents()) == 4 }, "transcript events missing")

	want := []transcriptEvent{
		{text: "bonjour", final: false},
		{text: "bonjour tout", final: false},
		{text: "bonjour tout le monde.", final: true},
		{text: "et maintenant", final: false},
	}
	got := rig.notifier.transcriptEvents()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v (full order %+v)", i, got[i], want[i], got)
		}
	}
}

// Frames delivered between Stop and the next Start are stale: they belong to
// no session and must never be fed into the next session's recognizer.
func TestFramesDeliveredWhileStoppedNeverReachNextSession(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	if err := rig.ctrl.Start(context.Background(), "fr-en"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rig.ctrl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	stale := []byte{0xde, 0xad}
	rig.opener.inject(audio.Frame{Data: stale, SampleRate: 16000, Channels: 1})
	rig.opener.inject(audio.Frame{Data: stale, SampleRate: 16000, Channels: 1})

	if err := rig.ctrl.Start(context.Background(), "fr-en"); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	defer rig.ctrl.Stop()

	fresh := []byte{1, 2, 3, 4}
	rig.opener.inject(audio.Frame{Data: fresh, SampleRate: 16000, Channels: 1})

	sess := rig.provider.Last()
	waitFor(t, func() bool { return len(sess.Sent()) >= 1 }, "fresh frame never reached the recognizer")
	for i, chunk := range sess.Sent() {
		if string(chunk) == string(stale) {
			t.Fatalf("chunk %d is a stale frame from before the restart", i)
		}
	}
	if got := sess.Sent()[0]; string(got) != string(fresh) {
		t.Errorf("first chunk = %v, want %v", got, fresh)
	}
}

func TestStreamFailureStopsSession(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	if err := rig.ctrl.Start(context.Background(), "fr-en"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rig.provider.Last().Fail()

	waitFor(t, func() bool {
		active, _ := rig.ctrl.Active()
		return !active
	}, "session still active after stream failure")
	waitFor(t, func() bool { return rig.opener.captures[0].isClosed() }, "capture still open after stream failure")
	if rig.notifier.errorCount() == 0 {
		t.Error("stream failure produced no error notification")
	}

	// The controller recovers: a later Start works.
	if err := rig.ctrl.Start(context.Background(), "fr-en"); err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
	rig.ctrl.Stop()
}

func TestChangeDirectionSwapsSession(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	if err := rig.ctrl.Start(context.Background(), "fr-en"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := rig.ctrl.ChangeDirection(context.Background(), "en-fr"); err != nil {
		t.Fatalf("ChangeDirection: %v", err)
	}
	defer rig.ctrl.Stop()

	if active, dir := rig.ctrl.Active(); !active || dir != "en-fr" {
		t.Errorf("Active() = %v, %q; want true, en-fr", active, dir)
	}
	sessions := rig.provider.Sessions()
	if len(sessions) != 2 {
		t.Fatalf("got %d streams, want 2", len(sessions))
	}
	if !sessions[0].Closed() {
		t.Error("first stream still open after direction change")
	}
	if rig.provider.OpenSessions() != 1 {
		t.Errorf("OpenSessions = %d, want 1", rig.provider.OpenSessions())
	}
}

func TestChangeDirectionFromIdleStarts(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	if err := rig.ctrl.ChangeDirection(context.Background(), "en-fr"); err != nil {
		t.Fatalf("ChangeDirection: %v", err)
	}
	defer rig.ctrl.Stop()

	if active, dir := rig.ctrl.Active(); !active || dir != "en-fr" {
		t.Errorf("Active() = %v, %q; want true, en-fr", active, dir)
	}
}
