package device

import (
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/Illakiya-ilios/voxlate/pkg/audio"
)

// CaptureConfig selects and shapes an input stream.
type CaptureConfig struct {
	// Device selects the input by index or name substring; empty means the
	// system default.
	Device string

	SampleRate int
	Channels   int

	// FrameMillis is the device period length, which determines the size of
	// each delivered frame. Defaults to 100 ms.
	FrameMillis int
}

// CaptureSource is an open, running input device. Frames flow to the deliver
// callback passed to [Backend.OpenCapture] until Close is called.
type CaptureSource struct {
	dev  *malgo.Device
	name string

	closeOnce sync.Once
	closeErr  error
}

// OpenCapture opens the selected input device and starts streaming. deliver
// runs on the realtime audio thread: it receives an owned copy of each PCM
// block and must return quickly without blocking.
func (b *Backend) OpenCapture(cfg CaptureConfig, deliver func(audio.Frame)) (*CaptureSource, error) {
	id, name, err := b.resolve(malgo.Capture, cfg.Device)
	if err != nil {
		return nil, err
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}
	frameMillis := cfg.FrameMillis
	if frameMillis <= 0 {
		frameMillis = 100
	}

	dcfg := malgo.DefaultDeviceConfig(malgo.Capture)
	dcfg.Capture.Format = malgo.FormatS16
	dcfg.Capture.Channels = uint32(channels)
	dcfg.SampleRate = uint32(sampleRate)
	dcfg.PeriodSizeInMilliseconds = uint32(frameMillis)
	if id != nil {
		dcfg.Capture.DeviceID = id.Pointer()
	}

	started := time.Now()
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			data := make([]byte, len(input))
			copy(data, input)
			deliver(audio.Frame{
				Data:       data,
				SampleRate: sampleRate,
				Channels:   channels,
				Timestamp:  time.Since(started),
			})
		},
	}

	dev, err := malgo.InitDevice(b.ctx.Context, dcfg, callbacks)
	if err != nil {
		return nil, &Error{Op: "open capture", Device: name, Err: err}
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, &Error{Op: "start capture", Device: name, Err: err}
	}
	return &CaptureSource{dev: dev, name: name}, nil
}

// Name returns the resolved device name.
func (s *CaptureSource) Name() string { return s.name }

// Close stops the stream and releases the device. Idempotent and safe from
// any goroutine; no frames are delivered after it returns.
func (s *CaptureSource) Close() error {
	s.closeOnce.Do(func() {
		if err := s.dev.Stop(); err != nil {
			s.closeErr = &Error{Op: "stop capture", Device: s.name, Err: err}
		}
		s.dev.Uninit()
	})
	return s.closeErr
}
