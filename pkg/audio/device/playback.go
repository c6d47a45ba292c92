package device

import (
	"context"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// PlayerConfig selects the output device for a [Player].
type PlayerConfig struct {
	// Device selects the output by index or name substring; empty means the
	// system default.
	Device string

	// SampleRate used when a Play call does not specify one.
	SampleRate int
}

// Player plays PCM clips on one output device. Each Play call opens its own
// device handle, so concurrent calls overlap instead of queueing.
type Player struct {
	backend *Backend
	cfg     PlayerConfig
	id      *malgo.DeviceID
	name    string
}

// NewPlayer resolves the output device once up front so a bad selector fails
// at startup rather than on the first utterance.
func (b *Backend) NewPlayer(cfg PlayerConfig) (*Player, error) {
	id, name, err := b.resolve(malgo.Playback, cfg.Device)
	if err != nil {
		return nil, err
	}
	return &Player{backend: b, cfg: cfg, id: id, name: name}, nil
}

// Name returns the resolved device name.
func (p *Player) Name() string { return p.name }

// Play writes mono little-endian int16 PCM to the output device and blocks
// until the clip has been consumed or ctx is cancelled.
func (p *Player) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if len(pcm) == 0 {
		return nil
	}
	if sampleRate <= 0 {
		sampleRate = p.cfg.SampleRate
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	dcfg := malgo.DefaultDeviceConfig(malgo.Playback)
	dcfg.Playback.Format = malgo.FormatS16
	dcfg.Playback.Channels = 1
	dcfg.SampleRate = uint32(sampleRate)
	if p.id != nil {
		dcfg.Playback.DeviceID = p.id.Pointer()
	}

	var (
		offset int
		once   sync.Once
	)
	consumed := make(chan struct{})
	callbacks := malgo.DeviceCallbacks{
		// miniaudio invokes Data from a single audio thread, so offset needs
		// no locking.
		Data: func(output, _ []byte, _ uint32) {
			n := copy(output, pcm[offset:])
			offset += n
			if n < len(output) {
				clear(output[n:])
			}
			if offset >= len(pcm) {
				once.Do(func() { close(consumed) })
			}
		},
	}

	dev, err := malgo.InitDevice(p.backend.ctx.Context, dcfg, callbacks)
	if err != nil {
		return &Error{Op: "open playback", Device: p.name, Err: err}
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return &Error{Op: "start playback", Device: p.name, Err: err}
	}

	select {
	case <-consumed:
		// The final period is still in the device buffer when the callback
		// consumes the last byte; let it drain before uninit cuts it off.
		tail := time.Duration(dcfg.PeriodSizeInMilliseconds) * time.Millisecond
		if tail <= 0 {
			tail = 100 * time.Millisecond
		}
		select {
		case <-time.After(tail):
		case <-ctx.Done():
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
