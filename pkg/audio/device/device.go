// Package device provides audio capture and playback on top of miniaudio via
// the malgo bindings. A single [Backend] owns the miniaudio context; capture
// sources and players are opened from it. Devices are selected by numeric
// index or case-insensitive name substring, which is how virtual cable
// devices ("CABLE Output", "BlackHole 2ch") are usually addressed.
package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gen2brain/malgo"
)

// Error describes a failure talking to an audio device. Session start
// failures wrap one of these so callers can distinguish device trouble from
// provider trouble.
type Error struct {
	// Op is the operation that failed, e.g. "open capture".
	Op string

	// Device is the resolved device name, or the selector when resolution
	// itself failed.
	Device string

	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("device: %s on %q: %v", e.Op, e.Device, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Info describes one enumerated audio device.
type Info struct {
	// Index is the position in the enumeration order. Selectors may use it
	// directly, but note that plugging in hardware can renumber devices.
	Index int

	Name      string
	IsDefault bool
}

// Backend wraps an initialized miniaudio context. It is safe for concurrent
// use. Close must be called when no captures or players remain open.
type Backend struct {
	ctx *malgo.AllocatedContext
}

// NewBackend initializes the miniaudio context with the platform default
// audio backend (WASAPI, CoreAudio, ALSA/PulseAudio).
func NewBackend() (*Backend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &Error{Op: "init context", Device: "system", Err: err}
	}
	return &Backend{ctx: ctx}, nil
}

// Close tears down the miniaudio context.
func (b *Backend) Close() error {
	if err := b.ctx.Uninit(); err != nil {
		return &Error{Op: "uninit context", Device: "system", Err: err}
	}
	b.ctx.Free()
	return nil
}

// Inputs enumerates capture devices.
func (b *Backend) Inputs() ([]Info, error) { return b.list(malgo.Capture) }

// Outputs enumerates playback devices.
func (b *Backend) Outputs() ([]Info, error) { return b.list(malgo.Playback) }

func (b *Backend) list(kind malgo.DeviceType) ([]Info, error) {
	devs, err := b.ctx.Devices(kind)
	if err != nil {
		return nil, &Error{Op: "enumerate", Device: "system", Err: err}
	}
	infos := make([]Info, len(devs))
	for i, d := range devs {
		infos[i] = Info{Index: i, Name: d.Name(), IsDefault: d.IsDefault != 0}
	}
	return infos, nil
}

// resolve maps a selector to a concrete device id. An empty selector picks
// the system default (nil id). A numeric selector is an enumeration index;
// anything else matches by case-insensitive name substring.
func (b *Backend) resolve(kind malgo.DeviceType, selector string) (*malgo.DeviceID, string, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, "default", nil
	}

	devs, err := b.ctx.Devices(kind)
	if err != nil {
		return nil, "", &Error{Op: "enumerate", Device: selector, Err: err}
	}

	if idx, err := strconv.Atoi(selector); err == nil {
		if idx < 0 || idx >= len(devs) {
			return nil, "", &Error{Op: "resolve", Device: selector,
				Err: fmt.Errorf("index out of range, %d devices available", len(devs))}
		}
		id := devs[idx].ID
		return &id, devs[idx].Name(), nil
	}

	needle := strings.ToLower(selector)
	for _, d := range devs {
		if strings.Contains(strings.ToLower(d.Name()), needle) {
			id := d.ID
			return &id, d.Name(), nil
		}
	}
	return nil, "", &Error{Op: "resolve", Device: selector, Err: fmt.Errorf("no device matches")}
}
