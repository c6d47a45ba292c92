package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/Illakiya-ilios/voxlate/internal/history"
	"github.com/Illakiya-ilios/voxlate/pkg/audio/device"
)

// AudioDevices verifies the audio backend can still enumerate at least one
// input and one output device. Devices disappearing mid-run (unplugged USB
// headsets) is the most common field failure.
func AudioDevices(backend *device.Backend) Check {
	return Check{
		Name: "audio_devices",
		Probe: func(_ context.Context) error {
			inputs, err := backend.Inputs()
			if err != nil {
				return fmt.Errorf("enumerate inputs: %w", err)
			}
			if len(inputs) == 0 {
				return errors.New("no input devices available")
			}
			outputs, err := backend.Outputs()
			if err != nil {
				return fmt.Errorf("enumerate outputs: %w", err)
			}
			if len(outputs) == 0 {
				return errors.New("no output devices available")
			}
			return nil
		},
	}
}

// History verifies the utterance store answers queries.
func History(store history.Store) Check {
	return Check{
		Name: "history",
		Probe: func(ctx context.Context) error {
			_, err := store.Recent(ctx, "", 1)
			return err
		},
	}
}
