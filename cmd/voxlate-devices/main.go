// Command voxlate-devices lists the audio devices voxlate can use and
// optionally verifies the routing: a short test tone on the output and a
// two-second level check on the input.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/Illakiya-ilios/voxlate/pkg/audio"
	"github.com/Illakiya-ilios/voxlate/pkg/audio/device"
)

func main() {
	os.Exit(run())
}

func run() int {
	check := flag.Bool("check", false, "after listing devices, play a test tone and record a short input sample")
	input := flag.String("input", "", "input device selector for the recording check (index or name substring, empty means default)")
	output := flag.String("output", "", "output device selector for the test tone (index or name substring, empty means default)")
	flag.Parse()

	backend, err := device.NewBackend()
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxlate-devices: %v\n", err)
		return 1
	}
	defer backend.Close()

	inputs, err := backend.Inputs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxlate-devices: list inputs: %v\n", err)
		return 1
	}
	outputs, err := backend.Outputs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxlate-devices: list outputs: %v\n", err)
		return 1
	}

	fmt.Println("Capture devices:")
	printDevices(inputs)
	fmt.Println()
	fmt.Println("Playback devices:")
	printDevices(outputs)

	if *check {
		fmt.Println()
		if err := playTone(backend, *output); err != nil {
			fmt.Fprintf(os.Stderr, "voxlate-devices: test tone: %v\n", err)
			return 1
		}
		fmt.Println("Test tone played.")

		peak, err := recordPeak(backend, *input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "voxlate-devices: recording check: %v\n", err)
			return 1
		}
		fmt.Printf("Recorded 2s from input, peak amplitude %.1f%%\n", 100*float64(peak)/32767)
		if peak < 500 {
			fmt.Println("Warning: input looks silent. Check the device selection and levels.")
		}
	}
	return 0
}

func printDevices(devices []device.Info) {
	if len(devices) == 0 {
		fmt.Println("  (none found)")
		return
	}
	for _, d := range devices {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		fmt.Printf("  %s [%d] %s\n", marker, d.Index, d.Name)
	}
}

// playTone sounds one second of 440 Hz sine on the selected output.
func playTone(backend *device.Backend, selector string) error {
	const (
		sampleRate = 16000
		freq       = 440.0
		seconds    = 1
	)

	player, err := backend.NewPlayer(device.PlayerConfig{Device: selector})
	if err != nil {
		return err
	}

	pcm := make([]byte, sampleRate*seconds*2)
	for i := 0; i < sampleRate*seconds; i++ {
		sample := int16(10000 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
		pcm[2*i] = byte(sample)
		pcm[2*i+1] = byte(sample >> 8)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return player.Play(ctx, pcm, sampleRate)
}

// recordPeak captures two seconds from the selected input and returns the
// loudest absolute sample value.
func recordPeak(backend *device.Backend, selector string) (int16, error) {
	var (
		mu   sync.Mutex
		peak int16
	)
	src, err := backend.OpenCapture(device.CaptureConfig{
		Device:      selector,
		SampleRate:  16000,
		Channels:    1,
		FrameMillis: 100,
	}, func(frame audio.Frame) {
		mu.Lock()
		defer mu.Unlock()
		for i := 0; i+1 < len(frame.Data); i += 2 {
			sample := int16(uint16(frame.Data[i]) | uint16(frame.Data[i+1])<<8)
			if sample == math.MinInt16 {
				sample = math.MaxInt16
			} else if sample < 0 {
				sample = -sample
			}
			if sample > peak {
				peak = sample
			}
		}
	})
	if err != nil {
		return 0, err
	}
	time.Sleep(2 * time.Second)
	if err := src.Close(); err != nil {
		return 0, err
	}

	mu.Lock()
	defer mu.Unlock()
	return peak, nil
}
