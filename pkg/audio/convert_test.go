package audio

import (
	"bytes"
	"testing"
)

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func bytesToSamples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return out
}

func TestStereoToMonoAverages(t *testing.T) {
	t.Parallel()

	in := samplesToBytes([]int16{100, 200, -100, 100, 32767, 32767})
	got := bytesToSamples(StereoToMono(in))
	want := []int16{150, 0, 32767}

	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMonoToStereoDuplicates(t *testing.T) {
	t.Parallel()

	in := samplesToBytes([]int16{1, -2})
	got := bytesToSamples(MonoToStereo(in))
	want := []int16{1, 1, -2, -2}

	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResampleMono16(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		samples     int
		srcRate     int
		dstRate     int
		wantSamples int
	}{
		{name: "downsample 48k to 16k", samples: 480, srcRate: 48000, dstRate: 16000, wantSamples: 160},
		{name: "upsample 16k to 48k", samples: 160, srcRate: 16000, dstRate: 48000, wantSamples: 480},
		{name: "same rate passthrough", samples: 160, srcRate: 16000, dstRate: 16000, wantSamples: 160},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := make([]int16, tt.samples)
			for i := range in {
				in[i] = int16(i % 1000)
			}
			got := ResampleMono16(samplesToBytes(in), tt.srcRate, tt.dstRate)
			if len(got)/2 != tt.wantSamples {
				t.Errorf("got %d samples, want %d", len(got)/2, tt.wantSamples)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	target := Format{SampleRate: 16000, Channels: 1}

	t.Run("passthrough when formats match", func(t *testing.T) {
		t.Parallel()

		in := Frame{Data: samplesToBytes([]int16{1, 2, 3}), SampleRate: 16000, Channels: 1}
		got := Normalize(in, target)
		if !bytes.Equal(got.Data, in.Data) {
			t.Error("matching frame was modified")
		}
	})

	t.Run("stereo 48k becomes mono 16k", func(t *testing.T) {
		t.Parallel()

		in := Frame{Data: make([]byte, 480*4), SampleRate: 48000, Channels: 2}
		got := Normalize(in, target)
		if got.SampleRate != 16000 || got.Channels != 1 {
			t.Errorf("got %dHz/%dch, want 16000Hz/1ch", got.SampleRate, got.Channels)
		}
		if len(got.Data) != 160*2 {
			t.Errorf("got %d bytes, want %d", len(got.Data), 160*2)
		}
	})

	t.Run("odd byte count yields empty data", func(t *testing.T) {
		t.Parallel()

		in := Frame{Data: []byte{1, 2, 3}, SampleRate: 48000, Channels: 1}
		if got := Normalize(in, target); len(got.Data) != 0 {
			t.Errorf("corrupt frame produced %d bytes, want 0", len(got.Data))
		}
	})
}
