package dub

import (
	"context"
	"errors"
	"testing"

	"github.com/Illakiya-ilios/voxlate/pkg/provider/tts"
	ttsmock "github.com/Illakiya-ilios/voxlate/pkg/provider/tts/mock"
)

// orderedSynth returns PCM derived from the request text so chunk order is
// observable in the joined output.
type orderedSynth struct{}

func (orderedSynth) Synthesize(_ context.Context, req tts.SpeechRequest) (tts.Result, error) {
	return tts.Result{PCM: []byte(req.Text), SampleRate: req.SampleRate}, nil
}

func (orderedSynth) ListVoices(context.Context) ([]tts.VoiceProfile, error) { return nil, nil }

func TestSynthesizeChunksJoinsInOrder(t *testing.T) {
	t.Parallel()

	d := NewDubber(Config{
		Synthesizer: orderedSynth{},
		SampleRate:  16000,
		Concurrency: 4,
	})

	chunks := []string{"aa", "bb", "cc", "dd", "ee"}
	got, err := d.synthesizeChunks(context.Background(), chunks)
	if err != nil {
		t.Fatalf("synthesizeChunks: %v", err)
	}
	if string(got) != "aabbccddee" {
		t.Errorf("joined audio = %q, want chunk order preserved", got)
	}
}

func TestSynthesizeChunksPropagatesError(t *testing.T) {
	t.Parallel()

	d := NewDubber(Config{
		Synthesizer: &ttsmock.Provider{Err: errors.New("voice gone")},
	})

	if _, err := d.synthesizeChunks(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("synthesizeChunks succeeded with a failing synthesizer")
	}
}

func TestShortLang(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"fr-FR", "fr"},
		{"en", "en"},
		{"EN-us", "en"},
	}
	for _, tc := range tests {
		if got := shortLang(tc.in); got != tc.want {
			t.Errorf("shortLang(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
