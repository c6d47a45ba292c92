package coqui

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Illakiya-ilios/voxlate/pkg/audio"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/tts"
)

func TestSynthesizeStripsWAVContainer(t *testing.T) {
	t.Parallel()

	pcm := []byte{10, 0, 20, 0, 30, 0, 40, 0}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tts" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("text"); got != "salut" {
			t.Errorf("text = %q", got)
		}
		if got := r.URL.Query().Get("speaker_id"); got != "p225" {
			t.Errorf("speaker_id = %q", got)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(audio.EncodeWAV(pcm, 22050, 1))
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Synthesize(context.Background(), tts.SpeechRequest{
		Text:  "salut",
		Voice: tts.VoiceProfile{ID: "p225"},
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(res.PCM, pcm) {
		t.Errorf("PCM = %v, want %v", res.PCM, pcm)
	}
	if res.SampleRate != 22050 {
		t.Errorf("SampleRate = %d, want 22050", res.SampleRate)
	}
}

func TestSynthesizeResamplesToRequestedRate(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 2205*2) // 100 ms at 22050 Hz
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(audio.EncodeWAV(pcm, 22050, 1))
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Synthesize(context.Background(), tts.SpeechRequest{
		Text:       "salut",
		SampleRate: 16000,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", res.SampleRate)
	}
	if got, want := len(res.PCM)/2, 1600; got != want {
		t.Errorf("got %d samples, want %d", got, want)
	}
}

func TestSynthesizeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), tts.SpeechRequest{Text: "x"}); err == nil {
		t.Error("Synthesize succeeded on a 500 response, want error")
	}
}
