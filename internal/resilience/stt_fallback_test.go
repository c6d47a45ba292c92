package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/Illakiya-ilios/voxlate/pkg/provider/stt"
	sttmock "github.com/Illakiya-ilios/voxlate/pkg/provider/stt/mock"
)

func TestSTTFallbackPrimarySuccess(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{}
	secondary := &sttmock.Provider{}

	fb := NewSTTFallback(primary, "primary", ChainConfig{})
	fb.AddFallback("secondary", secondary)

	handle, err := fb.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000, Language: "fr-FR"})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer handle.Close()

	if len(primary.Sessions()) != 1 {
		t.Errorf("primary opened %d sessions, want 1", len(primary.Sessions()))
	}
	if len(secondary.Sessions()) != 0 {
		t.Error("secondary was called although the primary succeeded")
	}
}

func TestSTTFallbackFailsOver(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{StartErr: errors.New("unreachable")}
	secondary := &sttmock.Provider{}

	fb := NewSTTFallback(primary, "primary", ChainConfig{})
	fb.AddFallback("secondary", secondary)

	handle, err := fb.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer handle.Close()

	if len(secondary.Sessions()) != 1 {
		t.Errorf("secondary opened %d sessions, want 1", len(secondary.Sessions()))
	}
}

func TestSTTFallbackAllFail(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{StartErr: errors.New("down")}
	secondary := &sttmock.Provider{StartErr: errors.New("also down")}

	fb := NewSTTFallback(primary, "primary", ChainConfig{})
	fb.AddFallback("secondary", secondary)

	if _, err := fb.StartStream(context.Background(), stt.StreamConfig{}); !errors.Is(err, ErrExhausted) {
		t.Errorf("error = %v, want ErrExhausted", err)
	}
}
