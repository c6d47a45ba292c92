package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/Illakiya-ilios/voxlate/pkg/provider/translate"
	translatemock "github.com/Illakiya-ilios/voxlate/pkg/provider/translate/mock"
)

func TestTranslateFallbackPrimarySuccess(t *testing.T) {
	t.Parallel()

	primary := &translatemock.Provider{Translations: map[string]string{"bonjour": "hello"}}
	secondary := &translatemock.Provider{Translations: map[string]string{"bonjour": "hi"}}

	fb := NewTranslateFallback(primary, "primary", ChainConfig{})
	fb.AddFallback("secondary", secondary)

	got, err := fb.Translate(context.Background(), translate.Request{Text: "bonjour", TargetLang: "en"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "hello" {
		t.Errorf("Translate = %q, want the primary's result", got)
	}
	if len(secondary.Requests()) != 0 {
		t.Error("secondary was called although the primary succeeded")
	}
}

func TestTranslateFallbackFailsOver(t *testing.T) {
	t.Parallel()

	primary := &translatemock.Provider{Err: errors.New("quota exceeded")}
	secondary := &translatemock.Provider{Translations: map[string]string{"bonjour": "hi"}}

	fb := NewTranslateFallback(primary, "primary", ChainConfig{})
	fb.AddFallback("secondary", secondary)

	got, err := fb.Translate(context.Background(), translate.Request{Text: "bonjour", TargetLang: "en"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "hi" {
		t.Errorf("Translate = %q, want the fallback's result", got)
	}
}

func TestTranslateFallbackAllFail(t *testing.T) {
	t.Parallel()

	primary := &translatemock.Provider{Err: errors.New("down")}
	secondary := &translatemock.Provider{Err: errors.New("also down")}

	fb := NewTranslateFallback(primary, "primary", ChainConfig{})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Translate(context.Background(), translate.Request{Text: "bonjour"})
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("error = %v, want ErrExhausted", err)
	}
}

func TestTranslateFallbackSkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	primary := &translatemock.Provider{Err: errors.New("down")}
	secondary := &translatemock.Provider{}

	fb := NewTranslateFallback(primary, "primary", ChainConfig{
		Breaker: BreakerConfig{Trip: 1},
	})
	fb.AddFallback("secondary", secondary)

	// First call trips the primary's breaker.
	if _, err := fb.Translate(context.Background(), translate.Request{Text: "a"}); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if _, err := fb.Translate(context.Background(), translate.Request{Text: "b"}); err != nil {
		t.Fatalf("Translate: %v", err)
	}

	if got := len(primary.Requests()); got != 1 {
		t.Errorf("primary called %d times, want 1 (breaker open afterwards)", got)
	}
	if got := len(secondary.Requests()); got != 2 {
		t.Errorf("secondary called %d times, want 2", got)
	}
}
