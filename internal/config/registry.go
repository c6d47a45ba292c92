package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Illakiya-ilios/voxlate/pkg/provider/stt"
	sttdeepgram "github.com/Illakiya-ilios/voxlate/pkg/provider/stt/deepgram"
	sttgoogle "github.com/Illakiya-ilios/voxlate/pkg/provider/stt/google"
	sttwhisper "github.com/Illakiya-ilios/voxlate/pkg/provider/stt/whisper"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/translate"
	trgoogle "github.com/Illakiya-ilios/voxlate/pkg/provider/translate/google"
	trllm "github.com/Illakiya-ilios/voxlate/pkg/provider/translate/llm"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/tts"
	ttscoqui "github.com/Illakiya-ilios/voxlate/pkg/provider/tts/coqui"
	ttselevenlabs "github.com/Illakiya-ilios/voxlate/pkg/provider/tts/elevenlabs"
	ttsgoogle "github.com/Illakiya-ilios/voxlate/pkg/provider/tts/google"
	ttsopenai "github.com/Illakiya-ilios/voxlate/pkg/provider/tts/openai"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory signatures per provider kind. The context is used for client
// construction only; streaming and request lifetimes carry their own.
type (
	STTFactory       func(ctx context.Context, entry ProviderEntry) (stt.Provider, error)
	BatchSTTFactory  func(ctx context.Context, entry ProviderEntry) (stt.BatchTranscriber, error)
	TranslateFactory func(ctx context.Context, entry ProviderEntry) (translate.Provider, error)
	TTSFactory       func(ctx context.Context, entry ProviderEntry) (tts.Provider, error)
)

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	stt       map[string]STTFactory
	batchSTT  map[string]BatchSTTFactory
	translate map[string]TranslateFactory
	tts       map[string]TTSFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:       make(map[string]STTFactory),
		batchSTT:  make(map[string]BatchSTTFactory),
		translate: make(map[string]TranslateFactory),
		tts:       make(map[string]TTSFactory),
	}
}

// RegisterSTT registers a streaming recognition factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory STTFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterBatchSTT registers a one-shot transcription factory under name.
func (r *Registry) RegisterBatchSTT(name string, factory BatchSTTFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batchSTT[name] = factory
}

// RegisterTranslate registers a translation provider factory under name.
func (r *Registry) RegisterTranslate(name string, factory TranslateFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translate[name] = factory
}

// RegisterTTS registers a synthesis provider factory under name.
func (r *Registry) RegisterTTS(name string, factory TTSFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// CreateSTT instantiates a recognition provider using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateSTT(ctx context.Context, entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(ctx, entry)
}

// CreateBatchSTT instantiates a batch transcriber using the factory registered
// under entry.Name.
func (r *Registry) CreateBatchSTT(ctx context.Context, entry ProviderEntry) (stt.BatchTranscriber, error) {
	r.mu.RLock()
	factory, ok := r.batchSTT[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: batch_stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(ctx, entry)
}

// CreateTranslate instantiates a translation provider using the factory
// registered under entry.Name.
func (r *Registry) CreateTranslate(ctx context.Context, entry ProviderEntry) (translate.Provider, error) {
	r.mu.RLock()
	factory, ok := r.translate[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: translate/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(ctx, entry)
}

// CreateTTS instantiates a synthesis provider using the factory registered
// under entry.Name.
func (r *Registry) CreateTTS(ctx context.Context, entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(ctx, entry)
}

// DefaultRegistry returns a Registry with every built-in provider registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterSTT("google", func(ctx context.Context, entry ProviderEntry) (stt.Provider, error) {
		var opts []sttgoogle.Option
		if entry.Model != "" {
			opts = append(opts, sttgoogle.WithModel(entry.Model))
		}
		return sttgoogle.New(ctx, opts...)
	})
	r.RegisterSTT("deepgram", func(_ context.Context, entry ProviderEntry) (stt.Provider, error) {
		var opts []sttdeepgram.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttdeepgram.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, sttdeepgram.WithModel(entry.Model))
		}
		return sttdeepgram.New(entry.APIKey, opts...)
	})

	r.RegisterBatchSTT("google", func(ctx context.Context, entry ProviderEntry) (stt.BatchTranscriber, error) {
		var opts []sttgoogle.Option
		if entry.Model != "" {
			opts = append(opts, sttgoogle.WithModel(entry.Model))
		}
		return sttgoogle.New(ctx, opts...)
	})
	r.RegisterBatchSTT("whisper", func(_ context.Context, entry ProviderEntry) (stt.BatchTranscriber, error) {
		modelPath := entry.StringOption("model_path")
		if modelPath == "" {
			return nil, errors.New("config: whisper requires options.model_path")
		}
		return sttwhisper.New(modelPath)
	})

	r.RegisterTranslate("google", func(ctx context.Context, _ ProviderEntry) (translate.Provider, error) {
		return trgoogle.New(ctx)
	})
	r.RegisterTranslate("llm", func(_ context.Context, entry ProviderEntry) (translate.Provider, error) {
		backend := entry.StringOption("backend")
		if backend == "" {
			return nil, errors.New("config: llm translate requires options.backend")
		}
		return trllm.New(backend, entry.Model)
	})

	r.RegisterTTS("google", func(ctx context.Context, _ ProviderEntry) (tts.Provider, error) {
		return ttsgoogle.New(ctx)
	})
	r.RegisterTTS("elevenlabs", func(_ context.Context, entry ProviderEntry) (tts.Provider, error) {
		var opts []ttselevenlabs.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttselevenlabs.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, ttselevenlabs.WithModel(entry.Model))
		}
		return ttselevenlabs.New(entry.APIKey, opts...)
	})
	r.RegisterTTS("coqui", func(_ context.Context, entry ProviderEntry) (tts.Provider, error) {
		return ttscoqui.New(entry.BaseURL)
	})
	r.RegisterTTS("openai", func(_ context.Context, entry ProviderEntry) (tts.Provider, error) {
		var opts []ttsopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, ttsopenai.WithModel(entry.Model))
		}
		return ttsopenai.New(entry.APIKey, opts...)
	})

	return r
}
