package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Illakiya-ilios/voxlate/internal/observe"
	"github.com/Illakiya-ilios/voxlate/internal/transcript"
	"github.com/Illakiya-ilios/voxlate/pkg/provider/stt"
)

// AggregatorConfig wires one Aggregator. Notifier and Metrics default to
// no-ops; everything else is required.
type AggregatorConfig struct {
	// Generation tags every event with the recognition session it belongs to.
	Generation uint64

	SessionID  string
	Direction  string
	SourceLang string
	TargetLang string

	// Corrector applies glossary corrections to final transcripts. Optional.
	Corrector *transcript.Corrector

	// Dispatch receives each utterance that survives filtering. It must not
	// block.
	Dispatch func(Job)

	Notifier Notifier
	Metrics  *observe.Metrics
}

// Aggregator consumes recognizer transcripts for one recognition session.
// Interim transcripts pass straight through to the notifier; final
// transcripts are corrected, deduplicated against the previous final, and
// dispatched.
//
// An Aggregator belongs to a single recognition goroutine and is not safe
// for concurrent use.
type Aggregator struct {
	cfg      AggregatorConfig
	lastText string
}

// NewAggregator creates an Aggregator for one recognition session.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Aggregator{cfg: cfg}
}

// Consume handles one transcript from the recognizer.
func (a *Aggregator) Consume(ctx context.Context, tr stt.Transcript) {
	if !tr.IsFinal {
		a.cfg.Notifier.Transcript(a.cfg.Generation, tr.Text, false)
		return
	}

	text := strings.TrimSpace(tr.Text)
	if a.cfg.Corrector != nil {
		corrected, changes := a.cfg.Corrector.Correct(text)
		if len(changes) > 0 {
			slog.Debug("glossary correction",
				"generation", a.cfg.Generation,
				"original", text,
				"corrected", corrected,
			)
			text = corrected
		}
	}

	// Clients see every final, including the ones filtered below. The
	// duplicate check only guards against speaking the same sentence twice.
	a.cfg.Notifier.Transcript(a.cfg.Generation, text, true)

	if text == "" {
		a.cfg.Metrics.RecordUtterance(ctx, "blank")
		return
	}
	if text == a.lastText {
		a.cfg.Metrics.RecordUtterance(ctx, "duplicate")
		slog.Debug("duplicate final dropped", "generation", a.cfg.Generation, "text", text)
		return
	}
	a.lastText = text

	a.cfg.Metrics.RecordUtterance(ctx, "dispatched")
	a.cfg.Dispatch(Job{
		Generation: a.cfg.Generation,
		SessionID:  a.cfg.SessionID,
		Direction:  a.cfg.Direction,
		Text:       text,
		SourceLang: a.cfg.SourceLang,
		TargetLang: a.cfg.TargetLang,
	})
}
