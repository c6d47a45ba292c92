// Package transcript fixes recognition errors in configured glossary terms
// before an utterance is translated.
//
// Recognition output is rarely perfect for proper nouns: product names,
// company names and participant names get misheard in every meeting. The
// [Corrector] runs a fast, in-process pass over each final transcript,
// aligning words against the glossary by pronunciation and spelling
// similarity. Interim transcripts are never corrected; they exist only for
// live display.
package transcript

import (
	"strings"
	"sync"
)

// Matcher resolves a single word to a glossary term based on similarity.
// Implementations must be safe for concurrent use; finals from overlapping
// sessions may be corrected at once.
type Matcher interface {
	// Match returns the best-matching term for word. When matched is false,
	// corrected equals word unchanged and confidence is 0.
	Match(word string, terms []string) (corrected string, confidence float64, matched bool)
}

// Correction records one substitution applied to a transcript.
type Correction struct {
	// Original is the word as the recognizer produced it.
	Original string

	// Corrected is the glossary term that replaced it.
	Corrected string

	// Confidence is the matcher's similarity score in (0.0, 1.0].
	Confidence float64
}

// Corrector applies glossary corrections to final transcripts. Safe for
// concurrent use; the glossary can be swapped at runtime.
type Corrector struct {
	matcher Matcher

	mu       sync.RWMutex
	glossary []string
}

// minWordLen guards against aligning short function words ("the", "la")
// with glossary terms.
const minWordLen = 3

// NewCorrector creates a Corrector with the given matcher and initial
// glossary. A nil matcher or empty glossary makes Correct a no-op.
func NewCorrector(matcher Matcher, glossary []string) *Corrector {
	return &Corrector{matcher: matcher, glossary: append([]string(nil), glossary...)}
}

// SetGlossary replaces the glossary.
func (c *Corrector) SetGlossary(terms []string) {
	c.mu.Lock()
	c.glossary = append([]string(nil), terms...)
	c.mu.Unlock()
}

// Correct aligns each word of text against the glossary and returns the
// corrected text plus a record of every substitution. Punctuation around a
// word survives the substitution. When nothing matches, text is returned
// unchanged with a nil corrections slice.
func (c *Corrector) Correct(text string) (string, []Correction) {
	if c == nil || c.matcher == nil {
		return text, nil
	}
	c.mu.RLock()
	glossary := c.glossary
	c.mu.RUnlock()
	if len(glossary) == 0 || strings.TrimSpace(text) == "" {
		return text, nil
	}

	var corrections []Correction
	words := strings.Fields(text)
	for i, raw := range words {
		prefix, core, suffix := splitPunct(raw)
		if len(core) < minWordLen {
			continue
		}
		if containsFold(glossary, core) {
			continue
		}
		term, confidence, ok := c.matcher.Match(core, glossary)
		if !ok {
			continue
		}
		words[i] = prefix + term + suffix
		corrections = append(corrections, Correction{
			Original:   core,
			Corrected:  term,
			Confidence: confidence,
		})
	}
	if len(corrections) == 0 {
		return text, nil
	}
	return strings.Join(words, " "), corrections
}

// splitPunct peels leading and trailing punctuation off a token so the core
// word can be matched and the punctuation re-attached afterwards.
func splitPunct(token string) (prefix, core, suffix string) {
	start := 0
	for start < len(token) && isPunct(token[start]) {
		start++
	}
	end := len(token)
	for end > start && isPunct(token[end-1]) {
		end--
	}
	return token[:start], token[start:end], token[end:]
}

func isPunct(b byte) bool {
	switch b {
	case '.', ',', '!', '?', ';', ':', '"', '\'', '(', ')', '[', ']':
		return true
	}
	return false
}

// containsFold reports whether terms already contains word, ignoring case.
// An exact glossary word needs no correction.
func containsFold(terms []string, word string) bool {
	for _, t := range terms {
		if strings.EqualFold(t, word) {
			return true
		}
	}
	return false
}
