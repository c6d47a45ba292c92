// Package phonetic matches misheard words against glossary terms using
// Double Metaphone codes with Jaro-Winkler ranking. It runs in-process with
// no network calls, fast enough to sit on the final-transcript path.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Matcher aligns words with glossary terms. Two thresholds apply: a relaxed
// one when the words share a Metaphone code (they sound alike) and a strict
// one on spelling similarity alone.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// Option is a functional option for configuring a Matcher.
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for terms that
// phonetically overlap with the input. Default 0.70.
func WithPhoneticThreshold(t float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = t }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for terms with no
// phonetic overlap. Default 0.85.
func WithFuzzyThreshold(t float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = t }
}

// New creates a Matcher with default thresholds.
func New(opts ...Option) *Matcher {
	m := &Matcher{phoneticThreshold: 0.70, fuzzyThreshold: 0.85}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the glossary term most similar to word. Terms that sound
// like word (shared Double Metaphone code) win over terms that merely look
// like it. When matched is false, corrected equals word and confidence is 0.
func (m *Matcher) Match(word string, terms []string) (corrected string, confidence float64, matched bool) {
	wordLower := strings.ToLower(strings.TrimSpace(word))
	if wordLower == "" || len(terms) == 0 {
		return word, 0, false
	}
	wordCodes := metaphoneCodes(wordLower)

	var (
		bestTerm     string
		bestScore    float64
		bestPhonetic bool
	)
	for _, term := range terms {
		termLower := strings.ToLower(strings.TrimSpace(term))
		if termLower == "" {
			continue
		}

		score := matchr.JaroWinkler(wordLower, termLower, false)
		soundsAlike := codesOverlap(wordCodes, metaphoneCodes(termLower))

		switch {
		case soundsAlike && score >= m.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				bestTerm, bestScore, bestPhonetic = term, score, true
			}
		case !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore:
			bestTerm, bestScore = term, score
		}
	}

	if bestTerm == "" {
		return word, 0, false
	}
	return bestTerm, bestScore, true
}

// metaphoneCodes returns the Double Metaphone codes of every token in s,
// excluding empty codes.
func metaphoneCodes(s string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	for _, token := range strings.Fields(s) {
		primary, secondary := matchr.DoubleMetaphone(token)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
