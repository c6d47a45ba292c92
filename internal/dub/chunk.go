package dub

import (
	"strings"
	"unicode/utf8"
)

// maxChunkLen is the largest text block handed to synthesis in one request.
// Cloud TTS services cap request size around 5000 bytes; 4000 leaves head
// room for SSML-less overhead.
const maxChunkLen = 4000

// SplitText breaks text into chunks of at most maxLen characters, preferring
// sentence boundaries, then word boundaries. A hard split only happens for a
// single word longer than maxLen.
func SplitText(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = maxChunkLen
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, sentence := range splitSentences(text) {
		if current.Len() > 0 && current.Len()+1+len(sentence) > maxLen {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if len(sentence) > maxLen {
			// A single oversized sentence falls back to word splitting.
			for _, part := range splitWords(sentence, maxLen) {
				if current.Len() > 0 && current.Len()+1+len(part) > maxLen {
					chunks = append(chunks, strings.TrimSpace(current.String()))
					current.Reset()
				}
				appendPiece(&current, part)
			}
			continue
		}
		appendPiece(&current, sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

func appendPiece(b *strings.Builder, piece string) {
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(piece)
}

// splitSentences cuts text after '.', '!' or '?' followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			end := i + 1
			// Swallow runs of closing punctuation ("?!", "...").
			for end < len(text) && (text[end] == '.' || text[end] == '!' || text[end] == '?') {
				end++
			}
			if end >= len(text) || text[end] == ' ' || text[end] == '\n' || text[end] == '\t' {
				s := strings.TrimSpace(text[start:end])
				if s != "" {
					out = append(out, s)
				}
				start = end
				i = end - 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// splitWords chops an oversized sentence at word boundaries, hard-splitting
// only words longer than maxLen.
func splitWords(sentence string, maxLen int) []string {
	var out []string
	var current strings.Builder
	for _, word := range strings.Fields(sentence) {
		for len(word) > maxLen {
			if current.Len() > 0 {
				out = append(out, current.String())
				current.Reset()
			}
			cut := runeBoundary(word, maxLen)
			out = append(out, word[:cut])
			word = word[cut:]
		}
		if current.Len() > 0 && current.Len()+1+len(word) > maxLen {
			out = append(out, current.String())
			current.Reset()
		}
		appendPiece(&current, word)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// runeBoundary returns the largest cut point <= max that does not land inside
// a UTF-8 sequence. A hard split must not hand the synthesizer half a rune.
func runeBoundary(word string, max int) int {
	cut := max
	for cut > 0 && !utf8.RuneStart(word[cut]) {
		cut--
	}
	if cut == 0 {
		// max is shorter than one rune; split mid-rune rather than loop.
		return max
	}
	return cut
}
