package text

import "strings"

// DefaultMaxChunkLength is the request size limit of the Google TTS API
const DefaultMaxChunkLength = 5000

// isBoundary reports whether b ends a sentence
func isBoundary(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// Sentences returns the trimmed, non-empty sentence units of text in order.
// A unit runs from just after the previous '.', '!' or '?' through the next
// one; the remainder after the last boundary is a unit of its own.
func Sentences(text string) []string {
	var sentences []string
	start := 0

	// Boundary bytes are ASCII, so they never appear inside a multi-byte rune
	for i := 0; i < len(text); i++ {
		if !isBoundary(text[i]) {
			continue
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}

	if start < len(text) {
		if s := strings.TrimSpace(text[start:]); s != "" {
			sentences = append(sentences, s)
		}
	}

	return sentences
}

// Split packs the sentences of text into chunks of at most maxLen bytes.
//
// Sentences are never cut: a sentence longer than maxLen is emitted as an
// oversized chunk on its own. Chunk order follows sentence order and no
// chunk is empty. A non-positive maxLen puts every sentence in its own chunk.
func Split(text string, maxLen int) []string {
	if maxLen < 1 {
		maxLen = 1
	}

	chunks := make([]string, 0)
	var current strings.Builder

	for _, sentence := range Sentences(text) {
		if current.Len()+len(sentence)+1 > maxLen && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(sentence)
		current.WriteByte(' ')
	}

	if last := strings.TrimSpace(current.String()); last != "" {
		chunks = append(chunks, last)
	}

	return chunks
}
