// Package chunk splits cleaned text into overlapping, boundary-aware
// segments sized for embedding-model context limits.
package chunk

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultSize is the target number of characters per chunk.
	DefaultSize = 1000
	// DefaultOverlap is the number of characters shared between
	// consecutive chunks.
	DefaultOverlap = 200
)

// Chunk splits text into overlapping segments of at most size bytes. A cut
// never lands inside a UTF-8 sequence. When a window does not end at the text
// boundary, the cut is pulled back to the later of the last ". " or "\n"
// inside the window, but only when that break sits past the window midpoint;
// otherwise the hard cut stays. Chunks are trimmed, empty ones skipped. The
// window always advances by at least one byte, so the walk terminates even
// when overlap >= size. Empty or whitespace-only input yields no chunks.
func Chunk(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
		}
		window := text[start:end]

		if end < len(text) {
			if cut := breakPoint(window); cut > size/2 {
				window = window[:cut]
			}
		}

		emitted := strings.TrimSpace(window)
		if emitted != "" {
			chunks = append(chunks, emitted)
		}

		step := len(emitted) - overlap
		if step < 1 {
			step = 1
		}
		start += step
		// The overlap is counted in bytes, so realign to the next rune.
		for start < len(text) && !utf8.RuneStart(text[start]) {
			start++
		}
	}
	return chunks
}

// breakPoint returns the cut length after the later of the last ". " or the
// last newline in the window, or -1 when neither occurs. The boundary
// characters are kept inside the chunk.
func breakPoint(window string) int {
	cut := -1
	if i := strings.LastIndex(window, ". "); i >= 0 {
		cut = i + 2
	}
	if i := strings.LastIndex(window, "\n"); i >= 0 && i+1 > cut {
		cut = i + 1
	}
	return cut
}

// TokenEstimate approximates the token count of a chunk at four characters
// per token, rounded up.
func TokenEstimate(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}
