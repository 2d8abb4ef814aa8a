// Package chunk splits a buffer's content into byte-range slices for the
// Chunk Store (spec §3). The engine ships one strategy, fixed-size with
// optional overlap; the contract (half-open ranges, document-order index,
// UTF-8-safe boundaries) is what the rest of the system depends on, not the
// boundary-detection heuristic itself (spec §1 scopes chunking strategy
// internals out beyond this contract).
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"

	"github.com/ariadne-eng/queryengine/model"
)

// StrategyFixed is the name stamped onto chunks produced by Fixed.
const StrategyFixed = "fixed"

// DefaultSize and DefaultOverlap are used when a caller passes zero.
const (
	DefaultSize    = 2000
	DefaultOverlap = 200
)

// Fixed splits content into chunks of approximately size bytes, each
// chunk's start advancing by (size - overlap) bytes from the previous one's
// start. Boundaries are pulled back to the nearest valid UTF-8 code point
// boundary so no chunk ever splits a multi-byte rune (spec §3, §8 scenario
// 5). The final chunk always runs through the end of content, however
// short, so no byte of the buffer is ever silently dropped.
func Fixed(content string, size, overlap int) []model.Chunk {
	if size <= 0 {
		size = DefaultSize
		if overlap <= 0 {
			overlap = DefaultOverlap
		}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	if len(content) == 0 {
		return nil
	}

	step := size - overlap
	if step <= 0 {
		step = size
	}

	var chunks []model.Chunk
	index := 0
	start := 0
	for start < len(content) {
		end := start + size
		if end > len(content) {
			end = len(content)
		} else {
			end = backToRuneBoundary(content, end)
		}
		start = backToRuneBoundary(content, start)
		if end <= start {
			end = len(content)
		}

		text := content[start:end]
		chunks = append(chunks, model.Chunk{
			Index:       index,
			Start:       start,
			End:         end,
			Text:        text,
			Strategy:    StrategyFixed,
			TokenCount:  approxTokenCount(text),
			Overlap:     index > 0 && overlap > 0,
			ContentHash: hashText(text),
		})
		index++

		if end >= len(content) {
			break
		}
		next := start + step
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// backToRuneBoundary walks pos backward until it lands on a valid UTF-8
// rune boundary (or 0), since content[pos] may otherwise fall in the middle
// of a multi-byte sequence.
func backToRuneBoundary(content string, pos int) int {
	if pos <= 0 {
		return 0
	}
	if pos >= len(content) {
		return len(content)
	}
	for pos > 0 && !utf8.RuneStart(content[pos]) {
		pos--
	}
	return pos
}

// approxTokenCount estimates token count as roughly four bytes per token,
// the same coarse heuristic most BPE English tokenizers average out to;
// good enough for the planner/scaling inputs that consume it, which only
// need an order-of-magnitude sense of batch cost.
func approxTokenCount(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}

// HashContent returns the deterministic content hash stored on Buffer and
// Chunk records.
func HashContent(content string) string {
	return hashText(content)
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
