package chunker

import (
	"errors"
	"fmt"
	"iter"
	"unicode/utf8"
)

// ErrInvalidSize is returned for a chunk size that is not positive.
var ErrInvalidSize = errors.New("chunk size must be positive")

// Chunk is a fixed-width slice of document text, the unit of one generation call.
type Chunk struct {
	Text  string
	Index int // 1-based position in the sequence
	Total int // Number of chunks the text splits into
	Start int // Rune offset of the first character
	End   int // Rune offset one past the last character
}

// All returns the chunks of text lazily, left to right. Every chunk holds exactly
// size runes except possibly the last one. Boundaries ignore words and sentences.
func All(text string, size int) (iter.Seq[Chunk], error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	total := Count(text, size)

	return func(yield func(Chunk) bool) {
		rest := text
		offset := 0
		for index := 1; rest != ""; index++ {
			// Walk size runes forward to find the byte cut.
			cut := 0
			n := 0
			for n < size && cut < len(rest) {
				_, w := utf8.DecodeRuneInString(rest[cut:])
				cut += w
				n++
			}
			c := Chunk{
				Text:  rest[:cut],
				Index: index,
				Total: total,
				Start: offset,
				End:   offset + n,
			}
			if !yield(c) {
				return
			}
			rest = rest[cut:]
			offset += n
		}
	}, nil
}

// Split is the eager form of All.
func Split(text string, size int) ([]Chunk, error) {
	seq, err := All(text, size)
	if err != nil {
		return nil, err
	}
	chunks := make([]Chunk, 0, Count(text, size))
	for c := range seq {
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// Count returns how many chunks text splits into. It is 0 for empty text or a
// non-positive size.
func Count(text string, size int) int {
	if size <= 0 {
		return 0
	}
	n := utf8.RuneCountInString(text)
	return (n + size - 1) / size
}
