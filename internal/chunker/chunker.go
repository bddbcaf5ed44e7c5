// Package chunker splits contract text into overlapping windows for embedding.
//
// Text is split recursively on a preference list of separators (paragraph,
// line, word, character). Each separator stays attached to the start of the
// piece that follows it, pieces are merged up to the window size, and the tail
// of each window is carried into the next one as overlap.
package chunker

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mfenderov/contractcheck/pkg/models"
)

const (
	DefaultSize    = 500
	DefaultOverlap = 100
)

// DefaultSeparators are tried in order; "" splits into single characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

var ErrInvalidOverlap = errors.New("chunk overlap must be smaller than chunk size")

// Splitter splits text into chunks of at most Size characters.
// Sizes count Unicode code points.
type Splitter struct {
	size    int
	overlap int
}

// Option configures a Splitter.
type Option func(*Splitter)

func WithSize(size int) Option {
	return func(s *Splitter) { s.size = size }
}

func WithOverlap(overlap int) Option {
	return func(s *Splitter) { s.overlap = overlap }
}

// New creates a Splitter, defaulting to 500 characters with 100 of overlap.
func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		size:    DefaultSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", s.size)
	}
	if s.overlap < 0 || s.overlap >= s.size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidOverlap, s.size, s.overlap)
	}
	return s, nil
}

// Split returns the chunk texts in document order. Chunks are whitespace
// trimmed and never empty.
func (s *Splitter) Split(text string) []string {
	return s.split(text, DefaultSeparators)
}

// Chunks returns Split wrapped as models.Chunk values.
func (s *Splitter) Chunks(text string) []models.Chunk {
	return models.NewChunks(s.Split(text))
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var remaining []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	var (
		chunks []string
		good   []string
	)
	for _, piece := range splitKeepingSeparator(text, separator) {
		if length(piece) < s.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good)...)
			good = nil
		}
		if len(remaining) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				chunks = append(chunks, trimmed)
			}
			continue
		}
		chunks = append(chunks, s.split(piece, remaining)...)
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good)...)
	}
	return chunks
}

// splitKeepingSeparator splits text on sep, prefixing every piece after the
// first with sep. Empty pieces are dropped.
func splitKeepingSeparator(text, sep string) []string {
	var parts []string
	if sep == "" {
		parts = make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}

	raw := strings.Split(text, sep)
	parts = make([]string, 0, len(raw))
	for i, p := range raw {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// merge packs pieces into windows of at most size characters. When a window
// is emitted, pieces are dropped from its front until no more than overlap
// characters remain and the next piece fits.
func (s *Splitter) merge(pieces []string) []string {
	var (
		out     []string
		current []string
		total   int
	)
	for _, piece := range pieces {
		n := length(piece)
		if total+n > s.size {
			if total > s.size {
				slog.Warn("created a chunk larger than the configured size", "size", total, "limit", s.size)
			}
			if len(current) > 0 {
				if doc := join(current); doc != "" {
					out = append(out, doc)
				}
				for total > s.overlap || (total+n > s.size && total > 0) {
					total -= length(current[0])
					current = current[1:]
				}
			}
		}
		current = append(current, piece)
		total += n
	}
	if doc := join(current); doc != "" {
		out = append(out, doc)
	}
	return out
}

func join(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
