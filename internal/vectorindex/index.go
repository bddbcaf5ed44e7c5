// Package vectorindex persists chunk embeddings and answers nearest-neighbour
// queries over them.
//
// One index lives at a fixed location and is shared by every analysis in the
// process. BuildOrLoad reuses what is persisted when it still matches the
// current document and embedding model, and otherwise rebuilds from the
// current chunks, overwriting the old index.
package vectorindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/mfenderov/contractcheck/pkg/models"
)

// FormatVersion is bumped whenever the persisted layout changes.
const FormatVersion = 1

var (
	ErrNotFound = errors.New("index not found")
	ErrCorrupt  = errors.New("index is corrupt")
	ErrNoChunks = errors.New("cannot build an index from zero chunks")
	ErrEmpty    = errors.New("index is empty")
)

// Metric selects how query vectors are compared with stored vectors.
type Metric string

const (
	// MetricL2 ranks by squared Euclidean distance, smallest first.
	MetricL2 Metric = "l2"
	// MetricCosine ranks by cosine similarity, largest first.
	MetricCosine Metric = "cosine"
)

// ParseMetric converts a config value, defaulting to l2.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", MetricL2:
		return MetricL2, nil
	case MetricCosine:
		return MetricCosine, nil
	}
	return "", errors.New("unknown metric: " + s)
}

// Header describes a persisted index.
type Header struct {
	Version     int       `json:"version"`
	Model       string    `json:"model"`
	Dimension   int       `json:"dimension"`
	Metric      Metric    `json:"metric"`
	Fingerprint string    `json:"fingerprint"`
	Count       int       `json:"count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is a persistence backend for one index.
type Store interface {
	// Load reads the persisted header and prepares the store for Search.
	// It returns ErrNotFound when nothing is persisted and wraps ErrCorrupt
	// when the data cannot be read back.
	Load(ctx context.Context) (Header, error)
	// Replace overwrites the persisted index with the given chunks.
	Replace(ctx context.Context, header Header, chunks []models.Chunk, vectors [][]float32) error
	// Search returns up to k chunks nearest to vector, closest first.
	Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error)
}

// Fingerprint identifies a chunk list by content and order.
func Fingerprint(chunks []models.Chunk) string {
	h := sha256.New()
	for _, c := range chunks {
		h.Write([]byte(c.Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
