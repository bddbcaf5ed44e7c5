package vectorindex

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mfenderov/contractcheck/pkg/models"
)

const (
	manifestFile = "index.json"
	vectorsFile  = "vectors.bin"
)

type manifest struct {
	Header
	VectorsSHA256 string         `json:"vectors_sha256"`
	Chunks        []models.Chunk `json:"chunks"`
}

// LocalStore keeps the index in a directory: index.json holds the header and
// chunk texts, vectors.bin holds little-endian float32 vectors row by row.
// Searches are exhaustive over the vectors held in memory.
type LocalStore struct {
	dir string

	mu      sync.RWMutex
	header  Header
	chunks  []models.Chunk
	vectors [][]float32
}

// NewLocalStore creates a store rooted at dir. Nothing is read until Load.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) Load(_ context.Context) (Header, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, manifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return Header{}, ErrNotFound
	}
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Header{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, manifestFile, err)
	}
	if m.Version != FormatVersion {
		// Older layouts are not decoded further; the caller rebuilds.
		return m.Header, nil
	}
	if m.Count != len(m.Chunks) || m.Dimension <= 0 {
		return Header{}, fmt.Errorf("%w: header count %d, %d chunks, dimension %d",
			ErrCorrupt, m.Count, len(m.Chunks), m.Dimension)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, vectorsFile))
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != m.VectorsSHA256 {
		return Header{}, fmt.Errorf("%w: %s checksum mismatch", ErrCorrupt, vectorsFile)
	}
	vectors, err := decodeVectors(data, m.Count, m.Dimension)
	if err != nil {
		return Header{}, err
	}

	s.mu.Lock()
	s.header = m.Header
	s.chunks = m.Chunks
	s.vectors = vectors
	s.mu.Unlock()

	return m.Header, nil
}

func (s *LocalStore) Replace(_ context.Context, header Header, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d chunks and %d vectors", len(chunks), len(vectors))
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	data, err := encodeVectors(vectors, header.Dimension)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)

	m := manifest{
		Header:        header,
		VectorsSHA256: hex.EncodeToString(sum[:]),
		Chunks:        chunks,
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	// Vectors first: a crash in between leaves a manifest whose checksum no
	// longer matches, which Load reports as corrupt.
	if err := writeFileAtomic(filepath.Join(s.dir, vectorsFile), data); err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(s.dir, manifestFile), raw); err != nil {
		return err
	}

	s.mu.Lock()
	s.header = header
	s.chunks = chunks
	s.vectors = vectors
	s.mu.Unlock()
	return nil
}

func (s *LocalStore) Search(_ context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 {
		return nil, ErrEmpty
	}
	if len(vector) != s.header.Dimension {
		return nil, fmt.Errorf("query has %d dimensions, index has %d", len(vector), s.header.Dimension)
	}
	return rank(s.header.Metric, vector, s.chunks, s.vectors, k), nil
}

// rank scores every vector and returns the best k, ties broken by position.
func rank(metric Metric, query []float32, chunks []models.Chunk, vectors [][]float32, k int) []models.ScoredChunk {
	scored := make([]models.ScoredChunk, len(vectors))
	for i, v := range vectors {
		var score float32
		if metric == MetricCosine {
			score = cosine(query, v)
		} else {
			score = squaredL2(query, v)
		}
		scored[i] = models.ScoredChunk{Chunk: chunks[i], Score: score}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		if metric == MetricCosine {
			return scored[a].Score > scored[b].Score
		}
		return scored[a].Score < scored[b].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func encodeVectors(vectors [][]float32, dim int) ([]byte, error) {
	buf := make([]byte, 0, len(vectors)*dim*4)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has %d dimensions, want %d", i, len(v), dim)
		}
		for _, f := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf, nil
}

func decodeVectors(data []byte, count, dim int) ([][]float32, error) {
	if len(data) != count*dim*4 {
		return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrCorrupt, vectorsFile, len(data), count*dim*4)
	}
	vectors := make([][]float32, count)
	for i := range vectors {
		row := make([]float32, dim)
		for j := range row {
			off := (i*dim + j) * 4
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		}
		vectors[i] = row
	}
	return vectors, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
