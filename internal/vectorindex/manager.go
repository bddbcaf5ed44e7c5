package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfenderov/contractcheck/internal/embeddings"
	"github.com/mfenderov/contractcheck/pkg/models"
)

// Status is the outcome of a load attempt.
type Status int

const (
	Loaded Status = iota
	RebuildNeeded
)

func (s Status) String() string {
	if s == Loaded {
		return "loaded"
	}
	return "rebuild_needed"
}

// Reason explains why a persisted index was not reused.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonMissing         Reason = "missing"
	ReasonCorrupt         Reason = "corrupt"
	ReasonVersionMismatch Reason = "version_mismatch"
	ReasonModelMismatch   Reason = "model_mismatch"
	ReasonMetricMismatch  Reason = "metric_mismatch"
	ReasonStaleDocument   Reason = "stale_document"
	ReasonForced          Reason = "forced"
)

// LoadResult reports whether the persisted index can be reused.
type LoadResult struct {
	Status Status
	Reason Reason
	Header Header
	Err    error // underlying load error, if any
}

// ReusePolicy decides when a persisted index built from other text is reused.
type ReusePolicy string

const (
	// ReuseFingerprint reuses the index only when it was built from the
	// same chunks.
	ReuseFingerprint ReusePolicy = "fingerprint"
	// ReuseAlways reuses any readable index built with the same model,
	// whatever document it came from.
	ReuseAlways ReusePolicy = "always"
)

// Manager loads, rebuilds and opens the process-wide index.
type Manager struct {
	store    Store
	embedder embeddings.Embedder
	metric   Metric
	policy   ReusePolicy
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithMetric(metric Metric) Option {
	return func(m *Manager) { m.metric = metric }
}

func WithReusePolicy(policy ReusePolicy) Option {
	return func(m *Manager) { m.policy = policy }
}

// NewManager creates a Manager over store using embedder for chunks and queries.
func NewManager(store Store, embedder embeddings.Embedder, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		embedder: embedder,
		metric:   MetricL2,
		policy:   ReuseFingerprint,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check inspects the persisted index against the current chunks without
// modifying anything.
func (m *Manager) Check(ctx context.Context, chunks []models.Chunk) LoadResult {
	header, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		return LoadResult{Status: RebuildNeeded, Reason: ReasonMissing, Err: err}
	case err != nil:
		return LoadResult{Status: RebuildNeeded, Reason: ReasonCorrupt, Err: err}
	}

	result := LoadResult{Status: RebuildNeeded, Header: header}
	switch {
	case header.Version != FormatVersion:
		result.Reason = ReasonVersionMismatch
	case header.Model != m.embedder.Model():
		result.Reason = ReasonModelMismatch
	case header.Metric != m.metric:
		result.Reason = ReasonMetricMismatch
	case header.Count == 0:
		result.Reason = ReasonCorrupt
		result.Err = ErrEmpty
	case m.policy != ReuseAlways && header.Fingerprint != Fingerprint(chunks):
		result.Reason = ReasonStaleDocument
	default:
		result.Status = Loaded
	}
	return result
}

// BuildOrLoad returns the persisted index when Check allows it, and otherwise
// rebuilds it from chunks.
func (m *Manager) BuildOrLoad(ctx context.Context, chunks []models.Chunk) (*Index, error) {
	result := m.Check(ctx, chunks)
	if result.Status == Loaded {
		slog.Info("reusing persisted index", "model", result.Header.Model, "chunks", result.Header.Count)
		return m.index(result.Header, OriginLoaded, ReasonNone), nil
	}

	slog.Info("rebuilding index", "reason", string(result.Reason), "error", result.Err)
	return m.build(ctx, chunks, result.Reason)
}

// Rebuild unconditionally rebuilds the index from chunks.
func (m *Manager) Rebuild(ctx context.Context, chunks []models.Chunk) (*Index, error) {
	return m.build(ctx, chunks, ReasonForced)
}

// Open loads the persisted index for searching without any document at hand.
// It fails when the index is missing or was built for another model or metric.
func (m *Manager) Open(ctx context.Context) (*Index, error) {
	header, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: format version %d, want %d", ErrCorrupt, header.Version, FormatVersion)
	}
	if header.Model != m.embedder.Model() {
		return nil, fmt.Errorf("index built with model %q, configured model is %q", header.Model, m.embedder.Model())
	}
	if header.Metric != m.metric {
		return nil, fmt.Errorf("index built with metric %q, configured metric is %q", header.Metric, m.metric)
	}
	return m.index(header, OriginLoaded, ReasonNone), nil
}

func (m *Manager) build(ctx context.Context, chunks []models.Chunk, reason Reason) (*Index, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	vectors := make([][]float32, len(chunks))
	dim := 0
	for i, c := range chunks {
		vec, err := m.embedder.Embed(ctx, c.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d: %w", i, err)
		}
		if i == 0 {
			dim = len(vec)
		}
		if len(vec) == 0 || len(vec) != dim {
			return nil, fmt.Errorf("chunk %d embedding has %d dimensions, want %d", i, len(vec), dim)
		}
		vectors[i] = vec
	}

	header := Header{
		Version:     FormatVersion,
		Model:       m.embedder.Model(),
		Dimension:   dim,
		Metric:      m.metric,
		Fingerprint: Fingerprint(chunks),
		Count:       len(chunks),
		CreatedAt:   m.now().UTC(),
	}
	if err := m.store.Replace(ctx, header, chunks, vectors); err != nil {
		return nil, fmt.Errorf("failed to persist index: %w", err)
	}

	slog.Info("index built", "chunks", len(chunks), "dimension", dim, "reason", string(reason))
	return m.index(header, OriginBuilt, reason), nil
}

func (m *Manager) index(header Header, origin Origin, reason Reason) *Index {
	return &Index{
		store:    m.store,
		embedder: m.embedder,
		header:   header,
		origin:   origin,
		reason:   reason,
	}
}

// Origin records how an Index came to be.
type Origin string

const (
	OriginLoaded Origin = "loaded"
	OriginBuilt  Origin = "built"
)

// Index is a ready-to-search index.
type Index struct {
	store    Store
	embedder embeddings.Embedder
	header   Header
	origin   Origin
	reason   Reason
}

// Header describes the index.
func (i *Index) Header() Header {
	return i.header
}

// Origin reports whether the index was loaded or built.
func (i *Index) Origin() Origin {
	return i.origin
}

// Reason is why the index was rebuilt; empty when it was loaded.
func (i *Index) Reason() Reason {
	return i.reason
}

// Search embeds query and returns up to k nearest chunks, closest first.
func (i *Index) Search(ctx context.Context, query string, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	vec, err := i.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vec) != i.header.Dimension {
		return nil, fmt.Errorf("query embedding has %d dimensions, index has %d", len(vec), i.header.Dimension)
	}

	results, err := i.store.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	return results, nil
}
