// Package elasticsearch stores the contract index in an Elasticsearch
// dense_vector index and searches it with kNN queries.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/mfenderov/contractcheck/internal/vectorindex"
	"github.com/mfenderov/contractcheck/pkg/models"
)

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
}

// Client implements vectorindex.Store on top of one Elasticsearch index.
// The index header lives in the mapping's _meta.
type Client struct {
	es     *elasticsearch.Client
	index  string
	metric vectorindex.Metric // from the last Load or Replace
}

var _ vectorindex.Store = (*Client)(nil)

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	if config.Index == "" {
		return nil, fmt.Errorf("index name is required")
	}
	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:    es,
		index: config.Index,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// indexMapping builds the mapping for chunk documents. The similarity follows
// the index metric so kNN ranking matches the local store.
func indexMapping(header vectorindex.Header) ([]byte, error) {
	similarity := "l2_norm"
	if header.Metric == vectorindex.MetricCosine {
		similarity = "cosine"
	}
	mapping := map[string]any{
		"mappings": map[string]any{
			"_meta": header,
			"properties": map[string]any{
				"id":       map[string]any{"type": "keyword"},
				"position": map[string]any{"type": "integer"},
				"text":     map[string]any{"type": "text", "analyzer": "english"},
				"embedding": map[string]any{
					"type":       "dense_vector",
					"dims":       header.Dimension,
					"index":      true,
					"similarity": similarity,
				},
			},
		},
	}
	return json.Marshal(mapping)
}

// createIndex creates the index with the mapping for header.
func (c *Client) createIndex(ctx context.Context, header vectorindex.Header) error {
	body, err := indexMapping(header)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err := c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}
	return nil
}

// DeleteIndex removes the index. A missing index is not an error.
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("error deleting index: %s", res.String())
	}
	return nil
}

// chunkDocument is the stored form of one chunk.
type chunkDocument struct {
	ID        string    `json:"id"`
	Position  int       `json:"position"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// indexChunk indexes a single chunk with its vector.
func (c *Client) indexChunk(ctx context.Context, chunk models.Chunk, vector []float32) error {
	data, err := json.Marshal(chunkDocument{
		ID:        chunk.ID,
		Position:  chunk.Position,
		Text:      chunk.Text,
		Embedding: vector,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal chunk: %w", err)
	}

	res, err := c.es.Index(
		c.index,
		bytes.NewReader(data),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(chunk.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index chunk: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing chunk (status %d): %s", res.StatusCode, res.String())
	}
	return nil
}

// Refresh forces an index refresh so new chunks are searchable.
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return fmt.Errorf("failed to refresh index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error refreshing index: %s", res.String())
	}
	return nil
}

// mappingResponse is keyed by concrete index name.
type mappingResponse map[string]struct {
	Mappings struct {
		Meta *vectorindex.Header `json:"_meta"`
	} `json:"mappings"`
}

// Load reads the header from the mapping _meta and checks the document count.
func (c *Client) Load(ctx context.Context) (vectorindex.Header, error) {
	res, err := c.es.Indices.GetMapping(
		c.es.Indices.GetMapping.WithContext(ctx),
		c.es.Indices.GetMapping.WithIndex(c.index),
	)
	if err != nil {
		return vectorindex.Header{}, fmt.Errorf("failed to get mapping: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return vectorindex.Header{}, vectorindex.ErrNotFound
	}
	if res.IsError() {
		return vectorindex.Header{}, fmt.Errorf("get mapping error: %s", res.String())
	}

	var mr mappingResponse
	if err := json.NewDecoder(res.Body).Decode(&mr); err != nil {
		return vectorindex.Header{}, fmt.Errorf("%w: failed to decode mapping: %v", vectorindex.ErrCorrupt, err)
	}

	var header *vectorindex.Header
	for _, m := range mr {
		header = m.Mappings.Meta
	}
	if header == nil {
		return vectorindex.Header{}, fmt.Errorf("%w: mapping has no _meta", vectorindex.ErrCorrupt)
	}

	count, err := c.count(ctx)
	if err != nil {
		return vectorindex.Header{}, err
	}
	if count != header.Count {
		return vectorindex.Header{}, fmt.Errorf("%w: index holds %d chunks, header says %d",
			vectorindex.ErrCorrupt, count, header.Count)
	}
	c.metric = header.Metric
	return *header, nil
}

func (c *Client) count(ctx context.Context) (int, error) {
	res, err := c.es.Count(
		c.es.Count.WithContext(ctx),
		c.es.Count.WithIndex(c.index),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("count error: %s", res.String())
	}

	var cr struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		return 0, fmt.Errorf("failed to decode count: %w", err)
	}
	return cr.Count, nil
}

// Replace drops the index, recreates it for header and indexes every chunk.
func (c *Client) Replace(ctx context.Context, header vectorindex.Header, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d chunks and %d vectors", len(chunks), len(vectors))
	}
	if err := c.DeleteIndex(ctx); err != nil {
		return err
	}
	if err := c.createIndex(ctx, header); err != nil {
		return err
	}
	for i, chunk := range chunks {
		if err := c.indexChunk(ctx, chunk, vectors[i]); err != nil {
			return err
		}
	}
	slog.Debug("indexed chunks", "index", c.index, "count", len(chunks))
	if err := c.Refresh(ctx); err != nil {
		return err
	}
	c.metric = header.Metric
	return nil
}

// searchResponse represents ES search response structure.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float32       `json:"_score"`
			Source chunkDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a kNN query. Elasticsearch scores are mapped back to squared
// L2 distance or cosine similarity to match the local store.
func (c *Client) Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	if c.metric == "" {
		if _, err := c.Load(ctx); err != nil {
			return nil, err
		}
	}

	searchQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "embedding",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": max(k*2, 10),
		},
		"size":    k,
		"_source": []string{"id", "position", "text"},
	}

	data, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("knn search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("knn search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]models.ScoredChunk, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		results[i] = models.ScoredChunk{
			Chunk: models.Chunk{
				ID:       hit.Source.ID,
				Position: hit.Source.Position,
				Text:     hit.Source.Text,
			},
			Score: fromESScore(c.metric, hit.Score),
		}
	}
	return results, nil
}

// fromESScore inverts the kNN score transforms: l2_norm scores are
// 1/(1+d²) and cosine scores are (1+cos)/2.
func fromESScore(metric vectorindex.Metric, score float32) float32 {
	if metric == vectorindex.MetricCosine {
		return 2*score - 1
	}
	if score <= 0 {
		return 0
	}
	return 1/score - 1
}
