package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mfenderov/contractcheck/internal/analysis"
	"github.com/mfenderov/contractcheck/internal/chunker"
	"github.com/mfenderov/contractcheck/internal/config"
	"github.com/mfenderov/contractcheck/internal/elasticsearch"
	"github.com/mfenderov/contractcheck/internal/embeddings"
	"github.com/mfenderov/contractcheck/internal/extract"
	"github.com/mfenderov/contractcheck/internal/fetcher"
	"github.com/mfenderov/contractcheck/internal/llm"
	"github.com/mfenderov/contractcheck/internal/storage"
	"github.com/mfenderov/contractcheck/internal/vectorindex"
)

func newExtractor(cfg config.Config) *extract.Extractor {
	return extract.New(extract.WithTesseract(cfg.Extractor.TesseractPath, cfg.Extractor.Language))
}

func newSplitter(cfg config.Config) (*chunker.Splitter, error) {
	splitter, err := chunker.New(
		chunker.WithSize(cfg.Chunker.Size),
		chunker.WithOverlap(cfg.Chunker.Overlap),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}
	return splitter, nil
}

func newEmbedder(ctx context.Context, cfg config.Config) (embeddings.Embedder, error) {
	var embedder embeddings.Embedder

	switch cfg.Embeddings.Provider {
	case "gemini":
		g, err := embeddings.NewGemini(ctx, embeddings.GeminiConfig{
			APIKey: cfg.Embeddings.ResolveAPIKey(),
			Model:  cfg.Embeddings.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings client: %w", err)
		}
		embedder = g
	case "hashing":
		h, err := embeddings.NewHashing(cfg.Embeddings.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings client: %w", err)
		}
		embedder = h
	default:
		c, err := embeddings.New(embeddings.Config{
			BaseURL:       cfg.Embeddings.BaseURL,
			SocketPath:    cfg.Embeddings.SocketPath,
			APIKey:        cfg.Embeddings.ResolveAPIKey(),
			Model:         cfg.Embeddings.Model,
			MaxInputChars: cfg.Embeddings.MaxInputChars,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings client: %w", err)
		}
		embedder = c
	}

	if want, mismatch := dimensionMismatch(cfg.Embeddings); mismatch {
		slog.Warn("embeddings.dimensions does not match the model",
			"model", cfg.Embeddings.Model, "configured", cfg.Embeddings.Dimensions, "model_dimensions", want)
	}

	return embeddings.WithCache(embedder, cfg.Embeddings.CacheSize, cfg.Embeddings.CacheTTL), nil
}

// dimensionMismatch reports the known size of the configured model when
// embeddings.dimensions disagrees with it. The hashing provider takes its size
// from the config, so it never mismatches.
func dimensionMismatch(cfg config.Embeddings) (int, bool) {
	if cfg.Provider == "hashing" || cfg.Dimensions <= 0 {
		return 0, false
	}
	known, ok := embeddings.Dimensions(cfg.Model)
	return known, ok && known != cfg.Dimensions
}

func newStore(cfg config.Config) (vectorindex.Store, error) {
	if cfg.Index.Backend != "elasticsearch" {
		return vectorindex.NewLocalStore(cfg.Index.Path), nil
	}

	client, err := elasticsearch.New(elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Index:     cfg.Elasticsearch.Index,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	return client, nil
}

func newManager(ctx context.Context, cfg config.Config) (*vectorindex.Manager, error) {
	metric, err := vectorindex.ParseMetric(cfg.Index.Metric)
	if err != nil {
		return nil, err
	}
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return vectorindex.NewManager(store, embedder,
		vectorindex.WithMetric(metric),
		vectorindex.WithReusePolicy(vectorindex.ReusePolicy(cfg.Index.ReusePolicy)),
	), nil
}

func newCompleter(ctx context.Context, cfg config.Config) (llm.Completer, error) {
	apiKey := cfg.LLM.ResolveAPIKey()
	if apiKey == "" && cfg.LLM.SocketPath == "" {
		// The first request fails instead.
		slog.Warn("no LLM API key configured", "env", cfg.LLM.APIKeyEnv)
	}

	if cfg.LLM.Provider == "gemini" {
		g, err := llm.NewGemini(ctx, llm.GeminiConfig{
			APIKey:      apiKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		return g, nil
	}

	c, err := llm.New(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		SocketPath:  cfg.LLM.SocketPath,
		APIKey:      apiKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return c, nil
}

// newAnalyzer builds the full chain and returns the index manager it uses.
func newAnalyzer(ctx context.Context, cfg config.Config) (*analysis.Analyzer, *vectorindex.Manager, error) {
	splitter, err := newSplitter(cfg)
	if err != nil {
		return nil, nil, err
	}
	manager, err := newManager(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	analyzer := analysis.New(newExtractor(cfg), splitter, manager, completer,
		analysis.WithQuery(cfg.Index.Query),
		analysis.WithTopK(cfg.Index.TopK),
	)
	return analyzer, manager, nil
}

func newFetcher(cfg config.Config) *fetcher.Fetcher {
	return fetcher.New(fetcher.Config{
		UserAgent:        cfg.Fetcher.UserAgent,
		Timeout:          cfg.Fetcher.Timeout,
		TryMarkdownFirst: cfg.Fetcher.TryMarkdownFirst,
	})
}

func newStorage(cfg config.Config) (*storage.Client, error) {
	client, err := storage.New(storage.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Bucket:          cfg.Storage.Bucket,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UseSSL:          cfg.Storage.UseSSL,
		Region:          cfg.Storage.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}
