// Package embeddings turns text into dense vectors for the contract index.
package embeddings

import "context"

// Embedder produces a vector for a piece of text.
// Vectors from one Embedder always have the same dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model identifies the embedding model; indexes built with a different
	// model are not reused.
	Model() string
}

// Dimensions returns the embedding size of well-known models.
// ok is false for models it doesn't know.
func Dimensions(model string) (dims int, ok bool) {
	switch model {
	case "sentence-transformers/all-MiniLM-L12-v2", "sentence-transformers/all-MiniLM-L6-v2",
		"all-MiniLM-L12-v2", "all-MiniLM-L6-v2":
		return 384, true
	case "ai/embeddinggemma", "text-embedding-004", "text-embedding-005":
		return 768, true
	case "ai/snowflake-arctic-embed":
		return 1024, true
	case "text-embedding-3-small":
		return 1536, true
	case "ai/qwen3-embedding":
		return 2560, true
	case "text-embedding-3-large", "gemini-embedding-001":
		return 3072, true
	default:
		return 0, false
	}
}

func truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == maxChars {
			return text[:i]
		}
		count++
	}
	return text
}
