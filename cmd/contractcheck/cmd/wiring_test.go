package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mfenderov/contractcheck/internal/config"
)

func TestDimensionMismatch(t *testing.T) {
	tests := []struct {
		name         string
		embeddings   config.Embeddings
		wantDims     int
		wantMismatch bool
	}{
		{"defaults agree", config.Defaults().Embeddings, 384, false},
		{"gemini model left at 384", config.Embeddings{Provider: "gemini", Model: "gemini-embedding-001", Dimensions: 384}, 3072, true},
		{"unknown model", config.Embeddings{Provider: "openai", Model: "custom/legal-embed", Dimensions: 512}, 0, false},
		{"hashing uses its own size", config.Embeddings{Provider: "hashing", Model: "sentence-transformers/all-MiniLM-L12-v2", Dimensions: 128}, 0, false},
		{"unset dimensions", config.Embeddings{Provider: "openai", Model: "text-embedding-3-small"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dims, mismatch := dimensionMismatch(tt.embeddings)
			assert.Equal(t, tt.wantMismatch, mismatch)
			if tt.wantMismatch {
				assert.Equal(t, tt.wantDims, dims)
			}
		})
	}
}
