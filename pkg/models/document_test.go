package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDocumentID(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"URL", "https://example.com/terms"},
		{"object key", "contracts/2024/lease.pdf"},
		{"URL with query", "https://example.com/terms?v=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := GenerateDocumentID(tt.source)

			assert.Len(t, id, 16)
			assert.Equal(t, id, GenerateDocumentID(tt.source), "ID should be deterministic")
		})
	}
}

func TestGenerateDocumentID_UniqueForDifferentSources(t *testing.T) {
	assert.NotEqual(t,
		GenerateDocumentID("https://example.com/page1"),
		GenerateDocumentID("https://example.com/page2"))
}

func TestGenerateChunkID_DependsOnPosition(t *testing.T) {
	a := GenerateChunkID(0, "same text")
	b := GenerateChunkID(1, "same text")

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, GenerateChunkID(0, "same text"))
}

func TestNewChunks(t *testing.T) {
	chunks := NewChunks([]string{"first", "second", "third"})

	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, GenerateChunkID(i, c.Text), c.ID)
	}
	assert.Equal(t, "second", chunks[1].Text)
}

func TestNewChunks_Empty(t *testing.T) {
	assert.Empty(t, NewChunks(nil))
}
