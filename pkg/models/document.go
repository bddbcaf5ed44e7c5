package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Document is a contract pulled from a non-upload source (a web page or a
// bucket object) before it is written to the temp path.
type Document struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"` // URL or object key
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Format    string    `json:"format"` // lowercase file extension
	FetchedAt time.Time `json:"fetched_at"`
}

// Chunk is one overlapping window of extracted contract text.
type Chunk struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	Text     string `json:"text"`
}

// ScoredChunk is a chunk returned by a similarity search.
// Lower scores are closer for l2, higher for cosine.
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}

// GenerateDocumentID creates a deterministic ID from a source location.
// The ID is a SHA-256 hash (first 16 chars) of the source.
func GenerateDocumentID(source string) string {
	hash := sha256.Sum256([]byte(source))
	return hex.EncodeToString(hash[:])[:16]
}

// GenerateChunkID derives a chunk ID from its position and text, so the same
// chunk list always produces the same IDs.
func GenerateChunkID(position int, text string) string {
	hash := sha256.Sum256([]byte(strconv.Itoa(position) + "\x00" + text))
	return hex.EncodeToString(hash[:])[:16]
}

// NewChunks wraps split texts into Chunks in order.
func NewChunks(texts []string) []Chunk {
	chunks := make([]Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, Chunk{
			ID:       GenerateChunkID(i, text),
			Position: i,
			Text:     text,
		})
	}
	return chunks
}
