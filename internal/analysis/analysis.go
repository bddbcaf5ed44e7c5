// Package analysis runs one contract through extraction, chunking, retrieval
// and summarization.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mfenderov/contractcheck/internal/extract"
	"github.com/mfenderov/contractcheck/internal/llm"
	"github.com/mfenderov/contractcheck/internal/report"
	"github.com/mfenderov/contractcheck/internal/vectorindex"
	"github.com/mfenderov/contractcheck/pkg/models"
)

const (
	DefaultQuery = "Contract analysis"
	DefaultTopK  = 5
)

// Instruction is the question asked about the retrieved passages.
const Instruction = `Analyze this contract and summarize:
1️⃣ **Major Risks**: Identify financial, legal, or operational risks.
2️⃣ **Compliance Issues**: Highlight missing or vague legal details.
3️⃣ **Unfair Terms**: Point out clauses that create imbalance.

Use bullet points. If no risks exist, highlight potential loopholes.`

const promptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

%s

Question: %s
Helpful Answer:`

// Extractor reads a document into text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Chunker splits text into ordered chunks.
type Chunker interface {
	Chunks(text string) []models.Chunk
}

// Status distinguishes a model answer from an analysis failure.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Result is the outcome of one analysis. Text is what the user sees: the
// formatted answer on success or the extraction error message on failure.
type Result struct {
	ID          string               `json:"id"`
	Status      Status               `json:"status"`
	Kind        extract.Kind         `json:"kind,omitempty"`
	Text        string               `json:"text"`
	Answer      string               `json:"answer,omitempty"` // model output before formatting
	Reassured   bool                 `json:"reassured,omitempty"`
	Sources     []models.ScoredChunk `json:"sources,omitempty"`
	IndexOrigin vectorindex.Origin   `json:"index_origin,omitempty"`
	IndexReason vectorindex.Reason   `json:"index_reason,omitempty"`
	Duration    time.Duration        `json:"duration"`
}

// Failed reports whether the analysis stopped at extraction.
func (r *Result) Failed() bool {
	return r.Status == StatusFailure
}

// Analyzer wires the stages together. It is not safe for concurrent use:
// every call rewrites the shared persisted index.
type Analyzer struct {
	extractor   Extractor
	chunker     Chunker
	indexes     *vectorindex.Manager
	completer   llm.Completer
	query       string
	topK        int
	instruction string
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithQuery sets the retrieval query.
func WithQuery(query string) Option {
	return func(a *Analyzer) {
		if query != "" {
			a.query = query
		}
	}
}

// WithTopK sets how many chunks are retrieved.
func WithTopK(k int) Option {
	return func(a *Analyzer) {
		if k > 0 {
			a.topK = k
		}
	}
}

// WithInstruction replaces the question asked about the contract.
func WithInstruction(instruction string) Option {
	return func(a *Analyzer) {
		if instruction != "" {
			a.instruction = instruction
		}
	}
}

// New creates an Analyzer.
func New(extractor Extractor, chunker Chunker, indexes *vectorindex.Manager, completer llm.Completer, opts ...Option) *Analyzer {
	a := &Analyzer{
		extractor:   extractor,
		chunker:     chunker,
		indexes:     indexes,
		completer:   completer,
		query:       DefaultQuery,
		topK:        DefaultTopK,
		instruction: Instruction,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs the full chain for the document at path.
//
// Extraction failures are returned as a failed Result with a nil error, and no
// index or model work is done for them. Index and model failures are returned
// as errors.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	result := &Result{ID: uuid.NewString()}
	log := slog.With("id", result.ID, "path", path)

	text, err := a.extractor.Extract(ctx, path)
	if err != nil {
		extractErr, ok := extract.AsError(err)
		if !ok {
			return nil, fmt.Errorf("failed to extract text: %w", err)
		}
		log.Info("extraction failed", "kind", string(extractErr.Kind))
		result.Status = StatusFailure
		result.Kind = extractErr.Kind
		result.Text = extractErr.Error()
		result.Duration = time.Since(start)
		return result, nil
	}

	chunks := a.chunker.Chunks(text)
	log.Debug("text chunked", "chars", len(text), "chunks", len(chunks))

	index, err := a.indexes.BuildOrLoad(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare index: %w", err)
	}
	result.IndexOrigin = index.Origin()
	result.IndexReason = index.Reason()

	sources, err := index.Search(ctx, a.query, a.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	result.Sources = sources

	answer, err := a.completer.Complete(ctx, BuildPrompt(a.instruction, sources))
	if err != nil {
		return nil, fmt.Errorf("failed to get model answer: %w", err)
	}

	result.Status = StatusSuccess
	result.Answer = answer
	result.Text = report.Format(answer)
	result.Reassured = report.Reassured(answer)
	result.Duration = time.Since(start)

	log.Info("analysis complete",
		"chunks", len(chunks),
		"sources", len(sources),
		"index", string(result.IndexOrigin),
		"duration", result.Duration)
	return result, nil
}

// BuildPrompt stuffs the retrieved chunks into the question-answering prompt.
func BuildPrompt(question string, sources []models.ScoredChunk) string {
	texts := make([]string, len(sources))
	for i, s := range sources {
		texts[i] = s.Text
	}
	return fmt.Sprintf(promptTemplate, strings.Join(texts, "\n\n"), question)
}
