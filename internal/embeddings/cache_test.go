package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) Model() string { return "counting" }

func TestWithCache_Disabled(t *testing.T) {
	inner := &countingEmbedder{}

	assert.Same(t, inner, WithCache(inner, 0, time.Minute))
	assert.Same(t, inner, WithCache(inner, 10, 0))
}

func TestCached_HitsAvoidInnerCalls(t *testing.T) {
	inner := &countingEmbedder{}
	e := WithCache(inner, 10, time.Minute)
	ctx := context.Background()

	first, err := e.Embed(ctx, "clause")
	require.NoError(t, err)
	second, err := e.Embed(ctx, "clause")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "counting", e.Model())

	_, err = e.Embed(ctx, "another clause")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	_, err = e.Embed(ctx, "another clause")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCached_ReturnsCopies(t *testing.T) {
	e := WithCache(&countingEmbedder{}, 10, time.Minute)
	ctx := context.Background()

	first, err := e.Embed(ctx, "clause")
	require.NoError(t, err)
	first[0] = 999

	second, err := e.Embed(ctx, "clause")
	require.NoError(t, err)
	assert.Equal(t, float32(6), second[0])
}

func TestCached_ErrorsNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("unavailable")}
	e := WithCache(inner, 10, time.Minute)
	ctx := context.Background()

	_, err := e.Embed(ctx, "clause")
	assert.Error(t, err)
	_, err = e.Embed(ctx, "clause")
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "abc", truncate("abc", 0))
	assert.Equal(t, "éé", truncate("ééé", 2))
}
