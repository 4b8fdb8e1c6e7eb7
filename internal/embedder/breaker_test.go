package embedder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	inner := &mockEmbedder{
		dim: 4,
		generateFunc: func(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
			calls++
			return nil, errors.New("connection refused")
		},
	}
	b := NewBreaker(inner, BreakerConfig{ConsecutiveFailures: 3, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := b.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, 3, calls, "open breaker does not reach the provider")
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	inner := &mockEmbedder{
		dim: 4,
		generateFunc: func(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
			return nil, context.Canceled
		},
	}
	b := NewBreaker(inner, BreakerConfig{ConsecutiveFailures: 1})

	for i := 0; i < 3; i++ {
		_, err := b.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerPassesThrough(t *testing.T) {
	b := NewBreaker(&mockEmbedder{dim: 4}, BreakerConfig{})

	emb, err := b.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	require.NoError(t, err)
	assert.Len(t, emb.Vector, 4)

	resp, err := b.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Len(t, resp.Embeddings, 2)
	assert.Equal(t, "mock/mock-model/4", Identifier(b))
}
