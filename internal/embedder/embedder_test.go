package embedder

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder is a test double with overridable behavior
type mockEmbedder struct {
	dim          int
	generateFunc func(ctx context.Context, req EmbeddingRequest) (*Embedding, error)
	batchFunc    func(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, req)
	}
	return &Embedding{Vector: make([]float32, m.dim), Dimension: m.dim, Provider: "mock", Model: "mock"}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if m.batchFunc != nil {
		return m.batchFunc(ctx, req)
	}
	out := &BatchEmbeddingResponse{Provider: "mock", Model: "mock"}
	for _, text := range req.Texts {
		emb, err := m.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		out.Embeddings = append(out.Embeddings, emb)
	}
	return out, nil
}

func (m *mockEmbedder) Dimension() int   { return m.dim }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-model" }
func (m *mockEmbedder) Close() error     { return nil }

func TestComputeHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ComputeHash(""))
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", ComputeHash("hello world"))
	assert.Equal(t, ComputeHash("test"), ComputeHash("test"))
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "mock/mock-model/8", Identifier(&mockEmbedder{dim: 8}))
	assert.Equal(t, "local/hashed-bow-v1/384", Identifier(NewLocalProvider(nil, nil)))
}

func TestValidateBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     BatchEmbeddingRequest
		wantErr error
	}{
		{"valid batch", BatchEmbeddingRequest{Texts: []string{"a", "b"}}, nil},
		{"blank texts allowed", BatchEmbeddingRequest{Texts: []string{"a", "", "c"}}, nil},
		{"empty batch", BatchEmbeddingRequest{Texts: []string{}}, ErrInvalidInput},
		{"too large", BatchEmbeddingRequest{Texts: make([]string, MaxBatchSize+1)}, ErrBatchTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(tt.req)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestZeroEmbedding(t *testing.T) {
	emb := ZeroEmbedding(4, "p", "m")
	assert.Equal(t, []float32{0, 0, 0, 0}, emb.Vector)
	assert.Equal(t, 4, emb.Dimension)
	assert.True(t, IsBlank(" \n\t"))
	assert.False(t, IsBlank(" x "))
}

func TestCache(t *testing.T) {
	t.Run("basic operations", func(t *testing.T) {
		cache := NewCache(3)

		_, ok := cache.Get("nonexistent")
		assert.False(t, ok)

		cache.Set("hash1", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3, Hash: "hash1"})
		got, ok := cache.Get("hash1")
		require.True(t, ok)
		assert.Equal(t, "hash1", got.Hash)
		assert.Equal(t, 1, cache.Size())
	})

	t.Run("get returns a copy", func(t *testing.T) {
		cache := NewCache(3)
		cache.Set("h", &Embedding{Vector: []float32{1, 2, 3}})

		got, _ := cache.Get("h")
		got.Vector[0] = 99

		again, _ := cache.Get("h")
		assert.Equal(t, float32(1), again.Vector[0])
	})

	t.Run("eviction on capacity", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("hash1", &Embedding{Hash: "hash1"})
		cache.Set("hash2", &Embedding{Hash: "hash2"})
		cache.Set("hash3", &Embedding{Hash: "hash3"})

		assert.Equal(t, 2, cache.Size())
		_, ok := cache.Get("hash1")
		assert.False(t, ok, "least recently used entry is evicted")
		_, ok = cache.Get("hash3")
		assert.True(t, ok)
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("hash1", &Embedding{Hash: "hash1"})
		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := NewCache(100)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					hash := ComputeHash(fmt.Sprintf("text-%d-%d", id, j))
					cache.Set(hash, &Embedding{Vector: []float32{float32(id), float32(j)}, Hash: hash})
					cache.Get(hash)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 100, cache.Size())
	})
}
