package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbeddingsAPI struct {
	calls    atomic.Int32
	failures int32 // leading requests answered with status
	status   int
	dim      int

	mu     sync.Mutex
	inputs [][]string
}

func (f *fakeEmbeddingsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := f.calls.Add(1)
	if n <= f.failures {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream says no","type":"server_error"}}`))
		return
	}

	var body struct {
		Input []string `json:"input"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.inputs = append(f.inputs, body.Input)
	f.mu.Unlock()

	type item struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	}
	data := make([]item, len(body.Input))
	// answer in reverse order to exercise index mapping
	for i := range body.Input {
		j := len(body.Input) - 1 - i
		vec := make([]float32, f.dim)
		vec[0] = float32(j + 1)
		data[i] = item{Object: "embedding", Embedding: vec, Index: j}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  "test-model",
		"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
	})
}

func newTestOpenAI(t *testing.T, api *fakeEmbeddingsAPI) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	p, err := NewOpenAIProvider(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/v1",
		Model:      "test-model",
		Dimensions: api.dim,
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
			Multiplier: 2,
			Retryable:  isRetryable,
		},
	}, NewCache(10))
	require.NoError(t, err)
	return p
}

func TestOpenAIProviderBatchOrderAndBlanks(t *testing.T) {
	api := &fakeEmbeddingsAPI{dim: 3}
	p := newTestOpenAI(t, api)

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{
		Texts: []string{"first", "  ", "second"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)

	assert.Equal(t, float32(1), resp.Embeddings[0].Vector[0])
	assert.Equal(t, []float32{0, 0, 0}, resp.Embeddings[1].Vector)
	assert.Equal(t, float32(2), resp.Embeddings[2].Vector[0])
	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.inputs, 1)
	assert.Equal(t, []string{"first", "second"}, api.inputs[0], "blank text is never sent")
}

func TestOpenAIProviderUsesCache(t *testing.T) {
	api := &fakeEmbeddingsAPI{dim: 3}
	p := newTestOpenAI(t, api)

	_, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "docker"})
	require.NoError(t, err)
	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "docker"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), api.calls.Load())
}

func TestOpenAIProviderRetriesServerErrors(t *testing.T) {
	api := &fakeEmbeddingsAPI{dim: 3, failures: 2, status: http.StatusServiceUnavailable}
	p := newTestOpenAI(t, api)

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "go"})
	require.NoError(t, err)
	assert.Len(t, emb.Vector, 3)
	assert.Equal(t, int32(3), api.calls.Load())
}

func TestOpenAIProviderDoesNotRetryClientErrors(t *testing.T) {
	api := &fakeEmbeddingsAPI{dim: 3, failures: 10, status: http.StatusBadRequest}
	p := newTestOpenAI(t, api)

	_, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "go"})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(1), api.calls.Load())
}

func TestOpenAIProviderDimensionMismatch(t *testing.T) {
	api := &fakeEmbeddingsAPI{dim: 3}
	srv := httptest.NewServer(api)
	defer srv.Close()

	p, err := NewOpenAIProvider(OpenAIConfig{
		APIKey:     "k",
		BaseURL:    srv.URL + "/v1",
		Dimensions: 5,
		Retry:      RetryConfig{MaxRetries: 1},
	}, nil)
	require.NoError(t, err)

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "go"})
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestNewOpenAIProviderRequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{}, nil)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}
