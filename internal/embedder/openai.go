package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dshills/skillcourse-mcp/internal/metrics"
)

// OpenAIConfig configures an OpenAI-compatible embedding endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // empty uses api.openai.com; set for Jina, Nebius or a local server
	Model      string
	Dimensions int // requested output size; 0 keeps the model default
	Retry      RetryConfig
}

// OpenAIProvider implements Embedder over the OpenAI embeddings API
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	dimensions int
	requestDim int
	retry      RetryConfig
	cache      *Cache
}

// NewOpenAIProvider creates a new OpenAI-compatible embedder
func NewOpenAIProvider(cfg OpenAIConfig, cache *Cache) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key not set", ErrNoProviderEnabled)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	dim := cfg.Dimensions
	if dim <= 0 {
		dim = OpenAIDimension
	}
	retry := cfg.Retry
	if retry.MaxRetries <= 0 {
		retry = DefaultRetryConfig()
	}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: dim,
		requestDim: cfg.Dimensions,
		retry:      retry,
		cache:      cache,
	}, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	resp, err := o.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

// GenerateBatch embeds texts in one API call. Blank texts and cache hits are
// answered locally and never sent.
func (o *OpenAIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = o.model
	}

	embeddings := make([]*Embedding, len(req.Texts))
	var pending []string
	var pendingIdx []int
	for i, text := range req.Texts {
		if IsBlank(text) {
			embeddings[i] = ZeroEmbedding(o.dimensions, ProviderOpenAI, model)
			continue
		}
		if o.cache != nil {
			if emb, ok := o.cache.Get(ComputeHash(text)); ok {
				embeddings[i] = emb
				continue
			}
		}
		pending = append(pending, text)
		pendingIdx = append(pendingIdx, i)
	}

	if len(pending) > 0 {
		start := time.Now()
		vectors, err := retryWithBackoff(ctx, o.retry, func() ([][]float32, error) {
			return o.callAPI(ctx, pending, model)
		})
		if err != nil {
			metrics.EmbeddingRequestsTotal.WithLabelValues(ProviderOpenAI, "error").Inc()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrProviderFailed, o.retry.MaxRetries, err)
		}
		metrics.EmbeddingRequestsTotal.WithLabelValues(ProviderOpenAI, "success").Inc()
		metrics.EmbeddingRequestDuration.WithLabelValues(ProviderOpenAI).Observe(time.Since(start).Seconds())

		for j, vec := range vectors {
			hash := ComputeHash(pending[j])
			emb := &Embedding{
				Vector:    vec,
				Dimension: len(vec),
				Provider:  ProviderOpenAI,
				Model:     model,
				Hash:      hash,
			}
			if o.cache != nil {
				o.cache.Set(hash, emb)
			}
			embeddings[pendingIdx[j]] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderOpenAI,
		Model:      model,
	}, nil
}

// callAPI returns one vector per text, in input order.
func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string, model string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if o.requestDim > 0 {
		req.Dimensions = o.requestDim
	}

	resp, err := o.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, parseAPIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		if len(d.Embedding) != o.dimensions {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(d.Embedding), o.dimensions)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (o *OpenAIProvider) Dimension() int {
	return o.dimensions
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	return nil
}

// apiStatusError is a failure answered by the API with an HTTP status.
type apiStatusError struct {
	status  int
	message string
}

func (e *apiStatusError) Error() string {
	return fmt.Sprintf("embedding API error %d: %s", e.status, e.message)
}

// parseAPIError extracts the status and message from an API failure.
func parseAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &apiStatusError{status: apiErr.HTTPStatusCode, message: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &apiStatusError{status: reqErr.HTTPStatusCode, message: string(reqErr.Body)}
	}

	return fmt.Errorf("embedding request failed: %w", err)
}

// isRetryable retries rate limits, server errors and transport failures.
func isRetryable(err error) bool {
	var se *apiStatusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status >= http.StatusInternalServerError
	}
	return true
}
