package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds embedder configuration
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Dimensions  int
	CacheSize   int
	WeightsPath string // local provider token weights, optional

	BreakerFailures uint32
	BreakerTimeout  time.Duration

	Logger *zap.Logger
}

// New builds the configured embedder. Providers are constructed on the first
// embedding request; a local weight table is read here because it changes the
// identifier. Remote providers sit behind a circuit breaker.
func New(cfg Config) (*Lazy, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", ProviderLocal:
		// Weights are read up front: they are part of the identifier.
		var weights WeightTable
		if cfg.WeightsPath != "" {
			w, err := LoadWeightTable(cfg.WeightsPath)
			if err != nil {
				return nil, err
			}
			weights = w
		}
		model := LocalModelName(weights)
		info := Info{Provider: ProviderLocal, Model: model, Dimension: LocalDimension}
		return NewLazy(info, func(ctx context.Context) (Embedder, error) {
			logger.Info("local embedder loaded",
				zap.String("model", model),
				zap.Int("weights", len(weights)))
			return NewLocalProvider(weights, cache), nil
		}), nil

	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openai api key not set", ErrNoProviderEnabled)
		}
		model := cfg.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		dim := cfg.Dimensions
		if dim <= 0 {
			dim = OpenAIDimension
		}
		info := Info{Provider: ProviderOpenAI, Model: model, Dimension: dim}
		return NewLazy(info, func(ctx context.Context) (Embedder, error) {
			p, err := NewOpenAIProvider(OpenAIConfig{
				APIKey:     cfg.APIKey,
				BaseURL:    cfg.BaseURL,
				Model:      model,
				Dimensions: cfg.Dimensions,
			}, cache)
			if err != nil {
				return nil, err
			}
			return NewBreaker(p, BreakerConfig{
				ConsecutiveFailures: cfg.BreakerFailures,
				OpenTimeout:         cfg.BreakerTimeout,
				Logger:              logger,
			}), nil
		}), nil

	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}
