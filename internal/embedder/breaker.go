package embedder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerConfig configures the circuit breaker around a remote embedder.
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32        // failures before the breaker opens
	OpenTimeout         time.Duration // time spent open before a trial request
	Logger              *zap.Logger
}

// Breaker fails fast once the wrapped embedder keeps failing, so a dead
// provider does not cost a full retry cycle per request.
type Breaker struct {
	Embedder
	cb *gobreaker.CircuitBreaker[any]
}

// NewBreaker wraps inner with a circuit breaker.
func NewBreaker(inner Embedder, cfg BreakerConfig) *Breaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "embedder-" + inner.Provider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// caller cancellations say nothing about provider health
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embedder circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Breaker{
		Embedder: inner,
		cb:       gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State returns the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.Embedder.GenerateEmbedding(ctx, req)
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return out.(*Embedding), nil
}

func (b *Breaker) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.Embedder.GenerateBatch(ctx, req)
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return out.(*BatchEmbeddingResponse), nil
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	return err
}
