package embedder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// LoaderFunc builds the underlying embedder, typically loading a model.
type LoaderFunc func(ctx context.Context) (Embedder, error)

// Info describes an embedder before it is loaded.
type Info struct {
	Provider  string
	Model     string
	Dimension int
}

// Lazy defers loading an embedder until the first embedding is requested.
// The loader runs at most once per successful load; concurrent first callers
// wait for it. A failed load is retried by the next caller.
type Lazy struct {
	info  Info
	load  LoaderFunc
	mu    sync.Mutex
	inner atomic.Pointer[Embedder]
	loads atomic.Int32
}

// NewLazy returns an embedder that calls load on first use. info answers
// Dimension, Provider and Model without forcing a load.
func NewLazy(info Info, load LoaderFunc) *Lazy {
	return &Lazy{info: info, load: load}
}

// Get returns the loaded embedder, loading it if needed.
func (l *Lazy) Get(ctx context.Context) (Embedder, error) {
	if e := l.inner.Load(); e != nil {
		return *e, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e := l.inner.Load(); e != nil {
		return *e, nil
	}

	e, err := l.load(ctx)
	l.loads.Add(1)
	if err != nil {
		return nil, fmt.Errorf("load embedder: %w", err)
	}
	if e.Dimension() != l.info.Dimension {
		_ = e.Close()
		return nil, fmt.Errorf("%w: loaded %d, declared %d", ErrDimensionMismatch, e.Dimension(), l.info.Dimension)
	}
	l.inner.Store(&e)
	return e, nil
}

// Loaded reports whether the embedder has been loaded.
func (l *Lazy) Loaded() bool {
	return l.inner.Load() != nil
}

// LoadAttempts returns how many times the loader ran.
func (l *Lazy) LoadAttempts() int {
	return int(l.loads.Load())
}

func (l *Lazy) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	e, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return e.GenerateEmbedding(ctx, req)
}

func (l *Lazy) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	e, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return e.GenerateBatch(ctx, req)
}

func (l *Lazy) Dimension() int {
	return l.info.Dimension
}

func (l *Lazy) Provider() string {
	return l.info.Provider
}

func (l *Lazy) Model() string {
	return l.info.Model
}

func (l *Lazy) Close() error {
	if e := l.inner.Load(); e != nil {
		return (*e).Close()
	}
	return nil
}
