package recommender

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/dshills/skillcourse-mcp/internal/embedder"
	"github.com/dshills/skillcourse-mcp/internal/metrics"
	"github.com/dshills/skillcourse-mcp/internal/retriever"
	"github.com/dshills/skillcourse-mcp/internal/storage"
	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// Config tunes a Service
type Config struct {
	DefaultTopN      int
	MaxTopN          int
	CandidateWindow  int // brute-force catalog window
	IndexOverfetch   int // index k = top_n * IndexOverfetch
	FailureThreshold int // leading brute-force embed failures before giving up
	Workers          int // brute-force embedding pool size
	CacheSize        int // 0 disables the response cache
	CacheTTL         time.Duration
	Logger           *zap.Logger
}

// Response is the result of one recommendation call
type Response struct {
	Results  []types.ScoredCandidate
	Backend  string
	State    SearchState
	Widened  bool
	CacheHit bool
	Duration time.Duration
}

// Service answers recommendation queries against the catalog, using the
// embedding index when it is populated by the running embedder.
type Service struct {
	catalog  storage.Catalog
	embedder embedder.Embedder
	index    storage.Index // nil when no index is configured
	indexed  Backend
	brute    Backend
	fallback *LevelFallbackSearch
	bf       *retriever.BruteForce
	cache    *expirable.LRU[[32]byte, *Response]
	cfg      Config
	logger   *zap.Logger
}

// NewService creates a Service. index may be nil. Call Close when done.
func NewService(catalog storage.Catalog, index storage.Index, emb embedder.Embedder, cfg Config) (*Service, error) {
	if cfg.DefaultTopN <= 0 {
		cfg.DefaultTopN = types.DefaultTopN
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bf, err := retriever.New(catalog, emb, Score, retriever.Config{
		Window:           cfg.CandidateWindow,
		FailureThreshold: cfg.FailureThreshold,
		Workers:          cfg.Workers,
		Logger:           logger.Named("retriever"),
	})
	if err != nil {
		return nil, err
	}

	s := &Service{
		catalog:  catalog,
		embedder: emb,
		index:    index,
		brute:    NewBruteForceBackend(bf),
		fallback: NewLevelFallbackSearch(logger),
		bf:       bf,
		cfg:      cfg,
		logger:   logger,
	}
	if index != nil {
		s.indexed = NewIndexedBackend(index, cfg.IndexOverfetch)
	}
	if cfg.CacheSize > 0 {
		ttl := cfg.CacheTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		s.cache = expirable.NewLRU[[32]byte, *Response](cfg.CacheSize, nil, ttl)
	}
	return s, nil
}

// Close releases the brute-force worker pool
func (s *Service) Close() {
	s.bf.Release()
}

// Recommend returns up to q.TopN courses for a skill.
//
// An empty result is not an error. Errors wrap types.ErrInvalidQuery,
// types.ErrCatalogUnavailable or types.ErrEmbedderUnavailable.
func (s *Service) Recommend(ctx context.Context, q types.Query) (*Response, error) {
	start := time.Now()

	if q.TopN == 0 {
		q.TopN = s.cfg.DefaultTopN
	}
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if s.cfg.MaxTopN > 0 && q.TopN > s.cfg.MaxTopN {
		q.TopN = s.cfg.MaxTopN
	}

	level, ok := types.ParseLevel(q.Level)
	if !ok {
		s.logger.Warn("unknown level, searching all levels", zap.String("level", q.Level))
	}

	var key [32]byte
	cacheable := false
	if s.cache != nil {
		if version, err := s.dataVersion(ctx); err != nil {
			s.logger.Debug("data version unavailable, bypassing cache", zap.Error(err))
		} else {
			key, cacheable = cacheKey(q, level, version), true
		}
	}
	if cacheable {
		if cached, ok := s.cacheGet(key); ok {
			cached.CacheHit = true
			cached.Duration = time.Since(start)
			return cached, nil
		}
	}

	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: q.SearchText()})
	if err != nil {
		metrics.RecommendationsTotal.WithLabelValues("none", "error").Inc()
		return nil, fmt.Errorf("%w: embed query: %w", types.ErrEmbedderUnavailable, err)
	}

	r := Retrieval{Skill: q.Skill, QueryVector: emb.Vector, TopN: q.TopN}
	backend := s.selectBackend(ctx)

	cands, state, err := s.fallback.Search(ctx, backend, r, level)
	if err != nil && errors.Is(err, types.ErrIndexEmpty) && backend != s.brute {
		s.logger.Info("index emptied during search, using brute force")
		backend = s.brute
		cands, state, err = s.fallback.Search(ctx, backend, r, level)
	}
	if err != nil {
		metrics.RecommendationsTotal.WithLabelValues(backend.Name(), "error").Inc()
		return nil, err
	}

	resp := &Response{
		Results:  Rank(cands, q.TopN),
		Backend:  backend.Name(),
		State:    state,
		Widened:  state == StateWidened,
		Duration: time.Since(start),
	}

	outcome := "success"
	if len(resp.Results) == 0 {
		outcome = "empty"
	}
	metrics.RecommendationsTotal.WithLabelValues(resp.Backend, outcome).Inc()
	metrics.RecommendationDuration.WithLabelValues(resp.Backend).Observe(resp.Duration.Seconds())

	s.logger.Debug("recommendation",
		zap.String("skill", q.Skill),
		zap.String("level", string(level)),
		zap.String("backend", resp.Backend),
		zap.String("state", string(state)),
		zap.Int("results", len(resp.Results)),
		zap.Duration("duration", resp.Duration))

	if cacheable {
		s.cacheAdd(key, resp)
	}
	return resp, nil
}

// selectBackend uses the index only when it is populated and was built by the
// running embedder
func (s *Service) selectBackend(ctx context.Context) Backend {
	if s.indexed == nil {
		return s.brute
	}

	n, err := s.index.Count(ctx)
	if err != nil {
		s.logger.Warn("index unavailable, using brute force", zap.Error(err))
		return s.brute
	}
	if n == 0 {
		s.logger.Debug("index empty, using brute force")
		return s.brute
	}

	id, err := s.index.EmbedderID(ctx)
	if err != nil {
		s.logger.Warn("index unavailable, using brute force", zap.Error(err))
		return s.brute
	}
	if want := embedder.Identifier(s.embedder); id != want {
		s.logger.Warn("index built by another embedder, using brute force",
			zap.String("index_embedder", id),
			zap.String("embedder", want))
		return s.brute
	}
	return s.indexed
}

// dataVersion identifies the state of the catalog and the index, so cached
// responses go stale when another process imports or syncs. Stores that are
// not Versioned contribute their size and, for the index, the embedder tag.
func (s *Service) dataVersion(ctx context.Context) (string, error) {
	var b strings.Builder
	catalogVersion, err := versionOf(ctx, s.catalog, func(ctx context.Context) (string, error) {
		n, err := s.catalog.CountCourses(ctx)
		return strconv.Itoa(n), err
	})
	if err != nil {
		return "", err
	}
	b.WriteString(catalogVersion)

	if s.index == nil || any(s.index) == any(s.catalog) {
		return b.String(), nil
	}
	indexVersion, err := versionOf(ctx, s.index, func(ctx context.Context) (string, error) {
		n, err := s.index.Count(ctx)
		if err != nil {
			return "", err
		}
		id, err := s.index.EmbedderID(ctx)
		return strconv.Itoa(n) + "/" + id, err
	})
	if err != nil {
		return "", err
	}
	b.WriteString("|")
	b.WriteString(indexVersion)
	return b.String(), nil
}

func versionOf(ctx context.Context, store any, fallback func(context.Context) (string, error)) (string, error) {
	if v, ok := store.(storage.Versioned); ok {
		return v.DataVersion(ctx)
	}
	return fallback(ctx)
}

// InvalidateCache drops all cached responses
func (s *Service) InvalidateCache() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

func (s *Service) cacheGet(key [32]byte) (*Response, bool) {
	if s.cache == nil {
		return nil, false
	}
	resp, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	return copyResponse(resp), true
}

func (s *Service) cacheAdd(key [32]byte, resp *Response) {
	if s.cache == nil {
		return
	}
	s.cache.Add(key, copyResponse(resp))
}

// copyResponse deep-copies a response so cached entries are never shared
func copyResponse(src *Response) *Response {
	dst := *src
	dst.Results = make([]types.ScoredCandidate, len(src.Results))
	for i, c := range src.Results {
		c.Course.Categories = append([]string(nil), c.Course.Categories...)
		dst.Results[i] = c
	}
	return &dst
}

// cacheKey identifies a normalized query against one version of the data
func cacheKey(q types.Query, level types.Level, version string) [32]byte {
	var b strings.Builder
	b.WriteString(version)
	b.WriteString("|")
	b.WriteString(q.Skill)
	b.WriteString("|")
	b.WriteString(strconv.Itoa(q.TopN))
	b.WriteString("|")
	b.WriteString(string(level))
	b.WriteString("|")
	b.WriteString(q.Context)
	return sha256.Sum256([]byte(b.String()))
}
