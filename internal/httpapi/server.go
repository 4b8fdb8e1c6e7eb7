// Package httpapi serves recommendations and index management over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dshills/skillcourse-mcp/internal/indexer"
	logpkg "github.com/dshills/skillcourse-mcp/internal/logger"
	"github.com/dshills/skillcourse-mcp/internal/metrics"
	"github.com/dshills/skillcourse-mcp/internal/recommender"
	"github.com/dshills/skillcourse-mcp/pkg/types"
)

const maxBodyBytes = 1 << 20

// Recommender answers recommendation queries
type Recommender interface {
	Recommend(ctx context.Context, q types.Query) (*recommender.Response, error)
	RecommendForSkills(ctx context.Context, req recommender.SkillsRequest) (*recommender.SkillsResponse, error)
	InvalidateCache()
}

// Syncer manages the embedding index. StartSync must fail synchronously with
// types.ErrSyncInProgress when a sync already holds the index.
type Syncer interface {
	StartSync(ctx context.Context, opts indexer.Options, done func(*indexer.Statistics, error)) error
	Status(ctx context.Context) (*indexer.Status, error)
}

// Pinger reports catalog health
type Pinger interface {
	Ping(ctx context.Context) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server is the HTTP API
type Server struct {
	recommender   Recommender
	syncer        Syncer
	pinger        Pinger
	syncOptions   indexer.Options
	logger        *zap.Logger
	validate      *validator.Validate
	errorHandlers []errorHandler

	// background syncs run on ctx, which Shutdown cancels
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex // guards closing and syncs.Add
	closing bool
	syncs   sync.WaitGroup
}

// NewServer creates an HTTP API server. syncOpts apply to syncs started over HTTP
// (Force is taken from the request).
func NewServer(rec Recommender, syncer Syncer, pinger Pinger, syncOpts indexer.Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		recommender: rec,
		syncer:      syncer,
		pinger:      pinger,
		syncOptions: syncOpts,
		logger:      logger,
		validate:    validator.New(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.errorHandlers = []errorHandler{
		sentinelHandler(types.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(types.ErrSyncInProgress, http.StatusConflict, codeSyncInProgress),
		sentinelHandler(types.ErrEmbedderMismatch, http.StatusConflict, codeEmbedderMismatch),
		sentinelHandler(indexer.ErrNoIndex, http.StatusConflict, codeNoIndex),
		sentinelHandler(types.ErrCatalogUnavailable, http.StatusServiceUnavailable, codeCatalogUnavailable),
		sentinelHandler(types.ErrEmbedderUnavailable, http.StatusServiceUnavailable, codeEmbedderUnavailable),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, codeTimeout),
	}
	return s
}

// Router builds the chi router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/recommendations", s.recommend)
		r.Post("/recommendations/skills", s.recommendSkills)
		r.Get("/index/status", s.indexStatus)
		r.Post("/index/sync", s.indexSync)
	})
	return r
}

// Wait blocks until background syncs started over HTTP finish
func (s *Server) Wait() {
	s.syncs.Wait()
}

// Shutdown cancels background syncs and waits for them to return, or for ctx
// to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()

	finished := make(chan struct{})
	go func() {
		s.syncs.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background sync still running: %w", ctx.Err())
	}
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.recommender.Recommend(r.Context(), req.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, NewRecommendResponse(req, resp))
}

func (s *Server) recommendSkills(w http.ResponseWriter, r *http.Request) {
	var req SkillsRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.recommender.RecommendForSkills(r.Context(), recommender.SkillsRequest{
		Skills:   req.Skills,
		PerSkill: req.PerSkill,
		Level:    req.Level,
		Context:  req.Context,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, NewSkillsResponse(resp))
}

func (s *Server) indexStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.syncer.Status(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewStatusResponse(st))
}

// indexSync starts a sync in the background and answers 202, or 409 while a
// sync is already running
func (s *Server) indexSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		writeError(w, http.StatusServiceUnavailable, codeShuttingDown, "server is shutting down")
		return
	}
	s.syncs.Add(1)
	s.mu.Unlock()

	opts := s.syncOptions
	opts.Force = req.Force
	log := logpkg.FromContext(r.Context())

	err := s.syncer.StartSync(s.ctx, opts, func(stats *indexer.Statistics, err error) {
		defer s.syncs.Done()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Warn("background sync canceled")
				return
			}
			log.Error("background sync failed", zap.Error(err))
			return
		}
		s.recommender.InvalidateCache()
		log.Info("background sync finished",
			zap.Int("added", stats.Added),
			zap.Int("updated", stats.Updated),
			zap.Int("deleted", stats.Deleted),
			zap.Int("failed", stats.Failed))
	})
	if err != nil {
		s.syncs.Done()
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, SyncAccepted{Status: "started", Force: req.Force})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			logpkg.FromContext(r.Context()).Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// decode reads and validates a JSON body. It writes the error response and
// returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, validationMessage(err))
		return false
	}
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := sentinel.Error()
		if status == http.StatusBadRequest {
			msg = err.Error()
		}
		writeError(w, status, code, msg)
		return true
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fe.Field() + " failed " + fe.Tag() + "=" + fe.Param()
	}
	return fe.Field() + " failed " + fe.Tag()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits one log line per request and propagates X-Request-ID.
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
