package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/skillcourse-mcp/internal/config"
	"github.com/dshills/skillcourse-mcp/internal/embedder"
	"github.com/dshills/skillcourse-mcp/internal/indexer"
	"github.com/dshills/skillcourse-mcp/internal/logger"
	"github.com/dshills/skillcourse-mcp/internal/metrics"
	"github.com/dshills/skillcourse-mcp/internal/recommender"
	"github.com/dshills/skillcourse-mcp/internal/storage"
	"github.com/dshills/skillcourse-mcp/internal/storage/valkey"
)

// runtime is the composition root shared by every command
type runtime struct {
	cfg      config.Config
	logger   *zap.Logger
	db       *storage.SQLiteStorage
	index    storage.Index // nil when the index backend is "none"
	embedder *embedder.Lazy
	service  *recommender.Service
	indexer  *indexer.Indexer
	closers  []func() error
}

func newRuntime(configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: log}
	if err := rt.init(); err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) init() error {
	cfg := rt.cfg

	db, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	rt.db = db
	rt.closers = append(rt.closers, db.Close)

	switch cfg.Index.Backend {
	case config.IndexSQLite:
		rt.index = db
	case config.IndexValkey:
		vk, err := valkey.NewIndex(valkey.Config{
			Addrs:     cfg.Index.Valkey.Addrs,
			Username:  cfg.Index.Valkey.Username,
			Password:  cfg.Index.Valkey.Password,
			IndexName: cfg.Index.Valkey.IndexName,
			KeyPrefix: cfg.Index.Valkey.KeyPrefix,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to valkey: %w", err)
		}
		rt.index = vk
		rt.closers = append(rt.closers, vk.Close)
	}

	emb, err := embedder.New(embedder.Config{
		Provider:        cfg.Embedding.Provider,
		Model:           cfg.Embedding.Model,
		APIKey:          cfg.Embedding.APIKey,
		BaseURL:         cfg.Embedding.BaseURL,
		Dimensions:      cfg.Embedding.Dimensions,
		CacheSize:       cfg.Embedding.CacheSize,
		WeightsPath:     cfg.Embedding.WeightsPath,
		BreakerFailures: cfg.Embedding.BreakerFailures,
		BreakerTimeout:  cfg.Embedding.BreakerTimeout,
		Logger:          rt.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	rt.embedder = emb
	rt.closers = append(rt.closers, emb.Close)

	svc, err := recommender.NewService(db, rt.index, emb, recommender.Config{
		DefaultTopN:      cfg.Recommend.DefaultTopN,
		MaxTopN:          cfg.Recommend.MaxTopN,
		CandidateWindow:  cfg.Recommend.CandidateWindow,
		IndexOverfetch:   cfg.Recommend.IndexOverfetch,
		FailureThreshold: cfg.Recommend.FailureThreshold,
		Workers:          cfg.Recommend.Workers,
		CacheSize:        cfg.Recommend.CacheSize,
		CacheTTL:         cfg.Recommend.CacheTTL,
		Logger:           rt.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create recommendation service: %w", err)
	}
	rt.service = svc

	rt.indexer = indexer.New(db, rt.index, emb, indexer.Config{
		Workers: cfg.Sync.Workers,
		Logger:  rt.logger,
	})

	metrics.Register()

	rt.logger.Info("runtime ready",
		zap.String("env", cfg.Env),
		zap.String("db_path", cfg.Database.Path),
		zap.String("index_backend", cfg.Index.Backend),
		zap.String("embedder", embedder.Identifier(emb)),
		zap.String("sqlite_driver", storage.DriverName))
	return nil
}

func (rt *runtime) syncOptions(force bool) indexer.Options {
	return indexer.Options{Force: force, BatchSize: rt.cfg.Sync.BatchSize}
}

// requireIndex fails commands that need an embedding index
func (rt *runtime) requireIndex() error {
	if rt.index == nil {
		return fmt.Errorf("index backend is %q; configure sqlite or valkey", config.IndexNone)
	}
	return nil
}

func (rt *runtime) close() {
	if rt.service != nil {
		rt.service.Close()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}

// Ping reports catalog health and, when configured, index health
func (rt *runtime) Ping(ctx context.Context) error {
	if err := rt.db.Ping(ctx); err != nil {
		return err
	}
	if p, ok := rt.index.(interface{ Ping(context.Context) error }); ok && rt.index != storage.Index(rt.db) {
		return p.Ping(ctx)
	}
	return nil
}
