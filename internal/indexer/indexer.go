package indexer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/skillcourse-mcp/internal/embedder"
	"github.com/dshills/skillcourse-mcp/internal/metrics"
	"github.com/dshills/skillcourse-mcp/internal/storage"
	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// DefaultBatchSize is the number of courses embedded per batch
const DefaultBatchSize = 100

// ErrNoIndex is returned when the indexer was built without an embedding index
var ErrNoIndex = errors.New("no embedding index configured")

// Indexer keeps the embedding index in step with the catalog
type Indexer struct {
	catalog  storage.Catalog
	index    storage.Index
	embedder embedder.Embedder
	logger   *zap.Logger

	// Worker pool configuration
	workers int

	lock IndexLock

	mu       sync.RWMutex
	last     *Statistics
	lastSync time.Time
}

// Config contains configuration for the indexer
type Config struct {
	Workers int // Number of concurrent batches (default: runtime.NumCPU())
	Logger  *zap.Logger
}

// Options controls a single sync
type Options struct {
	Force     bool // Reset the index and re-embed every course
	BatchSize int  // Courses per embedding batch (default: 100)
}

// Statistics contains statistics about a sync
type Statistics struct {
	Scanned       int
	Added         int
	Updated       int
	Skipped       int
	Deleted       int
	Failed        int
	Duration      time.Duration
	ErrorMessages []string
}

// Status describes the index relative to the catalog
type Status struct {
	CatalogCourses  int
	IndexedCourses  int
	IndexEmbedder   string
	RunningEmbedder string
	SyncNeeded      bool
	SyncRunning     bool
	LastSync        *Statistics
	LastSyncAt      time.Time
}

// New creates a new Indexer instance
func New(catalog storage.Catalog, index storage.Index, emb embedder.Embedder, cfg Config) *Indexer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		catalog:  catalog,
		index:    index,
		embedder: emb,
		logger:   logger,
		workers:  workers,
	}
}

// Running reports whether a sync is in progress
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

// counters are shared by concurrent batches
type counters struct {
	added, updated, skipped, failed atomic.Int32

	mu     sync.Mutex
	errors []string
}

func (c *counters) fail(n int, msg string) {
	c.failed.Add(int32(n))
	c.mu.Lock()
	c.errors = append(c.errors, msg)
	c.mu.Unlock()
}

// Sync embeds new and changed catalog courses into the index and prunes
// entries whose course is gone. Only one sync runs at a time; a concurrent
// call fails with types.ErrSyncInProgress.
func (idx *Indexer) Sync(ctx context.Context, opts Options) (*Statistics, error) {
	if err := idx.acquire(); err != nil {
		return nil, err
	}
	defer idx.lock.Release()
	return idx.sync(ctx, opts)
}

// StartSync claims the sync lock and runs the sync on a new goroutine, which
// calls done with the result after releasing the lock. It fails at once with
// types.ErrSyncInProgress or ErrNoIndex, so of two concurrent callers exactly
// one starts. Cancel ctx to stop the sync.
func (idx *Indexer) StartSync(ctx context.Context, opts Options, done func(*Statistics, error)) error {
	if err := idx.acquire(); err != nil {
		return err
	}
	go func() {
		stats, err := idx.sync(ctx, opts)
		idx.lock.Release()
		done(stats, err)
	}()
	return nil
}

func (idx *Indexer) acquire() error {
	if idx.index == nil {
		return ErrNoIndex
	}
	if !idx.lock.TryAcquire() {
		return types.ErrSyncInProgress
	}
	return nil
}

// sync runs with the lock held
func (idx *Indexer) sync(ctx context.Context, opts Options) (*Statistics, error) {
	startTime := time.Now()
	batchSize := opts.BatchSize
	if batchSize <= 0 || batchSize > embedder.MaxBatchSize {
		batchSize = DefaultBatchSize
	}
	embedderID := embedder.Identifier(idx.embedder)

	if opts.Force {
		idx.logger.Info("resetting index", zap.String("embedder", embedderID))
		if err := idx.index.Reset(ctx); err != nil {
			return nil, fmt.Errorf("failed to reset index: %w", err)
		}
	} else {
		current, err := idx.index.EmbedderID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read index embedder: %w", err)
		}
		if current != "" && current != embedderID {
			return nil, fmt.Errorf("%w: index built with %s, running %s; rebuild with force",
				types.ErrEmbedderMismatch, current, embedderID)
		}
	}

	var c counters
	seen := make(map[string]struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	afterID := ""
	for {
		page, err := idx.catalog.ListCourses(gctx, afterID, batchSize)
		if err != nil {
			if werr := g.Wait(); werr != nil {
				return nil, werr
			}
			return nil, fmt.Errorf("%w: %w", types.ErrCatalogUnavailable, err)
		}
		if len(page) == 0 {
			break
		}
		for _, course := range page {
			seen[course.ID] = struct{}{}
		}
		afterID = page[len(page)-1].ID

		g.Go(func() error {
			return idx.syncBatch(gctx, page, embedderID, &c)
		})

		if len(page) < batchSize {
			break
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	deleted, err := idx.prune(ctx, seen)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		Scanned:       len(seen),
		Added:         int(c.added.Load()),
		Updated:       int(c.updated.Load()),
		Skipped:       int(c.skipped.Load()),
		Deleted:       deleted,
		Failed:        int(c.failed.Load()),
		Duration:      time.Since(startTime),
		ErrorMessages: c.errors,
	}
	if stats.ErrorMessages == nil {
		stats.ErrorMessages = []string{}
	}
	idx.record(ctx, stats)
	return stats, nil
}

// syncBatch embeds the courses of one catalog page whose content changed
func (idx *Indexer) syncBatch(ctx context.Context, courses []*types.Course, embedderID string, c *counters) error {
	pending := make([]*types.Course, 0, len(courses))
	isNew := make(map[string]bool, len(courses))

	for _, course := range courses {
		if err := ctx.Err(); err != nil {
			return err
		}

		stored, err := idx.index.ContentHash(ctx, course.ID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			isNew[course.ID] = true
		case err != nil:
			return fmt.Errorf("failed to read content hash for %s: %w", course.ID, err)
		case stored == course.ContentHash():
			c.skipped.Add(1)
			continue
		}
		pending = append(pending, course)
	}
	if len(pending) == 0 {
		return nil
	}

	texts := make([]string, len(pending))
	for i, course := range pending {
		texts[i] = course.EmbeddingText()
	}
	resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		idx.logger.Warn("batch embedding failed",
			zap.String("first_course", pending[0].ID),
			zap.Int("courses", len(pending)),
			zap.Error(err))
		c.fail(len(pending), fmt.Sprintf("batch starting at %s: %v", pending[0].ID, err))
		return nil
	}

	recs := make([]*storage.EmbeddingRecord, 0, len(pending))
	var added, updated int32
	for i, course := range pending {
		if i >= len(resp.Embeddings) || resp.Embeddings[i] == nil || len(resp.Embeddings[i].Vector) == 0 {
			c.fail(1, fmt.Sprintf("%s: no embedding returned", course.ID))
			continue
		}
		recs = append(recs, storage.NewEmbeddingRecord(*course, resp.Embeddings[i].Vector, embedderID))
		if isNew[course.ID] {
			added++
		} else {
			updated++
		}
	}
	if len(recs) == 0 {
		return nil
	}

	if err := idx.index.UpsertBatch(ctx, recs); err != nil {
		return fmt.Errorf("failed to store embeddings: %w", err)
	}
	c.added.Add(added)
	c.updated.Add(updated)

	idx.logger.Debug("batch synced",
		zap.String("first_course", pending[0].ID),
		zap.Int("stored", len(recs)))
	return nil
}

// prune deletes index entries whose course is no longer in the catalog
func (idx *Indexer) prune(ctx context.Context, catalogIDs map[string]struct{}) (int, error) {
	indexed, err := idx.index.ListCourseIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list indexed courses: %w", err)
	}

	deleted := 0
	for _, id := range indexed {
		if _, ok := catalogIDs[id]; ok {
			continue
		}
		if err := idx.index.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return deleted, fmt.Errorf("failed to prune %s: %w", id, err)
		}
		deleted++
	}
	return deleted, nil
}

// record publishes the statistics of a finished sync
func (idx *Indexer) record(ctx context.Context, stats *Statistics) {
	metrics.SyncCoursesTotal.WithLabelValues("added").Add(float64(stats.Added))
	metrics.SyncCoursesTotal.WithLabelValues("updated").Add(float64(stats.Updated))
	metrics.SyncCoursesTotal.WithLabelValues("skipped").Add(float64(stats.Skipped))
	metrics.SyncCoursesTotal.WithLabelValues("deleted").Add(float64(stats.Deleted))
	metrics.SyncCoursesTotal.WithLabelValues("failed").Add(float64(stats.Failed))
	if n, err := idx.index.Count(ctx); err == nil {
		metrics.IndexEntries.Set(float64(n))
	}

	idx.mu.Lock()
	idx.last = stats
	idx.lastSync = time.Now()
	idx.mu.Unlock()

	idx.logger.Info("index sync complete",
		zap.Int("scanned", stats.Scanned),
		zap.Int("added", stats.Added),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("deleted", stats.Deleted),
		zap.Int("failed", stats.Failed),
		zap.Duration("duration", stats.Duration))
}

// Status compares the index with the catalog
func (idx *Indexer) Status(ctx context.Context) (*Status, error) {
	if idx.index == nil {
		return nil, ErrNoIndex
	}
	catalogCount, err := idx.catalog.CountCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrCatalogUnavailable, err)
	}
	indexCount, err := idx.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count index entries: %w", err)
	}
	indexEmbedder, err := idx.index.EmbedderID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read index embedder: %w", err)
	}

	st := &Status{
		CatalogCourses:  catalogCount,
		IndexedCourses:  indexCount,
		IndexEmbedder:   indexEmbedder,
		RunningEmbedder: embedder.Identifier(idx.embedder),
		SyncRunning:     idx.Running(),
	}
	st.SyncNeeded = indexCount < catalogCount ||
		(indexEmbedder != "" && indexEmbedder != st.RunningEmbedder)

	idx.mu.RLock()
	if idx.last != nil {
		last := *idx.last
		last.ErrorMessages = append([]string(nil), idx.last.ErrorMessages...)
		st.LastSync = &last
		st.LastSyncAt = idx.lastSync
	}
	idx.mu.RUnlock()
	return st, nil
}

// IndexCourse embeds a single course into the index
func (idx *Indexer) IndexCourse(ctx context.Context, course *types.Course) error {
	if idx.index == nil {
		return ErrNoIndex
	}
	if err := course.Validate(); err != nil {
		return err
	}
	emb, err := idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: course.EmbeddingText()})
	if err != nil {
		return fmt.Errorf("%w: embed course %s: %w", types.ErrEmbedderUnavailable, course.ID, err)
	}
	return idx.index.Upsert(ctx, storage.NewEmbeddingRecord(*course, emb.Vector, embedder.Identifier(idx.embedder)))
}

// RemoveCourse removes a course from the index. A course that was never
// indexed is not an error.
func (idx *Indexer) RemoveCourse(ctx context.Context, courseID string) error {
	if idx.index == nil {
		return ErrNoIndex
	}
	if err := idx.index.Delete(ctx, courseID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}
