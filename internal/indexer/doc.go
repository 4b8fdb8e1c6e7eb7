// Package indexer keeps the course embedding index in step with the catalog.
//
// # Basic Usage
//
//	idx := indexer.New(catalog, index, emb, indexer.Config{Workers: 4})
//
//	stats, err := idx.Sync(ctx, indexer.Options{BatchSize: 100})
//	if errors.Is(err, types.ErrSyncInProgress) {
//	    // another sync holds the lock
//	}
//
//	fmt.Printf("added %d, updated %d, skipped %d, deleted %d\n",
//	    stats.Added, stats.Updated, stats.Skipped, stats.Deleted)
//
// # Incremental Sync
//
// The catalog is paged in ID order. A course whose content hash (title and
// description) matches the indexed entry is skipped; new and changed courses
// are embedded in batches with GenerateBatch. Entries whose course no longer
// exists are pruned once every page is processed.
//
// Force resets the index first, which is required after switching embedders:
// an index tagged by another embedder is never mixed with new vectors.
//
// # Concurrency
//
// Batches run on an errgroup bounded by Config.Workers. An embedding failure
// fails only the courses of its batch; a storage failure aborts the sync.
// Recommendation queries keep reading the index while a sync runs.
package indexer
