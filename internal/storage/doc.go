// Package storage persists the course catalog and the course embedding index.
//
// Both live in one SQLite database:
//
//   - courses: the catalog (id, title, description, difficulty, duration,
//     provider, categories as a JSON array, url)
//   - course_embeddings: one vector per course, stored as a little-endian
//     float32 blob, with a copy of the course fields and the hash of the text
//     it was embedded from
//   - index_meta: the embedder tag of the index
//   - data_version: a write generation that triggers bump on every change to
//     the tables above
//   - schema_version: applied migrations, compared with semver
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.skillcourse/skillcourse.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	courses, err := db.FindByKeywords(ctx, storage.CatalogQuery{
//	    Keywords:     []string{"docker"},
//	    Difficulties: []types.Difficulty{types.DifficultyBeginner},
//	    Limit:        150,
//	})
//
// # Embedding index
//
// SQLiteStorage implements Index. The first write tags the index with the
// embedder identifier and later writes from another embedder fail with
// types.ErrEmbedderMismatch. Query on an empty index returns
// types.ErrIndexEmpty, which callers use to fall back to brute-force search.
//
//	hits, err := db.Query(ctx, queryVector, 15, &storage.IndexFilter{
//	    Difficulties: []types.Difficulty{types.DifficultyAdvanced},
//	})
//	for _, hit := range hits {
//	    score := storage.SimilarityFromDistance(hit.Distance)
//	}
//
// # Build modes
//
// The default build uses modernc.org/sqlite and ranks vectors in Go. Building
// with -tags sqlite_vec switches to mattn/go-sqlite3 and computes distances in
// SQL with vec_distance_cosine.
//
// A Valkey/Redis implementation of Index lives in the valkey subpackage.
package storage
