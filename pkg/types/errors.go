package types

import "errors"

// Recommendation errors surfaced to callers
var (
	// ErrInvalidQuery reports bad caller input. Not retried.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrCatalogUnavailable reports that the course catalog could not be read.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrEmbedderUnavailable reports that embeddings could not be produced.
	ErrEmbedderUnavailable = errors.New("embedder unavailable")
)

// Index errors
var (
	// ErrIndexEmpty is returned by an embedding index that holds no entries,
	// as opposed to a populated index with no matching entries.
	ErrIndexEmpty = errors.New("embedding index is empty")

	// ErrEmbedderMismatch is returned when vectors from a different embedder
	// would be mixed into an index.
	ErrEmbedderMismatch = errors.New("embedder does not match index")

	// ErrSyncInProgress is returned when an index sync is already running.
	ErrSyncInProgress = errors.New("index sync already in progress")
)

// Course validation errors
var (
	ErrMissingCourseID    = errors.New("course ID is required")
	ErrMissingCourseTitle = errors.New("course title is required")
)
