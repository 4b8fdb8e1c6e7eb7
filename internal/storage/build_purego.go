//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package storage

// Default build: pure Go SQLite, no C toolchain needed. Index queries load the
// candidate vectors and rank them in Go, which is fine for catalogs of a few
// thousand courses.
//
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// readOnlyParams opens the reader pool read-only with a busy timeout
	readOnlyParams = "mode=ro&_pragma=busy_timeout(5000)"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
