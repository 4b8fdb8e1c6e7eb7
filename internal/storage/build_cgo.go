//go:build sqlite_vec
// +build sqlite_vec

package storage

// Compiled with CGO and the sqlite_vec tag. Index queries compute cosine
// distance in SQL through the sqlite-vec extension.
//
//   CGO_ENABLED=1 go build -tags "sqlite_vec" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// readOnlyParams opens the reader pool read-only with a busy timeout
	readOnlyParams = "mode=ro&_busy_timeout=5000"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
