package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage holds the course catalog and the embedding index in one
// SQLite database. It implements Catalog and Index.
//
// Writes go through a single connection. File databases also get a read-only
// pool so that queries keep running while a sync transaction is open; an
// in-memory database shares its one connection for both.
type SQLiteStorage struct {
	db  *sql.DB // writer
	rdb *sql.DB // readers; same as db for in-memory databases
}

var (
	_ Catalog   = (*SQLiteStorage)(nil)
	_ Index     = (*SQLiteStorage)(nil)
	_ Versioned = (*SQLiteStorage)(nil)
)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// openReader opens the read-only pool. The writer must have created the
// database first.
func openReader(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, readerDSN(dbPath))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxReaders)
	db.SetMaxIdleConns(maxReaders)
	return db, nil
}

const maxReaders = 4

// readerDSN turns a path or file: URI into a read-only file: URI
func readerDSN(dbPath string) string {
	if strings.HasPrefix(dbPath, "file:") {
		if strings.Contains(dbPath, "?") {
			return dbPath + "&" + readOnlyParams
		}
		return dbPath + "?" + readOnlyParams
	}
	escaped := strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23").Replace(dbPath)
	return "file:" + escaped + "?" + readOnlyParams
}

// isMemoryDSN reports whether every connection to dbPath would see its own
// private database
func isMemoryDSN(dbPath string) bool {
	return dbPath == "" || dbPath == ":memory:" ||
		strings.HasPrefix(dbPath, "file::memory:") || strings.Contains(dbPath, "mode=memory")
}

// NewSQLiteStorage opens dbPath and applies pending migrations
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &SQLiteStorage{db: db, rdb: db}
	if !isMemoryDSN(dbPath) {
		rdb, err := openReader(dbPath)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to open reader pool: %w", err)
		}
		if err := rdb.PingContext(context.Background()); err != nil {
			_ = rdb.Close()
			_ = db.Close()
			return nil, fmt.Errorf("failed to open reader pool: %w", err)
		}
		s.rdb = rdb
	}
	return s, nil
}

// Close closes the database connections
func (s *SQLiteStorage) Close() error {
	var rerr error
	if s.rdb != s.db {
		rerr = s.rdb.Close()
	}
	return errors.Join(s.db.Close(), rerr)
}

// Ping checks that the database answers
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	return s.rdb.PingContext(ctx)
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn in a transaction, committing on success
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Metadata operations

const metaEmbedderID = "embedder_id"

func getMeta(ctx context.Context, q querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func setMeta(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO index_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// DataVersion returns the write generation of the database. Every write to the
// catalog or the index changes it, including writes from other processes.
func (s *SQLiteStorage) DataVersion(ctx context.Context) (string, error) {
	var gen int64
	err := s.rdb.QueryRowContext(ctx, "SELECT generation FROM data_version WHERE id = 1").Scan(&gen)
	if err != nil {
		return "", fmt.Errorf("failed to read data version: %w", err)
	}
	return strconv.FormatInt(gen, 10), nil
}

// placeholders returns "?,?,?" for n arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, 2*n-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
