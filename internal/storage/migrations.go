package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.2.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
	{
		Version: "1.1.0",
		Up:      migrationV11Up,
		Down:    migrationV11Down,
	},
	{
		Version: "1.2.0",
		Up:      migrationV12Up,
		Down:    migrationV12Down,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Course catalog
CREATE TABLE IF NOT EXISTS courses (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    difficulty TEXT NOT NULL DEFAULT '',
    duration TEXT NOT NULL DEFAULT '',
    provider TEXT NOT NULL DEFAULT '',
    categories TEXT NOT NULL DEFAULT '[]',
    url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Embedding index. Course fields are copied so queries never join the catalog.
CREATE TABLE IF NOT EXISTS course_embeddings (
    course_id TEXT PRIMARY KEY,
    vector BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    embedder_id TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    difficulty TEXT NOT NULL DEFAULT '',
    duration TEXT NOT NULL DEFAULT '',
    provider TEXT NOT NULL DEFAULT '',
    categories TEXT NOT NULL DEFAULT '[]',
    url TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS index_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const migrationV1Down = `
DROP TABLE IF EXISTS index_meta;
DROP TABLE IF EXISTS course_embeddings;
DROP TABLE IF EXISTS courses;
DROP TABLE IF EXISTS schema_version;
`

const migrationV11Up = `
CREATE INDEX IF NOT EXISTS idx_courses_difficulty ON courses(difficulty);
CREATE INDEX IF NOT EXISTS idx_course_embeddings_difficulty ON course_embeddings(difficulty);
`

const migrationV11Down = `
DROP INDEX IF EXISTS idx_course_embeddings_difficulty;
DROP INDEX IF EXISTS idx_courses_difficulty;
`

// data_version.generation is bumped by every row written to the catalog or the
// index, whichever process writes it.
const migrationV12Up = `
CREATE TABLE IF NOT EXISTS data_version (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    generation INTEGER NOT NULL
);
INSERT OR IGNORE INTO data_version (id, generation) VALUES (1, 0);

CREATE TRIGGER IF NOT EXISTS courses_ai AFTER INSERT ON courses
BEGIN UPDATE data_version SET generation = generation + 1 WHERE id = 1; END;
CREATE TRIGGER IF NOT EXISTS courses_au AFTER UPDATE ON courses
BEGIN UPDATE data_version SET generation = generation + 1 WHERE id = 1; END;
CREATE TRIGGER IF NOT EXISTS courses_ad AFTER DELETE ON courses
BEGIN UPDATE data_version SET generation = generation + 1 WHERE id = 1; END;

CREATE TRIGGER IF NOT EXISTS course_embeddings_ai AFTER INSERT ON course_embeddings
BEGIN UPDATE data_version SET generation = generation + 1 WHERE id = 1; END;
CREATE TRIGGER IF NOT EXISTS course_embeddings_au AFTER UPDATE ON course_embeddings
BEGIN UPDATE data_version SET generation = generation + 1 WHERE id = 1; END;
CREATE TRIGGER IF NOT EXISTS course_embeddings_ad AFTER DELETE ON course_embeddings
BEGIN UPDATE data_version SET generation = generation + 1 WHERE id = 1; END;

CREATE TRIGGER IF NOT EXISTS index_meta_ai AFTER INSERT ON index_meta
BEGIN UPDATE data_version SET generation = generation + 1 WHERE id = 1; END;
CREATE TRIGGER IF NOT EXISTS index_meta_au AFTER UPDATE ON index_meta
BEGIN UPDATE data_version SET generation = generation + 1 WHERE id = 1; END;
CREATE TRIGGER IF NOT EXISTS index_meta_ad AFTER DELETE ON index_meta
BEGIN UPDATE data_version SET generation = generation + 1 WHERE id = 1; END;
`

const migrationV12Down = `
DROP TRIGGER IF EXISTS index_meta_ad;
DROP TRIGGER IF EXISTS index_meta_au;
DROP TRIGGER IF EXISTS index_meta_ai;
DROP TRIGGER IF EXISTS course_embeddings_ad;
DROP TRIGGER IF EXISTS course_embeddings_au;
DROP TRIGGER IF EXISTS course_embeddings_ai;
DROP TRIGGER IF EXISTS courses_ad;
DROP TRIGGER IF EXISTS courses_au;
DROP TRIGGER IF EXISTS courses_ai;
DROP TABLE IF EXISTS data_version;
`

// currentVersion returns the highest applied version, or 0.0.0 on a fresh database
func currentVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var tableName string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(s)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", s, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, rows.Err()
}

// SchemaVersion returns the applied schema version
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (string, error) {
	v, err := currentVersion(ctx, s.db)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !current.LessThan(migrationVersion) {
			continue
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		current = migrationVersion
	}

	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return fmt.Errorf("no migrations to rollback")
	}

	var migration *Migration
	for i := range AllMigrations {
		if semver.MustParse(AllMigrations[i].Version).Equal(current) {
			migration = &AllMigrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", current)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}

	// the first migration drops schema_version itself
	if migration.Version == AllMigrations[0].Version {
		return nil
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
	}

	return nil
}
