// Package dbschema tracks and applies versioned schema migrations against
// the Postgres database backing the persistence layer.
package dbschema

import (
	"context"
	"database/sql"
	"fmt"
)

const versionTable = `
CREATE TABLE IF NOT EXISTS _schema_version (
	version INTEGER NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// CurrentVersion returns the highest applied schema version, or 0 if the
// version table has never been populated.
func CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	if _, err := db.ExecContext(ctx, versionTable); err != nil {
		return 0, fmt.Errorf("ensure version table: %w", err)
	}

	var version int
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM _schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read current version: %w", err)
	}
	return version, nil
}

// SetVersion records that version has been applied.
func SetVersion(ctx context.Context, tx *sql.Tx, version int) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO _schema_version (version) VALUES ($1)`, version)
	if err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// NeedsMigration reports whether the database is behind targetVersion.
func NeedsMigration(ctx context.Context, db *sql.DB, targetVersion int) (bool, error) {
	current, err := CurrentVersion(ctx, db)
	if err != nil {
		return false, err
	}
	return current < targetVersion, nil
}

// CheckVersion fails loudly if the database is behind targetVersion; unlike
// Runner.Migrate it never applies migrations itself, for callers that must
// not mutate schema (e.g. the query-service binary).
func CheckVersion(ctx context.Context, db *sql.DB, targetVersion int) error {
	current, err := CurrentVersion(ctx, db)
	if err != nil {
		return err
	}
	if current < targetVersion {
		return fmt.Errorf("database schema at version %d, need %d: run migrations first", current, targetVersion)
	}
	return nil
}
