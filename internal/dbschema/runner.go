package dbschema

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one forward/backward schema change.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
	Down        func(tx *sql.Tx) error
}

// Runner applies an ordered list of migrations against a database.
type Runner struct {
	db         *sql.DB
	migrations []Migration
}

// NewRunner constructs a Runner over db. It does not sort migrations; they
// must already be in ascending Version order.
func NewRunner(db *sql.DB, migrations []Migration) *Runner {
	return &Runner{db: db, migrations: migrations}
}

// Migrate applies every migration whose version is above the current
// schema version, in ascending order.
func (r *Runner) Migrate(ctx context.Context) error {
	if len(r.migrations) == 0 {
		return nil
	}
	return r.MigrateTo(ctx, r.migrations[len(r.migrations)-1].Version)
}

// MigrateTo applies migrations up to and including targetVersion.
func (r *Runner) MigrateTo(ctx context.Context, targetVersion int) error {
	current, err := CurrentVersion(ctx, r.db)
	if err != nil {
		return err
	}

	for _, m := range r.migrations {
		if m.Version <= current || m.Version > targetVersion {
			continue
		}
		if err := r.applyUp(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

// Rollback reverts migrations down to and including the one above
// targetVersion, in descending order.
func (r *Runner) Rollback(ctx context.Context, targetVersion int) error {
	current, err := CurrentVersion(ctx, r.db)
	if err != nil {
		return err
	}

	for i := len(r.migrations) - 1; i >= 0; i-- {
		m := r.migrations[i]
		if m.Version > current || m.Version <= targetVersion {
			continue
		}
		if err := r.applyDown(ctx, m); err != nil {
			return fmt.Errorf("rollback %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

func (r *Runner) applyUp(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.Up(tx); err != nil {
		return err
	}
	if err := SetVersion(ctx, tx, m.Version); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Runner) applyDown(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if m.Down == nil {
		return fmt.Errorf("migration %d has no Down", m.Version)
	}
	if err := m.Down(tx); err != nil {
		return err
	}
	// Roll the recorded version back to the prior migration.
	if _, err := tx.ExecContext(ctx, `DELETE FROM _schema_version WHERE version = $1`, m.Version); err != nil {
		return err
	}
	return tx.Commit()
}
