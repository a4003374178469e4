package db

import (
	"context"
	"fmt"
	"log/slog"
)

// Migration is a versioned data migration run once per database, after the
// declarative schema has been applied.
type Migration struct {
	Version int
	Name    string
	Up      func(ctx context.Context, e *Engine) error
}

// RunMigrations applies every migration newer than the recorded version, each
// in its own transaction together with its schema_migrations row.
func (e *Engine) RunMigrations(ctx context.Context, migrations []Migration) error {
	_, err := e.Execute(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	current, err := e.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		slog.Info("running migration", "version", m.Version, "name", m.Name)

		err := e.WithTx(ctx, func(ctx context.Context) error {
			if err := m.Up(ctx, e); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.Version, err)
			}
			if _, err := e.Execute(ctx,
				"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version, 0 when none
// has run.
func (e *Engine) SchemaVersion(ctx context.Context) (int, error) {
	exists, err := e.TableExists(ctx, "schema_migrations")
	if err != nil || !exists {
		return 0, err
	}
	row, err := e.FetchOne(ctx, "SELECT COALESCE(MAX(version), 0) AS version FROM schema_migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	return int(row.Int64("version")), nil
}
