// Package database applies the bot's schema migrations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
)

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrator applies plain .sql migrations in lexical order. Each file runs in
// its own transaction together with its schema_migrations row, so a file is
// applied at most once.
type Migrator struct {
	db  *sql.DB
	log *slog.Logger
}

// NewMigrator constructs a Migrator that logs through the provided logger instance.
func NewMigrator(db *sql.DB, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}
	return &Migrator{
		db:  db,
		log: log,
	}
}

// Apply runs every *.up.sql file in fsys that is not recorded yet and
// returns the names it applied.
func (m *Migrator) Apply(ctx context.Context, fsys fs.FS) ([]string, error) {
	files, err := ListMigrations(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		m.log.Info("no .up.sql migrations found")
		return nil, nil
	}

	if _, err := m.db.ExecContext(ctx, createVersionTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, name := range files {
		if applied[name] {
			continue
		}
		if err := m.applyFile(ctx, fsys, name); err != nil {
			return done, err
		}
		done = append(done, name)
	}

	m.log.Info("migrations applied", slog.Int("count", len(done)), slog.Int("total", len(files)))
	return done, nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) applyFile(ctx context.Context, fsys fs.FS, name string) error {
	log := m.log.With(slog.String("file", name))

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read migration %q: %w", name, err)
	}

	statement := strings.TrimSpace(string(data))
	if statement == "" {
		log.Warn("migration is empty, skipping")
		return nil
	}

	log.Info("applying migration")

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for migration %q: %w", name, err)
	}

	if _, execErr := tx.ExecContext(ctx, statement); execErr != nil {
		m.rollback(log, tx)
		return fmt.Errorf("execute migration %q: %w", name, execErr)
	}
	if _, execErr := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); execErr != nil {
		m.rollback(log, tx)
		return fmt.Errorf("record migration %q: %w", name, execErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit migration %q: %w", name, commitErr)
	}

	return nil
}

func (m *Migrator) rollback(log *slog.Logger, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Error("rollback error", slog.Any("error", err))
	}
}

func isUpMigration(name string) bool {
	return strings.HasSuffix(name, ".up.sql")
}

// ListMigrations returns all .up.sql files in root of dir in lexical order.
func ListMigrations(dir fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(dir, root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isUpMigration(e.Name()) {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}
