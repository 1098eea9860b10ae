package state

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"signframes/internal/services"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const imagesCounter = "images_extracted"

type sqliteBackend struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates a SQLite store at path, applies migrations, and
// takes its lock.
func OpenSQLite(ctx context.Context, path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "state", "open", path, err)
	}
	lock, err := acquireLock(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, services.Wrap(services.ErrTransient, "state", "open sqlite", path, err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, services.Wrap(services.ErrTransient, "state", "pragma", pragma, execErr)
		}
	}

	b := &sqliteBackend{db: db, path: path}
	if err := b.applyMigrations(ctx); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return newStore(path, b, lock), nil
}

type migration struct {
	version string
	sql     string
}

func loadMigrations() ([]migration, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	migrations := make([]migration, 0, len(names))
	for _, name := range names {
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		migrations = append(migrations, migration{version: strings.TrimSuffix(name, ".sql"), sql: string(data)})
	}
	return migrations, nil
}

func (b *sqliteBackend) applyMigrations(ctx context.Context) error {
	migrations, err := loadMigrations()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "state", "migrations", "load", err)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return services.Wrap(services.ErrTransient, "state", "migrations", "begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return services.Wrap(services.ErrTransient, "state", "migrations", "ensure schema_migrations", err)
	}
	for _, m := range migrations {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", m.version).Scan(&count); err != nil {
			return services.Wrap(services.ErrTransient, "state", "migrations", "scan version", err)
		}
		if count > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			return services.Wrap(services.ErrTransient, "state", "migrations", "apply "+m.version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return services.Wrap(services.ErrTransient, "state", "migrations", "record "+m.version, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return services.Wrap(services.ErrTransient, "state", "migrations", "commit", err)
	}
	return nil
}

// load reports no state until a counter row exists; save always writes one.
func (b *sqliteBackend) load(ctx context.Context) (State, bool, error) {
	var images int
	err := b.db.QueryRowContext(ctx, "SELECT value FROM counters WHERE name = ?", imagesCounter).Scan(&images)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, services.Wrap(services.ErrTransient, "state", "load counter", b.path, err)
	}

	st := State{ImagesExtracted: images}
	rows, err := b.db.QueryContext(ctx, "SELECT list, task_id FROM tasks ORDER BY list, position")
	if err != nil {
		return State{}, false, services.Wrap(services.ErrTransient, "state", "load tasks", b.path, err)
	}
	defer rows.Close()
	for rows.Next() {
		var list, id string
		if err := rows.Scan(&list, &id); err != nil {
			return State{}, false, services.Wrap(services.ErrTransient, "state", "scan task", b.path, err)
		}
		switch list {
		case "remaining":
			st.RemainingTasks = append(st.RemainingTasks, id)
		case "completed":
			st.CompletedTasks = append(st.CompletedTasks, id)
		case "skipped":
			st.SkippedTasks = append(st.SkippedTasks, id)
		}
	}
	if err := rows.Err(); err != nil {
		return State{}, false, services.Wrap(services.ErrTransient, "state", "iterate tasks", b.path, err)
	}
	return st, true, nil
}

func (b *sqliteBackend) save(ctx context.Context, st State) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return services.Wrap(services.ErrTransient, "state", "persist", "begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return services.Wrap(services.ErrTransient, "state", "persist", "clear tasks", err)
	}
	insert, err := tx.PrepareContext(ctx, "INSERT INTO tasks (list, position, task_id) VALUES (?, ?, ?)")
	if err != nil {
		return services.Wrap(services.ErrTransient, "state", "persist", "prepare insert", err)
	}
	defer insert.Close()
	lists := []struct {
		name string
		ids  []string
	}{
		{"remaining", st.RemainingTasks},
		{"completed", st.CompletedTasks},
		{"skipped", st.SkippedTasks},
	}
	for _, list := range lists {
		for i, id := range list.ids {
			if _, err := insert.ExecContext(ctx, list.name, i, id); err != nil {
				return services.Wrap(services.ErrTransient, "state", "persist", "insert "+list.name, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO counters (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
		imagesCounter, st.ImagesExtracted,
	); err != nil {
		return services.Wrap(services.ErrTransient, "state", "persist", "update counter", err)
	}
	if err := tx.Commit(); err != nil {
		return services.Wrap(services.ErrTransient, "state", "persist", "commit", err)
	}
	return nil
}

func (b *sqliteBackend) close() error {
	return b.db.Close()
}
