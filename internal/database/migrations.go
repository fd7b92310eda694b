package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"

	"github.com/SonianW/MetaPrompter/internal/store"
	"github.com/SonianW/MetaPrompter/migrations"
)

// Source returns the migrations directory at path, or the embedded schema
// when path is empty or missing.
func Source(path string) fs.FS {
	if path != "" {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return os.DirFS(path)
		}
	}
	return migrations.FS
}

// RunMigrations applies every *.sql file in fsys that is not yet recorded in
// schema_migrations, in lexical order, one transaction per file. It returns
// the versions applied.
func RunMigrations(ctx context.Context, db store.DB, fsys fs.FS) ([]string, error) {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT now()
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("glob migration files: %w", err)
	}
	sort.Strings(files)

	var applied []string
	for _, version := range files {
		var exists bool
		err := db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)", version).Scan(&exists)
		if err != nil {
			return applied, fmt.Errorf("check migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		sql, err := fs.ReadFile(fsys, version)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", version, err)
		}

		tx, err := db.Begin(ctx)
		if err != nil {
			return applied, fmt.Errorf("begin tx for %s: %w", version, err)
		}

		if _, err := tx.Exec(ctx, string(sql)); err != nil {
			_ = tx.Rollback(ctx)
			return applied, fmt.Errorf("execute migration %s: %w", version, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			_ = tx.Rollback(ctx)
			return applied, fmt.Errorf("record migration %s: %w", version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return applied, fmt.Errorf("commit migration %s: %w", version, err)
		}

		slog.Info("applied migration", "version", version)
		applied = append(applied, version)
	}

	return applied, nil
}
