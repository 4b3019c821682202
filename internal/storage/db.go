package storage

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationPool is the minimal interface required to run migrations.
// *pgxpool.Pool satisfies this interface.
type MigrationPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Connect opens a pgxpool connection and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating pgxpool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded .sql migrations in lexicographic
// order, each in its own transaction.
func RunMigrations(ctx context.Context, pool MigrationPool) error {
	return runMigrationsFS(ctx, pool, migrationsFS, "migrations")
}

func runMigrationsFS(ctx context.Context, pool MigrationPool, fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("reading migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, dir+"/"+e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		sql, err := fs.ReadFile(fsys, f)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", f, err)
		}

		if err := runInTx(ctx, pool, string(sql)); err != nil {
			return fmt.Errorf("executing migration %s: %w", f, err)
		}
	}

	return nil
}

// runInTx runs the given SQL in a transaction, rolling back on failure.
func runInTx(ctx context.Context, pool MigrationPool, sql string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("executing SQL: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
