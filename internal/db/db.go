// Package db provides the PostgreSQL document engine: collections of JSONB documents with an
// optional REAL[] embedding column searched through pgvector when the extension is installed.
package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/index"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
	host string
}

var _ index.Engine = (*DB)(nil)

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.AfterConnect = registerVectorTypes

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cc := cfg.ConnConfig
	host := cc.Host + ":" + strconv.Itoa(int(cc.Port))
	if cc.Database != "" {
		host += "/" + cc.Database
	}
	return &DB{pool: pool, host: host}, nil
}

// registerVectorTypes teaches a new connection the pgvector types. Databases without the
// extension are left as they are.
func registerVectorTypes(ctx context.Context, conn *pgx.Conn) error {
	var installed bool
	if err := conn.QueryRow(ctx, `SELECT to_regtype('vector') IS NOT NULL`).Scan(&installed); err != nil {
		return fmt.Errorf("failed to look up vector type: %w", err)
	}
	if !installed {
		return nil
	}
	if err := pgxvec.RegisterTypes(ctx, conn); err != nil {
		return fmt.Errorf("failed to register vector types: %w", err)
	}
	return nil
}

// Name implements index.Engine.
func (db *DB) Name() string { return "postgres" }

// Host implements index.Engine. It never includes credentials.
func (db *DB) Host() string { return db.host }

// Ping implements index.Engine.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close closes the connection pool
func (db *DB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

// Migrate applies the embedded schema. Enabling the vector extension is attempted but not
// required: without it the engine reports no vector capability.
func (db *DB) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		script, err := migrationFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := db.pool.Exec(ctx, string(script)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}

	_, _ = db.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	// connections opened before the extension existed lack the vector types
	db.pool.Reset()
	return nil
}
