package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ki1r0y/gallery/common/apperr"
	"github.com/ki1r0y/gallery/common/config"
	"github.com/ki1r0y/gallery/common/logger"
)

// PostgresStore implements Store on a single documents table. Update takes a
// transaction-scoped advisory lock on the key before reading, which
// serializes transformers per key without any retry loop. A row lock alone
// would not do: an absent key matches no row, locks nothing, and lets two
// creators of the same key both observe "absent".
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    key text PRIMARY KEY,
    doc jsonb NOT NULL,
    updated_at timestamptz NOT NULL DEFAULT now()
)`

// NewPostgresStore connects a pool, verifies the connection, and ensures the
// documents table exists.
func NewPostgresStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, apperr.Storage(err, "parse postgres URL")
	}

	poolConfig.MaxConns = int32(cfg.Store.Postgres.MaxConns)
	poolConfig.MinConns = int32(cfg.Store.Postgres.MinConns)
	poolConfig.MaxConnLifetime = cfg.Store.Postgres.MaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Store.Postgres.MaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperr.Storage(err, "create connection pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, apperr.Storage(err, "ping database")
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, apperr.Storage(err, "ensure documents table")
	}

	log.Info("postgres store connected", "host", cfg.Store.Postgres.Host, "db", cfg.Store.Postgres.Database)

	return &PostgresStore{
		pool: pool,
		log:  log,
	}, nil
}

// Get returns the document at key, or apperr.NotFound.
func (s *PostgresStore) Get(ctx context.Context, key string) (Document, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM documents WHERE key = $1`, key).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("no document at %s", key)
	}
	if err != nil {
		s.log.Error("postgres select failed", "key", key, "error", err)
		return nil, apperr.Storage(err, "get %s", key)
	}
	return Document(doc), nil
}

// Set writes the document at key unconditionally.
func (s *PostgresStore) Set(ctx context.Context, key string, doc Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (key, doc, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET doc = excluded.doc, updated_at = now()
	`, key, []byte(doc))
	if err != nil {
		s.log.Error("postgres upsert failed", "key", key, "error", err)
		return apperr.Storage(err, "set %s", key)
	}
	return nil
}

// Update atomically transforms the document at key under a per-key advisory
// lock, held until commit or rollback.
func (s *PostgresStore) Update(ctx context.Context, key string, fn Transformer) (Document, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Storage(err, "begin update of %s", key)
	}
	defer tx.Rollback(ctx)

	// Lock the key itself, not the row, so concurrent creators of an
	// absent key still serialize and the loser observes the winner's
	// committed document.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextended($1, 0))`, key); err != nil {
		s.log.Error("postgres advisory lock failed", "key", key, "error", err)
		return nil, apperr.Storage(err, "lock %s for update", key)
	}

	var current []byte
	exists := true
	err = tx.QueryRow(ctx, `SELECT doc FROM documents WHERE key = $1`, key).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		current, exists = nil, false
	} else if err != nil {
		s.log.Error("postgres select for update failed", "key", key, "error", err)
		return nil, apperr.Storage(err, "read %s for update", key)
	}

	next, write, err := fn(Document(current), exists)
	if err != nil {
		return nil, err
	}
	if !write {
		if err := tx.Commit(ctx); err != nil {
			return nil, apperr.Storage(err, "commit update of %s", key)
		}
		if !exists {
			return nil, nil
		}
		return Document(current), nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO documents (key, doc, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET doc = excluded.doc, updated_at = now()
	`, key, []byte(next))
	if err != nil {
		s.log.Error("postgres upsert failed", "key", key, "error", err)
		return nil, apperr.Storage(err, "write %s", key)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Storage(err, "commit update of %s", key)
	}
	return next, nil
}

// Destroy removes the document at key.
func (s *PostgresStore) Destroy(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE key = $1`, key); err != nil {
		s.log.Error("postgres delete failed", "key", key, "error", err)
		return apperr.Storage(err, "destroy %s", key)
	}
	return nil
}

// DestroyCollection removes every document whose key starts with prefix.
func (s *PostgresStore) DestroyCollection(ctx context.Context, prefix string) error {
	pattern := escapeLike(prefix) + "%"
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE key LIKE $1`, pattern); err != nil {
		s.log.Error("postgres collection delete failed", "prefix", prefix, "error", err)
		return apperr.Storage(err, "destroy collection %s", prefix)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
