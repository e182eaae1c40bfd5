package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/V4T54L/gig-scout/internal/domain"
)

const cacheTableName = "response_cache"

// PostgresStore implements domain.CacheStore on PostgreSQL, for deployments
// that already run Postgres and would rather not add Redis. One row per key;
// writes upsert so an entry is superseded whole, never partially updated.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger.With("component", "postgres_cache")}
}

// EnsureSchema creates the cache table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+cacheTableName+` (
			collection TEXT NOT NULL,
			cache_key  TEXT NOT NULL,
			entry      JSONB NOT NULL,
			written_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (collection, cache_key)
		);`)
	if err != nil {
		return fmt.Errorf("create cache table: %w", err)
	}
	return nil
}

func pgKey(keyParts []string) string {
	return strings.Join(keyParts, "\x1f")
}

func (s *PostgresStore) Read(ctx context.Context, collection string, keyParts []string, ttl time.Duration) (*domain.CacheEntry, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT entry FROM `+cacheTableName+` WHERE collection = $1 AND cache_key = $2`,
		collection, pgKey(keyParts),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache select: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.logger.Warn("discarding corrupt cache entry", "collection", collection, "error", err)
		return nil, nil
	}
	if !entry.Fresh(time.Now(), ttl) {
		return nil, nil
	}
	return &entry, nil
}

func (s *PostgresStore) Write(ctx context.Context, collection string, entry domain.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO `+cacheTableName+` (collection, cache_key, entry, written_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, cache_key) DO UPDATE SET
			entry = EXCLUDED.entry,
			written_at = EXCLUDED.written_at;`,
		collection, pgKey(entry.KeyParts), raw, entry.WrittenAt,
	)
	if err != nil {
		return fmt.Errorf("cache upsert: %w", err)
	}
	return nil
}
