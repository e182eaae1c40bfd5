package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/gig-scout/internal/domain"
)

const redisKeyPrefix = "gigscout:cache"

// DefaultRetention bounds how long a superseded-or-stale entry lingers in
// Redis. It must exceed every provider TTL, since freshness is decided at
// read time from WrittenAt, not by Redis expiry.
const DefaultRetention = 7 * 24 * time.Hour

// RedisStore implements domain.CacheStore on Redis. Entries are stored as
// JSON values under a hashed key and evicted by a coarse retention period.
type RedisStore struct {
	client    *redis.Client
	logger    *slog.Logger
	retention time.Duration
}

// NewRedisStore creates a Redis-backed CacheStore. retention <= 0 selects
// DefaultRetention.
func NewRedisStore(client *redis.Client, logger *slog.Logger, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{
		client:    client,
		logger:    logger.With("component", "redis_cache"),
		retention: retention,
	}
}

func redisKey(collection string, keyParts []string) string {
	sum := sha256.Sum256([]byte(strings.Join(keyParts, "\x1f")))
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, collection, hex.EncodeToString(sum[:16]))
}

func (s *RedisStore) Read(ctx context.Context, collection string, keyParts []string, ttl time.Duration) (*domain.CacheEntry, error) {
	raw, err := s.client.Get(ctx, redisKey(collection, keyParts)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// A corrupt entry is treated as a miss; the next write supersedes it.
		s.logger.Warn("discarding corrupt cache entry", "collection", collection, "error", err)
		return nil, nil
	}
	if !entry.Fresh(time.Now(), ttl) {
		return nil, nil
	}
	return &entry, nil
}

func (s *RedisStore) Write(ctx context.Context, collection string, entry domain.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(collection, entry.KeyParts), raw, s.retention).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
