package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/gig-scout/internal/domain"
)

// Tiered layers an in-process MemoryStore in front of a durable store. Reads
// hit memory first; a durable hit is promoted into memory. Writes go to both,
// and a durable write failure is logged and swallowed so the caller's fresh
// network result is never lost to cache persistence problems.
type Tiered struct {
	fast    *MemoryStore
	durable domain.CacheStore
	logger  *slog.Logger
}

func NewTiered(durable domain.CacheStore, logger *slog.Logger) *Tiered {
	return &Tiered{
		fast:    NewMemoryStore(),
		durable: durable,
		logger:  logger.With("component", "cache"),
	}
}

func (t *Tiered) Read(ctx context.Context, collection string, keyParts []string, ttl time.Duration) (*domain.CacheEntry, error) {
	if entry, _ := t.fast.Read(ctx, collection, keyParts, ttl); entry != nil {
		return entry, nil
	}
	if t.durable == nil {
		return nil, nil
	}
	entry, err := t.durable.Read(ctx, collection, keyParts, ttl)
	if err != nil {
		t.logger.Warn("durable cache read failed", "collection", collection, "error", err)
		return nil, nil
	}
	if entry != nil {
		_ = t.fast.Write(ctx, collection, *entry)
	}
	return entry, nil
}

func (t *Tiered) Write(ctx context.Context, collection string, entry domain.CacheEntry) error {
	_ = t.fast.Write(ctx, collection, entry)
	if t.durable == nil {
		return nil
	}
	if err := t.durable.Write(ctx, collection, entry); err != nil {
		t.logger.Warn("durable cache write failed", "collection", collection, "error", err)
	}
	return nil
}
