package domain

import (
	"context"
	"time"
)

// CacheEntry is one immutable cached provider response. Entries are written
// whole and superseded whole; freshness is always computed from WrittenAt
// against the TTL the reader supplies, never from a stored expiry, so a TTL
// change takes effect retroactively.
type CacheEntry struct {
	Status      int               `json:"status"`
	ContentType string            `json:"contentType,omitempty"`
	Body        string            `json:"body"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	KeyParts    []string          `json:"keyParts"`
	WrittenAt   time.Time         `json:"writtenAt"`
}

// Fresh reports whether the entry is still usable under ttl at time now.
func (e *CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.WrittenAt) < ttl
}

// CacheStore is the durable response cache shared by all providers. Keys are
// namespaced by collection (provider type plus schema version), so providers
// never contend on a key.
// This abstracts away the specific backends (e.g., Redis, PostgreSQL).
type CacheStore interface {
	// Read returns the entry for the key if present and fresh under ttl,
	// or (nil, nil) on miss or staleness.
	Read(ctx context.Context, collection string, keyParts []string, ttl time.Duration) (*CacheEntry, error)

	// Write stores the entry, superseding any previous one for the key.
	// Callers treat failures as non-fatal: a cache that cannot persist
	// must never cost the request its fresh data.
	Write(ctx context.Context, collection string, entry CacheEntry) error
}

// Renderer produces fully-rendered page HTML for sites whose content only
// exists after client-side scripts run. Implementations are lazily
// constructed, reused across requests and shut down explicitly.
type Renderer interface {
	RenderHTML(ctx context.Context, url string) (string, error)
	Shutdown(ctx context.Context) error
}

// ImageFinder locates a representative image for an event by visiting its
// listing page(s). Best-effort: an empty result is not an error.
type ImageFinder interface {
	FindImage(ctx context.Context, links []string) (string, error)
}
