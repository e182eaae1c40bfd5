// Package provider contains the per-source fetch adapters: the structured
// Ticketmaster-style API, the two venue page scrapers, and the generic
// RSS/Atom and iCal feed adapters. Every adapter normalizes into
// domain.Event and reports failures as typed *domain.ProviderError values so
// one broken source never takes down an aggregation.
package provider

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/V4T54L/gig-scout/internal/domain"
)

// Provider type identifiers as they appear in the datasource config.
const (
	TypeTicketmaster = "ticketmaster"
	TypeCrescent     = "crescent"
	TypeStirCrazy    = "stircrazy"
	TypeRSS          = "rss"
	TypeICal         = "ical"
)

// Deps carries the shared collaborators every adapter draws from.
type Deps struct {
	Cache  domain.CacheStore
	Logger *slog.Logger

	// TicketmasterKey is the structured API credential. Empty is a
	// per-provider configuration error, not a construction error, so the
	// rest of the pipeline still runs without it.
	TicketmasterKey string

	// ImageFinder optionally backfills missing feed-item images. Nil
	// disables the backfill.
	ImageFinder domain.ImageFinder

	// HTTPTimeout bounds each outbound call. RatePerSecond is the
	// per-provider outbound budget.
	HTTPTimeout   time.Duration
	RatePerSecond float64

	// TTLs for cache freshness, overridable per provider via the
	// "ttlMinutes" config key.
	APITTL    time.Duration
	ScrapeTTL time.Duration
	FeedTTL   time.Duration
}

// NewFromConfig builds the adapter for one configured datasource.
func NewFromConfig(cfg domain.ProviderConfig, deps Deps) (domain.Provider, error) {
	switch cfg.Type {
	case TypeTicketmaster:
		return newTicketmasterProvider(cfg, deps), nil
	case TypeCrescent:
		return newCrescentProvider(cfg, deps), nil
	case TypeStirCrazy:
		return newStirCrazyProvider(cfg, deps), nil
	case TypeRSS:
		return newRSSProvider(cfg, deps), nil
	case TypeICal:
		return newICalProvider(cfg, deps), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// ttlFor resolves a provider's cache TTL: the "ttlMinutes" config override
// wins, otherwise the family default.
func ttlFor(cfg domain.ProviderConfig, familyDefault time.Duration) time.Duration {
	if m := cfg.IntOption("ttlMinutes"); m > 0 {
		return time.Duration(m) * time.Minute
	}
	if familyDefault > 0 {
		return familyDefault
	}
	return time.Hour
}

const (
	defaultHTTPTimeout = 8 * time.Second
	maxResponseBytes   = 4 << 20
	userAgent          = "gig-scout/1.0 (+https://github.com/V4T54L/gig-scout)"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		perSecond = 4
	}
	return rate.NewLimiter(rate.Limit(perSecond), 2)
}
