package domain

import (
	"context"
	"time"
)

// ProviderConfig describes one configured datasource. The admin surface that
// maintains these lives elsewhere; the pipeline treats the list as read-only
// input for the duration of a request.
type ProviderConfig struct {
	ID      string         `yaml:"id" json:"id"`
	Name    string         `yaml:"name" json:"name"`
	Type    string         `yaml:"type" json:"type"`
	Enabled bool           `yaml:"enabled" json:"enabled"`
	Order   int            `yaml:"order" json:"order"`
	Config  map[string]any `yaml:"config" json:"config,omitempty"`
}

// StringOption reads a string value from the provider's free-form config.
func (c ProviderConfig) StringOption(key string) string {
	if v, ok := c.Config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// IntOption reads an integer value from the provider's free-form config.
func (c ProviderConfig) IntOption(key string) int {
	switch v := c.Config[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// StringListOption reads a list of strings from the provider's free-form
// config, tolerating both YAML lists and single scalars.
func (c ProviderConfig) StringListOption(key string) []string {
	switch v := c.Config[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, it := range v {
			if s, ok := it.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// QueryContext is the normalized search the orchestrator hands each
// provider: a point, a radius and a forward time horizon, anchored at Now so
// the whole request shares one clock.
type QueryContext struct {
	Lat           float64
	Lon           float64
	RadiusMiles   float64
	LookaheadDays int
	Now           time.Time
}

// Window returns the [from, to] date window implied by the query.
func (q QueryContext) Window() (time.Time, time.Time) {
	from := q.Now.UTC()
	return from, from.AddDate(0, 0, q.LookaheadDays)
}

// SegmentStatus reports the outcome of one sub-request within a provider
// fetch (e.g. one category of a multi-category API call).
type SegmentStatus struct {
	Segment string `json:"segment"`
	OK      bool   `json:"ok"`
	Total   int    `json:"total"`
	Error   string `json:"error,omitempty"`
}

// FetchResult is what a provider hands back on success, possibly partial.
type FetchResult struct {
	Events   []Event
	Cached   bool
	Segments []SegmentStatus // populated by multi-segment providers only
}

// ProviderSummary is the per-provider diagnostic line in the aggregation
// response, produced for every dispatched provider regardless of outcome.
type ProviderSummary struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	OK       bool            `json:"ok"`
	Total    int             `json:"total"`
	Error    string          `json:"error,omitempty"`
	Kind     ErrorKind       `json:"errorKind,omitempty"`
	Cached   bool            `json:"cached"`
	Segments []SegmentStatus `json:"segments,omitempty"`
}

// AggregationResult is the orchestrator's output envelope.
type AggregationResult struct {
	Events        []Event
	Summaries     []ProviderSummary
	CachedOverall bool
}

// Provider is the common fetch contract every adapter implements. Fetch
// returns a typed *ProviderError on failure; a single provider's failure
// must never abort the whole aggregation.
type Provider interface {
	ID() string
	Fetch(ctx context.Context, q QueryContext) (FetchResult, error)
}
