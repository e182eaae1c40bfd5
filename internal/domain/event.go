package domain

import (
	"strings"
	"time"
)

// EventTime carries both representations of an instant. Local is the
// provider's wall-clock rendering, UTC the normalized one. Either both are
// valid ISO-8601 strings or both are empty; an adapter must never emit one
// without the other.
type EventTime struct {
	Local string `json:"local,omitempty"`
	UTC   string `json:"utc,omitempty"`
}

// IsZero reports whether no timestamp was resolved.
func (t EventTime) IsZero() bool { return t.Local == "" && t.UTC == "" }

// Address is the coarse location of a venue.
type Address struct {
	City    string `json:"city,omitempty"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
}

// Venue is where an event takes place.
type Venue struct {
	Name    string  `json:"name"`
	Address Address `json:"address"`
}

// Image is a single event image candidate.
type Image struct {
	URL      string `json:"url"`
	Ratio    string `json:"ratio,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Event is the canonical, provider-agnostic event representation every
// adapter must produce.
type Event struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Start          EventTime      `json:"start"`
	End            EventTime      `json:"end,omitempty"`
	URL            string         `json:"url"`
	AlternateLinks []string       `json:"alternateLinks,omitempty"`
	Venue          Venue          `json:"venue"`
	Segment        string         `json:"segment,omitempty"` // music, comedy, or empty
	Genres         []string       `json:"genres,omitempty"`
	Distance       *float64       `json:"distance,omitempty"` // miles from the query point
	Summary        string         `json:"summary,omitempty"`
	Source         string         `json:"source"`
	Images         []Image        `json:"images,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"` // provider-specific bag, opaque to the core
}

const slugMaxLen = 80

// Slug lowercases s, collapses runs of non-alphanumerics into single
// hyphens, trims edge hyphens and truncates to 80 characters.
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		} else {
			pendingHyphen = true
		}
	}
	out := b.String()
	if len(out) > slugMaxLen {
		out = strings.Trim(out[:slugMaxLen], "-")
	}
	return out
}

// EventID derives a stable per-provider event ID. The provider's own
// identifier wins; otherwise the ID is built from the event's name, the date
// part of its start and a fragment of its URL, so a re-fetch of the same
// logical event always maps to the same ID.
func EventID(providerID, externalID, name string, start EventTime, url string) string {
	if externalID != "" {
		return externalID
	}
	parts := []string{providerID, Slug(name), startDatePart(start)}
	if frag := urlFragment(url); frag != "" {
		parts = append(parts, frag)
	}
	return strings.Join(parts, "::")
}

func startDatePart(start EventTime) string {
	for _, s := range []string{start.Local, start.UTC} {
		if len(s) >= 10 {
			return s[:10]
		}
	}
	return ""
}

// urlFragment keeps the last path element of the URL, slugged, as a
// disambiguator for same-name same-day events. A URL with no path yields
// nothing.
func urlFragment(url string) string {
	if _, rest, ok := strings.Cut(url, "://"); ok {
		url = rest
	}
	url = strings.TrimRight(url, "/")
	i := strings.LastIndexByte(url, '/')
	if i < 0 {
		return ""
	}
	return Slug(url[i+1:])
}

// NormalizeGenres dedupes genres case-insensitively, preserving the first
// spelling seen and dropping empties.
func NormalizeGenres(genres []string) []string {
	seen := make(map[string]struct{}, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		key := strings.ToLower(g)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, g)
	}
	return out
}

// StartInstant resolves the event's start to a comparable instant. The
// second return distinguishes "parsed" from "undated". UTC wins over a
// local-only timestamp.
func (e *Event) StartInstant() (time.Time, bool) {
	if e.Start.UTC != "" {
		if t, err := time.Parse(time.RFC3339, e.Start.UTC); err == nil {
			return t, true
		}
	}
	if e.Start.Local != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, e.Start.Local); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
