package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/gig-scout/internal/domain"
	"github.com/V4T54L/gig-scout/internal/geo"
	"github.com/V4T54L/gig-scout/internal/textutil"
)

const (
	tmCollection      = "ticketmaster-v1"
	tmDefaultBaseURL  = "https://app.ticketmaster.com/discovery/v2"
	tmPageSize        = 100
	tmSegmentsMetaKey = "segments"
)

// tmSegments are the coarse categories requested in parallel. The same
// event can legitimately appear under more than one of them.
var tmSegments = []string{"music", "comedy"}

// ticketmasterProvider adapts the structured Discovery-style REST API. It
// issues one request per segment, merges by event ID with first occurrence
// winning, and caches the combined result under one query-shaped key.
type ticketmasterProvider struct {
	cfg     domain.ProviderConfig
	apiKey  string
	baseURL string
	cache   domain.CacheStore
	logger  *slog.Logger
	ttl     time.Duration
	fetch   *fetcher
}

func newTicketmasterProvider(cfg domain.ProviderConfig, deps Deps) *ticketmasterProvider {
	baseURL := cfg.StringOption("baseURL")
	if baseURL == "" {
		baseURL = tmDefaultBaseURL
	}
	return &ticketmasterProvider{
		cfg:     cfg,
		apiKey:  deps.TicketmasterKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   deps.Cache,
		logger:  deps.Logger.With("component", "provider", "provider", cfg.ID),
		ttl:     ttlFor(cfg, deps.APITTL),
		fetch:   newFetcher(cfg.ID, deps),
	}
}

func (p *ticketmasterProvider) ID() string { return p.cfg.ID }

func (p *ticketmasterProvider) Fetch(ctx context.Context, q domain.QueryContext) (domain.FetchResult, error) {
	if strings.TrimSpace(p.apiKey) == "" {
		return domain.FetchResult{}, domain.NewProviderError(p.cfg.ID, domain.ErrKindConfiguration, "API key is not configured", domain.ErrMissingCredentials)
	}

	keyParts := p.cacheKey(q)
	if entry, _ := p.cache.Read(ctx, tmCollection, keyParts, p.ttl); entry != nil {
		var events []domain.Event
		if err := json.Unmarshal([]byte(entry.Body), &events); err == nil {
			return domain.FetchResult{
				Events:   events,
				Cached:   true,
				Segments: decodeSegmentMeta(entry.Metadata[tmSegmentsMetaKey]),
			}, nil
		}
		p.logger.Warn("discarding unreadable cached payload")
	}

	from, to := q.Window()

	type segmentOutcome struct {
		segment string
		events  []domain.Event
		err     error
	}
	outcomes := make([]segmentOutcome, len(tmSegments))
	var wg sync.WaitGroup
	for i, segment := range tmSegments {
		wg.Add(1)
		go func(i int, segment string) {
			defer wg.Done()
			events, err := p.fetchSegment(ctx, q, segment, from, to)
			outcomes[i] = segmentOutcome{segment: segment, events: events, err: err}
		}(i, segment)
	}
	wg.Wait()

	var (
		merged   []domain.Event
		seen     = make(map[string]struct{})
		statuses = make([]domain.SegmentStatus, 0, len(tmSegments))
		failures int
	)
	for _, o := range outcomes {
		status := domain.SegmentStatus{Segment: o.segment}
		if o.err != nil {
			failures++
			status.Error = o.err.Error()
			statuses = append(statuses, status)
			p.logger.Warn("segment fetch failed", "segment", o.segment, "error", o.err)
			continue
		}
		status.OK = true
		for _, ev := range o.events {
			// The same event can surface under both segments; first wins.
			if _, dup := seen[ev.ID]; dup {
				continue
			}
			seen[ev.ID] = struct{}{}
			merged = append(merged, ev)
			status.Total++
		}
		statuses = append(statuses, status)
	}

	if failures == len(tmSegments) {
		first := outcomes[0].err
		return domain.FetchResult{Segments: statuses}, domain.NewProviderError(
			p.cfg.ID, domain.KindOf(first), "all segments failed", first,
		)
	}

	p.writeCache(ctx, keyParts, merged, statuses)

	return domain.FetchResult{Events: merged, Segments: statuses}, nil
}

func (p *ticketmasterProvider) cacheKey(q domain.QueryContext) []string {
	from, to := q.Window()
	return []string{
		fmt.Sprintf("%.4f", q.Lat),
		fmt.Sprintf("%.4f", q.Lon),
		fmt.Sprintf("%.1f", q.RadiusMiles),
		from.Format("2006-01-02"),
		to.Format("2006-01-02"),
	}
}

func (p *ticketmasterProvider) writeCache(ctx context.Context, keyParts []string, events []domain.Event, statuses []domain.SegmentStatus) {
	body, err := json.Marshal(events)
	if err != nil {
		return
	}
	meta, _ := json.Marshal(statuses)
	entry := domain.CacheEntry{
		Status:      200,
		ContentType: "application/json",
		Body:        string(body),
		Metadata:    map[string]string{tmSegmentsMetaKey: string(meta)},
		KeyParts:    keyParts,
		WrittenAt:   time.Now(),
	}
	if err := p.cache.Write(ctx, tmCollection, entry); err != nil {
		p.logger.Warn("cache write failed", "error", err)
	}
}

func decodeSegmentMeta(raw string) []domain.SegmentStatus {
	if raw == "" {
		return nil
	}
	var statuses []domain.SegmentStatus
	if err := json.Unmarshal([]byte(raw), &statuses); err != nil {
		return nil
	}
	return statuses
}

func (p *ticketmasterProvider) fetchSegment(ctx context.Context, q domain.QueryContext, segment string, from, to time.Time) ([]domain.Event, error) {
	u, err := url.Parse(p.baseURL + "/events.json")
	if err != nil {
		return nil, domain.NewProviderError(p.cfg.ID, domain.ErrKindConfiguration, "invalid base URL", err)
	}
	params := u.Query()
	params.Set("apikey", p.apiKey)
	params.Set("latlong", fmt.Sprintf("%.4f,%.4f", q.Lat, q.Lon))
	params.Set("radius", fmt.Sprintf("%.0f", q.RadiusMiles))
	params.Set("unit", "miles")
	params.Set("classificationName", segment)
	params.Set("size", fmt.Sprintf("%d", tmPageSize))
	params.Set("sort", "date,asc")
	params.Set("startDateTime", from.Format("2006-01-02T15:04:05Z"))
	params.Set("endDateTime", to.Format("2006-01-02T15:04:05Z"))
	u.RawQuery = params.Encode()

	_, body, err := p.fetch.get(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	var resp tmResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, domain.NewProviderError(p.cfg.ID, domain.ErrKindParse, "malformed API response", err)
	}

	events := make([]domain.Event, 0, len(resp.Embedded.Events))
	for _, raw := range resp.Embedded.Events {
		events = append(events, p.normalize(raw, segment, q))
	}
	return events, nil
}

// Wire shapes for the Discovery API. Only the fields the pipeline reads.
type tmResponse struct {
	Embedded struct {
		Events []tmEvent `json:"events"`
	} `json:"_embedded"`
}

type tmEvent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Dates struct {
		Start struct {
			LocalDate string `json:"localDate"`
			LocalTime string `json:"localTime"`
			DateTime  string `json:"dateTime"`
		} `json:"start"`
		Timezone string `json:"timezone"`
	} `json:"dates"`
	Images []struct {
		URL      string `json:"url"`
		Ratio    string `json:"ratio"`
		Width    int    `json:"width"`
		Height   int    `json:"height"`
		Fallback bool   `json:"fallback"`
	} `json:"images"`
	Classifications []struct {
		Segment  struct{ Name string } `json:"segment"`
		Genre    struct{ Name string } `json:"genre"`
		SubGenre struct{ Name string } `json:"subGenre"`
	} `json:"classifications"`
	PriceRanges []map[string]any `json:"priceRanges"`
	Embedded    struct {
		Venues []tmVenue `json:"venues"`
	} `json:"_embedded"`
}

type tmVenue struct {
	Name string `json:"name"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	State struct {
		StateCode string `json:"stateCode"`
	} `json:"state"`
	Country struct {
		CountryCode string `json:"countryCode"`
	} `json:"country"`
	Location struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"location"`
}

func (p *ticketmasterProvider) normalize(raw tmEvent, segment string, q domain.QueryContext) domain.Event {
	ev := domain.Event{
		Name:    raw.Name,
		URL:     raw.URL,
		Segment: segment,
		Source:  p.cfg.ID,
	}

	ev.Start = tmStartTime(raw)
	ev.ID = domain.EventID(p.cfg.ID, raw.ID, raw.Name, ev.Start, raw.URL)

	var genres []string
	for _, c := range raw.Classifications {
		for _, name := range []string{c.Genre.Name, c.SubGenre.Name} {
			if name != "" && !strings.EqualFold(name, "undefined") {
				genres = append(genres, name)
			}
		}
	}
	ev.Genres = domain.NormalizeGenres(genres)

	for _, img := range raw.Images {
		ev.Images = append(ev.Images, domain.Image{
			URL:      img.URL,
			Ratio:    img.Ratio,
			Width:    img.Width,
			Height:   img.Height,
			Fallback: img.Fallback,
		})
	}

	if len(raw.Embedded.Venues) > 0 {
		v := raw.Embedded.Venues[0]
		ev.Venue = domain.Venue{
			Name: v.Name,
			Address: domain.Address{
				City:    v.City.Name,
				Region:  v.State.StateCode,
				Country: v.Country.CountryCode,
			},
		}
		var vlat, vlon float64
		if _, err := fmt.Sscanf(v.Location.Latitude, "%f", &vlat); err == nil {
			if _, err := fmt.Sscanf(v.Location.Longitude, "%f", &vlon); err == nil {
				if d, ok := geo.DistanceMiles(q.Lat, q.Lon, vlat, vlon); ok {
					ev.Distance = &d
				}
			}
		}
	}

	if len(raw.PriceRanges) > 0 {
		ev.Extra = map[string]any{"priceRanges": raw.PriceRanges}
	}
	return ev
}

// tmStartTime maps the API's date fields to the canonical pair. The API may
// deliver a zoned instant, a local date+time, or a bare date; each maps to
// the richest pair derivable without inventing a timestamp.
func tmStartTime(raw tmEvent) domain.EventTime {
	var out domain.EventTime
	start := raw.Dates.Start

	if start.LocalDate != "" {
		if start.LocalTime != "" {
			out.Local = start.LocalDate + "T" + start.LocalTime
		} else {
			out.Local = start.LocalDate
		}
	}

	if start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, start.DateTime); err == nil {
			out.UTC = t.UTC().Format(time.RFC3339)
			if out.Local == "" {
				loc := time.UTC
				if raw.Dates.Timezone != "" {
					if z, zerr := time.LoadLocation(raw.Dates.Timezone); zerr == nil {
						loc = z
					}
				}
				out.Local, _ = textutil.FormatLocalUTC(t, loc)
			}
		}
	}

	// A local pair with a known zone still deserves a UTC side.
	if out.UTC == "" && start.LocalDate != "" && start.LocalTime != "" && raw.Dates.Timezone != "" {
		if z, err := time.LoadLocation(raw.Dates.Timezone); err == nil {
			if t, err := time.ParseInLocation("2006-01-02T15:04:05", out.Local, z); err == nil {
				out.UTC = t.UTC().Format(time.RFC3339)
			}
		}
	}
	return out
}
