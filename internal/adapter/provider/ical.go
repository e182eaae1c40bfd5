package provider

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/V4T54L/gig-scout/internal/domain"
	"github.com/V4T54L/gig-scout/internal/geo"
	"github.com/V4T54L/gig-scout/internal/textutil"
)

const icalCollection = "ical-v1"

// icalProvider is the generic iCal adapter. One configured provider sits
// behind a bot challenge that blocks direct feed fetches; for it a
// pre-rendered mirror of the same listing is tried first ("mirrorURL"
// config), and the direct feed only if the mirror yields nothing.
type icalProvider struct {
	cfg       domain.ProviderConfig
	url       string
	mirrorURL string
	zone      *time.Location
	segment   string
	filter    sourceFilter
	cache     domain.CacheStore
	logger    *slog.Logger
	ttl       time.Duration
	fetch     *fetcher
}

func newICalProvider(cfg domain.ProviderConfig, deps Deps) *icalProvider {
	zone := time.UTC
	if tz := cfg.StringOption("timezone"); tz != "" {
		if z, err := time.LoadLocation(tz); err == nil {
			zone = z
		}
	}
	return &icalProvider{
		cfg:       cfg,
		url:       cfg.StringOption("url"),
		mirrorURL: cfg.StringOption("mirrorURL"),
		zone:      zone,
		segment:   cfg.StringOption("segment"),
		filter:    newSourceFilter(cfg),
		cache:     deps.Cache,
		logger:    deps.Logger.With("component", "provider", "provider", cfg.ID),
		ttl:       ttlFor(cfg, deps.FeedTTL),
		fetch:     newFetcher(cfg.ID, deps),
	}
}

func (p *icalProvider) ID() string { return p.cfg.ID }

func (p *icalProvider) Fetch(ctx context.Context, q domain.QueryContext) (domain.FetchResult, error) {
	if strings.TrimSpace(p.url) == "" && strings.TrimSpace(p.mirrorURL) == "" {
		return domain.FetchResult{}, domain.NewProviderError(p.cfg.ID, domain.ErrKindConfiguration, "feed URL is not configured", nil)
	}

	keyParts := []string{p.url, p.mirrorURL}
	body, cached := "", false
	if entry, _ := p.cache.Read(ctx, icalCollection, keyParts, p.ttl); entry != nil {
		body, cached = entry.Body, true
	} else {
		fetched, err := p.fetchCalendar(ctx)
		if err != nil {
			return domain.FetchResult{}, err
		}
		body = fetched
		if err := p.cache.Write(ctx, icalCollection, domain.CacheEntry{
			Status:      200,
			ContentType: "text/calendar",
			Body:        body,
			KeyParts:    keyParts,
			WrittenAt:   time.Now(),
		}); err != nil {
			p.logger.Warn("cache write failed", "error", err)
		}
	}

	blocks := textutil.ParseICalEvents(body)
	events := make([]domain.Event, 0, len(blocks))
	for _, block := range blocks {
		if ev, ok := p.normalize(block, q); ok && p.filter.Keep(ev) {
			events = append(events, ev)
		}
	}
	return domain.FetchResult{Events: applyLookahead(events, q), Cached: cached}, nil
}

// fetchCalendar returns a body containing VEVENT blocks. The mirror path
// strips the wrapper HTML first; unfolded iCal lines survive tag stripping
// intact.
func (p *icalProvider) fetchCalendar(ctx context.Context) (string, error) {
	if p.mirrorURL != "" {
		_, body, err := p.fetch.get(ctx, p.mirrorURL, nil)
		if err == nil {
			text := textutil.StripTags(body)
			if strings.Contains(text, "BEGIN:VEVENT") {
				return text, nil
			}
			p.logger.Warn("mirror yielded no calendar data, falling back to direct feed")
		} else {
			p.logger.Warn("mirror fetch failed, falling back to direct feed", "error", err)
		}
		if p.url == "" {
			return "", domain.NewProviderError(p.cfg.ID, domain.ErrKindUpstream, "mirror yielded no calendar data", err)
		}
	}

	_, body, err := p.fetch.get(ctx, p.url, map[string]string{"Accept": "text/calendar, text/plain"})
	if err != nil {
		return "", err
	}
	return body, nil
}

func (p *icalProvider) normalize(block textutil.ICalEvent, q domain.QueryContext) (domain.Event, bool) {
	name := strings.TrimSpace(block.Value("SUMMARY"))
	if name == "" {
		return domain.Event{}, false
	}

	ev := domain.Event{
		Name:    name,
		URL:     strings.TrimSpace(block.Value("URL")),
		Segment: p.segment,
		Summary: truncate(strings.TrimSpace(block.Value("DESCRIPTION")), 500),
		Source:  p.cfg.ID,
	}

	ev.Start = p.resolveTime(block, "DTSTART")
	ev.End = p.resolveTime(block, "DTEND")

	if loc := strings.TrimSpace(block.Value("LOCATION")); loc != "" {
		ev.Venue.Name = loc
	}

	var genres []string
	for _, prop := range block.All("CATEGORIES") {
		for _, c := range strings.Split(prop.Value, ",") {
			if c = strings.TrimSpace(c); c != "" && !textutil.LooksLikeDate(c) {
				genres = append(genres, c)
			}
		}
	}
	ev.Genres = domain.NormalizeGenres(genres)

	if img := p.eventImage(block); img != "" {
		ev.Images = []domain.Image{{URL: img}}
	}

	if gv := strings.TrimSpace(block.Value("GEO")); gv != "" {
		if lat, lon, ok := parseGeoProp(gv); ok {
			if d, dok := geo.DistanceMiles(q.Lat, q.Lon, lat, lon); dok {
				ev.Distance = &d
			}
		}
	}

	ev.ID = domain.EventID(p.cfg.ID, strings.TrimSpace(block.Value("UID")), name, ev.Start, ev.URL)
	return ev, true
}

func (p *icalProvider) resolveTime(block textutil.ICalEvent, propName string) domain.EventTime {
	prop, ok := block.Get(propName)
	if !ok || strings.TrimSpace(prop.Value) == "" {
		return domain.EventTime{}
	}
	t, err := textutil.ParseICalTime(prop.Value, prop.Param("TZID"), p.zone)
	if err != nil {
		return domain.EventTime{}
	}
	// Render the local side in the event's own zone when it has one, else
	// in the provider's configured zone.
	loc := p.zone
	if tzid := prop.Param("TZID"); tzid != "" {
		if z, zerr := time.LoadLocation(tzid); zerr == nil {
			loc = z
		}
	}
	local, utc := textutil.FormatLocalUTC(t, loc)
	return domain.EventTime{Local: local, UTC: utc}
}

// eventImage prefers an explicit IMAGE/ATTACH property, then scans the
// description body for an image URL.
func (p *icalProvider) eventImage(block textutil.ICalEvent) string {
	for _, name := range []string{"IMAGE", "ATTACH"} {
		for _, prop := range block.All(name) {
			v := strings.TrimSpace(prop.Value)
			if v == "" {
				continue
			}
			fmtType := prop.Param("FMTTYPE")
			if strings.HasPrefix(fmtType, "image/") || looksLikeImageURL(v) {
				return v
			}
		}
	}
	if m := imageURLRe.FindString(block.Value("DESCRIPTION")); m != "" {
		return m
	}
	return ""
}

var imageURLRe = regexp.MustCompile(`https?://[^\s"'<>]+\.(?:jpe?g|png|webp|gif)`)

func looksLikeImageURL(u string) bool {
	return imageURLRe.MatchString(u)
}

func parseGeoProp(v string) (lat, lon float64, ok bool) {
	latRaw, lonRaw, found := strings.Cut(v, ";")
	if !found {
		return 0, 0, false
	}
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(lonRaw), 64)
	if latErr != nil || lonErr != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
