package provider

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/V4T54L/gig-scout/internal/domain"
	"github.com/V4T54L/gig-scout/internal/geo"
	"github.com/V4T54L/gig-scout/internal/textutil"
)

const (
	rssCollection = "rss-v1"

	// rssMaxItems bounds parse work on hostile or runaway feeds.
	rssMaxItems = 200
)

// Candidate start/end field names, tried in order. Event-calendar RSS
// extensions come first; pubDate is the last resort since it dates the post,
// not the show.
var (
	rssStartFields = []string{"ev:startdate", "xcal:dtstart", "startDate", "eventDate", "dc:date", "pubDate"}
	rssEndFields   = []string{"ev:enddate", "xcal:dtend", "endDate"}
)

// rssProvider is the generic RSS/Atom adapter: one feed URL in, canonical
// events out, with source-level filters and the lookahead window applied
// before returning.
type rssProvider struct {
	cfg      domain.ProviderConfig
	url      string
	zone     *time.Location
	segment  string
	filter   sourceFilter
	cache    domain.CacheStore
	logger   *slog.Logger
	ttl      time.Duration
	fetch    *fetcher
	images   domain.ImageFinder
	maxImage int
}

func newRSSProvider(cfg domain.ProviderConfig, deps Deps) *rssProvider {
	zone := time.UTC
	if tz := cfg.StringOption("timezone"); tz != "" {
		if z, err := time.LoadLocation(tz); err == nil {
			zone = z
		}
	}
	p := &rssProvider{
		cfg:     cfg,
		url:     cfg.StringOption("url"),
		zone:    zone,
		segment: cfg.StringOption("segment"),
		filter:  newSourceFilter(cfg),
		cache:   deps.Cache,
		logger:  deps.Logger.With("component", "provider", "provider", cfg.ID),
		ttl:     ttlFor(cfg, deps.FeedTTL),
		fetch:   newFetcher(cfg.ID, deps),
	}
	if cfg.IntOption("fetchImages") > 0 || cfg.StringOption("fetchImages") == "true" {
		p.images = deps.ImageFinder
		p.maxImage = 5
	}
	return p
}

func (p *rssProvider) ID() string { return p.cfg.ID }

func (p *rssProvider) Fetch(ctx context.Context, q domain.QueryContext) (domain.FetchResult, error) {
	if strings.TrimSpace(p.url) == "" {
		return domain.FetchResult{}, domain.NewProviderError(p.cfg.ID, domain.ErrKindConfiguration, "feed URL is not configured", nil)
	}

	keyParts := []string{p.url}
	body, cached := "", false
	if entry, _ := p.cache.Read(ctx, rssCollection, keyParts, p.ttl); entry != nil {
		body, cached = entry.Body, true
	} else {
		status, fetched, err := p.fetch.get(ctx, p.url, map[string]string{"Accept": "application/rss+xml, application/atom+xml, application/xml, text/xml"})
		if err != nil {
			return domain.FetchResult{}, err
		}
		body = fetched
		if err := p.cache.Write(ctx, rssCollection, domain.CacheEntry{
			Status:      status,
			ContentType: "application/xml",
			Body:        body,
			KeyParts:    keyParts,
			WrittenAt:   time.Now(),
		}); err != nil {
			p.logger.Warn("cache write failed", "error", err)
		}
	}

	events := p.parseFeed(ctx, body, q)

	kept := events[:0]
	for _, ev := range events {
		if p.filter.Keep(ev) {
			kept = append(kept, ev)
		}
	}
	return domain.FetchResult{Events: applyLookahead(kept, q), Cached: cached}, nil
}

func (p *rssProvider) parseFeed(ctx context.Context, body string, q domain.QueryContext) []domain.Event {
	blocks := textutil.TagBlocks(body, "item", rssMaxItems)
	if len(blocks) == 0 {
		blocks = textutil.TagBlocks(body, "entry", rssMaxItems) // Atom
	}

	imageBudget := p.maxImage
	events := make([]domain.Event, 0, len(blocks))
	for _, block := range blocks {
		ev, ok := p.parseItem(block)
		if !ok {
			continue
		}
		if len(ev.Images) == 0 && p.images != nil && imageBudget > 0 && ev.URL != "" {
			if img, err := p.images.FindImage(ctx, []string{ev.URL}); err == nil && img != "" {
				ev.Images = []domain.Image{{URL: img}}
				imageBudget--
			}
		}
		if lat, lon, ok := itemGeo(block); ok {
			if d, dok := geo.DistanceMiles(q.Lat, q.Lon, lat, lon); dok {
				ev.Distance = &d
			}
		}
		events = append(events, ev)
	}
	return events
}

func (p *rssProvider) parseItem(block string) (domain.Event, bool) {
	title, _ := textutil.TagContent(block, "title")
	title = strings.TrimSpace(textutil.StripTags(title))
	if title == "" {
		return domain.Event{}, false
	}

	link, _ := textutil.TagContent(block, "link")
	link = strings.TrimSpace(link)
	if link == "" {
		// Atom carries the link as an attribute.
		link, _ = textutil.TagAttr(block, "link", "href")
	}

	description, _ := textutil.TagContent(block, "description")
	if description == "" {
		description, _ = textutil.TagContent(block, "summary")
	}
	summary := textutil.StripTags(description)

	ev := domain.Event{
		Name:    title,
		URL:     link,
		Segment: p.segment,
		Summary: truncate(summary, 500),
		Source:  p.cfg.ID,
	}

	if start, ok := p.resolveDate(block, rssStartFields, summary); ok {
		local, utc := textutil.FormatLocalUTC(start, p.zone)
		ev.Start = domain.EventTime{Local: local, UTC: utc}
	}
	if end, ok := p.resolveDate(block, rssEndFields, ""); ok {
		local, utc := textutil.FormatLocalUTC(end, p.zone)
		ev.End = domain.EventTime{Local: local, UTC: utc}
	}

	var genres []string
	for _, cat := range textutil.AllTagContents(block, "category") {
		cat = strings.TrimSpace(textutil.StripTags(cat))
		// Feeds sometimes stuff dates into category tags.
		if cat == "" || textutil.LooksLikeDate(cat) {
			continue
		}
		genres = append(genres, cat)
	}
	ev.Genres = domain.NormalizeGenres(genres)

	if img := itemImage(block); img != "" {
		ev.Images = []domain.Image{{URL: img}}
	}

	guid, _ := textutil.TagContent(block, "guid")
	if guid == "" {
		guid, _ = textutil.TagContent(block, "id") // Atom
	}
	ev.ID = domain.EventID(p.cfg.ID, strings.TrimSpace(guid), title, ev.Start, link)
	return ev, true
}

// resolveDate walks the candidate field list in order, falling back to
// free-text extraction from the description when no structured field parses.
func (p *rssProvider) resolveDate(block string, fields []string, freeText string) (time.Time, bool) {
	for _, field := range fields {
		raw, ok := textutil.TagContent(block, field)
		if !ok {
			continue
		}
		if t, err := textutil.ParseFlexibleTime(raw, p.zone); err == nil {
			return t, true
		}
	}
	if freeText != "" {
		if t, ok := textutil.ExtractFreeTextTime(freeText, p.zone); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func itemImage(block string) string {
	for _, tag := range []string{"enclosure", "media:content", "media:thumbnail"} {
		if u, ok := textutil.TagAttr(block, tag, "url"); ok && u != "" {
			return u
		}
	}
	if u, ok := textutil.TagContent(block, "image"); ok {
		return strings.TrimSpace(u)
	}
	return ""
}

func itemGeo(block string) (lat, lon float64, ok bool) {
	latRaw, lok := textutil.TagContent(block, "geo:lat")
	lonRaw, nok := textutil.TagContent(block, "geo:long")
	if !lok || !nok {
		return 0, 0, false
	}
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(lonRaw), 64)
	if latErr != nil || lonErr != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimSpace(s[:n])
}
