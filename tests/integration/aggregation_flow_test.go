package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/V4T54L/gig-scout/internal/adapter/api"
	"github.com/V4T54L/gig-scout/internal/adapter/cache"
	"github.com/V4T54L/gig-scout/internal/adapter/provider"
	"github.com/V4T54L/gig-scout/internal/domain"
	"github.com/V4T54L/gig-scout/internal/usecase"
)

// The integration test wires real feed adapters against local HTTP fixtures
// and drives the full stack through the public router: fetch, parse,
// cache, merge, sort, envelope.

func rssFixture(start time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0"><channel>
  <item>
    <title>Downtown Jazz Night</title>
    <link>https://feed.example/shows/jazz-night</link>
    <description>A late set downtown.</description>
    <pubDate>%s</pubDate>
    <category>Jazz</category>
  </item>
</channel></rss>`, start.Format(time.RFC1123Z))
}

func icalFixture(start time.Time) string {
	return "BEGIN:VCALENDAR\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:flow-test-1\r\n" +
		"SUMMARY:Open Mic Comedy\r\n" +
		"DTSTART:" + start.UTC().Format("20060102T150405Z") + "\r\n" +
		"URL:https://cal.example/open-mic\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
}

func TestAggregationFlow(t *testing.T) {
	now := time.Now()
	var rssHits, icalHits atomic.Int64

	rssSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rssHits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFixture(now.Add(48*time.Hour)))
	}))
	defer rssSrv.Close()

	icalSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		icalHits.Add(1)
		w.Header().Set("Content-Type", "text/calendar")
		fmt.Fprint(w, icalFixture(now.Add(24*time.Hour)))
	}))
	defer icalSrv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := provider.Deps{
		Cache:         cache.NewTiered(nil, logger),
		Logger:        logger,
		HTTPTimeout:   5 * time.Second,
		RatePerSecond: 100,
		FeedTTL:       time.Hour,
	}

	configs := []domain.ProviderConfig{
		{ID: "jazz-feed", Name: "Jazz Feed", Type: provider.TypeRSS, Enabled: true, Order: 1,
			Config: map[string]any{"url": rssSrv.URL + "/feed.xml"}},
		{ID: "comedy-cal", Name: "Comedy Calendar", Type: provider.TypeICal, Enabled: true, Order: 2,
			Config: map[string]any{"url": icalSrv.URL + "/cal.ics"}},
	}
	handles := make([]usecase.ProviderHandle, 0, len(configs))
	for _, pc := range configs {
		p, err := provider.NewFromConfig(pc, deps)
		if err != nil {
			t.Fatalf("build provider %s: %v", pc.ID, err)
		}
		handles = append(handles, usecase.ProviderHandle{Config: pc, Provider: p})
	}

	cutoff := usecase.WeekdayCutoff{Hour: 16, Minute: 30}
	aggregateUC := usecase.NewAggregateEventsUseCase(handles, nil, cutoff, 5*time.Second, logger)
	previewUC := usecase.NewPreviewProviderUseCase(handles, 5*time.Second, logger)

	srv := httptest.NewServer(api.NewRouter(logger, aggregateUC, previewUC, nil))
	defer srv.Close()

	type envelope struct {
		Source  string                   `json:"source"`
		Cached  bool                     `json:"cached"`
		Events  []domain.Event           `json:"events"`
		Sources []domain.ProviderSummary `json:"sources"`
	}

	fetchEnvelope := func(t *testing.T) envelope {
		t.Helper()
		resp, err := http.Get(srv.URL + "/events?lat=33.4484&lon=-112.0740")
		if err != nil {
			t.Fatalf("GET /events: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			t.Fatalf("status %d: %s", resp.StatusCode, body)
		}
		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		return env
	}

	env := fetchEnvelope(t)
	if len(env.Events) != 2 {
		t.Fatalf("expected 2 events across both feeds, got %d: %+v", len(env.Events), env.Events)
	}
	// The iCal event starts a day earlier, so it sorts first.
	if env.Events[0].Name != "Open Mic Comedy" || env.Events[1].Name != "Downtown Jazz Night" {
		t.Errorf("unexpected order: %q, %q", env.Events[0].Name, env.Events[1].Name)
	}
	if env.Cached {
		t.Error("first aggregation should not be served from cache")
	}
	if len(env.Sources) != 2 || !env.Sources[0].OK || !env.Sources[1].OK {
		t.Errorf("sources = %+v", env.Sources)
	}

	// Second request: identical query shape, everything within TTL.
	env = fetchEnvelope(t)
	if !env.Cached {
		t.Error("second aggregation should be fully cached")
	}
	if rssHits.Load() != 1 || icalHits.Load() != 1 {
		t.Errorf("feed fetches = rss %d, ical %d; want 1 each", rssHits.Load(), icalHits.Load())
	}

	t.Run("Preview Endpoint", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/providers/jazz-feed/preview?lat=33.4484&lon=-112.0740&limit=5")
		if err != nil {
			t.Fatalf("GET preview: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("preview status %d", resp.StatusCode)
		}
		var preview struct {
			Provider domain.ProviderSummary `json:"provider"`
			Events   []domain.Event         `json:"events"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&preview); err != nil {
			t.Fatalf("decode preview: %v", err)
		}
		if len(preview.Events) != 1 || !preview.Provider.Cached {
			t.Errorf("preview = %+v, want 1 cached event", preview)
		}
	})
}
