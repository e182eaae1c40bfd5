package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/V4T54L/gig-scout/internal/domain"
	"github.com/V4T54L/gig-scout/internal/domain/mocks"
)

func testDeps(cache domain.CacheStore) Deps {
	return Deps{
		Cache:         cache,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		HTTPTimeout:   2 * time.Second,
		RatePerSecond: 1000,
		APITTL:        time.Hour,
		ScrapeTTL:     time.Hour,
		FeedTTL:       time.Hour,
	}
}

func testQuery() domain.QueryContext {
	return domain.QueryContext{
		Lat:           33.4484,
		Lon:           -112.0740,
		RadiusMiles:   50,
		LookaheadDays: 14,
		Now:           time.Now().UTC(),
	}
}

func tmBody(events string) string {
	return `{"_embedded":{"events":[` + events + `]}}`
}

func tmEventJSON(id, name, dateTime string) string {
	return `{
		"id": "` + id + `",
		"name": "` + name + `",
		"url": "https://tickets.example.com/` + id + `",
		"dates": {"start": {"localDate": "2024-06-14", "localTime": "20:00:00", "dateTime": "` + dateTime + `"}, "timezone": "America/Phoenix"},
		"images": [{"url": "https://img.example.com/` + id + `.jpg", "ratio": "16_9", "width": 640, "height": 360}],
		"classifications": [{"segment": {"name": "Music"}, "genre": {"name": "Rock"}, "subGenre": {"name": "Indie"}}],
		"_embedded": {"venues": [{"name": "The Van Buren", "city": {"name": "Phoenix"}, "state": {"stateCode": "AZ"}, "country": {"countryCode": "US"}, "location": {"latitude": "33.4510", "longitude": "-112.0790"}}]}
	}`
}

func newTMServer(t *testing.T, perSegment map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		segment := r.URL.Query().Get("classificationName")
		h, ok := perSegment[segment]
		if !ok {
			t.Errorf("unexpected segment %q", segment)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h(w, r)
	}))
}

func newTMProvider(srv *httptest.Server, cache domain.CacheStore, key string) *ticketmasterProvider {
	deps := testDeps(cache)
	deps.TicketmasterKey = key
	cfg := domain.ProviderConfig{
		ID: "tm", Name: "Ticketmaster", Type: TypeTicketmaster, Enabled: true,
		Config: map[string]any{"baseURL": srv.URL},
	}
	return newTicketmasterProvider(cfg, deps)
}

func TestTicketmasterFetch(t *testing.T) {
	t.Run("Merges Segments First Occurrence Wins", func(t *testing.T) {
		srv := newTMServer(t, map[string]http.HandlerFunc{
			"music": func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tmBody(tmEventJSON("ev1", "Crossover Act", "2024-06-15T03:00:00Z")+","+tmEventJSON("ev2", "Rock Night", "2024-06-15T04:00:00Z")))
			},
			"comedy": func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tmBody(tmEventJSON("ev1", "Crossover Act", "2024-06-15T03:00:00Z")))
			},
		})
		defer srv.Close()

		p := newTMProvider(srv, mocks.NewMockCacheStore(), "test-key")
		res, err := p.Fetch(context.Background(), testQuery())
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if len(res.Events) != 2 {
			t.Fatalf("expected 2 merged events, got %d", len(res.Events))
		}
		if res.Cached {
			t.Error("first fetch must not be cached")
		}

		ev := res.Events[0]
		if ev.ID != "ev1" {
			t.Errorf("id = %q", ev.ID)
		}
		if ev.Start.Local != "2024-06-14T20:00:00" {
			t.Errorf("local start = %q", ev.Start.Local)
		}
		if ev.Start.UTC != "2024-06-15T03:00:00Z" {
			t.Errorf("utc start = %q", ev.Start.UTC)
		}
		if ev.Distance == nil || *ev.Distance > 1.0 {
			t.Errorf("expected sub-mile distance, got %v", ev.Distance)
		}
		if len(ev.Genres) != 2 {
			t.Errorf("genres = %v", ev.Genres)
		}
		if ev.Venue.Name != "The Van Buren" || ev.Venue.Address.Region != "AZ" {
			t.Errorf("venue = %+v", ev.Venue)
		}
	})

	t.Run("Partial Segment Failure Degrades Gracefully", func(t *testing.T) {
		srv := newTMServer(t, map[string]http.HandlerFunc{
			"music": func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tmBody(tmEventJSON("ev1", "Rock Night", "2024-06-15T03:00:00Z")))
			},
			"comedy": func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		})
		defer srv.Close()

		p := newTMProvider(srv, mocks.NewMockCacheStore(), "test-key")
		res, err := p.Fetch(context.Background(), testQuery())
		if err != nil {
			t.Fatalf("expected partial success, got %v", err)
		}
		if len(res.Events) != 1 {
			t.Errorf("expected 1 event, got %d", len(res.Events))
		}
		if len(res.Segments) != 2 {
			t.Fatalf("expected 2 segment statuses, got %d", len(res.Segments))
		}
		var okCount int
		for _, s := range res.Segments {
			if s.OK {
				okCount++
			} else if s.Error == "" {
				t.Error("failed segment must carry an error message")
			}
		}
		if okCount != 1 {
			t.Errorf("expected exactly one ok segment, got %d", okCount)
		}
	})

	t.Run("Total Failure Reports Typed Error", func(t *testing.T) {
		srv := newTMServer(t, map[string]http.HandlerFunc{
			"music":  func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			"comedy": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
		})
		defer srv.Close()

		p := newTMProvider(srv, mocks.NewMockCacheStore(), "test-key")
		_, err := p.Fetch(context.Background(), testQuery())
		if err == nil {
			t.Fatal("expected an error")
		}
		var pe *domain.ProviderError
		if !errors.As(err, &pe) {
			t.Fatalf("expected *domain.ProviderError, got %T", err)
		}
		if pe.Kind != domain.ErrKindUpstream {
			t.Errorf("kind = %q", pe.Kind)
		}
	})

	t.Run("Missing API Key Is A Configuration Error", func(t *testing.T) {
		p := newTMProvider(httptest.NewServer(http.NotFoundHandler()), mocks.NewMockCacheStore(), "")
		_, err := p.Fetch(context.Background(), testQuery())
		var pe *domain.ProviderError
		if !errors.As(err, &pe) || pe.Kind != domain.ErrKindConfiguration {
			t.Fatalf("expected configuration error, got %v", err)
		}
		// The orchestrator distinguishes this case by the sentinel alone.
		if !errors.Is(err, domain.ErrMissingCredentials) {
			t.Fatalf("error must wrap ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Second Identical Query Served From Cache", func(t *testing.T) {
		calls := 0
		srv := newTMServer(t, map[string]http.HandlerFunc{
			"music": func(w http.ResponseWriter, r *http.Request) {
				calls++
				io.WriteString(w, tmBody(tmEventJSON("ev1", "Rock Night", "2024-06-15T03:00:00Z")))
			},
			"comedy": func(w http.ResponseWriter, r *http.Request) {
				calls++
				io.WriteString(w, tmBody(""))
			},
		})
		defer srv.Close()

		p := newTMProvider(srv, mocks.NewMockCacheStore(), "test-key")
		q := testQuery()

		first, err := p.Fetch(context.Background(), q)
		if err != nil {
			t.Fatalf("first fetch: %v", err)
		}
		callsAfterFirst := calls

		second, err := p.Fetch(context.Background(), q)
		if err != nil {
			t.Fatalf("second fetch: %v", err)
		}
		if calls != callsAfterFirst {
			t.Error("second fetch must not hit the network")
		}
		if !second.Cached {
			t.Error("second fetch must be flagged cached")
		}
		if len(second.Events) != len(first.Events) {
			t.Errorf("cached events differ: %d vs %d", len(second.Events), len(first.Events))
		}
		if len(second.Segments) != 2 {
			t.Errorf("expected segment statuses restored from cache, got %d", len(second.Segments))
		}
	})
}
