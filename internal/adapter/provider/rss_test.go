package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/V4T54L/gig-scout/internal/domain"
	"github.com/V4T54L/gig-scout/internal/domain/mocks"
)

func rssFeed(items string) string {
	return `<?xml version="1.0"?><rss version="2.0"><channel><title>Local Shows</title>` + items + `</channel></rss>`
}

func TestRSSProviderFetch(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	feed := rssFeed(`
		<item>
			<title>Jazz In The Park</title>
			<link>https://shows.example.com/jazz-in-the-park</link>
			<guid>jazz-2024-06-14</guid>
			<ev:startdate>2024-06-14T19:00:00Z</ev:startdate>
			<category>Jazz</category>
			<category>June 14, 2024</category>
			<description><![CDATA[<p>An open-air evening of jazz.</p>]]></description>
			<enclosure url="https://img.example.com/jazz.jpg" type="image/jpeg"/>
		</item>
		<item>
			<title>Freetext Date Show</title>
			<link>https://shows.example.com/freetext</link>
			<description>Join us on June 16, 2024, 8:00pm at the plaza.</description>
		</item>
		<item>
			<title>Beyond The Horizon Fest</title>
			<link>https://shows.example.com/far-future</link>
			<ev:startdate>2024-09-01T19:00:00Z</ev:startdate>
		</item>
		<item>
			<title>Yesterday's Gig</title>
			<link>https://shows.example.com/past</link>
			<ev:startdate>2024-06-01T19:00:00Z</ev:startdate>
		</item>`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, feed)
	}))
	defer srv.Close()

	cfg := domain.ProviderConfig{
		ID: "cityfeed", Name: "City Feed", Type: TypeRSS, Enabled: true,
		Config: map[string]any{"url": srv.URL, "segment": "music"},
	}
	p := newRSSProvider(cfg, testDeps(mocks.NewMockCacheStore()))

	q := testQuery()
	q.Now = now

	res, err := p.Fetch(context.Background(), q)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	// Lookahead window (14 days): the September show and the past show drop.
	if len(res.Events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(res.Events), res.Events)
	}

	jazz := res.Events[0]
	if jazz.ID != "jazz-2024-06-14" {
		t.Errorf("guid should win as ID, got %q", jazz.ID)
	}
	if jazz.Start.UTC != "2024-06-14T19:00:00Z" {
		t.Errorf("start = %q", jazz.Start.UTC)
	}
	if len(jazz.Genres) != 1 || jazz.Genres[0] != "Jazz" {
		t.Errorf("date-like category must be discarded, genres = %v", jazz.Genres)
	}
	if len(jazz.Images) != 1 || jazz.Images[0].URL != "https://img.example.com/jazz.jpg" {
		t.Errorf("images = %v", jazz.Images)
	}
	if jazz.Summary != "An open-air evening of jazz." {
		t.Errorf("summary = %q", jazz.Summary)
	}

	freetext := res.Events[1]
	if freetext.Start.IsZero() {
		t.Fatal("expected free-text date fallback to resolve a start")
	}
	if freetext.Start.Local != "2024-06-16T20:00:00" {
		t.Errorf("free-text start = %q", freetext.Start.Local)
	}
}

func TestRSSProviderImageBackfill(t *testing.T) {
	feed := rssFeed(`
		<item>
			<title>No Image Show</title>
			<link>https://shows.example.com/no-image</link>
			<ev:startdate>2024-06-14T19:00:00Z</ev:startdate>
		</item>`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, feed)
	}))
	defer srv.Close()

	deps := testDeps(mocks.NewMockCacheStore())
	deps.ImageFinder = &mocks.MockImageFinder{ByLink: map[string]string{
		"https://shows.example.com/no-image": "https://img.example.com/found.jpg",
	}}

	cfg := domain.ProviderConfig{
		ID: "cityfeed", Type: TypeRSS, Enabled: true,
		Config: map[string]any{"url": srv.URL, "fetchImages": "true"},
	}
	p := newRSSProvider(cfg, deps)

	q := testQuery()
	q.Now = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	res, err := p.Fetch(context.Background(), q)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(res.Events))
	}
	if len(res.Events[0].Images) != 1 || res.Events[0].Images[0].URL != "https://img.example.com/found.jpg" {
		t.Errorf("expected backfilled image, got %v", res.Events[0].Images)
	}
}

func TestRSSProviderMissingURL(t *testing.T) {
	cfg := domain.ProviderConfig{ID: "cityfeed", Type: TypeRSS, Enabled: true}
	p := newRSSProvider(cfg, testDeps(mocks.NewMockCacheStore()))
	_, err := p.Fetch(context.Background(), testQuery())
	if domain.KindOf(err) != domain.ErrKindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	s := strings.Repeat("é", 10)
	got := truncate(s, 5)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	// 5 bytes lands mid-rune, so the cut backs off to the rune boundary.
	if got != strings.Repeat("é", 2) {
		t.Errorf("truncate = %q, want %q", got, strings.Repeat("é", 2))
	}
	if truncate("short", 100) != "short" {
		t.Error("strings within the limit must pass through unchanged")
	}
}
