package config

import (
	"os"
	"path/filepath"
	"testing"
)

const providersYAML = `
providers:
  - id: ticketmaster
    name: Ticketmaster
    type: ticketmaster
    enabled: true
  - id: crescent
    name: Crescent Ballroom
    type: crescent
    enabled: true
    order: 5
  - id: old-feed
    name: Retired Feed
    type: rss
    enabled: false
    config:
      url: https://example.com/feed.xml
  - id: venue-cal
    name: Venue Calendar
    type: ical
    enabled: true
    config:
      url: https://example.com/cal.ics
      ttlMinutes: 90
      includeGenres:
        - jazz
`

func writeProvidersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadProviders(t *testing.T) {
	got, err := LoadProviders(writeProvidersFile(t, providersYAML))
	if err != nil {
		t.Fatalf("LoadProviders: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 enabled providers, got %d", len(got))
	}
	if got[0].ID != "ticketmaster" || got[0].Order != 1 {
		t.Errorf("got[0] = %+v, want ticketmaster with implicit order 1", got[0])
	}
	if got[1].Order != 5 {
		t.Errorf("explicit order not preserved: %+v", got[1])
	}
	cal := got[2]
	if cal.StringOption("url") != "https://example.com/cal.ics" {
		t.Errorf("url option = %q", cal.StringOption("url"))
	}
	if cal.IntOption("ttlMinutes") != 90 {
		t.Errorf("ttlMinutes option = %d", cal.IntOption("ttlMinutes"))
	}
	if genres := cal.StringListOption("includeGenres"); len(genres) != 1 || genres[0] != "jazz" {
		t.Errorf("includeGenres = %v", genres)
	}
}

func TestLoadProvidersRejectsBadEntries(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"Missing ID", "providers:\n  - type: rss\n    enabled: true\n"},
		{"Missing Type", "providers:\n  - id: x\n    enabled: true\n"},
		{"Duplicate ID", "providers:\n  - id: x\n    type: rss\n  - id: x\n    type: ical\n"},
		{"Invalid YAML", "providers: [\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := LoadProviders(writeProvidersFile(t, c.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadProvidersMissingFile(t *testing.T) {
	if _, err := LoadProviders(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
