package provider

import (
	"strings"
	"time"

	"github.com/V4T54L/gig-scout/internal/domain"
)

// sourceFilter is the per-provider taming knob for the feed-family
// adapters: genre and free-text keyword allow/deny lists from the datasource
// config, plus the lookahead window. It lets a noisy feed be curbed without
// a code change.
type sourceFilter struct {
	includeGenres   []string
	excludeGenres   []string
	includeKeywords []string
	excludeKeywords []string
}

func newSourceFilter(cfg domain.ProviderConfig) sourceFilter {
	return sourceFilter{
		includeGenres:   lowerAll(cfg.StringListOption("includeGenres")),
		excludeGenres:   lowerAll(cfg.StringListOption("excludeGenres")),
		includeKeywords: lowerAll(cfg.StringListOption("includeKeywords")),
		excludeKeywords: lowerAll(cfg.StringListOption("excludeKeywords")),
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Keep decides whether an event survives the source-level filters. Exclude
// lists win over include lists; empty include lists admit everything.
func (f sourceFilter) Keep(ev domain.Event) bool {
	text := strings.ToLower(ev.Name + " " + ev.Summary)

	for _, kw := range f.excludeKeywords {
		if strings.Contains(text, kw) {
			return false
		}
	}
	for _, g := range f.excludeGenres {
		if containsGenre(ev.Genres, g) {
			return false
		}
	}

	if len(f.includeGenres) > 0 {
		found := false
		for _, g := range f.includeGenres {
			if containsGenre(ev.Genres, g) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.includeKeywords) > 0 {
		found := false
		for _, kw := range f.includeKeywords {
			if strings.Contains(text, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// containsGenre reports whether want appears in the event's genres. Filter
// lists are pre-lowered but event genres keep their original casing.
func containsGenre(genres []string, want string) bool {
	for _, g := range genres {
		if strings.EqualFold(g, want) {
			return true
		}
	}
	return false
}

// applyLookahead drops events whose end is already past and events starting
// beyond now + lookaheadDays. An undated event survives; the feed families
// routinely carry items whose dates only exist in free text we could not
// resolve, and dropping those silently hides real shows.
func applyLookahead(events []domain.Event, q domain.QueryContext) []domain.Event {
	horizon := q.Now.AddDate(0, 0, q.LookaheadDays)
	kept := events[:0]
	for _, ev := range events {
		end, hasEnd := endInstant(ev)
		start, hasStart := ev.StartInstant()

		if hasEnd && end.Before(q.Now) {
			continue
		}
		if !hasEnd && hasStart && start.Before(q.Now.Add(-6*time.Hour)) {
			continue
		}
		if hasStart && start.After(horizon) {
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}

func endInstant(ev domain.Event) (time.Time, bool) {
	probe := domain.Event{Start: ev.End}
	return probe.StartInstant()
}
