package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/V4T54L/gig-scout/internal/adapter/provider"
	"github.com/V4T54L/gig-scout/internal/domain"
)

const defaultFetchTimeout = 10 * time.Second

// WeekdayCutoff hides weekday events that start strictly before an evening
// wall-clock time. It is a product rule scoped to the structured-API
// provider: the other sources list evening-only venues and are exempt.
type WeekdayCutoff struct {
	Hour   int
	Minute int
}

// ParseWeekdayCutoff parses an "HH:MM" cutoff string.
func ParseWeekdayCutoff(s string) (WeekdayCutoff, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return WeekdayCutoff{}, fmt.Errorf("invalid cutoff %q: want HH:MM", s)
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return WeekdayCutoff{}, fmt.Errorf("invalid cutoff %q: want HH:MM", s)
	}
	return WeekdayCutoff{Hour: h, Minute: m}, nil
}

// Excludes reports whether the rule hides the event. Only weekday events
// with a resolvable wall-clock start are candidates; undated events pass.
func (c WeekdayCutoff) Excludes(ev domain.Event) bool {
	wall, ok := eventWallClock(ev)
	if !ok {
		return false
	}
	switch wall.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	start := wall.Hour()*60 + wall.Minute()
	return start < c.Hour*60+c.Minute
}

// eventWallClock resolves the event's start as the provider-local wall
// clock, which is what the cutoff rule is written against. The UTC
// rendering is only consulted when no local one exists.
func eventWallClock(ev domain.Event) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, ev.Start.Local); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339, ev.Start.UTC); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ProviderHandle pairs a constructed provider with the config it was built
// from; the orchestrator needs the config's type, name and order.
type ProviderHandle struct {
	Config   domain.ProviderConfig
	Provider domain.Provider
}

// AggregateEventsUseCase fans a query out to every enabled provider, merges
// their results and assembles the response envelope.
type AggregateEventsUseCase struct {
	handles  []ProviderHandle
	hydrator *HydrateImagesUseCase
	cutoff   WeekdayCutoff
	timeout  time.Duration
	logger   *slog.Logger
}

// NewAggregateEventsUseCase creates the orchestrator. hydrator may be nil
// to disable image hydration entirely.
func NewAggregateEventsUseCase(handles []ProviderHandle, hydrator *HydrateImagesUseCase, cutoff WeekdayCutoff, timeout time.Duration, logger *slog.Logger) *AggregateEventsUseCase {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	ordered := make([]ProviderHandle, len(handles))
	copy(ordered, handles)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Config.Order < ordered[j].Config.Order })
	return &AggregateEventsUseCase{
		handles:  ordered,
		hydrator: hydrator,
		cutoff:   cutoff,
		timeout:  timeout,
		logger:   logger,
	}
}

type fetchOutcome struct {
	result domain.FetchResult
	err    error
}

// Aggregate runs the full pipeline: dispatch, collect, merge, filter, sort.
// Provider failures are demoted to summary lines; only a zero-success run
// returns an error.
func (uc *AggregateEventsUseCase) Aggregate(ctx context.Context, q domain.QueryContext) (domain.AggregationResult, error) {
	if q.Now.IsZero() {
		q.Now = time.Now().UTC()
	}

	// 1. Dispatch every enabled provider concurrently. Each fetch runs on a
	// context detached from the request: an abandoned client should not tear
	// down a call whose result would populate the cache for the next caller.
	// The per-fetch timeout is the only bound.
	outcomes := make([]fetchOutcome, len(uc.handles))
	done := make(chan int, len(uc.handles))
	for i, h := range uc.handles {
		go func(i int, h ProviderHandle) {
			fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.timeout)
			defer cancel()
			res, err := h.Provider.Fetch(fetchCtx, q)
			outcomes[i] = fetchOutcome{result: res, err: err}
			done <- i
		}(i, h)
	}

	// 2. Collect all outcomes; never race to the first success, every
	// provider's summary must be reported.
	for range uc.handles {
		<-done
	}

	// 3. Merge and summarize in provider order so the output is stable.
	var merged []domain.Event
	var firstErr error
	summaries := make([]domain.ProviderSummary, 0, len(uc.handles))
	successes := 0
	allCached := true
	for i, h := range uc.handles {
		out := outcomes[i]
		summary := domain.ProviderSummary{
			ID:     h.Config.ID,
			Name:   h.Config.Name,
			Cached: out.result.Cached,
		}
		if out.err != nil {
			summary.OK = false
			summary.Error = out.err.Error()
			summary.Kind = domain.KindOf(out.err)
			uc.logger.Warn("provider fetch failed",
				"provider", h.Config.ID, "kind", summary.Kind, "error", out.err)
			if firstErr == nil {
				firstErr = out.err
			}
			summaries = append(summaries, summary)
			continue
		}

		events := dedupeWithinProvider(out.result.Events)
		summary.OK = true
		summary.Total = len(events)
		summary.Segments = out.result.Segments
		summaries = append(summaries, summary)

		// The cutoff rule is scoped to the structured API.
		if h.Config.Type == provider.TypeTicketmaster {
			events = uc.applyCutoff(events)
		}
		merged = append(merged, events...)
		successes++
		if !out.result.Cached {
			allCached = false
		}
	}

	if successes == 0 {
		if errors.Is(firstErr, domain.ErrMissingCredentials) {
			return domain.AggregationResult{Summaries: summaries}, domain.ErrMissingCredentials
		}
		return domain.AggregationResult{Summaries: summaries}, domain.ErrAllProvidersFailed
	}

	// 4. Global sort: resolvable UTC starts first, then local-only, then
	// undated at the end; distance breaks ties, missing distance last.
	SortEvents(merged)

	// 5. Hydration only enriches; it can never fail the request.
	if uc.hydrator != nil {
		uc.hydrator.Hydrate(ctx, merged)
	}

	return domain.AggregationResult{
		Events:        merged,
		Summaries:     summaries,
		CachedOverall: allCached,
	}, nil
}

// dedupeWithinProvider keeps the first occurrence of each ID. Later
// duplicates inside one provider's output are paging artifacts, not real
// repeat events. Cross-provider IDs are never correlated.
func dedupeWithinProvider(events []domain.Event) []domain.Event {
	seen := make(map[string]struct{}, len(events))
	out := events[:0:len(events)]
	for _, ev := range events {
		if _, ok := seen[ev.ID]; ok {
			continue
		}
		seen[ev.ID] = struct{}{}
		out = append(out, ev)
	}
	return out
}

func (uc *AggregateEventsUseCase) applyCutoff(events []domain.Event) []domain.Event {
	kept := events[:0:len(events)]
	for _, ev := range events {
		if uc.cutoff.Excludes(ev) {
			uc.logger.Debug("weekday cutoff excluded event", "event_id", ev.ID, "start", ev.Start.Local)
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}

// sortClass buckets events for ordering: 0 = UTC start, 1 = local-only
// start, 2 = undated.
func sortClass(ev *domain.Event) int {
	if ev.Start.UTC != "" {
		if _, err := time.Parse(time.RFC3339, ev.Start.UTC); err == nil {
			return 0
		}
	}
	if _, ok := ev.StartInstant(); ok {
		return 1
	}
	return 2
}

type eventSortKey struct {
	class   int
	instant time.Time
	hasTime bool
}

type eventSorter struct {
	events []domain.Event
	keys   []eventSortKey
}

func (s *eventSorter) Len() int { return len(s.events) }

func (s *eventSorter) Swap(i, j int) {
	s.events[i], s.events[j] = s.events[j], s.events[i]
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
}

func (s *eventSorter) Less(i, j int) bool {
	ki, kj := s.keys[i], s.keys[j]
	if ki.class != kj.class {
		return ki.class < kj.class
	}
	if ki.hasTime && kj.hasTime && !ki.instant.Equal(kj.instant) {
		return ki.instant.Before(kj.instant)
	}
	if ki.class == 2 && s.events[i].Start.Local != s.events[j].Start.Local {
		return s.events[i].Start.Local < s.events[j].Start.Local
	}
	di, dj := s.events[i].Distance, s.events[j].Distance
	switch {
	case di != nil && dj != nil:
		return *di < *dj
	case di != nil:
		return true
	default:
		return false
	}
}

// SortEvents orders events in place: by start-time class, then start
// ascending (undated events fall back to comparing the raw local string),
// then distance ascending with missing distance last.
func SortEvents(events []domain.Event) {
	s := &eventSorter{events: events, keys: make([]eventSortKey, len(events))}
	for i := range events {
		k := eventSortKey{class: sortClass(&events[i])}
		k.instant, k.hasTime = events[i].StartInstant()
		s.keys[i] = k
	}
	sort.Stable(s)
}
