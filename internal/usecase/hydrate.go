package usecase

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/V4T54L/gig-scout/internal/domain"
)

const hydrateWorkers = 3

// HydrateImagesUseCase backfills images for events that arrived without
// one. It is strictly best-effort: a bounded quota of page fetches is
// shared across the request, and any failure leaves the event as-is.
type HydrateImagesUseCase struct {
	finder domain.ImageFinder
	quota  int
	logger *slog.Logger
}

// NewHydrateImagesUseCase creates the hydrator. quota caps successful
// lookups per request.
func NewHydrateImagesUseCase(finder domain.ImageFinder, quota int, logger *slog.Logger) *HydrateImagesUseCase {
	return &HydrateImagesUseCase{finder: finder, quota: quota, logger: logger}
}

// Hydrate fills in images for events lacking one, in place, until the
// quota is exhausted. The quota is decremented only on success so a run of
// dead links does not starve later events of their chance.
func (uc *HydrateImagesUseCase) Hydrate(ctx context.Context, events []domain.Event) {
	if uc.finder == nil || uc.quota <= 0 {
		return
	}

	var remaining atomic.Int64
	remaining.Store(int64(uc.quota))

	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < hydrateWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				uc.hydrateOne(ctx, &events[i], &remaining)
			}
		}()
	}

	for i := range events {
		if len(events[i].Images) > 0 {
			continue
		}
		if remaining.Load() <= 0 {
			break
		}
		if links := candidateLinks(&events[i]); len(links) == 0 {
			continue
		}
		select {
		case work <- i:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(work)
	wg.Wait()
}

func (uc *HydrateImagesUseCase) hydrateOne(ctx context.Context, ev *domain.Event, remaining *atomic.Int64) {
	if remaining.Load() <= 0 {
		return
	}
	url, err := uc.finder.FindImage(ctx, candidateLinks(ev))
	if err != nil {
		uc.logger.Debug("image hydration lookup failed", "event_id", ev.ID, "error", err)
		return
	}
	if url == "" {
		return
	}
	// Claim a quota slot before committing the result. Another worker may
	// have spent the last slot while this fetch was in flight; in that case
	// the result is discarded and the quota stays exact.
	for {
		cur := remaining.Load()
		if cur <= 0 {
			return
		}
		if remaining.CompareAndSwap(cur, cur-1) {
			break
		}
	}
	ev.Images = []domain.Image{{URL: url, Fallback: true}}
}

func candidateLinks(ev *domain.Event) []string {
	links := make([]string, 0, 1+len(ev.AlternateLinks))
	if ev.URL != "" {
		links = append(links, ev.URL)
	}
	links = append(links, ev.AlternateLinks...)
	return links
}
