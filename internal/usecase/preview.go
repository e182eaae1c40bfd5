package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/V4T54L/gig-scout/internal/domain"
)

const defaultPreviewLimit = 10

// PreviewProviderUseCase fetches a capped, sorted sample from a single
// provider for diagnostics. It shares the provider's normal cache path and
// has no other side effects.
type PreviewProviderUseCase struct {
	handles []ProviderHandle
	timeout time.Duration
	logger  *slog.Logger
}

// NewPreviewProviderUseCase creates the preview use case over the same
// handles the orchestrator uses.
func NewPreviewProviderUseCase(handles []ProviderHandle, timeout time.Duration, logger *slog.Logger) *PreviewProviderUseCase {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &PreviewProviderUseCase{handles: handles, timeout: timeout, logger: logger}
}

// ErrUnknownProvider is returned when the requested provider ID is not
// configured or not enabled.
var ErrUnknownProvider = fmt.Errorf("unknown provider")

// Preview runs one provider's fetch and returns up to limit events in
// global sort order, with the provider's summary.
func (uc *PreviewProviderUseCase) Preview(ctx context.Context, providerID string, q domain.QueryContext, limit int) ([]domain.Event, domain.ProviderSummary, error) {
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	if q.Now.IsZero() {
		q.Now = time.Now().UTC()
	}

	var handle *ProviderHandle
	for i := range uc.handles {
		if uc.handles[i].Config.ID == providerID {
			handle = &uc.handles[i]
			break
		}
	}
	if handle == nil {
		return nil, domain.ProviderSummary{}, ErrUnknownProvider
	}

	fetchCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	summary := domain.ProviderSummary{ID: handle.Config.ID, Name: handle.Config.Name}
	res, err := handle.Provider.Fetch(fetchCtx, q)
	if err != nil {
		summary.Error = err.Error()
		summary.Kind = domain.KindOf(err)
		uc.logger.Warn("provider preview failed", "provider", providerID, "error", err)
		return nil, summary, err
	}

	events := dedupeWithinProvider(res.Events)
	SortEvents(events)
	if len(events) > limit {
		events = events[:limit]
	}

	summary.OK = true
	summary.Total = len(events)
	summary.Cached = res.Cached
	summary.Segments = res.Segments
	return events, summary, nil
}
