package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/V4T54L/gig-scout/internal/domain"
)

// fetcher is the shared outbound HTTP path: one client per adapter, a
// per-provider rate budget and a per-call deadline. Every adapter's network
// access goes through get so the error taxonomy stays uniform.
type fetcher struct {
	providerID string
	client     *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
}

func newFetcher(providerID string, deps Deps) *fetcher {
	timeout := deps.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &fetcher{
		providerID: providerID,
		client:     newHTTPClient(timeout),
		limiter:    newLimiter(deps.RatePerSecond),
		timeout:    timeout,
	}
}

// get performs one bounded GET and returns status plus body. Errors are
// already classified as *domain.ProviderError.
func (f *fetcher) get(ctx context.Context, url string, headers map[string]string) (int, string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, "", domain.NewProviderError(f.providerID, domain.ErrKindTimeout, "rate limiter wait aborted", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", domain.NewProviderError(f.providerID, domain.ErrKindConfiguration, "invalid request URL", err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		kind := domain.ErrKindUpstream
		if errors.Is(err, context.DeadlineExceeded) {
			kind = domain.ErrKindTimeout
		}
		return 0, "", domain.NewProviderError(f.providerID, kind, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, "", domain.NewProviderError(f.providerID, domain.ErrKindUpstream, "reading response body", err)
	}

	if resp.StatusCode/100 != 2 {
		return resp.StatusCode, string(body), domain.NewProviderError(
			f.providerID, domain.ErrKindUpstream,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil,
		)
	}
	return resp.StatusCode, string(body), nil
}
