// Package render provides a headless-Chromium page renderer for sites whose
// event listings only exist after client-side scripts run.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	defaultRenderTimeout = 20 * time.Second
	// settleDelay gives late paints and deferred fetches a moment to land
	// after the DOM reports ready.
	settleDelay = 500 * time.Millisecond
)

// ChromiumRenderer renders pages in a shared headless browser. The browser
// is launched on first use, reused across requests and torn down by
// Shutdown; launching Chromium per request is far too slow for a
// best-effort enrichment path.
type ChromiumRenderer struct {
	timeout time.Duration
	logger  *slog.Logger

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc
}

// NewChromiumRenderer creates a renderer. No browser is started until the
// first RenderHTML call.
func NewChromiumRenderer(timeout time.Duration, logger *slog.Logger) *ChromiumRenderer {
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	return &ChromiumRenderer{timeout: timeout, logger: logger}
}

// browser returns the shared browser context, launching Chromium if needed.
func (r *ChromiumRenderer) browser() (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browserCtx != nil && r.browserCtx.Err() == nil {
		return r.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	r.browserCtx, r.browserStop = chromedp.NewContext(r.allocCtx)

	// Run an empty task list so the browser process starts now and launch
	// failures surface here instead of on the first navigation.
	if err := chromedp.Run(r.browserCtx); err != nil {
		r.teardownLocked()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	r.logger.Info("launched shared chromium renderer")
	return r.browserCtx, nil
}

// RenderHTML navigates to url in a fresh tab, waits for the document body
// and returns the post-script HTML.
func (r *ChromiumRenderer) RenderHTML(ctx context.Context, url string) (string, error) {
	browserCtx, err := r.browser()
	if err != nil {
		return "", err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	runCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(runCtx, tasks); err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}

// Shutdown tears down the shared browser. Safe to call without a prior
// render and safe to call twice.
func (r *ChromiumRenderer) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browserCtx == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.browserStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	r.teardownLocked()
	r.logger.Info("chromium renderer shut down")
	return nil
}

func (r *ChromiumRenderer) teardownLocked() {
	if r.browserStop != nil {
		r.browserStop()
	}
	if r.allocCancel != nil {
		r.allocCancel()
	}
	r.browserCtx, r.browserStop = nil, nil
	r.allocCtx, r.allocCancel = nil, nil
}
