// Package imagery implements the page-visiting image finder used by event
// hydration: a lightweight HTML fetch looking for Open-Graph style images,
// with an optional rendered-page fallback for script-heavy listing sites.
package imagery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/V4T54L/gig-scout/internal/domain"
	"github.com/V4T54L/gig-scout/internal/textutil"
)

const (
	defaultFetchTimeout = 6 * time.Second
	maxPageBytes        = 2 << 20
	// maxLinks bounds how many of an event's links one lookup may visit.
	maxLinks = 2
)

// Finder implements domain.ImageFinder. A nil renderer disables the
// rendered-page fallback; the plain fetch still runs.
type Finder struct {
	client   *http.Client
	renderer domain.Renderer
	logger   *slog.Logger
}

// NewFinder creates a Finder with its own conservative HTTP client.
func NewFinder(renderer domain.Renderer, logger *slog.Logger) *Finder {
	return &Finder{
		client:   &http.Client{Timeout: defaultFetchTimeout},
		renderer: renderer,
		logger:   logger,
	}
}

// FindImage visits the event's links in order and returns the first usable
// image URL. A page whose best candidate looks like a venue logo or other
// placeholder is retried through the renderer, since real artwork on such
// pages is often injected by scripts.
func (f *Finder) FindImage(ctx context.Context, links []string) (string, error) {
	if len(links) > maxLinks {
		links = links[:maxLinks]
	}
	var lastErr error
	for _, link := range links {
		doc, err := f.fetch(ctx, link)
		if err != nil {
			lastErr = err
			continue
		}

		img := textutil.FindImageURL(doc, link)
		if img != "" && !textutil.IsPlaceholderImage(img) {
			return img, nil
		}

		if f.renderer == nil {
			continue
		}
		rendered, err := f.renderer.RenderHTML(ctx, link)
		if err != nil {
			f.logger.Debug("rendered image lookup failed", "url", link, "error", err)
			continue
		}
		img = textutil.FindImageURL(rendered, link)
		if img != "" && !textutil.IsPlaceholderImage(img) {
			return img, nil
		}
	}
	return "", lastErr
}

func (f *Finder) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
