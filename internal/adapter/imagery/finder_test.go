package imagery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubRenderer struct {
	html  string
	err   error
	calls int
}

func (s *stubRenderer) RenderHTML(ctx context.Context, url string) (string, error) {
	s.calls++
	return s.html, s.err
}

func (s *stubRenderer) Shutdown(ctx context.Context) error { return nil }

func newTestFinder(renderer *stubRenderer) *Finder {
	f := NewFinder(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if renderer != nil {
		f.renderer = renderer
	}
	return f
}

func TestFindImageOpenGraph(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta property="og:image" content="https://cdn.example/show.jpg"></head><body></body></html>`)
	}))
	defer srv.Close()

	img, err := newTestFinder(nil).FindImage(context.Background(), []string{srv.URL + "/show"})
	if err != nil {
		t.Fatalf("FindImage: %v", err)
	}
	if img != "https://cdn.example/show.jpg" {
		t.Errorf("img = %q", img)
	}
}

func TestFindImagePlaceholderTriggersRender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta property="og:image" content="https://cdn.example/venue-logo.png"></head></html>`)
	}))
	defer srv.Close()

	renderer := &stubRenderer{
		html: `<html><head><meta property="og:image" content="https://cdn.example/real-poster.jpg"></head></html>`,
	}
	img, err := newTestFinder(renderer).FindImage(context.Background(), []string{srv.URL + "/show"})
	if err != nil {
		t.Fatalf("FindImage: %v", err)
	}
	if img != "https://cdn.example/real-poster.jpg" {
		t.Errorf("img = %q, want rendered-page image", img)
	}
	if renderer.calls != 1 {
		t.Errorf("renderer calls = %d, want 1", renderer.calls)
	}
}

func TestFindImageNothingFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>no pictures here</p></body></html>`)
	}))
	defer srv.Close()

	img, err := newTestFinder(nil).FindImage(context.Background(), []string{srv.URL + "/show"})
	if err != nil {
		t.Fatalf("FindImage: %v", err)
	}
	if img != "" {
		t.Errorf("img = %q, want empty", img)
	}
}

func TestFindImageUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	img, err := newTestFinder(nil).FindImage(context.Background(), []string{srv.URL + "/show"})
	if err == nil {
		t.Fatal("expected error from 403 page")
	}
	if img != "" {
		t.Errorf("img = %q, want empty", img)
	}
}
