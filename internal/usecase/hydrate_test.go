package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/V4T54L/gig-scout/internal/domain"
	"github.com/V4T54L/gig-scout/internal/domain/mocks"
)

func TestHydrateFillsMissingImages(t *testing.T) {
	finder := &mocks.MockImageFinder{ByLink: map[string]string{
		"https://venue.example/a": "https://cdn.example/a.jpg",
		"https://venue.example/b": "https://cdn.example/b.jpg",
	}}
	events := []domain.Event{
		{ID: "a", URL: "https://venue.example/a"},
		{ID: "has-image", URL: "https://venue.example/x", Images: []domain.Image{{URL: "https://cdn.example/existing.jpg"}}},
		{ID: "b", URL: "https://venue.example/b"},
		{ID: "no-links"},
	}

	uc := NewHydrateImagesUseCase(finder, 5, testLogger())
	uc.Hydrate(context.Background(), events)

	if len(events[0].Images) != 1 || events[0].Images[0].URL != "https://cdn.example/a.jpg" {
		t.Errorf("event a not hydrated: %+v", events[0].Images)
	}
	if !events[0].Images[0].Fallback {
		t.Error("hydrated image should be marked as a fallback")
	}
	if events[1].Images[0].URL != "https://cdn.example/existing.jpg" {
		t.Error("existing image must not be replaced")
	}
	if len(events[2].Images) != 1 {
		t.Error("event b not hydrated")
	}
	if len(events[3].Images) != 0 {
		t.Error("link-less event should be skipped")
	}
	for _, l := range finder.Lookups {
		if l == "https://venue.example/x" {
			t.Error("finder should never be asked about events that already have images")
		}
	}
}

func TestHydrateQuota(t *testing.T) {
	byLink := make(map[string]string)
	events := make([]domain.Event, 6)
	for i := range events {
		url := "https://venue.example/" + string(rune('a'+i))
		byLink[url] = url + ".jpg"
		events[i] = domain.Event{ID: url, URL: url}
	}

	uc := NewHydrateImagesUseCase(&mocks.MockImageFinder{ByLink: byLink}, 2, testLogger())
	uc.Hydrate(context.Background(), events)

	hydrated := 0
	for _, ev := range events {
		if len(ev.Images) > 0 {
			hydrated++
		}
	}
	if hydrated != 2 {
		t.Errorf("hydrated %d events, quota allows exactly 2", hydrated)
	}
}

func TestHydrateFailuresDoNotSpendQuota(t *testing.T) {
	finder := &mocks.MockImageFinder{Err: errors.New("connect refused")}
	events := []domain.Event{{ID: "a", URL: "https://venue.example/a"}}

	uc := NewHydrateImagesUseCase(finder, 1, testLogger())
	uc.Hydrate(context.Background(), events)

	if len(events[0].Images) != 0 {
		t.Error("failed lookup must leave the event untouched")
	}
}

func TestHydrateDisabled(t *testing.T) {
	events := []domain.Event{{ID: "a", URL: "https://venue.example/a"}}

	NewHydrateImagesUseCase(nil, 5, testLogger()).Hydrate(context.Background(), events)
	NewHydrateImagesUseCase(&mocks.MockImageFinder{}, 0, testLogger()).Hydrate(context.Background(), events)

	if len(events[0].Images) != 0 {
		t.Error("disabled hydrator must be a no-op")
	}
}
