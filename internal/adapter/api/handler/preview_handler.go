package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/V4T54L/gig-scout/internal/domain"
	"github.com/V4T54L/gig-scout/internal/usecase"
)

const maxPreviewLimit = 100

type previewResponse struct {
	Provider    domain.ProviderSummary `json:"provider"`
	GeneratedAt string                 `json:"generatedAt"`
	Events      []domain.Event         `json:"events"`
}

// PreviewHandler handles the per-provider diagnostic endpoint.
type PreviewHandler struct {
	useCase *usecase.PreviewProviderUseCase
	logger  *slog.Logger
}

// NewPreviewHandler creates a new PreviewHandler.
func NewPreviewHandler(uc *usecase.PreviewProviderUseCase, logger *slog.Logger) *PreviewHandler {
	return &PreviewHandler{useCase: uc, logger: logger}
}

// ServeHTTP processes GET /providers/{id}/preview requests.
func (h *PreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("id")
	q, ok := parseQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "lat and lon are required and must be valid numbers")
		return
	}

	limit := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = min(max(v, 1), maxPreviewLimit)
	}

	events, summary, err := h.useCase.Preview(r.Context(), providerID, q, limit)
	if err != nil {
		if errors.Is(err, usecase.ErrUnknownProvider) {
			writeError(w, http.StatusNotFound, "unknown_provider", "no provider with id "+providerID)
			return
		}
		// The summary already classifies the failure; surface it so the
		// endpoint stays useful for diagnosing a broken feed.
		writeJSON(w, http.StatusBadGateway, previewResponse{
			Provider:    summary,
			GeneratedAt: q.Now.UTC().Format(time.RFC3339),
			Events:      []domain.Event{},
		})
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		Provider:    summary,
		GeneratedAt: q.Now.UTC().Format(time.RFC3339),
		Events:      events,
	})
}
