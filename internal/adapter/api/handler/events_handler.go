package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/V4T54L/gig-scout/internal/adapter/metrics"
	"github.com/V4T54L/gig-scout/internal/domain"
	"github.com/V4T54L/gig-scout/internal/usecase"
)

// Query parameter bounds. Out-of-range values are clamped rather than
// rejected; only missing or unparsable coordinates are a client error.
const (
	minRadiusMiles     = 1.0
	maxRadiusMiles     = 150.0
	defaultRadiusMiles = 50.0
	minLookaheadDays   = 1
	maxLookaheadDays   = 60
	defaultLookahead   = 14
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type eventsResponse struct {
	Source        string                   `json:"source"`
	GeneratedAt   string                   `json:"generatedAt"`
	Cached        bool                     `json:"cached"`
	RadiusMiles   float64                  `json:"radiusMiles"`
	LookaheadDays int                      `json:"lookaheadDays"`
	Events        []domain.Event           `json:"events"`
	Sources       []domain.ProviderSummary `json:"sources"`
}

// EventsHandler handles the aggregation endpoint.
type EventsHandler struct {
	useCase *usecase.AggregateEventsUseCase
	metrics *metrics.PipelineMetrics
	logger  *slog.Logger
}

// NewEventsHandler creates a new EventsHandler. metrics may be nil in tests.
func NewEventsHandler(uc *usecase.AggregateEventsUseCase, m *metrics.PipelineMetrics, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{useCase: uc, metrics: m, logger: logger}
}

// ServeHTTP processes GET /events requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q, ok := parseQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "lat and lon are required and must be valid numbers")
		return
	}

	result, err := h.useCase.Aggregate(r.Context(), q)
	if err != nil {
		h.recordSummaries(result.Summaries, 0)
		if errors.Is(err, domain.ErrMissingCredentials) {
			writeError(w, http.StatusInternalServerError, "missing_credentials", "a required provider credential is not configured")
			return
		}
		h.logger.Error("aggregation failed across all providers", "error", err)
		writeJSON(w, http.StatusBadGateway, struct {
			errorResponse
			Sources []domain.ProviderSummary `json:"sources"`
		}{
			errorResponse: errorResponse{Error: errorBody{Code: "all_providers_failed", Message: "every event provider failed"}},
			Sources:       result.Summaries,
		})
		return
	}

	h.recordSummaries(result.Summaries, len(result.Events))
	writeJSON(w, http.StatusOK, eventsResponse{
		Source:        "aggregate",
		GeneratedAt:   q.Now.UTC().Format(time.RFC3339),
		Cached:        result.CachedOverall,
		RadiusMiles:   q.RadiusMiles,
		LookaheadDays: q.LookaheadDays,
		Events:        result.Events,
		Sources:       result.Summaries,
	})
}

func (h *EventsHandler) recordSummaries(summaries []domain.ProviderSummary, eventCount int) {
	if h.metrics == nil {
		return
	}
	for _, s := range summaries {
		h.metrics.RecordProvider(s.ID, metrics.Outcome(s.OK, s.Cached, string(s.Kind)), s.Total)
	}
	h.metrics.EventsReturned.Observe(float64(eventCount))
}

// parseQuery extracts and clamps the query parameters shared by the events
// and preview endpoints.
func parseQuery(r *http.Request) (domain.QueryContext, bool) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	// ParseFloat accepts "NaN", and NaN slips through range comparisons.
	if latErr != nil || lonErr != nil || math.IsNaN(lat) || math.IsNaN(lon) ||
		lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return domain.QueryContext{}, false
	}

	radius := defaultRadiusMiles
	if v, err := strconv.ParseFloat(r.URL.Query().Get("radius"), 64); err == nil {
		radius = min(max(v, minRadiusMiles), maxRadiusMiles)
	}
	days := defaultLookahead
	if v, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil {
		days = min(max(v, minLookaheadDays), maxLookaheadDays)
	}

	return domain.QueryContext{
		Lat:           lat,
		Lon:           lon,
		RadiusMiles:   radius,
		LookaheadDays: days,
		Now:           time.Now().UTC(),
	}, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}
