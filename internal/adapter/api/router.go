package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/V4T54L/gig-scout/internal/adapter/api/handler"
	"github.com/V4T54L/gig-scout/internal/adapter/api/middleware"
	"github.com/V4T54L/gig-scout/internal/adapter/metrics"
	"github.com/V4T54L/gig-scout/internal/usecase"
)

// NewRouter creates and configures the main HTTP router for the event
// aggregation service. Path patterns require Go 1.22+.
func NewRouter(
	logger *slog.Logger,
	aggregateUseCase *usecase.AggregateEventsUseCase,
	previewUseCase *usecase.PreviewProviderUseCase,
	m *metrics.PipelineMetrics,
) http.Handler {
	mux := http.NewServeMux()

	eventsHandler := handler.NewEventsHandler(aggregateUseCase, m, logger)
	previewHandler := handler.NewPreviewHandler(previewUseCase, logger)

	mux.Handle("GET /events", instrument(m, "/events", eventsHandler))
	mux.Handle("GET /providers/{id}/preview", instrument(m, "/providers/preview", previewHandler))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return middleware.Logging(logger)(mux)
}

// statusRecorder captures the status code for the request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request count and latency under a fixed route label.
func instrument(m *metrics.PipelineMetrics, route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
