package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/hotdog/internal/handlers"
	"github.com/telhawk-systems/hotdog/internal/logging"
	"github.com/telhawk-systems/hotdog/internal/middleware"
)

// EventsPath is the Slack Events API request URL path.
const EventsPath = "/slack/events"

// NewRouter constructs a ServeMux with the Slack and operational routes
// registered. ready may be nil.
func NewRouter(h *handlers.SlackHandler, ready http.HandlerFunc, logger *logging.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(EventsPath, h.HandleEvent)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	if ready == nil {
		ready = handlers.Ready(nil)
	}
	mux.HandleFunc("/readyz", ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	if logger == nil {
		logger = logging.Default()
	}
	return middleware.RequestID(accessLog(logger, mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func accessLog(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			return
		}
		logger.WithContext(r.Context()).Info("request completed",
			logging.Method(r.Method),
			logging.Path(r.URL.Path),
			logging.Status(rec.status),
			logging.Duration(time.Since(start)),
		)
	})
}
