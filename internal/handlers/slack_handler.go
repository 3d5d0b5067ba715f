package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/telhawk-systems/hotdog/internal/httputil"
	"github.com/telhawk-systems/hotdog/internal/logging"
	"github.com/telhawk-systems/hotdog/internal/metrics"
	"github.com/telhawk-systems/hotdog/internal/models"
	"github.com/telhawk-systems/hotdog/internal/ratelimit"
	"github.com/telhawk-systems/hotdog/internal/service"
	"github.com/telhawk-systems/hotdog/internal/slackclient"
	"github.com/telhawk-systems/hotdog/internal/validator"
)

// RetryHeader is set by Slack on redelivered events.
const RetryHeader = "X-Slack-Retry-Num"

// EventProcessor handles one decoded Slack event.
type EventProcessor interface {
	HandleEvent(ctx context.Context, ev *models.InboundEvent) (*service.Result, error)
}

type Options struct {
	SigningSecret string
	MaxBodyBytes  int64
}

type SlackHandler struct {
	processor   EventProcessor
	rateLimiter ratelimit.RateLimiter
	opts        Options
	logger      *logging.Logger
}

func NewSlackHandler(processor EventProcessor, rateLimiter ratelimit.RateLimiter, opts Options, logger *logging.Logger) *SlackHandler {
	if rateLimiter == nil {
		rateLimiter = &ratelimit.NoOpRateLimiter{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SlackHandler{
		processor:   processor,
		rateLimiter: rateLimiter,
		opts:        opts,
		logger:      logger,
	}
}

// HandleEvent serves POST /slack/events.
func (h *SlackHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	log := h.logger.WithContext(r.Context())

	body, err := h.readBody(w, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	metrics.RequestBodyBytes.Observe(float64(len(body)))

	if h.opts.SigningSecret != "" {
		if err := slackclient.VerifySignature(r.Header, body, h.opts.SigningSecret); err != nil {
			metrics.SignatureFailures.Inc()
			log.Warn("rejected request with invalid signature", logging.Error(err))
			httputil.WriteError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	var ev models.InboundEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ev.Retry = r.Header.Get(RetryHeader) != ""

	key := rateLimitKey(&ev, r)
	allowed, err := h.rateLimiter.Allow(r.Context(), key)
	if err != nil {
		log.Warn("rate limiter unavailable, allowing request", logging.Error(err))
	} else if !allowed {
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	result, err := h.processor.HandleEvent(r.Context(), &ev)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to process event")
		return
	}

	if result != nil && result.Decision.Kind == validator.KindChallenge {
		httputil.WriteJSON(w, http.StatusOK, models.ChallengeResponse{Challenge: result.Decision.Challenge})
		return
	}

	httputil.WriteOK(w)
}

func (h *SlackHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// ReadyCheck reports whether a dependency is usable.
type ReadyCheck func(ctx context.Context) error

// Ready returns a handler that runs each check and reports 503 on the first
// failure.
func Ready(checks map[string]ReadyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "not ready",
					"check":  name,
					"error":  err.Error(),
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
		})
	}
}

func (h *SlackHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	reader := io.Reader(r.Body)
	if h.opts.MaxBodyBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	}
	return io.ReadAll(reader)
}

func rateLimitKey(ev *models.InboundEvent, r *http.Request) string {
	if ev.TeamID != "" {
		return "team:" + ev.TeamID
	}
	return "ip:" + getClientIP(r)
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
