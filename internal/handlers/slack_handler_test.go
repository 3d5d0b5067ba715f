package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/hotdog/internal/logging"
	"github.com/telhawk-systems/hotdog/internal/models"
	"github.com/telhawk-systems/hotdog/internal/service"
	"github.com/telhawk-systems/hotdog/internal/validator"
)

type mockProcessor struct {
	handleFunc func(ctx context.Context, ev *models.InboundEvent) (*service.Result, error)
	events     []*models.InboundEvent
}

func (m *mockProcessor) HandleEvent(ctx context.Context, ev *models.InboundEvent) (*service.Result, error) {
	m.events = append(m.events, ev)
	if m.handleFunc != nil {
		return m.handleFunc(ctx, ev)
	}
	return &service.Result{Decision: validator.Ignored(validator.ReasonNotFileShare)}, nil
}

type mockRateLimiter struct {
	allowFunc func(ctx context.Context, key string) (bool, error)
	keys      []string
}

func (m *mockRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	m.keys = append(m.keys, key)
	if m.allowFunc != nil {
		return m.allowFunc(ctx, key)
	}
	return true, nil
}

func (m *mockRateLimiter) Close() error {
	return nil
}

func newHandler(p EventProcessor, rl *mockRateLimiter, opts Options) *SlackHandler {
	if rl == nil {
		return NewSlackHandler(p, nil, opts, logging.Discard())
	}
	return NewSlackHandler(p, rl, opts, logging.Discard())
}

func post(h *SlackHandler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.HandleEvent(rr, req)
	return rr
}

const fileShareBody = `{"token":"T","team_id":"T0001","event":{"subtype":"file_share","channel":"C1","files":[{"url_private":"u","mimetype":"image/png","size":1000,"id":"f1"}]}}`

func TestHandleEvent_Challenge(t *testing.T) {
	p := &mockProcessor{
		handleFunc: func(_ context.Context, ev *models.InboundEvent) (*service.Result, error) {
			require.NotNil(t, ev.Challenge)
			return &service.Result{Decision: validator.Challenge(*ev.Challenge)}, nil
		},
	}
	h := newHandler(p, nil, Options{})

	rr := post(h, `{"token":"T","challenge":"abc123","type":"url_verification"}`, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, map[string]string{"challenge": "abc123"}, resp)
}

func TestHandleEvent_Processed(t *testing.T) {
	p := &mockProcessor{
		handleFunc: func(_ context.Context, ev *models.InboundEvent) (*service.Result, error) {
			return &service.Result{
				Decision: validator.Classify(ev.Event.Channel, ev.Event.Files[0]),
				Verdict:  models.VerdictPositive,
				Message:  &models.OutgoingMessage{Channel: "C1", Text: "Hotdog ✅"},
			}, nil
		},
	}
	h := newHandler(p, nil, Options{})

	rr := post(h, fileShareBody, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{}`, rr.Body.String())
	require.Len(t, p.events, 1)
	assert.Equal(t, "C1", p.events[0].Event.Channel)
	assert.Equal(t, int64(1000), p.events[0].Event.Files[0].Size)
}

func TestHandleEvent_Ignored(t *testing.T) {
	h := newHandler(&mockProcessor{}, nil, Options{})

	rr := post(h, `{"token":"wrong"}`, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{}`, rr.Body.String())
}

func TestHandleEvent_ProcessingError(t *testing.T) {
	for _, sentinel := range []error{service.ErrDownload, service.ErrClassify, service.ErrPost} {
		t.Run(sentinel.Error(), func(t *testing.T) {
			p := &mockProcessor{
				handleFunc: func(context.Context, *models.InboundEvent) (*service.Result, error) {
					return &service.Result{}, fmt.Errorf("%w: boom", sentinel)
				},
			}
			h := newHandler(p, nil, Options{})

			rr := post(h, fileShareBody, nil)
			assert.Equal(t, http.StatusInternalServerError, rr.Code)
		})
	}
}

func TestHandleEvent_MethodNotAllowed(t *testing.T) {
	h := newHandler(&mockProcessor{}, nil, Options{})

	req := httptest.NewRequest(http.MethodGet, "/slack/events", nil)
	rr := httptest.NewRecorder()
	h.HandleEvent(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleEvent_InvalidJSON(t *testing.T) {
	p := &mockProcessor{}
	h := newHandler(p, nil, Options{})

	rr := post(h, `{"token":`, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, p.events)
}

func TestHandleEvent_BodyTooLarge(t *testing.T) {
	p := &mockProcessor{}
	h := newHandler(p, nil, Options{MaxBodyBytes: 64})

	rr := post(h, `{"token":"T","padding":"`+strings.Repeat("x", 200)+`"}`, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Empty(t, p.events)
}

func signBody(secret string, ts int64, body string) map[string]string {
	stamp := strconv.FormatInt(ts, 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + stamp + ":" + body))
	return map[string]string{
		"X-Slack-Request-Timestamp": stamp,
		"X-Slack-Signature":         "v0=" + hex.EncodeToString(mac.Sum(nil)),
	}
}

func TestHandleEvent_Signature(t *testing.T) {
	p := &mockProcessor{}
	h := newHandler(p, nil, Options{SigningSecret: "s3cret"})

	rr := post(h, fileShareBody, signBody("s3cret", time.Now().Unix(), fileShareBody))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = post(h, fileShareBody, signBody("wrong", time.Now().Unix(), fileShareBody))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = post(h, fileShareBody, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = post(h, fileShareBody, signBody("s3cret", time.Now().Add(-time.Hour).Unix(), fileShareBody))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	assert.Len(t, p.events, 1)
}

func TestHandleEvent_RetryHeaderMarksEvent(t *testing.T) {
	p := &mockProcessor{}
	h := newHandler(p, nil, Options{})

	rr := post(h, fileShareBody, map[string]string{RetryHeader: "1", "X-Slack-Retry-Reason": "http_timeout"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = post(h, fileShareBody, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	require.Len(t, p.events, 2)
	assert.True(t, p.events[0].Retry)
	assert.False(t, p.events[1].Retry)
}

func TestHandleEvent_RetryFieldNotReadFromBody(t *testing.T) {
	p := &mockProcessor{}
	h := newHandler(p, nil, Options{})

	post(h, `{"token":"T","Retry":true}`, nil)

	require.Len(t, p.events, 1)
	assert.False(t, p.events[0].Retry)
}

func TestHandleEvent_RateLimitedByTeam(t *testing.T) {
	rl := &mockRateLimiter{
		allowFunc: func(_ context.Context, key string) (bool, error) {
			return !strings.HasPrefix(key, "team:"), nil
		},
	}
	p := &mockProcessor{}
	h := newHandler(p, rl, Options{})

	rr := post(h, fileShareBody, nil)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, []string{"team:T0001"}, rl.keys)
	assert.Empty(t, p.events)
}

func TestHandleEvent_RateLimitFallsBackToIP(t *testing.T) {
	rl := &mockRateLimiter{}
	h := newHandler(&mockProcessor{}, rl, Options{})

	rr := post(h, `{"token":"T"}`, map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"ip:1.2.3.4"}, rl.keys)
}

func TestHandleEvent_RateLimitError(t *testing.T) {
	rl := &mockRateLimiter{
		allowFunc: func(context.Context, string) (bool, error) {
			return false, errors.New("rate limiter error")
		},
	}
	p := &mockProcessor{}
	h := newHandler(p, rl, Options{})

	rr := post(h, fileShareBody, nil)

	assert.Equal(t, http.StatusOK, rr.Code, "limiter errors fail open")
	assert.Len(t, p.events, 1)
}

func TestHealth(t *testing.T) {
	h := newHandler(&mockProcessor{}, nil, Options{})
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())
}

func TestReady(t *testing.T) {
	rr := httptest.NewRecorder()
	Ready(map[string]ReadyCheck{
		"redis": func(context.Context) error { return nil },
	})(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	Ready(map[string]ReadyCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})(rr, httptest.NewRequest(http.MethodGet, "/readyz", bytes.NewReader(nil)))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "redis")
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/slack/events", nil)
	req.RemoteAddr = "9.10.11.12:12345"
	assert.Equal(t, "9.10.11.12:12345", getClientIP(req))

	req.Header.Set("X-Real-IP", "5.6.7.8")
	assert.Equal(t, "5.6.7.8", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	assert.Equal(t, "1.2.3.4", getClientIP(req))
}
