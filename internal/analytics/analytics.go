package analytics

import (
	"time"

	"github.com/posthog/posthog-go"

	"github.com/telhawk-systems/hotdog/internal/config"
	"github.com/telhawk-systems/hotdog/internal/models"
)

// EventDetection is the PostHog event name captured per classified image.
const EventDetection = "hotdog_detection"

// Detection describes one classified image.
type Detection struct {
	TeamID  string
	Channel string
	FileID  string
	Backend string
	Verdict models.Verdict
	Labels  int
	Latency time.Duration
	Failed  bool
}

type Recorder interface {
	RecordDetection(d Detection) error
	Close() error
}

// New returns a PostHog monitor when an API key is configured and a
// NoOpRecorder otherwise.
func New(cfg config.AnalyticsConfig) (Recorder, error) {
	if cfg.PosthogAPIKey == "" {
		return NoOpRecorder{}, nil
	}
	return NewPosthogMonitor(cfg.PosthogAPIKey, cfg.PosthogEndpoint)
}

type PosthogMonitor struct {
	client posthog.Client
}

func NewPosthogMonitor(apiKey, endpoint string) (*PosthogMonitor, error) {
	client, err := posthog.NewWithConfig(apiKey, posthog.Config{Endpoint: endpoint})
	if err != nil {
		return nil, err
	}
	return &PosthogMonitor{client: client}, nil
}

// RecordDetection enqueues the event; delivery happens in the background.
func (p *PosthogMonitor) RecordDetection(d Detection) error {
	return p.client.Enqueue(posthog.Capture{
		DistinctId: distinctID(d),
		Event:      EventDetection,
		Properties: properties(d),
	})
}

// Close flushes queued events.
func (p *PosthogMonitor) Close() error {
	return p.client.Close()
}

func distinctID(d Detection) string {
	if d.TeamID != "" {
		return d.TeamID
	}
	return d.Channel
}

func properties(d Detection) posthog.Properties {
	return posthog.NewProperties().
		Set("channel", d.Channel).
		Set("file_id", d.FileID).
		Set("backend", d.Backend).
		Set("verdict", string(d.Verdict)).
		Set("labels", d.Labels).
		Set("latency_ms", d.Latency.Milliseconds()).
		Set("is_error", d.Failed)
}

type NoOpRecorder struct{}

func (NoOpRecorder) RecordDetection(Detection) error { return nil }
func (NoOpRecorder) Close() error                    { return nil }
