package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/telhawk-systems/hotdog/internal/analytics"
	"github.com/telhawk-systems/hotdog/internal/logging"
	"github.com/telhawk-systems/hotdog/internal/metrics"
	"github.com/telhawk-systems/hotdog/internal/models"
	"github.com/telhawk-systems/hotdog/internal/validator"
)

var (
	ErrDownload = errors.New("download failed")
	ErrClassify = errors.New("classification failed")
	ErrPost     = errors.New("post message failed")
)

// Downloader fetches a private file with the bot's bearer credential.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

type Classifier interface {
	Classify(ctx context.Context, image []byte) (*models.ClassificationResult, error)
}

type Messenger interface {
	PostMessage(ctx context.Context, msg models.OutgoingMessage) error
}

// Options controls the decision rule and reply texts.
type Options struct {
	TargetLabel  string
	PositiveText string
	NegativeText string
	Backend      string
}

func (o Options) withDefaults() Options {
	if o.TargetLabel == "" {
		o.TargetLabel = "Hot Dog"
	}
	if o.PositiveText == "" {
		o.PositiveText = "Hotdog ✅"
	}
	if o.NegativeText == "" {
		o.NegativeText = "Not hotdog ❌"
	}
	return o
}

// Result records what HandleEvent did with one event.
type Result struct {
	Decision validator.Decision
	Labels   []models.Label
	Verdict  models.Verdict
	Message  *models.OutgoingMessage
}

// DetectorService validates Slack file-share events and replies with the
// classification verdict. It keeps no per-event state and is safe for
// concurrent use.
type DetectorService struct {
	validator  *validator.EventValidator
	downloader Downloader
	classifier Classifier
	messenger  Messenger
	recorder   analytics.Recorder
	logger     *logging.Logger
	opts       Options
}

func NewDetectorService(v *validator.EventValidator, d Downloader, c Classifier, m Messenger, opts Options) *DetectorService {
	return &DetectorService{
		validator:  v,
		downloader: d,
		classifier: c,
		messenger:  m,
		recorder:   analytics.NoOpRecorder{},
		logger:     logging.Default(),
		opts:       opts.withDefaults(),
	}
}

// WithLogger replaces the service logger.
func (s *DetectorService) WithLogger(l *logging.Logger) *DetectorService {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithRecorder attaches an analytics recorder.
func (s *DetectorService) WithRecorder(r analytics.Recorder) *DetectorService {
	if r != nil {
		s.recorder = r
	}
	return s
}

// HandleEvent runs one event through validation, download, classification
// and reply. Ignored events and challenges return a nil error. Download,
// classification and post failures are logged, then returned wrapped in
// ErrDownload, ErrClassify or ErrPost.
func (s *DetectorService) HandleEvent(ctx context.Context, ev *models.InboundEvent) (*Result, error) {
	decision := s.validator.Evaluate(ev)
	result := &Result{Decision: decision}
	log := s.logger.WithContext(ctx)
	if ev != nil && ev.EventID != "" {
		log = log.With(logging.EventID(ev.EventID))
	}

	metrics.EventsTotal.WithLabelValues(decision.Kind.String(), string(decision.Reason)).Inc()

	switch decision.Kind {
	case validator.KindIgnore:
		log.Debug("ignoring event", logging.Reason(string(decision.Reason)))
		return result, nil
	case validator.KindChallenge:
		log.Info("responding to url verification challenge")
		return result, nil
	}

	file := decision.File
	log = log.With(logging.Channel(decision.Channel), logging.FileID(file.ID))
	start := time.Now()

	log.Debug("downloading image")
	downloadStart := time.Now()
	image, err := s.downloader.Download(ctx, file.URLPrivate)
	if err != nil {
		metrics.ExternalErrors.WithLabelValues("download").Inc()
		log.Error("failed to download image", logging.Error(err))
		s.record(ctx, ev, decision, "", 0, time.Since(start), true)
		return result, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	metrics.DownloadDuration.Observe(time.Since(downloadStart).Seconds())
	metrics.DownloadBytes.Observe(float64(len(image)))

	classification, verdict, err := s.Detect(ctx, image)
	if err != nil {
		log.Error("unable to detect labels for image", logging.Error(err))
		s.record(ctx, ev, decision, "", 0, time.Since(start), true)
		return result, err
	}
	result.Labels = classification.Labels
	result.Verdict = verdict

	msg := models.OutgoingMessage{Channel: decision.Channel, Text: s.ReplyText(verdict)}
	if err := s.messenger.PostMessage(ctx, msg); err != nil {
		metrics.ExternalErrors.WithLabelValues("post").Inc()
		log.Error("failed to post reply", logging.Error(err), logging.Verdict(string(verdict)))
		s.record(ctx, ev, decision, verdict, len(classification.Labels), time.Since(start), true)
		return result, fmt.Errorf("%w: %w", ErrPost, err)
	}
	result.Message = &msg
	metrics.RepliesTotal.WithLabelValues(string(verdict)).Inc()

	log.Info("posted verdict",
		logging.Verdict(string(verdict)),
		logging.Duration(time.Since(start)),
	)
	s.record(ctx, ev, decision, verdict, len(classification.Labels), time.Since(start), false)

	return result, nil
}

// Detect classifies image bytes and applies the target-label rule. Errors
// wrap ErrClassify.
func (s *DetectorService) Detect(ctx context.Context, image []byte) (*models.ClassificationResult, models.Verdict, error) {
	start := time.Now()
	classification, err := s.classifier.Classify(ctx, image)
	metrics.ClassificationDuration.WithLabelValues(s.opts.Backend).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExternalErrors.WithLabelValues("classify").Inc()
		return nil, "", fmt.Errorf("%w: %w", ErrClassify, err)
	}
	if classification == nil {
		classification = &models.ClassificationResult{}
	}
	return classification, models.VerdictFor(classification, s.opts.TargetLabel), nil
}

// ReplyText returns the reply text for a verdict.
func (s *DetectorService) ReplyText(v models.Verdict) string {
	if v == models.VerdictPositive {
		return s.opts.PositiveText
	}
	return s.opts.NegativeText
}

func (s *DetectorService) record(ctx context.Context, ev *models.InboundEvent, d validator.Decision, v models.Verdict, labels int, latency time.Duration, failed bool) {
	det := analytics.Detection{
		Channel: d.Channel,
		FileID:  d.File.ID,
		Backend: s.opts.Backend,
		Verdict: v,
		Labels:  labels,
		Latency: latency,
		Failed:  failed,
	}
	if ev != nil {
		det.TeamID = ev.TeamID
	}
	if err := s.recorder.RecordDetection(det); err != nil {
		s.logger.WithContext(ctx).Warn("failed to record analytics event", logging.Error(err))
	}
}
