package classifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/telhawk-systems/hotdog/internal/config"
	"github.com/telhawk-systems/hotdog/internal/models"
)

// DefaultMinConfidence is the lowest label confidence reported, in percent.
const DefaultMinConfidence = 80.0

// ErrEmptyImage is returned when Classify is called without image bytes.
var ErrEmptyImage = errors.New("empty image")

// Classifier labels raw image bytes. Implementations return only labels at
// or above their configured minimum confidence.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (*models.ClassificationResult, error)
	Name() string
}

// New builds the backend named in cfg.
func New(ctx context.Context, cfg config.ClassifierConfig, minConfidence float64) (Classifier, error) {
	switch cfg.Backend {
	case config.BackendRekognition, "":
		return NewRekognitionFromRegion(ctx, cfg.AWS.Region, minConfidence)
	case config.BackendAnthropic:
		return NewAnthropic(cfg.Anthropic, minConfidence), nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Backend)
	}
}

// WithTimeout bounds every Classify call on c by d. A non-positive d
// returns c unchanged.
func WithTimeout(c Classifier, d time.Duration) Classifier {
	if d <= 0 {
		return c
	}
	return &timeoutClassifier{Classifier: c, timeout: d}
}

type timeoutClassifier struct {
	Classifier
	timeout time.Duration
}

func (t *timeoutClassifier) Classify(ctx context.Context, image []byte) (*models.ClassificationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Classifier.Classify(ctx, image)
}

// filterLabels drops labels below min and orders the rest by descending
// confidence.
func filterLabels(labels []models.Label, min float64) []models.Label {
	out := make([]models.Label, 0, len(labels))
	for _, l := range labels {
		if l.Confidence >= min {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}
