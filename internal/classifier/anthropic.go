package classifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/telhawk-systems/hotdog/internal/config"
	"github.com/telhawk-systems/hotdog/internal/models"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens = 1024
)

const labelPrompt = `List the objects, foods and scenes visible in this image.
Reply with JSON only, no prose, in the form
{"labels":[{"name":"Hot Dog","confidence":97.5}]}
Use Title Case label names as an object-detection service would (for example "Hot Dog", "Food", "Pizza").
confidence is a percentage between 0 and 100.`

// Anthropic classifies images with a Claude vision model. The model is asked
// for labels in JSON; the confidence threshold is applied locally.
type Anthropic struct {
	client        anthropic.Client
	model         string
	maxTokens     int64
	minConfidence float64
}

func NewAnthropic(cfg config.AnthropicConfig, minConfidence float64) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &Anthropic{
		client:        anthropic.NewClient(opts...),
		model:         model,
		maxTokens:     maxTokens,
		minConfidence: minConfidence,
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Classify(ctx context.Context, image []byte) (*models.ClassificationResult, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}

	mediaType := http.DetectContentType(image)
	encoded := base64.StdEncoding.EncodeToString(image)

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mediaType, encoded),
				anthropic.NewTextBlock(labelPrompt),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude API call: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	labels, err := parseLabels(sb.String())
	if err != nil {
		return nil, err
	}

	return &models.ClassificationResult{Labels: filterLabels(labels, a.minConfidence)}, nil
}

type labelResponse struct {
	Labels []models.Label `json:"labels"`
}

// parseLabels extracts the outermost JSON object from text, tolerating code
// fences or stray prose around it.
func parseLabels(text string) ([]models.Label, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in model reply")
	}

	var lr labelResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &lr); err != nil {
		return nil, fmt.Errorf("decode model reply: %w", err)
	}
	return lr.Labels, nil
}
