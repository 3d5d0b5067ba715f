package classifier

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/telhawk-systems/hotdog/internal/models"
)

// DetectLabelsAPI is the subset of the Rekognition client used here.
type DetectLabelsAPI interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// Rekognition classifies images with Amazon Rekognition DetectLabels.
type Rekognition struct {
	api           DetectLabelsAPI
	minConfidence float64
}

func NewRekognition(api DetectLabelsAPI, minConfidence float64) *Rekognition {
	return &Rekognition{api: api, minConfidence: minConfidence}
}

// NewRekognitionFromRegion loads AWS credentials from the default chain.
func NewRekognitionFromRegion(ctx context.Context, region string, minConfidence float64) (*Rekognition, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewRekognition(rekognition.NewFromConfig(awsCfg), minConfidence), nil
}

func (r *Rekognition) Name() string { return "rekognition" }

func (r *Rekognition) Classify(ctx context.Context, image []byte) (*models.ClassificationResult, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}

	// Rekognition works in float32; filter locally at the same precision so
	// a label returned exactly at the threshold is kept.
	minConfidence := float32(r.minConfidence)
	out, err := r.api.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: image},
		MinConfidence: aws.Float32(minConfidence),
	})
	if err != nil {
		return nil, fmt.Errorf("detect labels: %w", err)
	}

	labels := make([]models.Label, 0, len(out.Labels))
	for _, l := range out.Labels {
		labels = append(labels, models.Label{
			Name:       aws.ToString(l.Name),
			Confidence: float64(aws.ToFloat32(l.Confidence)),
		})
	}

	return &models.ClassificationResult{Labels: filterLabels(labels, float64(minConfidence))}, nil
}
