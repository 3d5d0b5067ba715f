package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/hotdog/internal/classifier"
	"github.com/telhawk-systems/hotdog/internal/models"
	"github.com/telhawk-systems/hotdog/internal/service"
)

type classifyOutput struct {
	File    string         `json:"file"    yaml:"file"`
	Backend string         `json:"backend" yaml:"backend"`
	Verdict models.Verdict `json:"verdict" yaml:"verdict"`
	Reply   string         `json:"reply"   yaml:"reply"`
	Labels  []models.Label `json:"labels"  yaml:"labels"`
}

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	var output string

	c := &cobra.Command{
		Use:   "classify <image>",
		Short: "Classify a local image without Slack",
		Long: `Run a local JPEG or PNG through the configured classifier and print the
labels and the reply that would be posted to Slack.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.ValidateDetection(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			image, err := readImage(args[0], cfg.Detection.MaxImageBytes, cfg.Detection.SupportedTypes)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cls, err := classifier.New(ctx, cfg.Classifier, cfg.Detection.MinConfidence)
			if err != nil {
				return fmt.Errorf("failed to create classifier: %w", err)
			}
			cls = classifier.WithTimeout(cls, cfg.Classifier.Timeout)

			detector := service.NewDetectorService(nil, nil, cls, nil, service.Options{
				TargetLabel:  cfg.Detection.TargetLabel,
				PositiveText: cfg.Detection.PositiveText,
				NegativeText: cfg.Detection.NegativeText,
				Backend:      cls.Name(),
			}).WithLogger(newLogger(cfg))

			result, verdict, err := detector.Detect(ctx, image)
			if err != nil {
				return err
			}

			return printClassification(cmd.OutOrStdout(), output, classifyOutput{
				File:    args[0],
				Backend: cls.Name(),
				Verdict: verdict,
				Reply:   detector.ReplyText(verdict),
				Labels:  result.Labels,
			})
		},
	}

	c.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json, yaml")
	return c
}

// readImage loads path and applies the same type and size rules as Slack
// events, sniffing the content type from the file header.
func readImage(path string, maxBytes int64, supported []string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	image, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(image)) > maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxBytes)
	}

	mimetype := http.DetectContentType(image)
	if !slices.Contains(supported, mimetype) {
		return nil, fmt.Errorf("unsupported image type %q", mimetype)
	}
	return image, nil
}

func printClassification(w io.Writer, format string, out classifyOutput) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		return yaml.NewEncoder(w).Encode(out)
	case "text", "":
		fmt.Fprintf(w, "%s\n", out.Reply)
		fmt.Fprintf(w, "backend: %s\n", out.Backend)
		for _, l := range out.Labels {
			fmt.Fprintf(w, "  %-30s %6.2f%%\n", l.Name, l.Confidence)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
