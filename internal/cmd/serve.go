package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/hotdog/internal/analytics"
	"github.com/telhawk-systems/hotdog/internal/classifier"
	"github.com/telhawk-systems/hotdog/internal/config"
	"github.com/telhawk-systems/hotdog/internal/handlers"
	"github.com/telhawk-systems/hotdog/internal/logging"
	"github.com/telhawk-systems/hotdog/internal/ratelimit"
	"github.com/telhawk-systems/hotdog/internal/server"
	"github.com/telhawk-systems/hotdog/internal/service"
	"github.com/telhawk-systems/hotdog/internal/slackclient"
	"github.com/telhawk-systems/hotdog/internal/validator"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Slack events HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger := newLogger(cfg)
			logging.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
}

// app holds the wired server and the resources to release on shutdown.
type app struct {
	srv     *http.Server
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("error during shutdown", logging.Error(err))
		}
	}
}

// buildApp wires every component from cfg without starting the listener.
func buildApp(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*app, error) {
	a := &app{}

	cls, err := classifier.New(ctx, cfg.Classifier, cfg.Detection.MinConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}
	cls = classifier.WithTimeout(cls, cfg.Classifier.Timeout)

	limiter, err := ratelimit.New(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}
	a.closers = append(a.closers, limiter.Close)

	recorder, err := analytics.New(cfg.Analytics)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create analytics recorder: %w", err)
	}
	a.closers = append(a.closers, recorder.Close)

	slack := slackclient.New(cfg.Slack.AccessToken, cfg.Slack.APIURL, cfg.Server.WriteTimeout, cfg.Detection.MaxImageBytes)

	detector := service.NewDetectorService(
		validator.NewEventValidator(cfg.Slack.VerificationToken, cfg.Detection.SupportedTypes, cfg.Detection.MaxImageBytes).
			WithIgnoreRetries(cfg.Slack.IgnoreRetries),
		slack,
		cls,
		slack,
		service.Options{
			TargetLabel:  cfg.Detection.TargetLabel,
			PositiveText: cfg.Detection.PositiveText,
			NegativeText: cfg.Detection.NegativeText,
			Backend:      cls.Name(),
		},
	).WithLogger(logger).WithRecorder(recorder)

	handler := handlers.NewSlackHandler(detector, limiter, handlers.Options{
		SigningSecret: cfg.Slack.SigningSecret,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
	}, logger)

	checks := map[string]handlers.ReadyCheck{}
	if p, ok := limiter.(interface{ Ping(context.Context) error }); ok {
		checks["redis"] = p.Ping
	}

	a.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(handler, handlers.Ready(checks), logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info("components initialized",
		logging.Backend(cls.Name()),
		slog.Bool("rate_limit", cfg.RateLimit.Enabled),
		slog.Bool("signature_verification", cfg.Slack.SigningSecret != ""),
		slog.Bool("ignore_retries", cfg.Slack.IgnoreRetries),
	)

	return a, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hotdog listening", slog.String("addr", a.srv.Addr), slog.String("path", server.EventsPath))
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
