package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

type Runner func(ctx context.Context) error

// ShutdownGrace bounds how long Run waits for the runner after a signal.
const ShutdownGrace = 15 * time.Second

// Run executes run until it returns or the process receives SIGINT/SIGTERM,
// and reports the exit code.
func Run(logger zerolog.Logger, serviceName string, run Runner) int {
	logger.Info().Str("service", serviceName).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return wait(ctx, logger, serviceName, run, ShutdownGrace)
}

func wait(ctx context.Context, logger zerolog.Logger, serviceName string, run Runner, grace time.Duration) int {
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info().Str("service", serviceName).Msg("shutting down")
		select {
		case err := <-errCh:
			if err != nil {
				logger.Error().Err(err).Str("service", serviceName).Msg("shutdown failed")
				return 1
			}
			return 0
		case <-time.After(grace):
			logger.Warn().Dur("grace", grace).Str("service", serviceName).Msg("shutdown timed out")
			return 1
		}
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Str("service", serviceName).Msg("failed")
			return 1
		}
		logger.Info().Str("service", serviceName).Msg("stopped")
		return 0
	}
}
