package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/romariotrain/ebook-converter/internal/app"
	"github.com/romariotrain/ebook-converter/internal/config"
	"github.com/romariotrain/ebook-converter/internal/converter/httpapi"
	"github.com/romariotrain/ebook-converter/internal/converter/kafka"
	"github.com/romariotrain/ebook-converter/internal/converter/outbox"
	"github.com/romariotrain/ebook-converter/internal/converter/repository"
	"github.com/romariotrain/ebook-converter/internal/converter/service"
	"github.com/romariotrain/ebook-converter/internal/logging"
	pg "github.com/romariotrain/ebook-converter/internal/storage/postgres"
)

const serviceName = "converter"

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP converter service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat, serviceName)

			code := app.Run(logger, serviceName, func(ctx context.Context) error {
				return serve(ctx, cfg, logger)
			})
			if code != 0 {
				return fmt.Errorf("%s exited with code %d", serviceName, code)
			}
			return nil
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	var (
		sessions repository.SessionRepository
		events   repository.OutboxStore
	)

	if cfg.DatabaseURL != "" {
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()

		if err := pg.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("db schema: %w", err)
		}

		outboxRepo := pg.NewOutboxRepo(db)
		sessions = pg.NewSessionRepo(db, outboxRepo)
		events = outboxRepo
		logger.Info().Msg("using postgres session store")
	} else {
		mem := repository.NewMemoryRepository()
		sessions, events = mem, mem
		logger.Info().Msg("using in-memory session store")
	}

	svc, err := service.New(service.Config{
		Repo:   sessions,
		Blobs:  repository.NewMemoryBlobStore(),
		Delay:  cfg.ConversionDelay,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("conversion service: %w", err)
	}

	var producer outbox.EventPublisher = outbox.NewLogPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer closeProducer(kp, logger)

		if err := kp.HealthCheck(ctx); err != nil {
			// Events stay in the outbox until the broker is reachable.
			logger.Warn().Err(err).Strs("brokers", cfg.KafkaBrokers).Msg("kafka unreachable at startup")
		}
		producer = kp
	}

	publisher, err := outbox.NewPublisher(outbox.PublisherConfig{
		Store:     events,
		Producer:  producer,
		Interval:  cfg.OutboxInterval,
		BatchSize: cfg.OutboxBatchSize,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("outbox publisher: %w", err)
	}

	h := httpapi.New(svc, cfg.MaxUploadBytes, logger)
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(h, httpapi.RouterConfig{
			CORSOrigins: cfg.CORSOrigins,
			Logger:      logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		svc.Wait()
		return nil
	})

	g.Go(func() error {
		if err := publisher.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return svc.RunJanitor(gctx, cfg.JanitorInterval, cfg.SessionTTL)
	})

	return g.Wait()
}

func closeProducer(kp *kafka.Producer, logger zerolog.Logger) {
	m := kp.GetMetrics()
	logger.Info().
		Int64("messages_published", m.MessagesPublished).
		Int64("messages_failed", m.MessagesFailed).
		Int64("retries_total", m.RetriesTotal).
		Dur("avg_publish_time", m.AvgPublishTime).
		Msg("kafka producer stats")

	if err := kp.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close kafka producer")
	}
}
