package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tuanvumaihuynh/product-catalog/internal/config"
	"github.com/tuanvumaihuynh/product-catalog/internal/event"
	"github.com/tuanvumaihuynh/product-catalog/internal/http"
	"github.com/tuanvumaihuynh/product-catalog/internal/log"
	"github.com/tuanvumaihuynh/product-catalog/internal/relay"
	"github.com/tuanvumaihuynh/product-catalog/internal/repository"
	"github.com/tuanvumaihuynh/product-catalog/internal/service"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/blob"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/db"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/document"
	"github.com/tuanvumaihuynh/product-catalog/internal/storage/mq"
	"github.com/tuanvumaihuynh/product-catalog/internal/telemetry"
	"github.com/tuanvumaihuynh/product-catalog/pkg/cmdutil"
	"github.com/tuanvumaihuynh/product-catalog/pkg/validator"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("error running standalone application: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	time.Local = time.UTC

	type Config struct {
		Log      config.Log
		HTTP     config.HTTP
		Store    config.Store
		Assets   config.Assets
		Postgres config.Postgres
		Relay    config.Relay
		Kafka    config.Kafka
		Otel     config.Otel
	}
	cfg, err := config.New[Config]()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger := log.NewSlogLogger(cfg.Log)

	cleanupTracer, err := telemetry.InitTracer(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("error initializing tracer: %w", err)
	}
	defer func() {
		if err := cleanupTracer(ctx); err != nil {
			logger.ErrorContext(ctx, "error cleaning up tracer", slog.Any("error", err))
		}
	}()

	store, closeStore, err := openStore(ctx, cfg.Store, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("error opening %s store: %w", cfg.Store.Backend, err)
	}
	defer closeStore()
	logger.InfoContext(ctx, "store opened", slog.String("backend", cfg.Store.Backend.String()))

	blobs, err := blob.NewStore(cfg.Assets.Dir)
	if err != nil {
		return fmt.Errorf("error opening asset store: %w", err)
	}

	v, err := validator.NewDefaultValidator()
	if err != nil {
		return fmt.Errorf("error creating validator: %w", err)
	}

	assetService := service.NewAssetService(cfg.Assets, blobs)
	productService := service.NewProductService(store, assetService, v, cfg.Relay.Enabled)

	interruptChan := cmdutil.InterruptChan()
	var wg sync.WaitGroup

	if cfg.Relay.Enabled {
		kafkaProducer, err := mq.NewKafkaProducer(ctx, cfg.Kafka)
		if err != nil {
			return fmt.Errorf("error creating kafka producer: %w", err)
		}
		defer kafkaProducer.Close()

		kafkaConsumer, err := mq.NewKafkaConsumer(ctx, cfg.Kafka, logger)
		if err != nil {
			return fmt.Errorf("error creating kafka consumer: %w", err)
		}
		defer kafkaConsumer.Close()

		wg.Go(func() {
			svc := event.New(logger, kafkaConsumer)
			cleanup, err := svc.Run(ctx)
			if err != nil {
				panic(fmt.Errorf("error running event service: %w", err))
			}
			logger.InfoContext(ctx, "event service started")

			<-interruptChan

			logger.InfoContext(ctx, "event service is shutting down")
			cleanup()

			logger.InfoContext(ctx, "event service is stopped")
		})

		wg.Go(func() {
			svc := relay.NewService(cfg.Relay, logger, store, kafkaProducer)
			cleanup := svc.Run(ctx)
			logger.InfoContext(ctx, "relay service started")

			<-interruptChan

			logger.InfoContext(ctx, "relay service is shutting down")
			cleanup()

			logger.InfoContext(ctx, "relay service is stopped")
		})
	}

	wg.Go(func() {
		svc := http.New(cfg.HTTP, logger, productService, assetService, store)
		cleanup, err := svc.Run(ctx)
		if err != nil {
			panic(fmt.Errorf("error running http service: %w", err))
		}

		logger.InfoContext(ctx, "http service started", slog.String("address", fmt.Sprintf(":%d", cfg.HTTP.Port)))

		<-interruptChan

		logger.InfoContext(ctx, "http service is shutting down")
		if err := cleanup(ctx); err != nil {
			logger.ErrorContext(ctx, "error shutting down http service", slog.Any("error", err))
		}

		logger.InfoContext(ctx, "http service is stopped")
	})

	wg.Wait()

	return nil
}

// openStore opens the record store selected by cfg. The returned func
// releases its resources.
func openStore(ctx context.Context, cfg config.Store, pgCfg config.Postgres) (repository.Store, func(), error) {
	switch cfg.Backend {
	case config.StoreBackendPostgres:
		pgxPool, err := db.NewPgxPool(ctx, pgCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create pgx pool: %w", err)
		}
		return repository.NewPostgresStore(db.NewClient(pgxPool)), pgxPool.Close, nil
	default:
		docDB, err := document.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open document %s: %w", cfg.Path, err)
		}
		return repository.NewDocumentStore(docDB), func() {}, nil
	}
}
