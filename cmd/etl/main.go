package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	cdseadapter "github.com/couchcryptid/postfire-sar-etl/internal/adapter/cdse"
	cmradapter "github.com/couchcryptid/postfire-sar-etl/internal/adapter/cmr"
	httpadapter "github.com/couchcryptid/postfire-sar-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/postfire-sar-etl/internal/adapter/kafka"
	"github.com/couchcryptid/postfire-sar-etl/internal/config"
	"github.com/couchcryptid/postfire-sar-etl/internal/observability"
	"github.com/couchcryptid/postfire-sar-etl/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	// A local .env is a development convenience; deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Product publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.ProductPublisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	// Catalog fetching needs CDSE credentials and a search boundary;
	// without them the watcher only scans the input directory.
	var fetcher pipeline.SceneFetcher
	if cfg.CDSEUsername != "" && cfg.BoundaryPath != "" {
		fetcher = cdseadapter.NewFetcher(cfg, logger, metrics)
		logger.Info("catalog fetching enabled",
			"boundary", cfg.BoundaryPath, "lookback", cfg.QueryLookback.String())
	} else {
		logger.Info("catalog fetching disabled, scanning input directory only",
			"input_dir", cfg.InputDir)
	}

	granules := cmradapter.NewCachedFinder(
		cmradapter.NewClient(cfg.GEDIProduct, cfg.GEDITimeout, logger, metrics),
		cfg.GEDICacheSize, metrics)

	processor := pipeline.NewSceneProcessor(cfg, publisher, logger, metrics)
	watcher := pipeline.NewWatcher(processor, fetcher, cfg, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, watcher, granules, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scene watcher.
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Error("watcher error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
