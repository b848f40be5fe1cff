package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/scality/log-warden/pkg/clickhouse"
	"github.com/scality/log-warden/pkg/notify"
	"github.com/scality/log-warden/pkg/s3"
	"github.com/scality/log-warden/pkg/util"
	"github.com/scality/log-warden/pkg/warden"
	"github.com/scality/log-warden/pkg/watson"
)

func main() {
	os.Exit(run())
}

// buildPipeline wires the collector and audit engine from ConfigSpec
func buildPipeline(ctx context.Context, logger *slog.Logger) (*warden.Collector, *warden.AuditEngine, func(), error) {
	spec := warden.ConfigSpec

	chClient, err := clickhouse.NewClient(ctx, clickhouse.Config{
		Hosts:          spec.GetStringSlice("clickhouse.url"),
		Database:       spec.GetString("clickhouse.database"),
		Username:       spec.GetString("clickhouse.username"),
		Password:       spec.GetString("clickhouse.password"),
		Timeout:        spec.GetSeconds("clickhouse.timeout-seconds"),
		MaxRetries:     spec.GetInt("retry.max-retries"),
		InitialBackoff: spec.GetSeconds("retry.initial-backoff-seconds"),
		MaxBackoff:     spec.GetSeconds("retry.max-backoff-seconds"),
		Logger:         logger,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create ClickHouse client: %w", err)
	}
	cleanup := func() {
		if closeErr := chClient.Close(); closeErr != nil {
			logger.Error("failed to close ClickHouse client", "error", closeErr)
		}
	}

	source, err := watson.NewClient(watson.Config{
		BaseURL: spec.GetString("source.url"),
		APIKey:  spec.GetString("source.api-key"),
		Version: spec.GetString("source.version"),
		Timeout: spec.GetSeconds("source.timeout-seconds"),
		Logger:  logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("failed to create source client: %w", err)
	}

	database := spec.GetString("clickhouse.database")
	logStore := warden.NewClickHouseLogStore(chClient, database, logger)
	reportStore := warden.NewClickHouseReportStore(chClient, database, logger)

	var notifier warden.Notifier
	if relayURL := spec.GetString("notify.email-url"); relayURL != "" {
		notifier = notify.NewEmailNotifier(notify.Config{
			RelayURL:     relayURL,
			Token:        spec.GetString("notify.email-token"),
			Sender:       spec.GetString("notify.sender"),
			Stakeholders: util.ParseCommaSeparatedList(spec.GetString("notify.stakeholders")),
			Timeout:      spec.GetSeconds("source.timeout-seconds"),
			Logger:       logger,
		})
	} else {
		notifier = &notify.NopNotifier{Logger: logger}
	}

	var uploader warden.Uploader
	if bucket := spec.GetString("artifact.s3-bucket"); bucket != "" {
		s3Client, err := s3.NewClient(ctx, s3.Config{
			Endpoint:        spec.GetString("s3.endpoint"),
			AccessKeyID:     spec.GetString("s3.access-key-id"),
			SecretAccessKey: spec.GetString("s3.secret-access-key"),
		})
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		uploader = s3.NewUploader(s3Client)
	}

	artifacts := warden.NewFileArtifactWriter(warden.FileArtifactConfig{
		Dir:      spec.GetString("audit.report-dir"),
		Uploader: uploader,
		Bucket:   spec.GetString("artifact.s3-bucket"),
		Prefix:   spec.GetString("artifact.s3-prefix"),
		Logger:   logger,
	})

	metrics := warden.NewMetrics()

	fetcher := warden.NewFetcher(warden.FetcherConfig{
		Source:             source,
		ExcludedAssistants: util.ParseCommaSeparatedList(spec.GetString("collector.excluded-assistants")),
		PageLimit:          spec.GetInt("source.page-limit"),
		Logger:             logger,
		Metrics:            metrics,
	})

	transformer := warden.NewTransformer(logger)

	sanitizer := warden.NewSanitizer(
		util.ParseCommaSeparatedList(spec.GetString("sanitize.sensitive-fields")),
		spec.GetString("sanitize.mask-token"))

	retry := warden.RetryPolicy{
		MaxRetries:          spec.GetInt("retry.max-retries"),
		InitialBackoff:      spec.GetSeconds("retry.initial-backoff-seconds"),
		MaxBackoff:          spec.GetSeconds("retry.max-backoff-seconds"),
		BackoffJitterFactor: spec.GetFloat64("retry.backoff-jitter-factor"),
	}

	persistence := warden.NewPersistenceEngine(warden.PersistenceConfig{
		Store:     logStore,
		BatchSize: spec.GetInt("store.batch-size"),
		Retry:     retry,
		Logger:    logger,
		Metrics:   metrics,
	})

	audit := warden.NewAuditEngine(warden.AuditConfig{
		Fetcher:     fetcher,
		Transformer: transformer,
		Sanitizer:   sanitizer,
		Persistence: persistence,
		LogStore:    logStore,
		Reports:     reportStore,
		Artifacts:   artifacts,
		Notifier:    notifier,
		Logger:      logger,
		Metrics:     metrics,
	})

	collector := warden.NewCollector(warden.CollectorConfig{
		Fetcher:            fetcher,
		Transformer:        transformer,
		Sanitizer:          sanitizer,
		Persistence:        persistence,
		Audit:              audit,
		Artifacts:          artifacts,
		Notifier:           notifier,
		CollectionInterval: time.Duration(spec.GetInt("collector.interval-minutes")) * time.Minute,
		AuditInterval:      time.Duration(spec.GetInt("audit.interval-hours")) * time.Hour,
		Logger:             logger,
		Metrics:            metrics,
	})

	return collector, audit, cleanup, nil
}

// waitForShutdown waits for shutdown signal or collector error, returns exit code
func waitForShutdown(cancel context.CancelFunc, logger *slog.Logger,
	errChan <-chan error, signalsChan <-chan os.Signal, shutdownTimeout time.Duration) int {
	select {
	case sig := <-signalsChan:
		logger.Info("signal received", "signal", sig)
		cancel()

		shutdownTimer := time.NewTimer(shutdownTimeout)
		defer shutdownTimer.Stop()

		select {
		case <-shutdownTimer.C:
			logger.Warn("shutdown timeout exceeded, forcing exit")
			return 1
		case err := <-errChan:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("collector stopped with error", "error", err)
				return 1
			}
		}

	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("collector error", "error", err)
			return 1
		}
	}

	return 0
}

func run() int {
	// Add command-line flags
	warden.ConfigSpec.AddFlag(pflag.CommandLine, "log-level", "log-level")

	configFileFlag := pflag.String("config-file", "", "Path to configuration file")
	backfillDaysFlag := pflag.Int("backfill-days", 0, "Audit the past N days for missing reports before starting")
	pflag.Parse()

	// Load configuration
	configFile := *configFileFlag
	if configFile == "" {
		configFile = os.Getenv("LOG_WARDEN_CONFIG_FILE")
	}

	err := warden.ConfigSpec.LoadConfiguration(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		pflag.Usage()
		return 2
	}

	// Validate configuration
	err = warden.ValidateConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation error: %v\n", err)
		return 2
	}

	// Set up logger
	logLevel := util.ParseLogLevel(warden.ConfigSpec.GetString("log-level"))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	shutdownTimeout := warden.ConfigSpec.GetSeconds("shutdown-timeout-seconds")

	ctx := context.Background()

	collector, audit, cleanup, err := buildPipeline(ctx, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		return 1
	}
	defer cleanup()

	// Start metrics server
	metricsServer, err := util.StartMetricsServerIfEnabled(
		warden.ConfigSpec, "metrics-server", logger)
	if err != nil {
		logger.Error("failed to start metrics server", "error", err)
		return 1
	}
	if metricsServer != nil {
		defer func() {
			if closeErr := metricsServer.Close(); closeErr != nil {
				logger.Error("failed to close metrics server", "error", closeErr)
			}
		}()
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalsChan := make(chan os.Signal, 1)
	signal.Notify(signalsChan, unix.SIGINT, unix.SIGTERM)

	// Backfill audits for past days before entering the periodic loop
	if days := *backfillDaysFlag; days > 0 {
		now := time.Now().UTC()
		window := warden.TimeWindow{
			Start: now.AddDate(0, 0, -days),
			End:   now.AddDate(0, 0, -1),
		}
		if err := audit.CheckPreviousAudits(ctx, window); err != nil {
			logger.Error("audit backfill completed with errors", "error", err)
		}
	}

	// Start collector in goroutine
	errChan := make(chan error)
	go func() {
		errChan <- collector.Run(ctx)
	}()

	// Wait for signal or error
	exitCode := waitForShutdown(cancel, logger, errChan, signalsChan, shutdownTimeout)

	if exitCode == 0 {
		logger.Info("log-warden stopped")
	}
	return exitCode
}
