package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/amqp"
	"tally/internal/cache"
	"tally/internal/cli"
	"tally/internal/core"
	"tally/internal/export"
	apphttp "tally/internal/http"
	"tally/internal/log"
	"tally/internal/period"
	"tally/internal/session"
	"tally/internal/stats"
	"tally/internal/storage"
	"tally/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	// Bootstrap logger until the configured level is known
	logger := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", log.FieldError, err)
		os.Exit(1)
	}

	led, err := cli.OpenLedger(cfg, loc, logger)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("Ledger opened", "backend", cfg.DataBackend, "timezone", loc.String())

	snapshots := cache.NewLRUCache[core.Snapshot](cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(snapshots)

	engine := stats.NewEngine(led, period.NewResolver(loc), logger)
	cached := stats.NewCachedEngine(engine, snapshots, logger)

	store := session.New(cached,
		session.WithLogger(logger),
		session.WithPeriod(cfg.Period()))
	if err := store.Refresh(); err != nil {
		logger.Error("Failed to start initial computation", log.FieldError, err)
		os.Exit(1)
	}

	var (
		amqpClient *amqp.Client
		publisher  worker.Publisher
		exporter   worker.Exporter
		exportLog  worker.ExportLog
	)

	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPSnapshotQueue, cfg.AMQPLedgerQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = amqpClient
		logger.Info("AMQP enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	if cfg.ExportEnabled() {
		sheets, err := export.NewSheetsExporter(context.Background(), export.SheetsConfig{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: []byte(cfg.GoogleCredentialsJSON),
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
			os.Exit(1)
		}
		exporter = sheets
		if repo, ok := led.Store.(*storage.SQLiteRepository); ok {
			exportLog = repo
		}
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, store, cached, apphttp.Options{Location: loc}, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		store.Close()
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cacheManager.Run(gctx, cfg.CacheSweepInterval)
		return nil
	})

	if publisher != nil || exporter != nil {
		relay := worker.NewSnapshotRelay(store, publisher, exporter, exportLog, logger)
		g.Go(func() error {
			return ignoreCanceled(relay.Run(gctx))
		})
	}

	if amqpClient != nil {
		watcher := worker.NewLedgerWatcher(amqpClient, cached, store, logger)
		g.Go(func() error {
			return ignoreCanceled(watcher.Run(gctx))
		})
	}

	g.Go(func() error {
		logger.Info("Starting tally server", "port", cfg.Port, "period", string(cfg.Period()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		store.Close()
		closeResources(logger, led, amqpClient)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	closeResources(logger, led, amqpClient)
	logger.Info("Server stopped gracefully")
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func closeResources(logger *log.Logger, led *cli.Ledger, amqpClient *amqp.Client) {
	if amqpClient != nil {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
	}
	if err := led.Close(); err != nil {
		logger.Warn("Ledger close error", log.FieldError, err)
	}
}
