package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/oddsflow/odds-warehouse/external/oddsapi"
	"github.com/oddsflow/odds-warehouse/internal/config"
	"github.com/oddsflow/odds-warehouse/internal/infrastructure/repository/postgres"
	"github.com/oddsflow/odds-warehouse/internal/infrastructure/sink/csvfile"
	"github.com/oddsflow/odds-warehouse/internal/infrastructure/snapshot"
	"github.com/oddsflow/odds-warehouse/internal/platform/id"
	"github.com/oddsflow/odds-warehouse/internal/platform/logging"
	"github.com/oddsflow/odds-warehouse/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runID, err := id.NewRandomGenerator().NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}

	logger := logging.NewJSON(cfg.LogLevel).With(
		"service", cfg.ServiceName,
		"env", cfg.AppEnv,
		"run_id", runID,
	)
	logging.SetDefault(logger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var fetcher usecase.OddsFetcher
	if !cfg.ReplayOnly {
		fetcher = oddsapi.NewClient(oddsapi.ClientConfig{
			BaseURL:    cfg.OddsAPIBaseURL,
			APIKey:     cfg.OddsAPIKey,
			Regions:    cfg.Regions,
			Markets:    cfg.Markets,
			Timeout:    cfg.APITimeout,
			MaxRetries: cfg.APIMaxRetries,
			Logger:     logger,
		})
	}

	snapshots := snapshot.NewStore(cfg.SnapshotDir)

	var (
		events usecase.EventWriter
		books  usecase.BookmakerWriter
		facts  usecase.OddsSnapshotWriter
	)
	if cfg.WarehouseEnabled {
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DBURL)
		if err != nil {
			return fmt.Errorf("connect warehouse: %w", err)
		}
		defer db.Close()

		events = postgres.NewEventRepository(db)
		books = postgres.NewBookmakerRepository(db)
		facts = postgres.NewOddsSnapshotRepository(db)
	}

	var exporter usecase.BatchExporter
	if cfg.CSVEnabled {
		exporter = csvfile.NewWriter(cfg.CSVDir)
	}

	svc := usecase.NewIngestService(usecase.IngestConfig{
		SportKeys:  cfg.SportKeys,
		ReplayOnly: cfg.ReplayOnly,
		Workers:    cfg.IngestWorkers,
	}, fetcher, snapshots, events, books, facts, exporter, logger)

	result, err := svc.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingest run: %w", err)
	}

	for _, sport := range result.Sports {
		if sport.Status != usecase.SportStatusSuccess {
			logger.WarnContext(ctx, "sport failed",
				"sport_key", sport.SportKey,
				"message", sport.Message,
				"duration_ms", sport.DurationMs,
			)
		}
	}
	logger.InfoContext(ctx, "ingest run finished",
		"sports_ok", result.SuccessCount,
		"sports_failed", result.FailedCount,
		"events", result.Events,
		"bookmakers", result.Bookmakers,
		"odds_snapshots", result.OddsSnapshots,
	)

	if result.AllFailed() {
		return fmt.Errorf("ingest run produced no data: all %d sport(s) failed", result.FailedCount)
	}
	return nil
}
