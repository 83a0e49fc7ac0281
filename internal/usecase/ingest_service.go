package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/oddsflow/odds-warehouse/internal/domain/odds"
	"github.com/oddsflow/odds-warehouse/internal/platform/logging"
)

const (
	SportStatusSuccess = "success"
	SportStatusFailed  = "failed"
)

// OddsFetcher pulls the current odds board for one sport from the provider
// and returns both the decoded events and the raw payload bytes.
type OddsFetcher interface {
	FetchOdds(ctx context.Context, sportKey string) ([]odds.RawEvent, []byte, error)
}

// SnapshotStore persists raw provider payloads per sport so a later run can
// replay them when the provider is unreachable.
type SnapshotStore interface {
	Save(sportKey string, raw []byte) error
	Load(sportKey string) ([]odds.RawEvent, error)
}

type EventWriter interface {
	InsertMissing(ctx context.Context, records []odds.EventRecord) (int64, error)
}

type BookmakerWriter interface {
	InsertMissing(ctx context.Context, records []odds.BookmakerRecord) (int64, error)
}

type OddsSnapshotWriter interface {
	Append(ctx context.Context, records []odds.OddsSnapshotRecord) (int64, error)
}

// BatchExporter writes a flattened batch to a secondary sink, such as CSV
// files on disk.
type BatchExporter interface {
	WriteBatch(batch odds.Batch) error
}

type IngestConfig struct {
	SportKeys  []string
	ReplayOnly bool
	Workers    int
}

// IngestService runs one ingestion cycle: fetch (or replay) the odds board
// per sport, flatten it, and write dimensions and facts to the configured
// sinks.
type IngestService struct {
	cfg       IngestConfig
	fetcher   OddsFetcher
	snapshots SnapshotStore
	events    EventWriter
	books     BookmakerWriter
	facts     OddsSnapshotWriter
	exporter  BatchExporter
	logger    *logging.Logger
}

func NewIngestService(
	cfg IngestConfig,
	fetcher OddsFetcher,
	snapshots SnapshotStore,
	events EventWriter,
	books BookmakerWriter,
	facts OddsSnapshotWriter,
	exporter BatchExporter,
	logger *logging.Logger,
) *IngestService {
	if logger == nil {
		logger = logging.Default()
	}
	return &IngestService{
		cfg:       cfg,
		fetcher:   fetcher,
		snapshots: snapshots,
		events:    events,
		books:     books,
		facts:     facts,
		exporter:  exporter,
		logger:    logger,
	}
}

// SportResult reports what happened for a single sport key within a run.
type SportResult struct {
	SportKey      string
	Status        string
	Message       string
	Source        string
	Events        int
	Bookmakers    int
	OddsSnapshots int
	NewEvents     int64
	NewBookmakers int64
	FactRows      int64
	DurationMs    int64
}

// IngestResult aggregates the per-sport outcomes of an ingestion run.
type IngestResult struct {
	Sports        []SportResult
	SuccessCount  int
	FailedCount   int
	Events        int
	Bookmakers    int
	OddsSnapshots int
}

// AllFailed reports whether no sport produced data. A run with zero usable
// sources terminates cleanly but should exit nonzero at the process level.
func (r IngestResult) AllFailed() bool {
	return len(r.Sports) > 0 && r.SuccessCount == 0
}

// Run ingests every configured sport, fanning the work out over a bounded
// worker pool. Failures of individual sports are recorded in the result
// rather than aborting the run.
func (s *IngestService) Run(ctx context.Context) (IngestResult, error) {
	if len(s.cfg.SportKeys) == 0 {
		return IngestResult{}, fmt.Errorf("%w: no sport keys configured", ErrInvalidInput)
	}

	workerCount := s.cfg.Workers
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > len(s.cfg.SportKeys) {
		workerCount = len(s.cfg.SportKeys)
	}

	results := make(chan SportResult, len(s.cfg.SportKeys))

	var successCount atomic.Int32
	var failedCount atomic.Int32

	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return IngestResult{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var workers sync.WaitGroup
	for _, sportKey := range s.cfg.SportKeys {
		sportKey := sportKey
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			start := time.Now()
			row := s.ingestSport(ctx, sportKey)
			row.DurationMs = time.Since(start).Milliseconds()

			if row.Status == SportStatusSuccess {
				successCount.Add(1)
			} else {
				failedCount.Add(1)
			}
			results <- row
		}); err != nil {
			workers.Done()
			return IngestResult{}, fmt.Errorf("submit sport to worker pool: %w", err)
		}
	}

	workers.Wait()
	close(results)

	result := IngestResult{Sports: make([]SportResult, 0, len(s.cfg.SportKeys))}
	for row := range results {
		result.Sports = append(result.Sports, row)
		if row.Status == SportStatusSuccess {
			result.Events += row.Events
			result.Bookmakers += row.Bookmakers
			result.OddsSnapshots += row.OddsSnapshots
		}
	}
	sort.SliceStable(result.Sports, func(i, j int) bool {
		return result.Sports[i].SportKey < result.Sports[j].SportKey
	})

	result.SuccessCount = int(successCount.Load())
	result.FailedCount = int(failedCount.Load())
	return result, nil
}

func (s *IngestService) ingestSport(ctx context.Context, sportKey string) SportResult {
	row := SportResult{SportKey: sportKey, Status: SportStatusFailed}

	events, source, err := s.fetchWithFallback(ctx, sportKey)
	if err != nil {
		row.Message = err.Error()
		s.logger.ErrorContext(ctx, "no usable odds source for sport",
			"sport_key", sportKey,
			"error", err,
		)
		return row
	}
	row.Source = source

	batch, err := odds.Flatten(events)
	if err != nil {
		row.Message = err.Error()
		s.logger.ErrorContext(ctx, "flatten failed",
			"sport_key", sportKey,
			"error", err,
		)
		return row
	}
	row.Events, row.Bookmakers, row.OddsSnapshots = batch.Counts()

	if s.events != nil && s.books != nil && s.facts != nil {
		newEvents, err := s.events.InsertMissing(ctx, batch.Events)
		if err != nil {
			row.Message = fmt.Sprintf("%v: %v", ErrPersistence, err)
			s.logger.ErrorContext(ctx, "event dimension write failed",
				"sport_key", sportKey,
				"error", err,
			)
			return row
		}
		newBooks, err := s.books.InsertMissing(ctx, batch.Bookmakers)
		if err != nil {
			row.Message = fmt.Sprintf("%v: %v", ErrPersistence, err)
			s.logger.ErrorContext(ctx, "bookmaker dimension write failed",
				"sport_key", sportKey,
				"error", err,
			)
			return row
		}
		factRows, err := s.facts.Append(ctx, batch.OddsSnapshots)
		if err != nil {
			row.Message = fmt.Sprintf("%v: %v", ErrPersistence, err)
			s.logger.ErrorContext(ctx, "fact append failed",
				"sport_key", sportKey,
				"error", err,
			)
			return row
		}
		row.NewEvents = newEvents
		row.NewBookmakers = newBooks
		row.FactRows = factRows
	}

	if s.exporter != nil {
		if err := s.exporter.WriteBatch(batch); err != nil {
			row.Message = fmt.Sprintf("%v: %v", ErrPersistence, err)
			s.logger.ErrorContext(ctx, "csv export failed",
				"sport_key", sportKey,
				"error", err,
			)
			return row
		}
	}

	row.Status = SportStatusSuccess
	s.logger.InfoContext(ctx, "sport ingested",
		"sport_key", sportKey,
		"source", source,
		"events", row.Events,
		"bookmakers", row.Bookmakers,
		"odds_snapshots", row.OddsSnapshots,
		"new_events", row.NewEvents,
		"new_bookmakers", row.NewBookmakers,
	)
	return row
}

// fetchWithFallback tries the live provider first, then the last saved
// snapshot. The second return value names which source produced the events.
func (s *IngestService) fetchWithFallback(ctx context.Context, sportKey string) ([]odds.RawEvent, string, error) {
	if s.cfg.ReplayOnly || s.fetcher == nil {
		if s.snapshots == nil {
			return nil, "", fmt.Errorf("%w: replay requested but no snapshot store configured", ErrTransport)
		}
		events, err := s.snapshots.Load(sportKey)
		if err != nil {
			return nil, "", fmt.Errorf("%w: load snapshot: %v", ErrTransport, err)
		}
		s.logger.InfoContext(ctx, "replaying saved snapshot, data is not live",
			"sport_key", sportKey,
		)
		return events, "snapshot", nil
	}

	events, raw, fetchErr := s.fetcher.FetchOdds(ctx, sportKey)
	if fetchErr == nil {
		if s.snapshots != nil {
			if err := s.snapshots.Save(sportKey, raw); err != nil {
				// Snapshot refresh is best effort. The live data still flows.
				s.logger.WarnContext(ctx, "snapshot save failed",
					"sport_key", sportKey,
					"error", err,
				)
			}
		}
		return events, "live", nil
	}

	s.logger.WarnContext(ctx, "live fetch failed, falling back to saved snapshot",
		"sport_key", sportKey,
		"error", fetchErr,
	)
	if s.snapshots == nil {
		return nil, "", fetchErr
	}
	events, loadErr := s.snapshots.Load(sportKey)
	if loadErr != nil {
		return nil, "", fmt.Errorf("%w: live fetch failed (%v) and snapshot unavailable: %v", ErrTransport, fetchErr, loadErr)
	}
	s.logger.WarnContext(ctx, "serving snapshot data, odds are not live",
		"sport_key", sportKey,
	)
	return events, "snapshot", nil
}
