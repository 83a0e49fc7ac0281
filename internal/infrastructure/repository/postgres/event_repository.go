package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/oddsflow/odds-warehouse/internal/domain/odds"
)

const insertChunkSize = 500

const createTempEventsSQL = `
CREATE TEMPORARY TABLE tmp_events (
	event_id          TEXT PRIMARY KEY,
	sport_key         TEXT NOT NULL,
	sport_title       TEXT,
	commence_time_utc TIMESTAMPTZ,
	home_team         TEXT,
	away_team         TEXT
) ON COMMIT DROP`

const insertTempEventsSQL = `
INSERT INTO tmp_events (event_id, sport_key, sport_title, commence_time_utc, home_team, away_team)
VALUES (:event_id, :sport_key, :sport_title, :commence_time_utc, :home_team, :away_team)
ON CONFLICT (event_id) DO NOTHING`

const insertMissingEventsSQL = `
INSERT INTO events (event_id, sport_key, sport_title, commence_time_utc, home_team, away_team)
SELECT t.event_id, t.sport_key, t.sport_title, t.commence_time_utc, t.home_team, t.away_team
FROM tmp_events t
LEFT JOIN events d ON t.event_id = d.event_id
WHERE d.event_id IS NULL
ON CONFLICT (event_id) DO NOTHING`

// EventRepository maintains the events dimension table. Rows are written once
// per event_id and never updated afterwards.
type EventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// InsertMissing stages the incoming events in a temp table and inserts only
// the ids not already present in the dimension. It returns the number of rows
// actually added.
func (r *EventRepository) InsertMissing(ctx context.Context, records []odds.EventRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	models := make([]eventInsertModel, 0, len(records))
	for _, record := range records {
		models = append(models, newEventInsertModel(record))
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin events tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createTempEventsSQL); err != nil {
		return 0, fmt.Errorf("create tmp_events: %w", err)
	}

	for _, batch := range chunk(models, insertChunkSize) {
		if _, err := tx.NamedExecContext(ctx, insertTempEventsSQL, batch); err != nil {
			return 0, fmt.Errorf("stage events: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, insertMissingEventsSQL)
	if err != nil {
		return 0, fmt.Errorf("insert missing events: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("events rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit events tx: %w", err)
	}
	return inserted, nil
}
