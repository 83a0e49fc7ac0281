package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/oddsflow/odds-warehouse/internal/domain/odds"
)

const insertOddsSnapshotsSQL = `
INSERT INTO odds_snapshots (
	event_id, bookmaker_key, market_key, outcome_name, is_home_team,
	price_american, line_point, event_commence_utc, market_last_update
) VALUES (
	:event_id, :bookmaker_key, :market_key, :outcome_name, :is_home_team,
	:price_american, :line_point, :event_commence_utc, :market_last_update
)`

// OddsSnapshotRepository appends fact rows. The table is append only, so
// repeated runs over the same payload stack rows rather than overwrite them.
type OddsSnapshotRepository struct {
	db *sqlx.DB
}

func NewOddsSnapshotRepository(db *sqlx.DB) *OddsSnapshotRepository {
	return &OddsSnapshotRepository{db: db}
}

// Append inserts the snapshot rows in chunks inside one transaction and
// returns the number of rows written.
func (r *OddsSnapshotRepository) Append(ctx context.Context, records []odds.OddsSnapshotRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	models := make([]oddsSnapshotInsertModel, 0, len(records))
	for _, record := range records {
		models = append(models, newOddsSnapshotInsertModel(record))
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin odds snapshots tx: %w", err)
	}
	defer tx.Rollback()

	var inserted int64
	for _, batch := range chunk(models, insertChunkSize) {
		result, err := tx.NamedExecContext(ctx, insertOddsSnapshotsSQL, batch)
		if err != nil {
			return 0, fmt.Errorf("append odds snapshots: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("odds snapshots rows affected: %w", err)
		}
		inserted += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit odds snapshots tx: %w", err)
	}
	return inserted, nil
}
