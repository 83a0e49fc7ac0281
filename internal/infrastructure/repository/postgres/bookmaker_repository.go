package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/oddsflow/odds-warehouse/internal/domain/odds"
)

const createTempBookmakersSQL = `
CREATE TEMPORARY TABLE tmp_bookmakers (
	bookmaker_key   TEXT PRIMARY KEY,
	bookmaker_title TEXT
) ON COMMIT DROP`

const insertTempBookmakersSQL = `
INSERT INTO tmp_bookmakers (bookmaker_key, bookmaker_title)
VALUES (:bookmaker_key, :bookmaker_title)
ON CONFLICT (bookmaker_key) DO NOTHING`

const insertMissingBookmakersSQL = `
INSERT INTO bookmakers (bookmaker_key, bookmaker_title)
SELECT t.bookmaker_key, t.bookmaker_title
FROM tmp_bookmakers t
LEFT JOIN bookmakers d ON t.bookmaker_key = d.bookmaker_key
WHERE d.bookmaker_key IS NULL
ON CONFLICT (bookmaker_key) DO NOTHING`

// BookmakerRepository maintains the bookmakers dimension table.
type BookmakerRepository struct {
	db *sqlx.DB
}

func NewBookmakerRepository(db *sqlx.DB) *BookmakerRepository {
	return &BookmakerRepository{db: db}
}

// InsertMissing adds bookmakers not yet present in the dimension and returns
// the number of rows added. Existing rows are left untouched so the first
// observed title wins.
func (r *BookmakerRepository) InsertMissing(ctx context.Context, records []odds.BookmakerRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	models := make([]bookmakerInsertModel, 0, len(records))
	for _, record := range records {
		models = append(models, newBookmakerInsertModel(record))
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bookmakers tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createTempBookmakersSQL); err != nil {
		return 0, fmt.Errorf("create tmp_bookmakers: %w", err)
	}

	for _, batch := range chunk(models, insertChunkSize) {
		if _, err := tx.NamedExecContext(ctx, insertTempBookmakersSQL, batch); err != nil {
			return 0, fmt.Errorf("stage bookmakers: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, insertMissingBookmakersSQL)
	if err != nil {
		return 0, fmt.Errorf("insert missing bookmakers: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bookmakers rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bookmakers tx: %w", err)
	}
	return inserted, nil
}
