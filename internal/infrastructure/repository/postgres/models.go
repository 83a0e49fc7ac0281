package postgres

import (
	"time"

	"github.com/oddsflow/odds-warehouse/internal/domain/odds"
)

type eventInsertModel struct {
	EventID      string     `db:"event_id"`
	SportKey     string     `db:"sport_key"`
	SportTitle   *string    `db:"sport_title"`
	CommenceTime *time.Time `db:"commence_time_utc"`
	HomeTeam     *string    `db:"home_team"`
	AwayTeam     *string    `db:"away_team"`
}

func newEventInsertModel(record odds.EventRecord) eventInsertModel {
	return eventInsertModel{
		EventID:      record.EventID,
		SportKey:     record.SportKey,
		SportTitle:   nullableString(record.SportTitle),
		CommenceTime: record.CommenceTime,
		HomeTeam:     nullableString(record.HomeTeam),
		AwayTeam:     nullableString(record.AwayTeam),
	}
}

type bookmakerInsertModel struct {
	BookmakerKey   string  `db:"bookmaker_key"`
	BookmakerTitle *string `db:"bookmaker_title"`
}

func newBookmakerInsertModel(record odds.BookmakerRecord) bookmakerInsertModel {
	return bookmakerInsertModel{
		BookmakerKey:   record.BookmakerKey,
		BookmakerTitle: nullableString(record.BookmakerTitle),
	}
}

type oddsSnapshotInsertModel struct {
	EventID          string     `db:"event_id"`
	BookmakerKey     string     `db:"bookmaker_key"`
	MarketKey        string     `db:"market_key"`
	OutcomeName      *string    `db:"outcome_name"`
	IsHomeTeam       *bool      `db:"is_home_team"`
	PriceAmerican    float64    `db:"price_american"`
	LinePoint        *float64   `db:"line_point"`
	EventCommence    *time.Time `db:"event_commence_utc"`
	MarketLastUpdate *time.Time `db:"market_last_update"`
}

func newOddsSnapshotInsertModel(record odds.OddsSnapshotRecord) oddsSnapshotInsertModel {
	return oddsSnapshotInsertModel{
		EventID:          record.EventID,
		BookmakerKey:     record.BookmakerKey,
		MarketKey:        record.MarketKey,
		OutcomeName:      nullableString(record.OutcomeName),
		IsHomeTeam:       record.IsHomeTeam,
		PriceAmerican:    record.PriceAmerican,
		LinePoint:        record.LinePoint,
		EventCommence:    record.EventCommence,
		MarketLastUpdate: record.MarketLastUpdate,
	}
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// chunk splits rows so one multi-VALUES insert stays well under the Postgres
// bind-parameter limit.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
