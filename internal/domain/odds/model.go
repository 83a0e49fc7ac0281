package odds

import "time"

// RawEvent is one betting event as returned by The Odds API v4
// /sports/{sport}/odds endpoint. Only id and sport_key are guaranteed by the
// provider; everything else may be absent.
type RawEvent struct {
	ID           string         `json:"id"`
	SportKey     string         `json:"sport_key"`
	SportTitle   string         `json:"sport_title"`
	CommenceTime string         `json:"commence_time"`
	HomeTeam     string         `json:"home_team"`
	AwayTeam     string         `json:"away_team"`
	Bookmakers   []RawBookmaker `json:"bookmakers"`
}

type RawBookmaker struct {
	Key        string      `json:"key"`
	Title      string      `json:"title"`
	LastUpdate string      `json:"last_update"`
	Markets    []RawMarket `json:"markets"`
}

type RawMarket struct {
	Key        string       `json:"key"` // h2h, spreads, totals
	LastUpdate string       `json:"last_update"`
	Outcomes   []RawOutcome `json:"outcomes"`
}

type RawOutcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"` // American odds
	Point *float64 `json:"point"` // nil for h2h markets
}

// EventRecord is one row of the events dimension, keyed by EventID.
type EventRecord struct {
	EventID      string
	SportKey     string
	SportTitle   string
	CommenceTime *time.Time
	HomeTeam     string
	AwayTeam     string
}

// BookmakerRecord is one row of the bookmakers dimension, keyed by
// BookmakerKey across all events of a batch.
type BookmakerRecord struct {
	BookmakerKey   string
	BookmakerTitle string
}

// OddsSnapshotRecord is one append-only fact row, one per outcome.
type OddsSnapshotRecord struct {
	EventID          string
	BookmakerKey     string
	MarketKey        string
	OutcomeName      string
	IsHomeTeam       *bool
	PriceAmerican    float64
	LinePoint        *float64
	EventCommence    *time.Time
	MarketLastUpdate *time.Time
}

// Batch holds the three outputs of one Flatten pass. The slices are always
// non-nil, even for an empty input.
type Batch struct {
	Events        []EventRecord
	Bookmakers    []BookmakerRecord
	OddsSnapshots []OddsSnapshotRecord
}

func (b Batch) Counts() (events, bookmakers, snapshots int) {
	return len(b.Events), len(b.Bookmakers), len(b.OddsSnapshots)
}
