package odds

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrMalformedInput marks provider payloads that are missing a required key
// field. Dimension keys are load-bearing for the fact rows that reference
// them, so the whole batch is rejected instead of skipping the bad record.
var ErrMalformedInput = errors.New("malformed odds payload")

// Flatten converts a nested provider payload (events > bookmakers > markets >
// outcomes) into the three warehouse shapes in a single pass.
//
// Events are deduplicated by id and bookmakers by key across the whole batch;
// when a key repeats, the later occurrence wins but the slot keeps its
// first-seen position. Fact rows are emitted once per outcome in traversal
// order and are never deduplicated.
func Flatten(events []RawEvent) (Batch, error) {
	eventOrder := make([]string, 0, len(events))
	eventsByID := make(map[string]EventRecord, len(events))
	bookmakerOrder := make([]string, 0, 16)
	bookmakersByKey := make(map[string]BookmakerRecord, 16)
	snapshots := make([]OddsSnapshotRecord, 0, 64)

	for _, event := range events {
		if event.ID == "" {
			return Batch{}, errors.Wrap(ErrMalformedInput, "event id is required")
		}
		if event.SportKey == "" {
			return Batch{}, errors.Wrapf(ErrMalformedInput, "event %s: sport_key is required", event.ID)
		}

		commence := ParseTimestamp(event.CommenceTime)
		if _, seen := eventsByID[event.ID]; !seen {
			eventOrder = append(eventOrder, event.ID)
		}
		eventsByID[event.ID] = EventRecord{
			EventID:      event.ID,
			SportKey:     event.SportKey,
			SportTitle:   event.SportTitle,
			CommenceTime: commence,
			HomeTeam:     event.HomeTeam,
			AwayTeam:     event.AwayTeam,
		}

		for _, book := range event.Bookmakers {
			if book.Key == "" {
				return Batch{}, errors.Wrapf(ErrMalformedInput, "event %s: bookmaker key is required", event.ID)
			}
			if _, seen := bookmakersByKey[book.Key]; !seen {
				bookmakerOrder = append(bookmakerOrder, book.Key)
			}
			bookmakersByKey[book.Key] = BookmakerRecord{
				BookmakerKey:   book.Key,
				BookmakerTitle: book.Title,
			}

			for _, market := range book.Markets {
				if market.Key == "" {
					return Batch{}, errors.Wrapf(ErrMalformedInput, "event %s bookmaker %s: market key is required", event.ID, book.Key)
				}

				// The market's own last_update wins; the enclosing
				// bookmaker's is the fallback, resolved per market.
				lastUpdate := market.LastUpdate
				if lastUpdate == "" {
					lastUpdate = book.LastUpdate
				}
				marketUpdated := ParseTimestamp(lastUpdate)

				for _, outcome := range market.Outcomes {
					snapshots = append(snapshots, OddsSnapshotRecord{
						EventID:          event.ID,
						BookmakerKey:     book.Key,
						MarketKey:        market.Key,
						OutcomeName:      outcome.Name,
						IsHomeTeam:       classifySide(outcome.Name, event.HomeTeam, event.AwayTeam),
						PriceAmerican:    outcome.Price,
						LinePoint:        outcome.Point,
						EventCommence:    commence,
						MarketLastUpdate: marketUpdated,
					})
				}
			}
		}
	}

	out := Batch{
		Events:        make([]EventRecord, 0, len(eventOrder)),
		Bookmakers:    make([]BookmakerRecord, 0, len(bookmakerOrder)),
		OddsSnapshots: snapshots,
	}
	for _, id := range eventOrder {
		out.Events = append(out.Events, eventsByID[id])
	}
	for _, key := range bookmakerOrder {
		out.Bookmakers = append(out.Bookmakers, bookmakersByKey[key])
	}
	return out, nil
}

// classifySide reports whether an outcome belongs to the home side. Outcomes
// that are not a team name (Over/Under, totals) and outcomes on events with a
// missing team name stay nil.
func classifySide(name, homeTeam, awayTeam string) *bool {
	if name == "" || homeTeam == "" {
		return nil
	}
	switch name {
	case homeTeam:
		v := true
		return &v
	case awayTeam:
		v := false
		return &v
	default:
		return nil
	}
}

// ParseTimestamp parses a provider timestamp into a UTC instant. Absent,
// empty, or unparseable values map to nil so one bad field never blocks the
// rest of the batch.
func ParseTimestamp(raw string) *time.Time {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			v := parsed.UTC()
			return &v
		}
	}
	return nil
}
