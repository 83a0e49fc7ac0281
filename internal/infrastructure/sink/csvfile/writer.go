package csvfile

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/oddsflow/odds-warehouse/internal/domain/odds"
)

const (
	eventsFile     = "events.csv"
	bookmakersFile = "bookmakers.csv"
	snapshotsFile  = "odds_snapshots.csv"
)

// Writer serializes one flattened batch into three CSV files, one per
// warehouse table, with header rows matching the column names. Files are
// overwritten on every run.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) WriteBatch(batch odds.Batch) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create csv dir %s: %w", w.dir, err)
	}

	if err := w.writeFile(eventsFile,
		[]string{"event_id", "sport_key", "sport_title", "commence_time_utc", "home_team", "away_team"},
		len(batch.Events),
		func(i int) []string {
			e := batch.Events[i]
			return []string{e.EventID, e.SportKey, e.SportTitle, formatTime(e.CommenceTime), e.HomeTeam, e.AwayTeam}
		},
	); err != nil {
		return err
	}

	if err := w.writeFile(bookmakersFile,
		[]string{"bookmaker_key", "bookmaker_title"},
		len(batch.Bookmakers),
		func(i int) []string {
			b := batch.Bookmakers[i]
			return []string{b.BookmakerKey, b.BookmakerTitle}
		},
	); err != nil {
		return err
	}

	return w.writeFile(snapshotsFile,
		[]string{"event_id", "bookmaker_key", "market_key", "outcome_name", "is_home_team", "price_american", "line_point", "event_commence_utc", "market_last_update"},
		len(batch.OddsSnapshots),
		func(i int) []string {
			r := batch.OddsSnapshots[i]
			return []string{
				r.EventID,
				r.BookmakerKey,
				r.MarketKey,
				r.OutcomeName,
				formatBool(r.IsHomeTeam),
				formatFloat(r.PriceAmerican),
				formatFloatPtr(r.LinePoint),
				formatTime(r.EventCommence),
				formatTime(r.MarketLastUpdate),
			}
		},
	)
}

func (w *Writer) writeFile(name string, header []string, rows int, row func(int) []string) error {
	path := filepath.Join(w.dir, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}
	for i := 0; i < rows; i++ {
		if err := cw.Write(row(i)); err != nil {
			return fmt.Errorf("write %s row %d: %w", name, i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

func formatTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}

func formatBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
