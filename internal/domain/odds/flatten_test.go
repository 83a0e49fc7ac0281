package odds

import (
	"reflect"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func floatPtr(v float64) *float64 { return &v }

func sampleEvent() RawEvent {
	return RawEvent{
		ID:           "evt1",
		SportKey:     "americanfootball_nfl",
		SportTitle:   "NFL",
		CommenceTime: "2024-01-01T18:00:00Z",
		HomeTeam:     "A",
		AwayTeam:     "B",
		Bookmakers: []RawBookmaker{
			{
				Key:        "bk1",
				Title:      "Bookmaker One",
				LastUpdate: "2024-01-01T12:00:00Z",
				Markets: []RawMarket{
					{
						Key: "h2h",
						Outcomes: []RawOutcome{
							{Name: "A", Price: -150},
							{Name: "B", Price: 130},
						},
					},
				},
			},
		},
	}
}

func TestFlatten_EmptyInput(t *testing.T) {
	t.Parallel()

	batch, err := Flatten(nil)
	if err != nil {
		t.Fatalf("flatten empty input: %v", err)
	}
	if batch.Events == nil || batch.Bookmakers == nil || batch.OddsSnapshots == nil {
		t.Fatalf("expected non-nil slices for empty input")
	}
	if e, b, s := batch.Counts(); e != 0 || b != 0 || s != 0 {
		t.Fatalf("expected empty outputs, got events=%d bookmakers=%d snapshots=%d", e, b, s)
	}
}

func TestFlatten_EndToEndScenario(t *testing.T) {
	t.Parallel()

	batch, err := Flatten([]RawEvent{sampleEvent()})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}

	if e, b, s := batch.Counts(); e != 1 || b != 1 || s != 2 {
		t.Fatalf("unexpected counts: events=%d bookmakers=%d snapshots=%d", e, b, s)
	}

	event := batch.Events[0]
	if event.EventID != "evt1" || event.SportKey != "americanfootball_nfl" {
		t.Fatalf("unexpected event record: %+v", event)
	}
	wantCommence := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	if event.CommenceTime == nil || !event.CommenceTime.Equal(wantCommence) {
		t.Fatalf("unexpected commence time: %v", event.CommenceTime)
	}

	book := batch.Bookmakers[0]
	if book.BookmakerKey != "bk1" || book.BookmakerTitle != "Bookmaker One" {
		t.Fatalf("unexpected bookmaker record: %+v", book)
	}

	home := batch.OddsSnapshots[0]
	if home.IsHomeTeam == nil || !*home.IsHomeTeam {
		t.Fatalf("expected first outcome to be the home side: %+v", home)
	}
	if home.PriceAmerican != -150 {
		t.Fatalf("unexpected home price: %v", home.PriceAmerican)
	}
	away := batch.OddsSnapshots[1]
	if away.IsHomeTeam == nil || *away.IsHomeTeam {
		t.Fatalf("expected second outcome to be the away side: %+v", away)
	}
	if away.PriceAmerican != 130 {
		t.Fatalf("unexpected away price: %v", away.PriceAmerican)
	}
	for i, row := range batch.OddsSnapshots {
		if row.LinePoint != nil {
			t.Fatalf("h2h outcome %d should have a nil line point, got %v", i, *row.LinePoint)
		}
		if row.EventCommence == nil || !row.EventCommence.Equal(wantCommence) {
			t.Fatalf("outcome %d: unexpected denormalized commence time: %v", i, row.EventCommence)
		}
	}
}

func TestFlatten_MarketLastUpdateFallback(t *testing.T) {
	t.Parallel()

	event := sampleEvent()
	event.Bookmakers[0].Markets = []RawMarket{
		{
			Key: "h2h",
			// No own last_update; inherits the bookmaker's.
			Outcomes: []RawOutcome{{Name: "A", Price: -150}},
		},
		{
			Key:        "spreads",
			LastUpdate: "2024-01-01T14:30:00Z",
			Outcomes:   []RawOutcome{{Name: "A", Price: -110, Point: floatPtr(-3.5)}},
		},
		{
			Key: "totals",
			// The fallback must be resolved again, not carried over from
			// the sibling market that had its own value.
			Outcomes: []RawOutcome{{Name: "Over", Price: -105, Point: floatPtr(47.5)}},
		},
	}

	batch, err := Flatten([]RawEvent{event})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if len(batch.OddsSnapshots) != 3 {
		t.Fatalf("expected 3 fact rows, got %d", len(batch.OddsSnapshots))
	}

	bookUpdate := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ownUpdate := time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)

	if got := batch.OddsSnapshots[0].MarketLastUpdate; got == nil || !got.Equal(bookUpdate) {
		t.Fatalf("h2h should inherit bookmaker last_update, got %v", got)
	}
	if got := batch.OddsSnapshots[1].MarketLastUpdate; got == nil || !got.Equal(ownUpdate) {
		t.Fatalf("spreads should keep its own last_update, got %v", got)
	}
	if got := batch.OddsSnapshots[2].MarketLastUpdate; got == nil || !got.Equal(bookUpdate) {
		t.Fatalf("totals should fall back to bookmaker last_update, got %v", got)
	}

	if point := batch.OddsSnapshots[1].LinePoint; point == nil || *point != -3.5 {
		t.Fatalf("unexpected spread line point: %v", point)
	}
	if side := batch.OddsSnapshots[2].IsHomeTeam; side != nil {
		t.Fatalf("Over outcome must not be classified as a team side, got %v", *side)
	}
}

func TestFlatten_DistinctKeyCounts(t *testing.T) {
	t.Parallel()

	first := sampleEvent()
	second := sampleEvent()
	second.ID = "evt2"
	second.Bookmakers[0].Title = "Bookmaker One Rebranded"
	duplicate := sampleEvent() // repeats evt1

	batch, err := Flatten([]RawEvent{first, second, duplicate})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}

	if len(batch.Events) != 2 {
		t.Fatalf("expected one event record per distinct id, got %d", len(batch.Events))
	}
	if len(batch.Bookmakers) != 1 {
		t.Fatalf("expected one bookmaker record per distinct key, got %d", len(batch.Bookmakers))
	}
	if len(batch.OddsSnapshots) != 6 {
		t.Fatalf("expected one fact row per outcome, got %d", len(batch.OddsSnapshots))
	}
}

func TestFlatten_LastWriteWins(t *testing.T) {
	t.Parallel()

	first := sampleEvent()
	first.HomeTeam = "Old Home"
	second := sampleEvent()
	second.HomeTeam = "New Home"
	second.Bookmakers[0].Title = "Renamed"

	batch, err := Flatten([]RawEvent{first, second})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}

	if len(batch.Events) != 1 {
		t.Fatalf("expected a single event record, got %d", len(batch.Events))
	}
	if got := batch.Events[0].HomeTeam; got != "New Home" {
		t.Fatalf("expected later home_team to win, got %q", got)
	}
	if got := batch.Bookmakers[0].BookmakerTitle; got != "Renamed" {
		t.Fatalf("expected later bookmaker title to win, got %q", got)
	}
}

func TestFlatten_Idempotence(t *testing.T) {
	t.Parallel()

	input := []RawEvent{sampleEvent()}
	input[0].Bookmakers[0].Markets[0].Outcomes = append(
		input[0].Bookmakers[0].Markets[0].Outcomes,
		RawOutcome{Name: "Over", Price: -105, Point: floatPtr(44.5)},
	)

	first, err := Flatten(input)
	if err != nil {
		t.Fatalf("first flatten: %v", err)
	}
	second, err := Flatten(input)
	if err != nil {
		t.Fatalf("second flatten: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("transform is not idempotent:\nfirst=%+v\nsecond=%+v", first, second)
	}
}

func TestFlatten_HomeTeamFlag(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		outcome  string
		homeTeam string
		awayTeam string
		want     *bool
	}{
		{name: "home side", outcome: "Eagles", homeTeam: "Eagles", awayTeam: "Chiefs", want: boolPtr(true)},
		{name: "away side", outcome: "Chiefs", homeTeam: "Eagles", awayTeam: "Chiefs", want: boolPtr(false)},
		{name: "totals outcome", outcome: "Over", homeTeam: "Eagles", awayTeam: "Chiefs", want: nil},
		{name: "missing outcome name", outcome: "", homeTeam: "Eagles", awayTeam: "Chiefs", want: nil},
		{name: "missing home team", outcome: "Chiefs", homeTeam: "", awayTeam: "Chiefs", want: nil},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			event := sampleEvent()
			event.HomeTeam = tc.homeTeam
			event.AwayTeam = tc.awayTeam
			event.Bookmakers[0].Markets[0].Outcomes = []RawOutcome{{Name: tc.outcome, Price: 100}}

			batch, err := Flatten([]RawEvent{event})
			if err != nil {
				t.Fatalf("flatten: %v", err)
			}
			got := batch.OddsSnapshots[0].IsHomeTeam
			switch {
			case tc.want == nil && got != nil:
				t.Fatalf("expected nil is_home_team, got %v", *got)
			case tc.want != nil && got == nil:
				t.Fatalf("expected is_home_team=%v, got nil", *tc.want)
			case tc.want != nil && *got != *tc.want:
				t.Fatalf("expected is_home_team=%v, got %v", *tc.want, *got)
			}
		})
	}
}

func TestFlatten_TimestampResilience(t *testing.T) {
	t.Parallel()

	broken := sampleEvent()
	broken.CommenceTime = "not-a-date"
	sibling := sampleEvent()
	sibling.ID = "evt2"

	batch, err := Flatten([]RawEvent{broken, sibling})
	if err != nil {
		t.Fatalf("flatten must not fail on bad timestamps: %v", err)
	}
	if len(batch.Events) != 2 {
		t.Fatalf("sibling records must survive a bad timestamp, got %d events", len(batch.Events))
	}
	if batch.Events[0].CommenceTime != nil {
		t.Fatalf("unparseable commence time must become nil, got %v", batch.Events[0].CommenceTime)
	}
	if batch.Events[1].CommenceTime == nil {
		t.Fatalf("sibling commence time should still parse")
	}
	if batch.OddsSnapshots[0].EventCommence != nil {
		t.Fatalf("fact rows of the broken event must carry a nil commence time")
	}
}

func TestFlatten_MissingRequiredFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*RawEvent)
	}{
		{name: "missing event id", mutate: func(e *RawEvent) { e.ID = "" }},
		{name: "missing sport key", mutate: func(e *RawEvent) { e.SportKey = "" }},
		{name: "missing bookmaker key", mutate: func(e *RawEvent) { e.Bookmakers[0].Key = "" }},
		{name: "missing market key", mutate: func(e *RawEvent) { e.Bookmakers[0].Markets[0].Key = "" }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			event := sampleEvent()
			tc.mutate(&event)

			_, err := Flatten([]RawEvent{event})
			if !errors.Is(err, ErrMalformedInput) {
				t.Fatalf("expected ErrMalformedInput, got %v", err)
			}
		})
	}
}

func TestFlatten_SparseNesting(t *testing.T) {
	t.Parallel()

	noBookmakers := sampleEvent()
	noBookmakers.Bookmakers = nil

	emptyMarket := sampleEvent()
	emptyMarket.ID = "evt2"
	emptyMarket.Bookmakers[0].Markets[0].Outcomes = nil

	batch, err := Flatten([]RawEvent{noBookmakers, emptyMarket})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if len(batch.Events) != 2 {
		t.Fatalf("events without bookmakers must still produce records, got %d", len(batch.Events))
	}
	if len(batch.Bookmakers) != 1 {
		t.Fatalf("empty market must not suppress the bookmaker record, got %d", len(batch.Bookmakers))
	}
	if len(batch.OddsSnapshots) != 0 {
		t.Fatalf("expected no fact rows, got %d", len(batch.OddsSnapshots))
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	est := time.FixedZone("EST", -5*3600)
	cases := []struct {
		name string
		in   string
		want *time.Time
	}{
		{name: "rfc3339 utc", in: "2024-01-01T18:00:00Z", want: timePtr(time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC))},
		{name: "rfc3339 offset normalized", in: "2024-01-01T13:00:00-05:00", want: timePtr(time.Date(2024, 1, 1, 13, 0, 0, 0, est).UTC())},
		{name: "space separated", in: "2024-01-01 18:00:00", want: timePtr(time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC))},
		{name: "empty", in: "", want: nil},
		{name: "whitespace", in: "   ", want: nil},
		{name: "garbage", in: "not-a-date", want: nil},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ParseTimestamp(tc.in)
			if tc.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if got == nil || !got.Equal(*tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if got.Location() != time.UTC {
				t.Fatalf("expected UTC normalization, got %v", got.Location())
			}
		})
	}
}

func boolPtr(v bool) *bool { return &v }

func timePtr(v time.Time) *time.Time { return &v }
