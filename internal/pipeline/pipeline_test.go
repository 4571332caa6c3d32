package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strava-activity-mapper/internal/activity"
	"strava-activity-mapper/internal/config"
	"strava-activity-mapper/internal/geo"
	"strava-activity-mapper/internal/metrics"
	"strava-activity-mapper/internal/strava"
)

type fakeLister struct {
	records []strava.RawActivity
	err     error
	token   string
}

func (f *fakeLister) ListAllActivities(ctx context.Context, accessToken string) ([]strava.RawActivity, error) {
	f.token = accessToken
	return f.records, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRecords() []strava.RawActivity {
	return []strava.RawActivity{
		{
			"id":               int64(3),
			"name":             "Lunch Ride",
			"sport_type":       "Ride",
			"type":             "Ride",
			"start_date_local": "2024-05-08T12:05:00Z",
			"start_latlng":     []any{51.5, -0.12},
			"map":              map[string]any{"summary_polyline": "_p~iF~ps|U_ulLnnqC_mqNvxq`@"},
		},
		{
			"id":               int64(2),
			"name":             "Morning Run",
			"sport_type":       "Run",
			"type":             "Run",
			"start_date_local": "2024-05-07T07:15:00Z",
			"start_latlng":     []any{},
			"map":              map[string]any{"summary_polyline": ""},
		},
		{
			"id":               int64(1),
			"name":             "Evening Run",
			"sport_type":       "Run",
			"type":             "Run",
			"start_date_local": "2024-05-01T19:40:00Z",
		},
	}
}

func TestEmptyDashboard(t *testing.T) {
	d := Empty(config.DefaultChart())

	assert.False(t, d.Loaded)
	assert.False(t, d.HasData())
	assert.NotNil(t, d.Table)
	assert.Empty(t, d.SportTypes)
	assert.True(t, d.Weekly.Empty())
	assert.True(t, d.Locations.Empty())
	assert.Len(t, d.Clock.Ticks, 24)
	assert.Equal(t, 0, d.Clock.MaxCount)
	assert.Equal(t, "Activity Mapper", d.Chart.Title)
}

func TestRun(t *testing.T) {
	lister := &fakeLister{records: sampleRecords()}
	p := New(lister, config.DefaultChart(), nil, testLogger())

	d, err := p.Run(context.Background(), "tok", Athlete{Name: "Ada Lovelace", CreatedAt: "2019-04-01T10:00:00Z"})
	require.NoError(t, err)

	assert.Equal(t, "tok", lister.token)
	assert.True(t, d.Loaded)
	assert.Equal(t, metrics.SourceStrava, d.Source)
	assert.Equal(t, "Ada Lovelace", d.AthleteName)
	assert.Equal(t, "2019-04-01T10:00:00Z", d.CreatedAt)
	assert.False(t, d.GeneratedAt.IsZero())

	require.Len(t, d.Table, 3)
	assert.Equal(t, activity.DisplayRow{
		Name:      "Lunch Ride",
		ID:        3,
		URL:       "https://www.strava.com/activities/3",
		Date:      "2024-05-08",
		SportType: "Ride",
		Country:   "Undefined",
	}, d.Table[0])
	assert.Equal(t, "", d.Table[1].Country)

	require.Len(t, d.Activities, 3)
	assert.Equal(t, int64(3), d.Activities[0].ID)
	assert.Equal(t, "2024-19", d.Activities[0].CalendarWeek)
	assert.Equal(t, "Strava", d.Activities[0].App)

	require.Len(t, d.SportTypes, 2)
	assert.Equal(t, "Run", d.SportTypes[0].SportType)
	assert.Equal(t, 2, d.SportTypes[0].Counts)

	assert.Len(t, d.Clock.Points, 3)
	assert.Equal(t, 1, d.Clock.MaxCount)
	assert.False(t, d.Locations.Empty())
}

func TestRunUsesResolver(t *testing.T) {
	resolver := geo.ResolverFunc(func(p geo.LatLng) string {
		if p.Lat == 51.5 && p.Lon == -0.12 {
			return "United Kingdom"
		}
		return "Elsewhere"
	})
	p := New(&fakeLister{records: sampleRecords()}, config.DefaultChart(), resolver, testLogger())

	d, err := p.Run(context.Background(), "tok", Athlete{})
	require.NoError(t, err)
	assert.Equal(t, "United Kingdom", d.Table[0].Country)
}

func TestRunNoActivities(t *testing.T) {
	p := New(&fakeLister{records: []strava.RawActivity{}}, config.DefaultChart(), nil, testLogger())

	d, err := p.Run(context.Background(), "tok", Athlete{Name: "New Athlete"})
	require.NoError(t, err)
	assert.True(t, d.Loaded)
	assert.False(t, d.HasData())
	assert.Empty(t, d.Weekdays)
}

func TestRunAuthorizationFault(t *testing.T) {
	fault := &strava.AuthorizationError{StatusCode: 401, Message: "Authorization Error"}
	p := New(&fakeLister{err: fault}, config.DefaultChart(), nil, testLogger())

	d, err := p.Run(context.Background(), "expired", Athlete{})
	assert.Nil(t, d)
	require.Error(t, err)
	assert.True(t, strava.IsAuthorization(err))
}

func TestRunMalformedRecord(t *testing.T) {
	records := sampleRecords()
	records[1]["start_date_local"] = "yesterday"
	p := New(&fakeLister{records: records}, config.DefaultChart(), nil, testLogger())

	_, err := p.Run(context.Background(), "tok", Athlete{})
	var parseErr *activity.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, int64(2), parseErr.ActivityID)
}

func TestLoadDemo(t *testing.T) {
	p := New(nil, config.DefaultChart(), nil, testLogger())

	d, err := p.LoadDemo()
	require.NoError(t, err)

	assert.True(t, d.Loaded)
	assert.Equal(t, metrics.SourceDemo, d.Source)
	assert.Equal(t, "Demo Athlete", d.AthleteName)
	require.Len(t, d.Table, 24)

	total := 0
	for _, s := range d.SportTypes {
		total += s.Counts
	}
	assert.Equal(t, 24, total)
	assert.Equal(t, "TrailRun", d.SportTypes[0].SportType)
	assert.Equal(t, 6, d.SportTypes[0].Counts)

	for _, row := range d.Table {
		switch row.SportType {
		case "Swim", "Yoga":
			assert.Empty(t, row.Country, "activity %d", row.ID)
		default:
			assert.Equal(t, "Undefined", row.Country, "activity %d", row.ID)
		}
	}
}

func TestFromRecordsCustomChart(t *testing.T) {
	chart := config.DefaultChart()
	chart.AppLabel = "Garmin"
	chart.ActivityURL = "https://example.test/a/"
	p := New(nil, chart, nil, testLogger())

	d, err := p.FromRecords(sampleRecords(), "import", Athlete{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/a/3", d.Table[0].URL)
	for _, w := range d.Weekdays {
		assert.Equal(t, "Garmin", w.App)
	}
}
