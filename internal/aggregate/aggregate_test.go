package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strava-activity-mapper/internal/activity"
	"strava-activity-mapper/internal/geo"
)

func row(id int64, sport, start string) activity.Row {
	n := activity.NewNormalizer("Strava", "", nil)
	r, err := n.Normalize(map[string]any{
		"id":               id,
		"name":             sport,
		"sport_type":       sport,
		"start_date_local": start,
	})
	if err != nil {
		panic(err)
	}
	return r
}

func withRoute(r activity.Row, lat, lon float64, points int) activity.Row {
	r.Lat, r.Lon = &lat, &lon
	r.Coords = make([]geo.LatLng, points)
	for i := range r.Coords {
		r.Coords[i] = geo.LatLng{Lat: lat + float64(i)*0.001, Lon: lon}
	}
	return r
}

func TestEmptyTableYieldsEmptyViews(t *testing.T) {
	var table activity.Table

	weekly := Weekly(table)
	assert.True(t, weekly.Empty())
	assert.NotNil(t, weekly.Counts)
	assert.NotNil(t, weekly.Positions)

	sports := SportTypes(table)
	assert.NotNil(t, sports)
	assert.Empty(t, sports)

	weekdays := Weekdays(table)
	assert.NotNil(t, weekdays)
	assert.Empty(t, weekdays)

	clock := Clock(table)
	assert.NotNil(t, clock)
	assert.Empty(t, clock)
	assert.Equal(t, 0, MaxCount(clock))

	trace := Locations(table)
	assert.True(t, trace.Empty())
	assert.NotNil(t, trace.Lat)
}

func TestSportTypesDescendingStable(t *testing.T) {
	table := activity.Table{
		row(1, "Run", "2024-05-01T07:00:00Z"),
		row(2, "Run", "2024-05-02T07:00:00Z"),
		row(3, "Run", "2024-05-03T07:00:00Z"),
		row(4, "Ride", "2024-05-04T07:00:00Z"),
		row(5, "Run", "2024-05-05T07:00:00Z"),
	}

	assert.Equal(t, []SportCount{{"Run", 4}, {"Ride", 1}}, SportTypes(table))
}

func TestSportTypesTiesKeepDiscoveryOrder(t *testing.T) {
	table := activity.Table{
		row(1, "Swim", "2024-05-01T07:00:00Z"),
		row(2, "Ride", "2024-05-02T07:00:00Z"),
		row(3, "Walk", "2024-05-03T07:00:00Z"),
		row(4, "Ride", "2024-05-04T07:00:00Z"),
	}

	assert.Equal(t, []SportCount{{"Ride", 2}, {"Swim", 1}, {"Walk", 1}}, SportTypes(table))
}

func TestWeekdaysSingleApp(t *testing.T) {
	var table activity.Table
	// 2024-05-06 is a Monday, 2024-05-08 a Wednesday
	for i := 0; i < 4; i++ {
		table = append(table, row(int64(i), "Run", "2024-05-06T07:00:00Z"))
	}
	for i := 0; i < 6; i++ {
		table = append(table, row(int64(10+i), "Run", "2024-05-08T07:00:00Z"))
	}

	shares := Weekdays(table)
	require.Len(t, shares, 2)
	assert.Equal(t, 0, shares[0].Weekday)
	assert.Equal(t, 4, shares[0].Counts)
	assert.InDelta(t, 0.4, shares[0].Percentage, 1e-12)
	assert.Equal(t, 2, shares[1].Weekday)
	assert.InDelta(t, 0.6, shares[1].Percentage, 1e-12)
	assert.InDelta(t, 1.0, shares[0].Percentage+shares[1].Percentage, 1e-12)
}

func TestWeekdaysDividesByWholeTable(t *testing.T) {
	a := row(1, "Run", "2024-05-06T07:00:00Z")
	b := row(2, "Run", "2024-05-06T07:00:00Z")
	b.App = "Garmin"
	c := row(3, "Run", "2024-05-07T07:00:00Z")
	d := row(4, "Run", "2024-05-08T07:00:00Z")

	shares := Weekdays(activity.Table{a, b, c, d})
	require.Len(t, shares, 4)

	assert.Equal(t, "Garmin", shares[0].App)
	assert.InDelta(t, 0.25, shares[0].Percentage, 1e-12)

	stravaTotal := 0.0
	for _, s := range shares[1:] {
		assert.Equal(t, "Strava", s.App)
		stravaTotal += s.Percentage
	}
	assert.InDelta(t, 0.75, stravaTotal, 1e-12)
}

func TestWeeklyCountsAndPositions(t *testing.T) {
	// most recent first, as delivered by the provider
	table := activity.Table{
		row(5, "Run", "2024-05-15T07:00:00Z"), // week of 2024-05-12
		row(4, "Run", "2024-05-09T07:00:00Z"), // week of 2024-05-05
		row(3, "Run", "2024-05-07T07:00:00Z"),
		row(2, "Run", "2024-05-05T07:00:00Z"),
		row(1, "Run", "2024-05-01T07:00:00Z"), // week of 2024-04-28
	}

	series := Weekly(table)
	require.False(t, series.Empty())
	require.Len(t, series.Counts, 3)

	assert.Equal(t, "2024-04-28", series.Counts[0].WeekStart)
	assert.Equal(t, 1, series.Counts[0].Count)
	assert.Equal(t, "2024-05-05", series.Counts[1].WeekStart)
	assert.Equal(t, 3, series.Counts[1].Count)
	assert.Equal(t, "2024-05-12", series.Counts[2].WeekStart)
	assert.Equal(t, 1, series.Counts[2].Count)

	require.Len(t, series.Positions, 5)
	pos := make([]int, len(series.Positions))
	for i, p := range series.Positions {
		pos[i] = p.Pos
	}
	assert.Equal(t, []int{0, 0, 1, 2, 0}, pos)
	assert.Equal(t, "2024-05-05", series.Positions[2].CW)
}

func TestWeeklyPositionsIgnoreInputOrder(t *testing.T) {
	// rows of the same week are not adjacent
	table := activity.Table{
		row(1, "Run", "2024-05-07T07:00:00Z"),
		row(2, "Run", "2024-05-15T07:00:00Z"),
		row(3, "Run", "2024-05-08T07:00:00Z"),
	}

	series := Weekly(table)
	assert.Equal(t, 0, series.Positions[0].Pos)
	assert.Equal(t, 0, series.Positions[1].Pos)
	assert.Equal(t, 1, series.Positions[2].Pos)
}

func TestClockBucketsAndCounts(t *testing.T) {
	table := activity.Table{
		row(1, "Run", "2024-05-01T18:05:00Z"),
		row(2, "Run", "2024-05-02T06:12:00Z"),
		row(3, "Run", "2024-05-03T18:09:00Z"),
		row(4, "Run", "2024-05-04T06:19:00Z"),
		row(5, "Run", "2024-05-05T00:00:00Z"),
	}

	points := Clock(table)
	require.Len(t, points, 5)

	steps := make([]int, len(points))
	counts := make([]int, len(points))
	for i, p := range points {
		steps[i] = p.Timestep
		counts[i] = p.Count
	}
	assert.Equal(t, []int{0, 361, 361, 1080, 1080}, steps)
	assert.Equal(t, []int{1, 1, 2, 1, 2}, counts)
	assert.Equal(t, []int64{5, 2, 4, 1, 3}, []int64{points[0].ID, points[1].ID, points[2].ID, points[3].ID, points[4].ID})

	assert.InDelta(t, 0.0, points[0].Angle, 1e-12)
	assert.InDelta(t, 270.0, points[3].Angle, 1e-12)
	assert.Equal(t, 2, MaxCount(points))
}

func TestClockTimestep(t *testing.T) {
	points := Clock(activity.Table{row(1, "Run", "2023-03-06T08:15:00Z")})
	require.Len(t, points, 1)

	assert.Equal(t, 481, points[0].Timestep)
	assert.Equal(t, 490, points[0].BucketStart)
	assert.InDelta(t, MinutesToAngle(490), points[0].Angle, 1e-12)
	assert.Equal(t, 1, points[0].Count)

	assert.Equal(t, 0, Timestep(0, 9))
	assert.Equal(t, 1, Timestep(0, 10))
	assert.Equal(t, 1385, Timestep(23, 59))
	assert.Equal(t, 1430, BucketStart(23, 59))
}

func TestClockTicks(t *testing.T) {
	ticks := ClockTicks()
	require.Len(t, ticks, 24)
	assert.Equal(t, "24", ticks[0].Label)
	assert.InDelta(t, 0.0, ticks[0].Angle, 1e-12)
	assert.Equal(t, "6", ticks[6].Label)
	assert.InDelta(t, 90.0, ticks[6].Angle, 1e-12)
}

func TestMinutesToAngle(t *testing.T) {
	assert.InDelta(t, 180.0, MinutesToAngle(720), 1e-12)
	assert.InDelta(t, 360.0, MinutesToAngle(1440), 1e-12)
}

func TestLocationsFlattening(t *testing.T) {
	table := activity.Table{
		withRoute(row(1, "Run", "2024-05-01T07:00:00Z"), 50.8, 4.3, 3),
		row(2, "Yoga", "2024-05-02T07:00:00Z"), // no start, skipped
		withRoute(row(3, "Ride", "2024-05-03T07:00:00Z"), 51.0, 3.7, 3),
	}

	trace := Locations(table)
	require.Equal(t, 10, trace.Len())
	for _, seq := range []int{len(trace.Lon), len(trace.Name), len(trace.Date), len(trace.Year), len(trace.Time)} {
		assert.Equal(t, 10, seq)
	}

	for i := 0; i < trace.Len(); i++ {
		isBreak := i == 4 || i == 9
		assert.Equal(t, isBreak, trace.IsBreak(i), "index %d", i)
		assert.Equal(t, isBreak, trace.Name[i] == nil, "index %d", i)
		assert.Equal(t, isBreak, trace.Year[i] == nil, "index %d", i)
	}

	assert.InDelta(t, 50.8, *trace.Lat[0], 1e-12)
	assert.Equal(t, "Ride", *trace.Name[5])
	assert.Equal(t, 2024, *trace.Year[5])
}

func TestLocationsStartWithoutRoute(t *testing.T) {
	r := withRoute(row(1, "Run", "2024-05-01T07:00:00Z"), 50.8, 4.3, 0)

	trace := Locations(activity.Table{r})
	require.Equal(t, 2, trace.Len())
	assert.False(t, trace.IsBreak(0))
	assert.True(t, trace.IsBreak(1))
}
