package activity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"strava-activity-mapper/internal/geo"
)

// ParseError is returned when a raw record cannot be normalized
type ParseError struct {
	ActivityID int64
	Field      string
	Value      string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("activity %d: failed to parse %s %q: %v", e.ActivityID, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Normalizer maps raw provider records onto canonical rows
type Normalizer struct {
	app             string
	activityBaseURL string
	resolver        geo.CountryResolver
}

// NewNormalizer creates a normalizer. app labels every row with its source,
// activityBaseURL is prefixed to the activity id to build the row URL.
func NewNormalizer(app, activityBaseURL string, resolver geo.CountryResolver) *Normalizer {
	return &Normalizer{
		app:             app,
		activityBaseURL: activityBaseURL,
		resolver:        resolver,
	}
}

// Normalize converts one raw record into a row
func (n *Normalizer) Normalize(raw map[string]any) (Row, error) {
	id := int64Field(raw, "id")

	startLocal := stringField(raw, "start_date_local")
	ts, err := time.Parse(time.RFC3339, startLocal)
	if err != nil {
		return Row{}, &ParseError{ActivityID: id, Field: "start_date_local", Value: startLocal, Err: err}
	}

	year, week := SundayWeek(ts)
	row := Row{
		ID:           id,
		Name:         stringField(raw, "name"),
		URL:          n.activityBaseURL + strconv.FormatInt(id, 10),
		Timestamp:    ts,
		Date:         ts.Format(DateLayout),
		Year:         year,
		Week:         week,
		CalendarWeek: CalendarWeekKey(year, week),
		Weekday:      MondayWeekday(ts),
		Time:         ts.Format(TimeLayout),
		Hour:         ts.Hour(),
		Minute:       ts.Minute(),
		MovingTime:   int64Field(raw, "moving_time"),
		Type:         stringField(raw, "type"),
		SportType:    stringField(raw, "sport_type"),
		Coords:       []geo.LatLng{},
		App:          n.app,
	}

	if lat, lon, ok := latLngField(raw, "start_latlng"); ok {
		row.Lat, row.Lon = &lat, &lon
	}

	encoded := summaryPolyline(raw)
	if encoded == "" {
		return row, nil
	}

	coords, err := geo.Decode(encoded)
	if err != nil {
		return Row{}, &ParseError{ActivityID: id, Field: "summary_polyline", Value: encoded, Err: err}
	}
	row.Coords = coords
	row.Country = n.resolveCountry(row)

	return row, nil
}

// NormalizeAll normalizes records in order. The first bad record fails the
// whole batch.
func (n *Normalizer) NormalizeAll(raws []map[string]any) (Table, error) {
	table := make(Table, 0, len(raws))
	for i, raw := range raws {
		row, err := n.Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize record %d: %w", i, err)
		}
		table = append(table, row)
	}
	return table, nil
}

func (n *Normalizer) resolveCountry(row Row) string {
	if n.resolver == nil {
		return ""
	}
	var p geo.LatLng
	switch {
	case row.HasStart():
		p = geo.LatLng{Lat: *row.Lat, Lon: *row.Lon}
	case len(row.Coords) > 0:
		p = row.Coords[0]
	default:
		return ""
	}
	return n.resolver.ResolveCountry(geo.LatLng{Lat: geo.Round3(p.Lat), Lon: geo.Round3(p.Lon)})
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func int64Field(raw map[string]any, key string) int64 {
	switch n := raw[key].(type) {
	case interface{ Int64() (int64, error) }:
		if i, err := n.Int64(); err == nil {
			return i
		}
	case int64:
		return n
	case int:
		return int64(n)
	}
	f, _ := toFloat(raw[key])
	return int64(f)
}

func latLngField(raw map[string]any, key string) (float64, float64, bool) {
	pair, ok := raw[key].([]any)
	if !ok || len(pair) != 2 {
		return 0, 0, false
	}
	lat, ok := toFloat(pair[0])
	if !ok {
		return 0, 0, false
	}
	lon, ok := toFloat(pair[1])
	if !ok {
		return 0, 0, false
	}
	return lat, lon, true
}

func summaryPolyline(raw map[string]any) string {
	m, ok := raw["map"].(map[string]any)
	if !ok {
		return ""
	}
	return strings.TrimSpace(stringField(m, "summary_polyline"))
}

// toFloat accepts both float64 and json.Number style values, depending on
// how the record was decoded
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
