package activity

import (
	"fmt"
	"time"

	"strava-activity-mapper/internal/geo"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Row is the canonical, normalized form of one activity
type Row struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	URL          string       `json:"url"`
	Timestamp    time.Time    `json:"timestamp"`
	Date         string       `json:"date"`
	Year         int          `json:"year"`
	Week         int          `json:"week"`
	CalendarWeek string       `json:"calendar_week"`
	Weekday      int          `json:"weekday"`
	Time         string       `json:"time"`
	Hour         int          `json:"hour"`
	Minute       int          `json:"minute"`
	MovingTime   int64        `json:"moving_time"`
	Type         string       `json:"type"`
	SportType    string       `json:"sport_type"`
	Lat          *float64     `json:"lat"`
	Lon          *float64     `json:"lon"`
	Coords       []geo.LatLng `json:"coords"`
	Country      string       `json:"country,omitempty"`
	App          string       `json:"app"`
}

// HasStart reports whether the row carries a start coordinate
func (r Row) HasStart() bool {
	return r.Lat != nil && r.Lon != nil
}

// CalendarWeekKey builds the composite year-week key
func CalendarWeekKey(year, week int) string {
	return fmt.Sprintf("%d-%d", year, week)
}

// Columns lists the JSON names of every Row field, in field order
var Columns = []string{
	"id", "name", "url", "timestamp", "date", "year", "week", "calendar_week",
	"weekday", "time", "hour", "minute", "moving_time", "type", "sport_type",
	"lat", "lon", "coords", "country", "app",
}

// Table is an ordered set of rows, in the order the provider returned them
type Table []Row

// Empty reports whether the table holds no rows
func (t Table) Empty() bool {
	return len(t) == 0
}

// DisplayRow is the subset of columns shown in the activities listing
type DisplayRow struct {
	Name      string `json:"name"`
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	Date      string `json:"date"`
	SportType string `json:"sport_type"`
	Country   string `json:"country"`
}

// Display projects the table onto its display columns
func (t Table) Display() []DisplayRow {
	out := make([]DisplayRow, 0, len(t))
	for _, r := range t {
		out = append(out, DisplayRow{
			Name:      r.Name,
			ID:        r.ID,
			URL:       r.URL,
			Date:      r.Date,
			SportType: r.SportType,
			Country:   r.Country,
		})
	}
	return out
}
