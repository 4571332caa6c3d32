// Package aggregate turns a normalized activity table into the chart-ready
// views of the dashboard. Every function here is pure: it never mutates its
// input and an empty table yields an empty view.
package aggregate

import (
	"sort"

	"strava-activity-mapper/internal/activity"
)

// WeekCount is the number of activities of one app in one week
type WeekCount struct {
	App       string `json:"app"`
	Year      int    `json:"year"`
	Week      int    `json:"week"`
	WeekStart string `json:"week_start"`
	Count     int    `json:"count"`
}

// WeekPosition places one activity inside its week for the scatter overlay.
// Pos is the activity's ordinal among the activities of the same week, in
// table order, starting at 0.
type WeekPosition struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Date         string `json:"date"`
	CalendarWeek string `json:"calendar_week"`
	Pos          int    `json:"pos"`
	CW           string `json:"cw"`
}

// WeeklySeries is the timeline view
type WeeklySeries struct {
	Counts    []WeekCount    `json:"counts"`
	Positions []WeekPosition `json:"positions"`
}

// Empty reports whether there is nothing to plot
func (w WeeklySeries) Empty() bool {
	return len(w.Counts) == 0
}

type weekKey struct {
	app  string
	year int
	week int
}

// Weekly counts activities per (app, year, week) and numbers the activities
// within each calendar week. Positions follow the table order; the numbering
// is keyed on calendar_week so rows of one week need not be adjacent.
func Weekly(table activity.Table) WeeklySeries {
	series := WeeklySeries{
		Counts:    []WeekCount{},
		Positions: make([]WeekPosition, 0, len(table)),
	}

	counts := make(map[weekKey]int)
	seen := make(map[string]int)
	for _, row := range table {
		counts[weekKey{app: row.App, year: row.Year, week: row.Week}]++

		pos := seen[row.CalendarWeek]
		seen[row.CalendarWeek] = pos + 1

		series.Positions = append(series.Positions, WeekPosition{
			ID:           row.ID,
			Name:         row.Name,
			Date:         row.Date,
			CalendarWeek: row.CalendarWeek,
			Pos:          pos,
			CW:           activity.FirstDayOfWeek(row.Year, row.Week).Format(activity.DateLayout),
		})
	}

	for k, n := range counts {
		series.Counts = append(series.Counts, WeekCount{
			App:       k.app,
			Year:      k.year,
			Week:      k.week,
			WeekStart: activity.FirstDayOfWeek(k.year, k.week).Format(activity.DateLayout),
			Count:     n,
		})
	}
	sort.Slice(series.Counts, func(i, j int) bool {
		a, b := series.Counts[i], series.Counts[j]
		if a.App != b.App {
			return a.App < b.App
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Week < b.Week
	})

	return series
}
