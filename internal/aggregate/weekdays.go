package aggregate

import (
	"sort"

	"strava-activity-mapper/internal/activity"
)

// WeekdayShare is the share of all activities that one app recorded on one
// weekday (0=Monday)
type WeekdayShare struct {
	App        string  `json:"app"`
	Weekday    int     `json:"weekday"`
	Counts     int     `json:"counts"`
	Percentage float64 `json:"percentage"`
}

// Weekdays counts activities per (app, weekday). Percentage divides by the
// row count of the whole table, not the app's subtotal, so with several apps
// one app's shares sum to that app's fraction of all activities.
func Weekdays(table activity.Table) []WeekdayShare {
	out := []WeekdayShare{}
	if table.Empty() {
		return out
	}

	type key struct {
		app     string
		weekday int
	}
	counts := make(map[key]int)
	for _, row := range table {
		counts[key{app: row.App, weekday: row.Weekday}]++
	}

	total := float64(len(table))
	for k, n := range counts {
		out = append(out, WeekdayShare{
			App:        k.app,
			Weekday:    k.weekday,
			Counts:     n,
			Percentage: float64(n) / total,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].App != out[j].App {
			return out[i].App < out[j].App
		}
		return out[i].Weekday < out[j].Weekday
	})
	return out
}
