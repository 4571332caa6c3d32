package pipeline

import (
	"time"

	"strava-activity-mapper/internal/activity"
	"strava-activity-mapper/internal/aggregate"
	"strava-activity-mapper/internal/config"
)

// ClockView is the hour-of-day chart: the points plus the axis it is drawn on
type ClockView struct {
	Points   []aggregate.ClockPoint `json:"points"`
	Ticks    []aggregate.ClockTick  `json:"ticks"`
	MaxCount int                    `json:"max_count"`
}

// Dashboard is everything the presentation layer needs for one athlete.
// Activities is the canonical table every view was reduced from; Table is its
// display projection. Loaded is false until a pipeline run or demo load has
// succeeded.
type Dashboard struct {
	Loaded      bool      `json:"loaded"`
	Source      string    `json:"source,omitempty"`
	AthleteName string    `json:"athlete_name,omitempty"`
	CreatedAt   string    `json:"created_at,omitempty"`
	GeneratedAt time.Time `json:"generated_at,omitempty"`
	Error       string    `json:"error,omitempty"`

	Activities activity.Table           `json:"activities"`
	Table      []activity.DisplayRow    `json:"table"`
	Weekly     aggregate.WeeklySeries   `json:"weekly"`
	SportTypes []aggregate.SportCount   `json:"sport_types"`
	Weekdays   []aggregate.WeekdayShare `json:"weekdays"`
	Clock      ClockView                `json:"clock"`
	Locations  aggregate.LocationTrace  `json:"locations"`

	Chart config.Chart `json:"chart"`
}

// Empty returns a dashboard with every view present and empty, as shown
// before any data has been loaded
func Empty(chart config.Chart) *Dashboard {
	return Build(activity.Table{}, chart)
}

// Build runs every reducer over table. Build never fails; an empty table
// gives empty views.
func Build(table activity.Table, chart config.Chart) *Dashboard {
	clock := aggregate.Clock(table)
	return &Dashboard{
		Activities: table,
		Table:      table.Display(),
		Weekly:     aggregate.Weekly(table),
		SportTypes: aggregate.SportTypes(table),
		Weekdays:   aggregate.Weekdays(table),
		Clock: ClockView{
			Points:   clock,
			Ticks:    aggregate.ClockTicks(),
			MaxCount: aggregate.MaxCount(clock),
		},
		Locations: aggregate.Locations(table),
		Chart:     chart,
	}
}

// HasData reports whether the loaded dashboard holds any activity
func (d *Dashboard) HasData() bool {
	return len(d.Table) > 0
}
