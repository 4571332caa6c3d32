package aggregate

import (
	"sort"
	"strconv"

	"strava-activity-mapper/internal/activity"
)

const (
	minutesPerDay = 24 * 60
	bucketMinutes = 10
)

// ClockPoint places one activity on the 24-hour clock
type ClockPoint struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Time     string  `json:"time"`
	App      string  `json:"app"`
	Hour     int     `json:"hour"`
	Minute   int     `json:"minute"`
	Timestep    int     `json:"timestep"`
	BucketStart int     `json:"bucket_start"`
	Angle       float64 `json:"angle"`
	Count       int     `json:"count"`
}

// ClockTick labels one hour on the angular axis
type ClockTick struct {
	Angle float64 `json:"angle"`
	Label string  `json:"label"`
}

// Timestep returns the clock key of hour:minute, hour*60 plus the index of
// the 10-minute bucket within the hour. 08:15 is 481.
func Timestep(hour, minute int) int {
	return hour*60 + minute/bucketMinutes
}

// BucketStart returns the start of the 10-minute bucket holding hour:minute,
// in minutes since midnight. 08:15 is 490.
func BucketStart(hour, minute int) int {
	return hour*60 + (minute/bucketMinutes)*bucketMinutes
}

// MinutesToAngle maps minutes since midnight onto a clockwise dial with
// midnight at the top; a full day is one turn
func MinutesToAngle(minutes int) float64 {
	return float64(minutes) * 360 / minutesPerDay
}

// Clock buckets activities by start time. Points are sorted by timestep and
// Count numbers the activities sharing a timestep, starting at 1, so stacked
// points can be drawn at increasing radius. Angle is taken from the bucket
// start so points sit on the dial at their wall-clock position.
func Clock(table activity.Table) []ClockPoint {
	out := make([]ClockPoint, 0, len(table))
	for _, row := range table {
		start := BucketStart(row.Hour, row.Minute)
		out = append(out, ClockPoint{
			ID:          row.ID,
			Name:        row.Name,
			Time:        row.Time,
			App:         row.App,
			Hour:        row.Hour,
			Minute:      row.Minute,
			Timestep:    Timestep(row.Hour, row.Minute),
			BucketStart: start,
			Angle:       MinutesToAngle(start),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestep < out[j].Timestep
	})

	seen := make(map[int]int)
	for i := range out {
		seen[out[i].Timestep]++
		out[i].Count = seen[out[i].Timestep]
	}
	return out
}

// MaxCount returns the tallest stack on the clock, 0 for no points
func MaxCount(points []ClockPoint) int {
	highest := 0
	for _, p := range points {
		if p.Count > highest {
			highest = p.Count
		}
	}
	return highest
}

// ClockTicks returns one tick per hour, labelling midnight as 24
func ClockTicks() []ClockTick {
	ticks := make([]ClockTick, 0, 24)
	for hr := 0; hr < 24; hr++ {
		label := hr
		if hr == 0 {
			label = 24
		}
		ticks = append(ticks, ClockTick{Angle: MinutesToAngle(hr * 60), Label: strconv.Itoa(label)})
	}
	return ticks
}
