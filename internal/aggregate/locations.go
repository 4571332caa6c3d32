package aggregate

import (
	"strava-activity-mapper/internal/activity"
)

// LocationTrace is every route flattened into one path. The sequences are
// parallel: index i of each describes the same point. A nil entry in all of
// them marks a break between two activities.
type LocationTrace struct {
	Lat  []*float64 `json:"lat"`
	Lon  []*float64 `json:"lon"`
	Name []*string  `json:"name"`
	Date []*string  `json:"date"`
	Year []*int     `json:"year"`
	Time []*string  `json:"time"`
}

// Len returns the number of entries, breaks included
func (l LocationTrace) Len() int {
	return len(l.Lat)
}

// Empty reports whether there is nothing to draw
func (l LocationTrace) Empty() bool {
	return l.Len() == 0
}

// IsBreak reports whether entry i separates two activities
func (l LocationTrace) IsBreak(i int) bool {
	return l.Lat[i] == nil
}

// Locations flattens the rows that have a start coordinate: the start point,
// then each decoded route point, then a break.
func Locations(table activity.Table) LocationTrace {
	trace := LocationTrace{
		Lat:  []*float64{},
		Lon:  []*float64{},
		Name: []*string{},
		Date: []*string{},
		Year: []*int{},
		Time: []*string{},
	}

	for _, row := range table {
		if !row.HasStart() {
			continue
		}
		trace.add(row, *row.Lat, *row.Lon)
		for _, p := range row.Coords {
			trace.add(row, p.Lat, p.Lon)
		}
		trace.addBreak()
	}
	return trace
}

func (l *LocationTrace) add(row activity.Row, lat, lon float64) {
	l.Lat = append(l.Lat, &lat)
	l.Lon = append(l.Lon, &lon)
	l.Name = append(l.Name, ptr(row.Name))
	l.Date = append(l.Date, ptr(row.Date))
	l.Year = append(l.Year, ptr(row.Year))
	l.Time = append(l.Time, ptr(row.Time))
}

func (l *LocationTrace) addBreak() {
	l.Lat = append(l.Lat, nil)
	l.Lon = append(l.Lon, nil)
	l.Name = append(l.Name, nil)
	l.Date = append(l.Date, nil)
	l.Year = append(l.Year, nil)
	l.Time = append(l.Time, nil)
}

func ptr[T any](v T) *T {
	return &v
}
