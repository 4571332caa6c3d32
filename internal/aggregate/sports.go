package aggregate

import (
	"sort"

	"strava-activity-mapper/internal/activity"
)

// SportCount is the number of activities of one sport type
type SportCount struct {
	SportType string `json:"sport_type"`
	Counts    int    `json:"counts"`
}

// SportTypes counts activities per sport type, most frequent first. Equal
// counts keep the order in which the sport types first appear in the table.
func SportTypes(table activity.Table) []SportCount {
	out := []SportCount{}
	index := make(map[string]int)
	for _, row := range table {
		i, ok := index[row.SportType]
		if !ok {
			i = len(out)
			index[row.SportType] = i
			out = append(out, SportCount{SportType: row.SportType})
		}
		out[i].Counts++
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Counts > out[j].Counts
	})
	return out
}
