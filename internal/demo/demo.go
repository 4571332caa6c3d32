// Package demo ships a small anonymised activity history that can be shown
// without connecting a Strava account.
package demo

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/goccy/go-json"
)

// AthleteName labels dashboards built from the demo data
const AthleteName = "Demo Athlete"

//go:embed activities.json
var activitiesJSON []byte

// Records decodes the embedded activities in the same shape the Strava
// listing endpoint returns them, most recent first
func Records() ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(activitiesJSON))
	dec.UseNumber()

	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode demo activities: %w", err)
	}
	return records, nil
}
