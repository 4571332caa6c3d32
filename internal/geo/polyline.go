package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"
)

// Precision is the number of decimal digits carried by Strava summary polylines
const Precision = 5

var scale = math.Pow10(Precision)

// ErrMalformedPolyline is returned when an encoded path cannot be fully decoded
var ErrMalformedPolyline = errors.New("malformed polyline")

// LatLng is a single decoded point
type LatLng struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Decode decodes a precision-5 encoded polyline into its points.
// An empty string decodes to an empty, non-nil slice.
func Decode(encoded string) ([]LatLng, error) {
	if encoded == "" {
		return []LatLng{}, nil
	}

	coords, rest, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPolyline, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedPolyline, len(rest))
	}

	points := make([]LatLng, 0, len(coords))
	for _, c := range coords {
		if len(c) != 2 {
			return nil, fmt.Errorf("%w: coordinate with %d dimensions", ErrMalformedPolyline, len(c))
		}
		// deltas are summed in floating point, snap back to the encoding grid
		points = append(points, LatLng{Lat: round(c[0]), Lon: round(c[1])})
	}
	return points, nil
}

// Round3 rounds a coordinate to three decimals (~100m), the granularity used
// for country lookups
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round(v float64) float64 {
	return math.Round(v*scale) / scale
}
