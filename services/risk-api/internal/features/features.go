// Package features derives the model inputs for a checkout: distance, hour and normalized categoricals.
package features

import (
	"errors"
	"math"
	"strings"
	"time"
)

const earthRadiusKm = 6371.0

var ErrUnparseableTimestamp = errors.New("unparseable timestamp")

// DistanceKm is the great-circle distance between two points on a sphere of radius 6371 km.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseTimestamp accepts RFC 3339 and the zone-less layouts the scoring data uses. Zone-less values keep
// their wall clock.
func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrUnparseableTimestamp
}

// HourOfDay returns the 0-23 hour of the timestamp's own wall clock.
func HourOfDay(ts string) (int, error) {
	t, err := ParseTimestamp(ts)
	if err != nil {
		return 0, err
	}
	return t.Hour(), nil
}
