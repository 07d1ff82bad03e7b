// Package matching ranks an agency's volunteers for a report.
package matching

import (
	"math"
	"sort"

	"ewaste-backend/internal/models"
)

const earthRadiusKm = 6371.0

// DefaultQuota is the number of pickups a volunteer may take on per day.
const DefaultQuota = 4

// HaversineKm calculates the great-circle distance between two coordinates in kilometers
func HaversineKm(a, b models.Coordinates) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Candidate is one ranked volunteer. DistanceKm is nil when either end has no known
// position.
type Candidate struct {
	Volunteer  models.Volunteer `json:"volunteer"`
	DistanceKm *float64         `json:"distance_km"`
	AtQuota    bool             `json:"at_quota"`

	distance float64
}

// Rank orders volunteers for a report located at dest. Volunteers at their daily
// quota always come after everyone else; within each group the nearest come first and
// unknown distances sort last. dest may be nil when geocoding failed, in which case
// every distance is unknown and the roster order is kept within each group.
func Rank(dest *models.Coordinates, volunteers []models.Volunteer, quota int) []Candidate {
	if quota <= 0 {
		quota = DefaultQuota
	}

	candidates := make([]Candidate, 0, len(volunteers))
	for _, v := range volunteers {
		c := Candidate{
			Volunteer: v,
			AtQuota:   v.PickupsToday >= quota,
			distance:  math.Inf(1),
		}
		if loc := v.Location(); dest != nil && loc != nil {
			d := HaversineKm(*dest, *loc)
			c.distance = d
			c.DistanceKm = &d
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].AtQuota != candidates[j].AtQuota {
			return !candidates[i].AtQuota
		}
		return candidates[i].distance < candidates[j].distance
	})

	return candidates
}
