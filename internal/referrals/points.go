package referrals

import (
	"math"
	"strings"
)

// Breakdown explains how a property's points were computed
type Breakdown struct {
	BasePoints    int64  `json:"basePoints"`
	AreaBonus     int64  `json:"areaBonus"`
	LocationBonus string `json:"locationBonus"`
	Premium       bool   `json:"premium"`
	MinimumPoints int64  `json:"minimumPoints"`
}

// PropertyPoints computes the points for listing a property:
// one point per 10 sqm, two more per 20 sqm above 200 sqm, +50% (floored)
// in a premium city, and never less than minimum.
func PropertyPoints(area float64, location string, premiumCities []string, minimum int64) (int64, Breakdown) {
	b := Breakdown{LocationBonus: "0%", MinimumPoints: minimum}

	if area > 0 {
		b.BasePoints = int64(math.Floor(area / 10))
		if area > 200 {
			b.AreaBonus = int64(math.Floor((area-200)/20)) * 2
		}
	}
	points := b.BasePoints + b.AreaBonus

	if isPremium(location, premiumCities) {
		b.Premium = true
		b.LocationBonus = "50%"
		points = int64(math.Floor(float64(points) * 1.5))
	}

	return max(points, minimum), b
}

func isPremium(location string, cities []string) bool {
	location = strings.ToLower(strings.TrimSpace(location))
	if location == "" {
		return false
	}
	for _, city := range cities {
		if city != "" && strings.Contains(location, strings.ToLower(city)) {
			return true
		}
	}
	return false
}
