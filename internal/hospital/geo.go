package hospital

import "math"

const earthRadiusKm = 6371

// DistanceKm returns the haversine great-circle distance in kilometres
// between two coordinates. Identical points yield exactly 0.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	latDelta := toRadians(lat2 - lat1)
	lonDelta := toRadians(lon2 - lon1)

	a := math.Sin(latDelta/2)*math.Sin(latDelta/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(lonDelta/2)*math.Sin(lonDelta/2)

	// Clamp against floating point drift before the sqrt; keeps antipodal
	// points from producing NaN.
	if a > 1 {
		a = 1
	}

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
