package geo

import "math"

const earthRadiusM = 6371000.0

// DistanceM returns the great-circle distance in meters between two
// coordinates using the haversine formula.
func DistanceM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// WithinRadius reports whether the two coordinates are at most radiusM
// meters apart.
func WithinRadius(lat1, lon1, lat2, lon2, radiusM float64) bool {
	return DistanceM(lat1, lon1, lat2, lon2) <= radiusM
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
