package fare

import "math"

const (
	EarthRadiusKm     = 6371.0
	DefaultDistanceKm = 2.0
)

// HopDistanceKm returns the authoritative hop distance when known, the
// great-circle distance between the stations when both have coordinates,
// and DefaultDistanceKm otherwise.
func HopDistanceKm(h Hop) float64 {
	if h.DistanceKm != nil {
		return *h.DistanceKm
	}
	if h.From.Lat == nil || h.From.Lon == nil || h.To.Lat == nil || h.To.Lon == nil {
		return DefaultDistanceKm
	}
	d := Haversine(*h.From.Lat, *h.From.Lon, *h.To.Lat, *h.To.Lon)
	return math.Round(d*100) / 100
}

// Haversine returns the great-circle distance in kilometres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}
