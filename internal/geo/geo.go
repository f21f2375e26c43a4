package geo

import "math"

const earthRadiusKm = 6371.0

// Distance returns the great-circle distance in kilometres between two points given in degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}

// ETA returns minutes to cover distanceKm at speedKmh. Zero when speed is not positive.
func ETA(distanceKm, speedKmh float64) float64 {
	if speedKmh <= 0 {
		return 0
	}
	return distanceKm / speedKmh * 60
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
