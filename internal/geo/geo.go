// Package geo provides the small amount of geospatial math the aggregation
// pipeline needs.
package geo

import "math"

const earthRadiusMiles = 3958.7613

// DistanceMiles returns the haversine great-circle distance in miles between
// two coordinates. The second return is false when any input is non-finite.
func DistanceMiles(lat1, lon1, lat2, lon2 float64) (float64, bool) {
	for _, v := range [...]float64{lat1, lon1, lat2, lon2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
	}

	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMiles * c, true
}
