package geospatial

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Distance is a physical length. The zero value is zero meters.
type Distance struct {
	meters float64
}

// Meters returns a Distance of m meters.
func Meters(m float64) Distance { return Distance{meters: m} }

// Kilometers returns a Distance of km kilometers.
func Kilometers(km float64) Distance { return Distance{meters: km * 1000} }

// Meters returns the length in meters.
func (d Distance) Meters() float64 { return d.meters }

// Km returns the length in kilometers.
func (d Distance) Km() float64 { return d.meters / 1000 }

// IsPositive reports whether d is a finite length greater than zero.
func (d Distance) IsPositive() bool {
	return d.meters > 0 && !math.IsInf(d.meters, 0) && !math.IsNaN(d.meters)
}

func (d Distance) String() string {
	if math.Abs(d.meters) >= 1000 {
		return fmt.Sprintf("%.3fkm", d.Km())
	}
	return fmt.Sprintf("%.1fm", d.meters)
}

// Between returns the great-circle distance between two coordinates.
func Between(lat1, lon1, lat2, lon2 float64) Distance {
	return Meters(geo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2}))
}

// ValidCoordinate reports whether lon/lat are finite and inside the WGS 84 ranges.
func ValidCoordinate(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}
