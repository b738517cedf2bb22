package domain

import (
	"fmt"
	"maps"

	"github.com/JettChenT/ek-geo/internal/pkg/geospatial"
)

// Distance is a physical length produced by geodesic measurement.
type Distance = geospatial.Distance

// GeoPoint represents a geographic coordinate (WGS 84) with open-ended
// per-point attributes.
type GeoPoint struct {
	Lon float64        `json:"lon"`
	Lat float64        `json:"lat"`
	Aux map[string]any `json:"aux,omitempty"`
}

// NewGeoPoint builds a point, rejecting non-finite or out-of-range coordinates.
func NewGeoPoint(lon, lat float64) (GeoPoint, error) {
	p := GeoPoint{Lon: lon, Lat: lat}
	if err := p.Validate(); err != nil {
		return GeoPoint{}, err
	}
	return p, nil
}

// Validate checks the coordinate part of the point.
func (p GeoPoint) Validate() error {
	if !geospatial.ValidCoordinate(p.Lon, p.Lat) {
		return fmt.Errorf("%w: lon=%v lat=%v", ErrInvalidCoordinate, p.Lon, p.Lat)
	}
	return nil
}

// LonLat returns the coordinate as (lon, lat).
func (p GeoPoint) LonLat() (float64, float64) { return p.Lon, p.Lat }

// LatLon returns the coordinate as (lat, lon).
func (p GeoPoint) LatLon() (float64, float64) { return p.Lat, p.Lon }

// Coord returns the i-th coordinate component: 0 is longitude, 1 is latitude.
func (p GeoPoint) Coord(i int) (float64, error) {
	switch i {
	case 0:
		return p.Lon, nil
	case 1:
		return p.Lat, nil
	}
	return 0, fmt.Errorf("%w: coordinate %d", ErrIndexOutOfRange, i)
}

// Field looks up "lon", "lat" or an attribute by name.
func (p GeoPoint) Field(key string) (any, bool) {
	switch key {
	case "lon":
		return p.Lon, true
	case "lat":
		return p.Lat, true
	}
	v, ok := p.Aux[key]
	return v, ok
}

// SameLocation reports whether both points have identical coordinates.
func (p GeoPoint) SameLocation(o GeoPoint) bool {
	return p.Lon == o.Lon && p.Lat == o.Lat
}

// DistanceTo returns the geodesic distance to o.
func (p GeoPoint) DistanceTo(o GeoPoint) Distance {
	return geospatial.Between(p.Lat, p.Lon, o.Lat, o.Lon)
}

// UpdateAux merges kv into the point's attributes in place. The receiver
// owns its map; callers sharing a point share the update.
func (p *GeoPoint) UpdateAux(kv map[string]any) {
	if len(kv) == 0 {
		return
	}
	if p.Aux == nil {
		p.Aux = make(map[string]any, len(kv))
	}
	maps.Copy(p.Aux, kv)
}

// WithAux returns a copy of the point with kv merged into a fresh attribute map.
func (p GeoPoint) WithAux(kv map[string]any) GeoPoint {
	out := p.Clone()
	out.UpdateAux(kv)
	return out
}

// Clone returns a copy that shares no attribute map with p.
func (p GeoPoint) Clone() GeoPoint {
	if p.Aux != nil {
		p.Aux = maps.Clone(p.Aux)
	}
	return p
}

// DistanceBetween returns the geodesic distance between a and b.
func DistanceBetween(a, b GeoPoint) Distance {
	return a.DistanceTo(b)
}
