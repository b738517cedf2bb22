package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Bounds is an axis-aligned lon/lat rectangle with Lo <= Hi componentwise.
type Bounds struct {
	Lo GeoPoint `json:"lo"`
	Hi GeoPoint `json:"hi"`
}

// NewBounds normalizes two arbitrary corners into a Bounds.
func NewBounds(a, b GeoPoint) Bounds {
	return Bounds{
		Lo: GeoPoint{Lon: math.Min(a.Lon, b.Lon), Lat: math.Min(a.Lat, b.Lat)},
		Hi: GeoPoint{Lon: math.Max(a.Lon, b.Lon), Lat: math.Max(a.Lat, b.Lat)},
	}
}

// BoundsFromPoints returns the tight rectangle around points, or false when
// points is empty.
func BoundsFromPoints(points []GeoPoint) (Bounds, bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	lo := GeoPoint{Lon: points[0].Lon, Lat: points[0].Lat}
	hi := lo
	for _, p := range points[1:] {
		lo.Lon = math.Min(lo.Lon, p.Lon)
		lo.Lat = math.Min(lo.Lat, p.Lat)
		hi.Lon = math.Max(hi.Lon, p.Lon)
		hi.Lat = math.Max(hi.Lat, p.Lat)
	}
	return Bounds{Lo: lo, Hi: hi}, true
}

// MustBounds unwraps the result of BoundsFromPoints or PointSet.Bounds.
// Using absent bounds is a programming error and panics.
func MustBounds(b Bounds, ok bool) Bounds {
	if !ok {
		panic("domain: bounds of an empty point set")
	}
	return b
}

// Validate checks both corners and the Lo <= Hi invariant.
func (b Bounds) Validate() error {
	if err := b.Lo.Validate(); err != nil {
		return err
	}
	if err := b.Hi.Validate(); err != nil {
		return err
	}
	if b.Lo.Lon > b.Hi.Lon || b.Lo.Lat > b.Hi.Lat {
		return fmt.Errorf("%w: lo %v,%v above hi %v,%v",
			ErrInvalidCoordinate, b.Lo.Lon, b.Lo.Lat, b.Hi.Lon, b.Hi.Lat)
	}
	return nil
}

// IsDegenerate reports whether the rectangle has zero area.
func (b Bounds) IsDegenerate() bool {
	return b.Lo.Lon == b.Hi.Lon || b.Lo.Lat == b.Hi.Lat
}

// WidthHeight returns the geodesic length of the bottom edge (width) and the
// left edge (height).
//
// A single edge stands in for the whole rectangle, so meridian convergence is
// ignored: the top edge of a northern-hemisphere box is shorter than its
// reported width. Grid counts derived from this are calibrated to it.
func (b Bounds) WidthHeight() (Distance, Distance) {
	width := b.Lo.DistanceTo(GeoPoint{Lon: b.Hi.Lon, Lat: b.Lo.Lat})
	height := b.Lo.DistanceTo(GeoPoint{Lon: b.Lo.Lon, Lat: b.Hi.Lat})
	return width, height
}

// Contains reports whether p lies inside the closed rectangle.
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lon >= b.Lo.Lon && p.Lon <= b.Hi.Lon &&
		p.Lat >= b.Lo.Lat && p.Lat <= b.Hi.Lat
}

// Center returns the midpoint of the rectangle in degree space.
func (b Bounds) Center() GeoPoint {
	return GeoPoint{Lon: (b.Lo.Lon + b.Hi.Lon) / 2, Lat: (b.Lo.Lat + b.Hi.Lat) / 2}
}

// Bound converts to an orb.Bound.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.Lo.Lon, b.Lo.Lat},
		Max: orb.Point{b.Hi.Lon, b.Hi.Lat},
	}
}

// BoundsFromOrb converts an orb.Bound.
func BoundsFromOrb(ob orb.Bound) Bounds {
	return NewBounds(
		GeoPoint{Lon: ob.Min.Lon(), Lat: ob.Min.Lat()},
		GeoPoint{Lon: ob.Max.Lon(), Lat: ob.Max.Lat()},
	)
}

// Sample lays a synthetic grid over the rectangle at the given spacing.
// The result has exactly Cols*Rows points in row-major order.
func (b Bounds) Sample(interval Distance) (*PointSet, error) {
	g, err := NewGrid(b, interval)
	if err != nil {
		return nil, err
	}
	return g.Vertices(), nil
}
