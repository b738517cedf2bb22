package domain

import (
	"encoding/json"
	"fmt"
	"iter"
)

// IndexKey is the attribute InjectIndex writes each point's position under.
const IndexKey = "idx"

// PointSet is an ordered collection of points. It is not safe for concurrent
// mutation.
type PointSet struct {
	points []GeoPoint
}

// NewPointSet returns a set holding copies of points, in order.
func NewPointSet(points ...GeoPoint) *PointSet {
	s := &PointSet{points: make([]GeoPoint, 0, len(points))}
	for _, p := range points {
		s.points = append(s.points, p.Clone())
	}
	return s
}

// Append adds p at the end of the set.
func (s *PointSet) Append(p GeoPoint) {
	s.points = append(s.points, p)
}

// Len returns the number of points.
func (s *PointSet) Len() int { return len(s.points) }

// At returns the point at position i.
func (s *PointSet) At(i int) (GeoPoint, error) {
	if i < 0 || i >= len(s.points) {
		return GeoPoint{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(s.points))
	}
	return s.points[i], nil
}

// Slice returns the points in [lo, hi) as an independent set.
func (s *PointSet) Slice(lo, hi int) (*PointSet, error) {
	if lo < 0 || hi > len(s.points) || lo > hi {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrIndexOutOfRange, lo, hi, len(s.points))
	}
	return NewPointSet(s.points[lo:hi]...), nil
}

// All iterates over positions and points in order.
func (s *PointSet) All() iter.Seq2[int, GeoPoint] {
	return func(yield func(int, GeoPoint) bool) {
		for i, p := range s.points {
			if !yield(i, p) {
				return
			}
		}
	}
}

// Points returns a copy of the underlying slice. Attribute maps are shared.
func (s *PointSet) Points() []GeoPoint {
	out := make([]GeoPoint, len(s.points))
	copy(out, s.points)
	return out
}

// Bounds derives the tight rectangle around the set; false when empty.
func (s *PointSet) Bounds() (Bounds, bool) {
	return BoundsFromPoints(s.points)
}

// InjectIndex stores each point's position under IndexKey and returns s.
func (s *PointSet) InjectIndex() *PointSet {
	for i := range s.points {
		s.points[i].UpdateAux(map[string]any{IndexKey: i})
	}
	return s
}

// Sample keeps at most one point per grid cell of bounds at the given
// interval. The first point in input order wins its cell; points outside the
// grid are dropped. Retained points keep their relative input order.
func (s *PointSet) Sample(bounds Bounds, interval Distance) (*PointSet, error) {
	g, err := NewGrid(bounds, interval)
	if err != nil {
		return nil, err
	}
	return g.Downsample(s), nil
}

// MarshalJSON encodes the set as a JSON array of points.
func (s *PointSet) MarshalJSON() ([]byte, error) {
	if s.points == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.points)
}

// UnmarshalJSON decodes a JSON array of points.
func (s *PointSet) UnmarshalJSON(data []byte) error {
	var points []GeoPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return err
	}
	s.points = points
	return nil
}
