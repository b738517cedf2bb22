package domain

import (
	"fmt"
	"math"
)

// cellEpsilon absorbs rounding in the cell index division so that grid
// vertices map back onto their own cell.
const cellEpsilon = 1e-9

// maxGridCells caps Cols*Rows before any allocation happens.
const maxGridCells = 1 << 31

// Cell addresses one grid cell: Row along latitude, Col along longitude.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Grid divides a Bounds into Rows x Cols cells whose edges approximate a
// physical interval.
type Grid struct {
	Bounds  Bounds  `json:"bounds"`
	Cols    int     `json:"cols"`
	Rows    int     `json:"rows"`
	LonStep float64 `json:"lon_step"`
	LatStep float64 `json:"lat_step"`
}

// NewGrid derives the cell counts for b at the given interval:
// Cols = floor(width/interval), Rows = floor(height/interval).
func NewGrid(b Bounds, interval Distance) (Grid, error) {
	if !interval.IsPositive() {
		return Grid{}, fmt.Errorf("%w: interval %s", ErrDegenerateGrid, interval)
	}
	width, height := b.WidthHeight()
	cols := math.Floor(width.Km() / interval.Km())
	rows := math.Floor(height.Km() / interval.Km())
	if math.IsNaN(cols) || math.IsNaN(rows) || cols < 1 || rows < 1 {
		return Grid{}, fmt.Errorf("%w: %s x %s at interval %s",
			ErrDegenerateGrid, width, height, interval)
	}
	if cols*rows > maxGridCells {
		return Grid{}, fmt.Errorf("%w: %.0f x %.0f cells", ErrGridTooLarge, cols, rows)
	}
	g := Grid{Bounds: b, Cols: int(cols), Rows: int(rows)}
	g.LatStep = (b.Hi.Lat - b.Lo.Lat) / float64(g.Rows)
	g.LonStep = (b.Hi.Lon - b.Lo.Lon) / float64(g.Cols)
	return g, nil
}

// Cells returns Cols*Rows.
func (g Grid) Cells() int { return g.Cols * g.Rows }

// Index returns the fractional (row, col) position of p in cell units.
func (g Grid) Index(p GeoPoint) (float64, float64) {
	return (p.Lat - g.Bounds.Lo.Lat) / g.LatStep, (p.Lon - g.Bounds.Lo.Lon) / g.LonStep
}

// Cell maps p onto its cell. Membership is decided on raw coordinates:
// ok is false unless Lo <= p < Hi on both axes, so a point a hair outside
// the bounds is never pulled in. Inside, the fractional index is nudged by
// cellEpsilon before flooring so grid vertices land in their own cell, and
// the result is clamped to the last row and column.
func (g Grid) Cell(p GeoPoint) (c Cell, ok bool) {
	lo, hi := g.Bounds.Lo, g.Bounds.Hi
	if !(p.Lat >= lo.Lat && p.Lat < hi.Lat && p.Lon >= lo.Lon && p.Lon < hi.Lon) {
		return Cell{}, false
	}
	fi, fj := g.Index(p)
	row := min(int(math.Floor(fi+cellEpsilon)), g.Rows-1)
	col := min(int(math.Floor(fj+cellEpsilon)), g.Cols-1)
	return Cell{Row: row, Col: col}, true
}

// Point returns the low corner of cell c, interpolated linearly in degree space.
func (g Grid) Point(c Cell) GeoPoint {
	lo, hi := g.Bounds.Lo, g.Bounds.Hi
	return GeoPoint{
		Lon: lo.Lon + (float64(c.Col)/float64(g.Cols))*(hi.Lon-lo.Lon),
		Lat: lo.Lat + (float64(c.Row)/float64(g.Rows))*(hi.Lat-lo.Lat),
	}
}

// Vertices emits the low corner of every cell, row-major: latitude rows
// outer, longitude columns inner, both ascending.
func (g Grid) Vertices() *PointSet {
	out := &PointSet{points: make([]GeoPoint, 0, g.Cells())}
	for i := 0; i < g.Rows; i++ {
		for j := 0; j < g.Cols; j++ {
			out.Append(g.Point(Cell{Row: i, Col: j}))
		}
	}
	return out
}

// Downsample keeps the first point of s in each cell and drops points
// outside the grid. Retained points keep their relative order.
func (g Grid) Downsample(s *PointSet) *PointSet {
	seen := make(map[Cell]struct{})
	out := &PointSet{}
	for _, p := range s.points {
		c, ok := g.Cell(p)
		if !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out.Append(p.Clone())
	}
	return out
}
