package render

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/JettChenT/ek-geo/internal/core/domain"
	"github.com/JettChenT/ek-geo/internal/core/ports"
)

const (
	// ContentTypeGeoJSON is the media type GeoJSON output is served as.
	ContentTypeGeoJSON = "application/geo+json"
	// RadiusProperty is the feature property the render radius is written to.
	RadiusProperty = "radius"
)

// GeoJSON renders records as a FeatureCollection of Point features. Aux
// attributes become feature properties.
type GeoJSON struct{}

// NewGeoJSON creates a GeoJSON renderer.
func NewGeoJSON() *GeoJSON { return &GeoJSON{} }

// Render implements ports.Renderer.
func (GeoJSON) Render(_ context.Context, records []ports.RenderRecord, radius float64) ([]byte, string, error) {
	fc := FeatureCollection(records, radius)
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, "", fmt.Errorf("marshal geojson: %w", err)
	}
	return data, ContentTypeGeoJSON, nil
}

// FeatureCollection builds the collection Render serializes. The bbox is set
// when there is at least one record.
func FeatureCollection(records []ports.RenderRecord, radius float64) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	mp := make(orb.MultiPoint, 0, len(records))
	for _, r := range records {
		pt := orb.Point{r.Lon, r.Lat}
		mp = append(mp, pt)

		f := geojson.NewFeature(pt)
		f.Properties = make(geojson.Properties, len(r.Aux)+1)
		maps.Copy(f.Properties, r.Aux)
		if radius > 0 {
			f.Properties[RadiusProperty] = radius
		}
		fc.Append(f)
	}
	if len(mp) > 0 {
		fc.BBox = geojson.NewBBox(mp.Bound())
	}
	return fc
}

// DecodePoints reads points from either a GeoJSON FeatureCollection of Point
// features or a plain JSON array of {"lon","lat","aux"} objects. Feature
// properties become Aux. Non-point features are rejected.
func DecodePoints(data []byte) ([]domain.GeoPoint, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		var points []domain.GeoPoint
		if err := json.Unmarshal(data, &points); err != nil {
			return nil, fmt.Errorf("decode points: %w", err)
		}
		return points, validate(points)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	points := make([]domain.GeoPoint, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("feature %d: missing geometry", i)
		}
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: unsupported geometry %s", i, f.Geometry.GeoJSONType())
		}
		p := domain.GeoPoint{Lon: pt.Lon(), Lat: pt.Lat()}
		if len(f.Properties) > 0 {
			p.Aux = map[string]any(f.Properties.Clone())
		}
		points = append(points, p)
	}
	return points, validate(points)
}

func validate(points []domain.GeoPoint) error {
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	return nil
}
