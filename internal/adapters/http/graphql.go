package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/JettChenT/ek-geo/internal/core/domain"
	"github.com/JettChenT/ek-geo/internal/core/usecases"
	"github.com/JettChenT/ek-geo/internal/pkg/geospatial"
)

// jsonScalar passes aux attribute maps through unchanged.
var jsonScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:         "JSON",
	Description:  "Arbitrary JSON value",
	Serialize:    func(v interface{}) interface{} { return v },
	ParseValue:   func(v interface{}) interface{} { return v },
	ParseLiteral: func(v ast.Value) interface{} { return v.GetValue() },
})

// buildSchema creates the GraphQL schema wired to the sampling service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lon": &graphql.Field{Type: graphql.Float},
			"lat": &graphql.Field{Type: graphql.Float},
			"aux": &graphql.Field{Type: jsonScalar},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"lo":        &graphql.Field{Type: geoPointType},
			"hi":        &graphql.Field{Type: geoPointType},
			"width_km":  &graphql.Field{Type: graphql.Float},
			"height_km": &graphql.Field{Type: graphql.Float},
			"center":    &graphql.Field{Type: geoPointType},
		},
	})

	boundsInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "BoundsInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"lo_lon": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"lo_lat": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"hi_lon": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"hi_lat": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
		},
	})

	pointsArgs := graphql.FieldConfigArgument{
		"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
		"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1000},
	}

	pointSetType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PointSet",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"count":       &graphql.Field{Type: graphql.Int},
			"bounds":      &graphql.Field{Type: boundsType},
			"source_id":   &graphql.Field{Type: graphql.String},
			"interval_km": &graphql.Field{Type: graphql.Float},
			"metadata":    &graphql.Field{Type: jsonScalar},
			"created_at":  &graphql.Field{Type: graphql.String},
			"points": &graphql.Field{
				Type:        graphql.NewList(geoPointType),
				Description: "Points in stored order; loads the full set",
				Args:        pointsArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					m := p.Source.(map[string]interface{})
					set, err := deps.Sampling.GetPointSet(p.Context, m["id"].(string))
					if err != nil {
						return nil, err
					}
					return pagePoints(set.Points, p.Args), nil
				},
			},
		},
	})

	samplingResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SamplingResult",
		Fields: graphql.Fields{
			"kind":          &graphql.Field{Type: graphql.String},
			"rows":          &graphql.Field{Type: graphql.Int},
			"cols":          &graphql.Field{Type: graphql.Int},
			"bounds":        &graphql.Field{Type: boundsType},
			"interval_km":   &graphql.Field{Type: graphql.Float},
			"input_points":  &graphql.Field{Type: graphql.Int},
			"output_points": &graphql.Field{Type: graphql.Int},
			"source_id":     &graphql.Field{Type: graphql.String},
			"result_id":     &graphql.Field{Type: graphql.String},
			"points": &graphql.Field{
				Type: graphql.NewList(geoPointType),
				Args: pointsArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					set, _ := p.Source.(map[string]interface{})["points"].(*domain.PointSet)
					if set == nil {
						return []interface{}{}, nil
					}
					return pagePoints(set, p.Args), nil
				},
			},
		},
	})

	samplingEventType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SamplingEvent",
		Fields: graphql.Fields{
			"kind":          &graphql.Field{Type: graphql.String},
			"source_id":     &graphql.Field{Type: graphql.String},
			"result_id":     &graphql.Field{Type: graphql.String},
			"bounds":        &graphql.Field{Type: boundsType},
			"interval_km":   &graphql.Field{Type: graphql.Float},
			"rows":          &graphql.Field{Type: graphql.Int},
			"cols":          &graphql.Field{Type: graphql.Int},
			"input_points":  &graphql.Field{Type: graphql.Int},
			"output_points": &graphql.Field{Type: graphql.Int},
			"time":          &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"pointSets": &graphql.Field{
				Type:        graphql.NewList(pointSetType),
				Description: "List stored point sets, newest first",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: defaultPageSize},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sets, _, err := deps.Sampling.ListPointSets(p.Context, p.Args["limit"].(int), p.Args["offset"].(int))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(sets))
					for _, s := range sets {
						out = append(out, pointSetMap(s))
					}
					return out, nil
				},
			},
			"pointSet": &graphql.Field{
				Type:        pointSetType,
				Description: "Get a point set by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					set, err := deps.Sampling.GetPointSet(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return pointSetMap(set.PointSetInfo), nil
				},
			},
			"grid": &graphql.Field{
				Type:        samplingResultType,
				Description: "Generate a grid of points over bounds",
				Args: graphql.FieldConfigArgument{
					"bounds":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(boundsInput)},
					"interval_km": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					res, err := deps.Sampling.GenerateGrid(p.Context, boundsArg(p.Args["bounds"]), deps.intervalArg(p.Args))
					if err != nil {
						return nil, err
					}
					return samplingResultMap(res), nil
				},
			},
			"recentSamplingEvents": &graphql.Field{
				Type:        graphql.NewList(samplingEventType),
				Description: "Sampling events seen by this instance, newest first",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Events == nil {
						return []interface{}{}, nil
					}
					events := deps.Events.Recent(p.Args["limit"].(int))
					out := make([]map[string]interface{}, 0, len(events))
					for _, ev := range events {
						out = append(out, map[string]interface{}{
							"kind":          string(ev.Kind),
							"source_id":     ev.SourceID,
							"result_id":     ev.ResultID,
							"bounds":        boundsMap(ev.Bounds),
							"interval_km":   ev.IntervalKm,
							"rows":          ev.Rows,
							"cols":          ev.Cols,
							"input_points":  ev.InputPoints,
							"output_points": ev.OutputPoints,
							"time":          ev.Time.Format(time.RFC3339),
						})
					}
					return out, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"downsample": &graphql.Field{
				Type:        samplingResultType,
				Description: "Keep at most one point of a stored set per grid cell",
				Args: graphql.FieldConfigArgument{
					"id":           &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"interval_km":  &graphql.ArgumentConfig{Type: graphql.Float},
					"bounds":       &graphql.ArgumentConfig{Type: boundsInput},
					"persist_as":   &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"inject_index": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					req := usecases.DownsampleRequest{
						PointSetID:  p.Args["id"].(string),
						Interval:    deps.intervalArg(p.Args),
						PersistAs:   p.Args["persist_as"].(string),
						InjectIndex: p.Args["inject_index"].(bool),
					}
					if raw, ok := p.Args["bounds"]; ok && raw != nil {
						b := boundsArg(raw)
						req.Bounds = &b
					}
					res, err := deps.Sampling.Downsample(p.Context, req)
					if err != nil {
						return nil, err
					}
					return samplingResultMap(res), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func (d *Dependencies) intervalArg(args map[string]interface{}) domain.Distance {
	if km, ok := args["interval_km"].(float64); ok {
		return geospatial.Kilometers(km)
	}
	return d.DefaultInterval
}

func boundsArg(raw interface{}) domain.Bounds {
	m, _ := raw.(map[string]interface{})
	f := func(k string) float64 { v, _ := m[k].(float64); return v }
	return domain.Bounds{
		Lo: domain.GeoPoint{Lon: f("lo_lon"), Lat: f("lo_lat")},
		Hi: domain.GeoPoint{Lon: f("hi_lon"), Lat: f("hi_lat")},
	}
}

func pagePoints(set *domain.PointSet, args map[string]interface{}) []domain.GeoPoint {
	offset, _ := args["offset"].(int)
	limit, _ := args["limit"].(int)
	lo := min(max(offset, 0), set.Len())
	hi := set.Len()
	if limit >= 0 {
		hi = min(lo+limit, hi)
	}
	page, err := set.Slice(lo, hi)
	if err != nil {
		return nil
	}
	return page.Points()
}

func boundsMap(b domain.Bounds) map[string]interface{} {
	r := NewBoundsResponse(b)
	return map[string]interface{}{
		"lo":        b.Lo,
		"hi":        b.Hi,
		"width_km":  r.WidthKm,
		"height_km": r.HeightKm,
		"center":    r.Center,
	}
}

func pointSetMap(info domain.PointSetInfo) map[string]interface{} {
	m := map[string]interface{}{
		"id":          info.ID,
		"name":        info.Name,
		"count":       info.Count,
		"source_id":   info.SourceID,
		"interval_km": info.IntervalKm,
		"metadata":    info.Metadata,
		"created_at":  info.CreatedAt.Format(time.RFC3339),
	}
	if info.Bounds != nil {
		m["bounds"] = boundsMap(*info.Bounds)
	}
	return m
}

func samplingResultMap(r *domain.SamplingResult) map[string]interface{} {
	return map[string]interface{}{
		"kind":          string(r.Kind),
		"rows":          r.Grid.Rows,
		"cols":          r.Grid.Cols,
		"bounds":        boundsMap(r.Grid.Bounds),
		"interval_km":   r.IntervalKm,
		"input_points":  r.InputPoints,
		"output_points": r.OutputPoints,
		"source_id":     r.SourceID,
		"result_id":     r.ResultID,
		"points":        r.Points,
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic(fmt.Sprintf("graphql schema build: %v", err))
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
