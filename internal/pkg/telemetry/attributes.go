package telemetry

// Span attribute keys shared by the use cases and workflows.
const (
	AttrPointSetID   = "ekgeo.pointset.id"
	AttrIntervalKm   = "ekgeo.sampling.interval_km"
	AttrGridRows     = "ekgeo.sampling.rows"
	AttrGridCols     = "ekgeo.sampling.cols"
	AttrPointsIn     = "ekgeo.sampling.points_in"
	AttrPointsOut    = "ekgeo.sampling.points_out"
	AttrSamplingKind = "ekgeo.sampling.kind"
)
