package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JettChenT/ek-geo/internal/core/domain"
	"github.com/JettChenT/ek-geo/internal/core/ports"
	"github.com/JettChenT/ek-geo/internal/pkg/metrics"
	"github.com/JettChenT/ek-geo/internal/pkg/telemetry"
)

var tracer = otel.Tracer("github.com/JettChenT/ek-geo/internal/core/usecases")

// SamplingLimits caps the size of a single request.
type SamplingLimits struct {
	MaxPoints       int
	MaxGridCells    int
	CacheTTLSeconds int
}

// DefaultSamplingLimits mirrors the config defaults.
var DefaultSamplingLimits = SamplingLimits{
	MaxPoints:       1_000_000,
	MaxGridCells:    250_000,
	CacheTTLSeconds: 600,
}

// DownsampleRequest selects a stored set and the grid to sample it on.
type DownsampleRequest struct {
	PointSetID string
	// Bounds defaults to the set's own bounds when nil.
	Bounds   *domain.Bounds
	Interval domain.Distance
	// PersistAs stores the result as a new set under this name when non-empty.
	PersistAs string
	// RequestKey makes persisting idempotent: a repeated key returns the
	// set stored by the first call instead of writing a new one.
	RequestKey string
	// InjectIndex records each point's source position in Aux before sampling.
	InjectIndex bool
}

// SamplingService handles point-set storage and grid sampling.
type SamplingService struct {
	sets      ports.PointSetRepository
	cache     ports.CacheService
	publisher ports.EventPublisher
	renderer  ports.Renderer
	limits    SamplingLimits
}

// NewSamplingService creates a new SamplingService. cache, publisher and
// renderer may be nil.
func NewSamplingService(
	sets ports.PointSetRepository,
	cache ports.CacheService,
	publisher ports.EventPublisher,
	renderer ports.Renderer,
	limits SamplingLimits,
) *SamplingService {
	return &SamplingService{
		sets:      sets,
		cache:     cache,
		publisher: publisher,
		renderer:  renderer,
		limits:    limits,
	}
}

// CreatePointSet validates and stores a new set.
func (s *SamplingService) CreatePointSet(ctx context.Context, name string, points []domain.GeoPoint, metadata map[string]any) (*domain.PointSetInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("point set name must not be empty")
	}
	if err := s.validatePoints(points, 0); err != nil {
		return nil, err
	}
	if _, err := structpb.NewStruct(metadata); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}

	set := domain.NewPointSet(points...)
	info := domain.PointSetInfo{Name: name, Count: set.Len(), Metadata: metadata}
	if b, ok := set.Bounds(); ok {
		info.Bounds = &b
	}

	id, err := s.sets.Create(ctx, info, set)
	if err != nil {
		return nil, fmt.Errorf("create point set: %w", err)
	}
	info.ID = id
	info.CreatedAt = time.Now().UTC()

	slog.InfoContext(ctx, "point set created", "id", id, "name", name, "points", info.Count)
	return &info, nil
}

// GetPointSet returns a stored set with its points.
func (s *SamplingService) GetPointSet(ctx context.Context, id string) (*domain.StoredPointSet, error) {
	cacheKey := pointSetCacheKey(id)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var set domain.StoredPointSet
			if err := json.Unmarshal(data, &set); err == nil {
				metrics.CacheHits.WithLabelValues("pointset").Inc()
				return &set, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("pointset").Inc()
	}

	set, err := s.sets.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(set); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.limits.CacheTTLSeconds)
		}
	}
	return set, nil
}

// ListPointSets returns a page of set descriptions and the total count.
func (s *SamplingService) ListPointSets(ctx context.Context, limit, offset int) ([]domain.PointSetInfo, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.sets.List(ctx, limit, offset)
}

// DeletePointSet removes a stored set.
func (s *SamplingService) DeletePointSet(ctx context.Context, id string) error {
	if err := s.sets.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// AppendPoints adds points to the end of a stored set.
func (s *SamplingService) AppendPoints(ctx context.Context, id string, points []domain.GeoPoint) error {
	if len(points) == 0 {
		return nil
	}
	existing, err := s.sets.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.validatePoints(points, existing.Count); err != nil {
		return err
	}
	if err := s.sets.AppendPoints(ctx, id, points); err != nil {
		return fmt.Errorf("append points: %w", err)
	}
	s.invalidate(ctx, id)
	return nil
}

// Bounds derives the bounds of a stored set.
func (s *SamplingService) Bounds(ctx context.Context, id string) (domain.Bounds, error) {
	set, err := s.GetPointSet(ctx, id)
	if err != nil {
		return domain.Bounds{}, err
	}
	b, ok := set.Points.Bounds()
	if !ok {
		return domain.Bounds{}, fmt.Errorf("point set %s: %w", id, domain.ErrEmptyPointSet)
	}
	return b, nil
}

// GenerateGrid lays a synthetic grid over b at the given interval.
func (s *SamplingService) GenerateGrid(ctx context.Context, b domain.Bounds, interval domain.Distance) (result *domain.SamplingResult, err error) {
	ctx, span := tracer.Start(ctx, "SamplingService.GenerateGrid",
		trace.WithAttributes(
			attribute.String(telemetry.AttrSamplingKind, string(domain.SamplingGrid)),
			attribute.Float64(telemetry.AttrIntervalKm, interval.Km()),
		))
	start := time.Now()
	defer func() {
		s.finish(span, domain.SamplingGrid, start, result, err)
	}()

	if err := b.Validate(); err != nil {
		return nil, err
	}
	g, err := s.grid(b, interval)
	if err != nil {
		return nil, err
	}

	cacheKey := gridCacheKey(b, interval)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached domain.SamplingResult
			if err := json.Unmarshal(data, &cached); err == nil {
				metrics.CacheHits.WithLabelValues("grid").Inc()
				return &cached, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("grid").Inc()
	}

	points := g.Vertices()
	result = &domain.SamplingResult{
		Kind:         domain.SamplingGrid,
		Grid:         g,
		IntervalKm:   interval.Km(),
		OutputPoints: points.Len(),
		Points:       points,
	}

	if s.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.limits.CacheTTLSeconds)
		}
	}
	s.publish(ctx, result)
	return result, nil
}

// Downsample keeps at most one point per grid cell of a stored set.
func (s *SamplingService) Downsample(ctx context.Context, req DownsampleRequest) (result *domain.SamplingResult, err error) {
	ctx, span := tracer.Start(ctx, "SamplingService.Downsample",
		trace.WithAttributes(
			attribute.String(telemetry.AttrSamplingKind, string(domain.SamplingDownsample)),
			attribute.String(telemetry.AttrPointSetID, req.PointSetID),
			attribute.Float64(telemetry.AttrIntervalKm, req.Interval.Km()),
		))
	start := time.Now()
	defer func() {
		s.finish(span, domain.SamplingDownsample, start, result, err)
	}()

	stored, err := s.GetPointSet(ctx, req.PointSetID)
	if err != nil {
		return nil, err
	}
	points := stored.Points
	if req.InjectIndex {
		points = domain.NewPointSet(points.Points()...).InjectIndex()
	}

	var b domain.Bounds
	if req.Bounds != nil {
		b = *req.Bounds
		if err := b.Validate(); err != nil {
			return nil, err
		}
	} else {
		var ok bool
		if b, ok = points.Bounds(); !ok {
			return nil, fmt.Errorf("point set %s: %w", req.PointSetID, domain.ErrEmptyPointSet)
		}
	}

	g, err := s.grid(b, req.Interval)
	if err != nil {
		return nil, err
	}
	sampled := g.Downsample(points)

	result = &domain.SamplingResult{
		Kind:         domain.SamplingDownsample,
		Grid:         g,
		IntervalKm:   req.Interval.Km(),
		InputPoints:  points.Len(),
		OutputPoints: sampled.Len(),
		SourceID:     req.PointSetID,
		Points:       sampled,
	}

	if req.PersistAs != "" {
		info := domain.PointSetInfo{
			Name:       req.PersistAs,
			Count:      sampled.Len(),
			SourceID:   req.PointSetID,
			IntervalKm: req.Interval.Km(),
			RequestKey: req.RequestKey,
		}
		if sb, ok := sampled.Bounds(); ok {
			info.Bounds = &sb
		}
		id, err := s.sets.Create(ctx, info, sampled)
		if err != nil {
			return nil, fmt.Errorf("persist sample: %w", err)
		}
		result.ResultID = id
	}

	s.publish(ctx, result)
	return result, nil
}

// Render hands a stored set to the configured renderer.
func (s *SamplingService) Render(ctx context.Context, id string, radius float64) ([]byte, string, error) {
	return s.RenderWith(ctx, id, radius, s.renderer)
}

// RenderWith hands a stored set to r instead of the configured renderer.
func (s *SamplingService) RenderWith(ctx context.Context, id string, radius float64, r ports.Renderer) ([]byte, string, error) {
	if r == nil {
		return nil, "", errors.New("no renderer configured")
	}
	set, err := s.GetPointSet(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return r.Render(ctx, RenderRecords(set.Points), radius)
}

// RenderRecords converts a set into renderer input, in set order.
func RenderRecords(set *domain.PointSet) []ports.RenderRecord {
	records := make([]ports.RenderRecord, 0, set.Len())
	for _, p := range set.All() {
		records = append(records, ports.RenderRecord{Lat: p.Lat, Lon: p.Lon, Aux: p.Aux})
	}
	return records
}

func (s *SamplingService) grid(b domain.Bounds, interval domain.Distance) (domain.Grid, error) {
	g, err := domain.NewGrid(b, interval)
	if err != nil {
		return domain.Grid{}, err
	}
	if s.limits.MaxGridCells > 0 && g.Cells() > s.limits.MaxGridCells {
		return domain.Grid{}, fmt.Errorf("%w: %d cells, limit %d",
			domain.ErrGridTooLarge, g.Cells(), s.limits.MaxGridCells)
	}
	return g, nil
}

func (s *SamplingService) validatePoints(points []domain.GeoPoint, existing int) error {
	if s.limits.MaxPoints > 0 && existing+len(points) > s.limits.MaxPoints {
		return fmt.Errorf("%w: %d, limit %d", domain.ErrTooManyPoints, existing+len(points), s.limits.MaxPoints)
	}
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
		if _, err := structpb.NewStruct(p.Aux); err != nil {
			return fmt.Errorf("point %d aux: %w", i, err)
		}
	}
	return nil
}

func (s *SamplingService) publish(ctx context.Context, result *domain.SamplingResult) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSamplingCompleted(ctx, domain.NewSamplingEvent(result)); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		slog.WarnContext(ctx, "publish sampling event", "kind", result.Kind, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
}

func (s *SamplingService) finish(span trace.Span, kind domain.SamplingKind, start time.Time, result *domain.SamplingResult, err error) {
	defer span.End()
	var in, out int
	if result != nil {
		in, out = result.InputPoints, result.OutputPoints
		span.SetAttributes(
			attribute.Int(telemetry.AttrGridRows, result.Grid.Rows),
			attribute.Int(telemetry.AttrGridCols, result.Grid.Cols),
			attribute.Int(telemetry.AttrPointsIn, in),
			attribute.Int(telemetry.AttrPointsOut, out),
		)
	}
	metrics.ObserveSampling(string(kind), in, out, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	slog.Debug("sampling finished", "kind", kind, "points_in", in, "points_out", out,
		"elapsed", time.Since(start).String())
}

func (s *SamplingService) invalidate(ctx context.Context, id string) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, pointSetCacheKey(id))
	}
}

func pointSetCacheKey(id string) string {
	return "pointsets:id:" + id
}

// gridCacheKey uses the shortest exact float formatting; any rounding here
// would let distinct bounds share a cached grid.
func gridCacheKey(b domain.Bounds, interval domain.Distance) string {
	parts := []string{"grids"}
	for _, v := range []float64{b.Lo.Lon, b.Lo.Lat, b.Hi.Lon, b.Hi.Lat, interval.Meters()} {
		parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return strings.Join(parts, ":")
}
