package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/JettChenT/ek-geo/internal/core/domain"
	"github.com/JettChenT/ek-geo/internal/core/usecases"
	"github.com/JettChenT/ek-geo/internal/pkg/geospatial"
)

// defaultRenderRadius matches the dot size the HTML renderer was tuned for.
const defaultRenderRadius = 0.3

type createPointSetRequest struct {
	Name     string            `json:"name"`
	Points   []domain.GeoPoint `json:"points"`
	Metadata map[string]any    `json:"metadata"`
}

type appendPointsRequest struct {
	Points []domain.GeoPoint `json:"points"`
}

type sampleRequest struct {
	IntervalKm  *float64       `json:"interval_km"`
	Bounds      *domain.Bounds `json:"bounds"`
	PersistAs   string         `json:"persist_as"`
	InjectIndex bool           `json:"inject_index"`
	OmitPoints  bool           `json:"omit_points"`
}

type gridRequest struct {
	Bounds     *domain.Bounds `json:"bounds"`
	IntervalKm *float64       `json:"interval_km"`
	OmitPoints bool           `json:"omit_points"`
}

// BoundsResponse describes a set's bounds with its geodesic extent.
type BoundsResponse struct {
	Bounds   domain.Bounds   `json:"bounds"`
	WidthKm  float64         `json:"width_km"`
	HeightKm float64         `json:"height_km"`
	Center   domain.GeoPoint `json:"center"`
}

// NewBoundsResponse fills in the derived fields of b.
func NewBoundsResponse(b domain.Bounds) BoundsResponse {
	w, h := b.WidthHeight()
	return BoundsResponse{Bounds: b, WidthKm: w.Km(), HeightKm: h.Km(), Center: b.Center()}
}

// CreatePointSetHandler stores a new point set.
func CreatePointSetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createPointSetRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if strings.TrimSpace(req.Name) == "" {
			return errBadRequest(c, "name is required")
		}

		info, err := deps.Sampling.CreatePointSet(c.UserContext(), req.Name, req.Points, req.Metadata)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Location("/v1/pointsets/" + info.ID)
		return c.Status(fiber.StatusCreated).JSON(info)
	}
}

// ListPointSetsHandler returns a page of point set descriptions.
func ListPointSetsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pg := parsePagination(c)
		sets, total, err := deps.Sampling.ListPointSets(c.UserContext(), pg.Limit, pg.Offset)
		if err != nil {
			return errFromDomain(c, err)
		}
		if sets == nil {
			sets = []domain.PointSetInfo{}
		}
		pg.Total = total
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: sets, Pagination: pg})
	}
}

// GetPointSetHandler returns a point set. ?from= and ?to= restrict the
// returned points to positions [from, to).
func GetPointSetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		set, err := deps.Sampling.GetPointSet(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}

		if c.Query("from") != "" || c.Query("to") != "" {
			from := c.QueryInt("from", 0)
			to := c.QueryInt("to", set.Points.Len())
			sub, err := set.Points.Slice(from, to)
			if err != nil {
				return errFromDomain(c, err)
			}
			set.Points = sub
		}
		return c.JSON(set)
	}
}

// DeletePointSetHandler removes a point set.
func DeletePointSetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sampling.DeletePointSet(c.UserContext(), c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// AppendPointsHandler appends points to a stored set.
func AppendPointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req appendPointsRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(req.Points) == 0 {
			return errBadRequest(c, "points must not be empty")
		}
		if err := deps.Sampling.AppendPoints(c.UserContext(), c.Params("id"), req.Points); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// PointSetBoundsHandler returns the bounds of a stored set.
func PointSetBoundsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		b, err := deps.Sampling.Bounds(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(NewBoundsResponse(b))
	}
}

// SamplePointSetHandler down-samples a stored set onto a grid.
func SamplePointSetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req sampleRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}

		res, err := deps.Sampling.Downsample(c.UserContext(), usecases.DownsampleRequest{
			PointSetID:  c.Params("id"),
			Bounds:      req.Bounds,
			Interval:    deps.interval(req.IntervalKm),
			PersistAs:   strings.TrimSpace(req.PersistAs),
			InjectIndex: req.InjectIndex,
		})
		if err != nil {
			return errFromDomain(c, err)
		}
		if req.OmitPoints {
			res.Points = nil
		}
		status := fiber.StatusOK
		if res.ResultID != "" {
			status = fiber.StatusCreated
			c.Location("/v1/pointsets/" + res.ResultID)
		}
		return c.Status(status).JSON(res)
	}
}

// GenerateGridHandler lays a synthetic grid over the requested bounds.
func GenerateGridHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req gridRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Bounds == nil {
			return errBadRequest(c, "bounds is required")
		}

		res, err := deps.Sampling.GenerateGrid(c.UserContext(), *req.Bounds, deps.interval(req.IntervalKm))
		if err != nil {
			return errFromDomain(c, err)
		}
		if req.OmitPoints {
			res.Points = nil
		}
		return c.JSON(res)
	}
}

// RenderPointSetHandler renders a stored set. ?format= picks the renderer
// and ?radius= the dot radius.
func RenderPointSetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		format := c.Query("format", RenderFormats[0])
		r, ok := deps.Renderers[format]
		if !ok {
			return errBadRequest(c, "unsupported format: "+format)
		}
		radius := c.QueryFloat("radius", defaultRenderRadius)
		if radius < 0 {
			return errBadRequest(c, "radius must not be negative")
		}

		body, contentType, err := deps.Sampling.RenderWith(c.UserContext(), c.Params("id"), radius, r)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set(fiber.HeaderContentType, contentType)
		return c.Send(body)
	}
}

// interval resolves an optional interval_km against the configured default.
func (d *Dependencies) interval(km *float64) domain.Distance {
	if km == nil {
		return d.DefaultInterval
	}
	return geospatial.Kilometers(*km)
}
