package metrics_test

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JettChenT/ek-geo/internal/pkg/metrics"
)

type fakeStat struct{}

func (fakeStat) AcquiredConns() int32 { return 2 }
func (fakeStat) IdleConns() int32     { return 3 }
func (fakeStat) TotalConns() int32    { return 5 }

func TestObserveSampling_CountsOutcome(t *testing.T) {
	okBefore := testutil.ToFloat64(metrics.SamplingRuns.WithLabelValues("grid", "ok"))
	errBefore := testutil.ToFloat64(metrics.SamplingRuns.WithLabelValues("grid", "error"))

	metrics.ObserveSampling("grid", 0, 143, time.Millisecond, nil)
	metrics.ObserveSampling("grid", 0, 0, 0, errors.New("boom"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(metrics.SamplingRuns.WithLabelValues("grid", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(metrics.SamplingRuns.WithLabelValues("grid", "error")))
}

func TestUpdateDBPoolMetrics(t *testing.T) {
	metrics.UpdateDBPoolMetrics(fakeStat{})
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DBPoolConnsAcquired))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.DBPoolConnsIdle))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.DBPoolConnsOpen))
}

// requestCount sums ekgeo_http_requests_total for one path label.
func requestCount(t *testing.T, path string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	var n float64
	for _, f := range families {
		if f.GetName() != "ekgeo_http_requests_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "path" && l.GetValue() == path {
					n += m.GetCounter().GetValue()
				}
			}
		}
	}
	return n
}

func TestMiddleware_LabelsByRoute(t *testing.T) {
	app := fiber.New()
	app.Use(metrics.Middleware())
	app.Get("/v1/things/:id", func(c *fiber.Ctx) error { return c.SendString("ok") })

	before := requestCount(t, "/v1/things/:id")
	for _, id := range []string{"a", "b", "c"} {
		resp, err := app.Test(httptest.NewRequest("GET", "/v1/things/"+id, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	}
	assert.Equal(t, before+3, requestCount(t, "/v1/things/:id"))
	assert.Zero(t, requestCount(t, "/v1/things/a"))
}
