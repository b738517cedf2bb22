package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/JettChenT/ek-geo/internal/adapters/http"
	"github.com/JettChenT/ek-geo/internal/adapters/render"
	"github.com/JettChenT/ek-geo/internal/core/domain"
	"github.com/JettChenT/ek-geo/internal/core/ports"
	"github.com/JettChenT/ek-geo/internal/core/usecases"
	"github.com/JettChenT/ek-geo/internal/pkg/geospatial"
)

// ---- Mock repository ----

type mockPointSetRepo struct {
	mu     sync.Mutex
	sets   map[string]*domain.StoredPointSet
	order  []string
	nextID int
}

func newMockRepo() *mockPointSetRepo {
	return &mockPointSetRepo{sets: make(map[string]*domain.StoredPointSet)}
}

func (m *mockPointSetRepo) Create(ctx context.Context, info domain.PointSetInfo, points *domain.PointSet) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	info.ID = fmt.Sprintf("ps-%d", m.nextID)
	m.sets[info.ID] = &domain.StoredPointSet{PointSetInfo: info, Points: points}
	m.order = append(m.order, info.ID)
	return info.ID, nil
}

func (m *mockPointSetRepo) Get(ctx context.Context, id string) (*domain.StoredPointSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[id]
	if !ok {
		return nil, fmt.Errorf("point set %s: %w", id, domain.ErrNotFound)
	}
	cp := *s
	cp.Points = domain.NewPointSet(s.Points.Points()...)
	return &cp, nil
}

func (m *mockPointSetRepo) List(ctx context.Context, limit, offset int) ([]domain.PointSetInfo, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PointSetInfo
	for i := offset; i < len(m.order) && len(out) < limit; i++ {
		out = append(out, m.sets[m.order[i]].PointSetInfo)
	}
	return out, len(m.order), nil
}

func (m *mockPointSetRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sets[id]; !ok {
		return fmt.Errorf("point set %s: %w", id, domain.ErrNotFound)
	}
	delete(m.sets, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockPointSetRepo) AppendPoints(ctx context.Context, id string, points []domain.GeoPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[id]
	if !ok {
		return fmt.Errorf("point set %s: %w", id, domain.ErrNotFound)
	}
	for _, p := range points {
		s.Points.Append(p)
	}
	s.Count = s.Points.Len()
	return nil
}

// ---- Test helpers ----

var sfBounds = domain.Bounds{
	Lo: domain.GeoPoint{Lon: -122.4194, Lat: 37.7749},
	Hi: domain.GeoPoint{Lon: -122.4118, Lat: 37.7802},
}

const sfBoundsJSON = `{"lo":{"lon":-122.4194,"lat":37.7749},"hi":{"lon":-122.4118,"lat":37.7802}}`

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(repo ports.PointSetRepository, opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{
		Sampling: usecases.NewSamplingService(repo, nil, nil, render.NewGeoJSON(),
			usecases.SamplingLimits{MaxPoints: 10_000, MaxGridCells: 10_000}),
		Renderers: map[string]ports.Renderer{
			"geojson": render.NewGeoJSON(),
			"html":    render.NewDeck(),
		},
		DefaultInterval: geospatial.Kilometers(0.05),
		Events:          handler.NewEventLog(10),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) *httpResponse {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return &httpResponse{Status: resp.StatusCode, Header: resp.Header, Body: b}
}

type httpResponse struct {
	Status int
	Header map[string][]string
	Body   []byte
}

func (r *httpResponse) header(key string) string {
	if v := r.Header[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (r *httpResponse) decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("decode %s: %v", r.Body, err)
	}
}

func seedSet(t *testing.T, repo *mockPointSetRepo, name string, points ...domain.GeoPoint) string {
	t.Helper()
	set := domain.NewPointSet(points...)
	info := domain.PointSetInfo{Name: name, Count: set.Len()}
	id, _ := repo.Create(context.Background(), info, set)
	return id
}

func gridPoints(t *testing.T) []domain.GeoPoint {
	t.Helper()
	ps, err := sfBounds.Sample(geospatial.Kilometers(0.05))
	if err != nil {
		t.Fatal(err)
	}
	return ps.Points()
}

// ---- Point set handler tests ----

func TestCreatePointSet_Success(t *testing.T) {
	repo := newMockRepo()
	app := setupApp(makeDeps(repo))

	resp := doJSON(t, app, "POST", "/v1/pointsets",
		`{"name":"panos","points":[{"lon":-122.41,"lat":37.77,"aux":{"pano":"a"}},{"lon":-122.42,"lat":37.78}]}`)
	if resp.Status != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.Status, resp.Body)
	}

	var info domain.PointSetInfo
	resp.decode(t, &info)
	if info.ID == "" || info.Count != 2 {
		t.Errorf("unexpected info %+v", info)
	}
	if loc := resp.header("Location"); loc != "/v1/pointsets/"+info.ID {
		t.Errorf("expected Location header, got %q", loc)
	}
	stored := repo.sets[info.ID]
	first, _ := stored.Points.At(0)
	if first.Aux["pano"] != "a" {
		t.Errorf("aux not stored: %+v", first)
	}
}

func TestCreatePointSet_InvalidCoordinate(t *testing.T) {
	app := setupApp(makeDeps(newMockRepo()))

	resp := doJSON(t, app, "POST", "/v1/pointsets", `{"name":"bad","points":[{"lon":190,"lat":0}]}`)
	if resp.Status != 422 {
		t.Fatalf("expected 422, got %d", resp.Status)
	}
	var apiErr handler.APIError
	resp.decode(t, &apiErr)
	if apiErr.Code != "unprocessable" {
		t.Errorf("expected unprocessable code, got %q", apiErr.Code)
	}
}

func TestCreatePointSet_BadRequest(t *testing.T) {
	app := setupApp(makeDeps(newMockRepo()))

	if resp := doJSON(t, app, "POST", "/v1/pointsets", `{"name":`); resp.Status != 400 {
		t.Errorf("expected 400 for malformed body, got %d", resp.Status)
	}
	if resp := doJSON(t, app, "POST", "/v1/pointsets", `{"points":[]}`); resp.Status != 400 {
		t.Errorf("expected 400 for missing name, got %d", resp.Status)
	}
}

func TestListPointSets_Pagination(t *testing.T) {
	repo := newMockRepo()
	for i := range 5 {
		seedSet(t, repo, fmt.Sprintf("set-%d", i), domain.GeoPoint{Lon: float64(i), Lat: 0})
	}
	app := setupApp(makeDeps(repo))

	resp := doJSON(t, app, "GET", "/v1/pointsets?offset=2&limit=2", "")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var result struct {
		Data       []domain.PointSetInfo `json:"data"`
		Pagination handler.Pagination    `json:"pagination"`
	}
	resp.decode(t, &result)
	if result.Pagination.Total != 5 || len(result.Data) != 2 || result.Data[0].Name != "set-2" {
		t.Errorf("unexpected page %+v", result)
	}
	if link := resp.header("Link"); !strings.Contains(link, `offset=4&limit=2>; rel="next"`) {
		t.Errorf("expected next link, got %q", link)
	}
}

func TestGetPointSet_NotFound(t *testing.T) {
	app := setupApp(makeDeps(newMockRepo()))

	resp := doJSON(t, app, "GET", "/v1/pointsets/nope", "")
	if resp.Status != 404 {
		t.Fatalf("expected 404, got %d", resp.Status)
	}
	var apiErr handler.APIError
	resp.decode(t, &apiErr)
	if apiErr.Code != "not_found" || apiErr.RequestID == "" {
		t.Errorf("unexpected error envelope %+v", apiErr)
	}
}

func TestGetPointSet_Slice(t *testing.T) {
	repo := newMockRepo()
	id := seedSet(t, repo, "four",
		domain.GeoPoint{Lon: 0, Lat: 0}, domain.GeoPoint{Lon: 1, Lat: 1},
		domain.GeoPoint{Lon: 2, Lat: 2}, domain.GeoPoint{Lon: 3, Lat: 3})
	app := setupApp(makeDeps(repo))

	resp := doJSON(t, app, "GET", "/v1/pointsets/"+id+"?from=1&to=3", "")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var set struct {
		Points []domain.GeoPoint `json:"points"`
	}
	resp.decode(t, &set)
	if len(set.Points) != 2 || set.Points[0].Lon != 1 || set.Points[1].Lon != 2 {
		t.Errorf("unexpected slice %+v", set.Points)
	}

	if resp := doJSON(t, app, "GET", "/v1/pointsets/"+id+"?from=3&to=9", ""); resp.Status != 400 {
		t.Errorf("expected 400 for out-of-range slice, got %d", resp.Status)
	}
}

func TestDeletePointSet(t *testing.T) {
	repo := newMockRepo()
	id := seedSet(t, repo, "doomed", domain.GeoPoint{})
	app := setupApp(makeDeps(repo))

	if resp := doJSON(t, app, "DELETE", "/v1/pointsets/"+id, ""); resp.Status != 204 {
		t.Fatalf("expected 204, got %d", resp.Status)
	}
	if resp := doJSON(t, app, "DELETE", "/v1/pointsets/"+id, ""); resp.Status != 404 {
		t.Errorf("expected 404 on second delete, got %d", resp.Status)
	}
}

func TestAppendPoints(t *testing.T) {
	repo := newMockRepo()
	id := seedSet(t, repo, "growing", domain.GeoPoint{Lon: 1, Lat: 1})
	app := setupApp(makeDeps(repo))

	resp := doJSON(t, app, "POST", "/v1/pointsets/"+id+"/points", `{"points":[{"lon":2,"lat":2},{"lon":3,"lat":3}]}`)
	if resp.Status != 204 {
		t.Fatalf("expected 204, got %d: %s", resp.Status, resp.Body)
	}
	if n := repo.sets[id].Points.Len(); n != 3 {
		t.Errorf("expected 3 points, got %d", n)
	}

	if resp := doJSON(t, app, "POST", "/v1/pointsets/"+id+"/points", `{"points":[]}`); resp.Status != 400 {
		t.Errorf("expected 400 for empty append, got %d", resp.Status)
	}
}

func TestPointSetBounds(t *testing.T) {
	repo := newMockRepo()
	id := seedSet(t, repo, "sf", gridPoints(t)...)
	empty := seedSet(t, repo, "empty")
	app := setupApp(makeDeps(repo))

	resp := doJSON(t, app, "GET", "/v1/pointsets/"+id+"/bounds", "")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var b handler.BoundsResponse
	resp.decode(t, &b)
	if b.Bounds.Lo.Lon != sfBounds.Lo.Lon || b.Bounds.Lo.Lat != sfBounds.Lo.Lat {
		t.Errorf("unexpected lo corner %+v", b.Bounds.Lo)
	}
	if b.WidthKm <= 0 || b.HeightKm <= 0 {
		t.Errorf("expected positive extent, got %v x %v", b.WidthKm, b.HeightKm)
	}

	if resp := doJSON(t, app, "GET", "/v1/pointsets/"+empty+"/bounds", ""); resp.Status != 422 {
		t.Errorf("expected 422 for empty set, got %d", resp.Status)
	}
}

// ---- Sampling handler tests ----

func TestSamplePointSet_FirstWinsAndPersists(t *testing.T) {
	repo := newMockRepo()
	var points []domain.GeoPoint
	for _, tag := range []string{"first", "second"} {
		for _, p := range gridPoints(t) {
			points = append(points, p.WithAux(map[string]any{"tag": tag}))
		}
	}
	id := seedSet(t, repo, "dup", points...)
	app := setupApp(makeDeps(repo))

	resp := doJSON(t, app, "POST", "/v1/pointsets/"+id+"/sample",
		`{"interval_km":0.05,"bounds":`+sfBoundsJSON+`,"persist_as":"dup-50m"}`)
	if resp.Status != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.Status, resp.Body)
	}
	var res struct {
		InputPoints  int               `json:"input_points"`
		OutputPoints int               `json:"output_points"`
		ResultID     string            `json:"result_id"`
		Points       []domain.GeoPoint `json:"points"`
	}
	resp.decode(t, &res)
	if res.InputPoints != 286 || res.OutputPoints != 143 || len(res.Points) != 143 {
		t.Fatalf("expected 286 -> 143, got %+v", res)
	}
	for i, p := range res.Points {
		if p.Aux["tag"] != "first" {
			t.Fatalf("point %d: expected first occurrence, got %v", i, p.Aux["tag"])
		}
	}
	if _, ok := repo.sets[res.ResultID]; !ok {
		t.Errorf("result %q not persisted", res.ResultID)
	}
}

func TestSamplePointSet_DefaultsAndErrors(t *testing.T) {
	repo := newMockRepo()
	id := seedSet(t, repo, "sf", gridPoints(t)...)
	app := setupApp(makeDeps(repo))

	resp := doJSON(t, app, "POST", "/v1/pointsets/"+id+"/sample", "")
	if resp.Status != 200 {
		t.Fatalf("expected 200 with defaults, got %d: %s", resp.Status, resp.Body)
	}

	resp = doJSON(t, app, "POST", "/v1/pointsets/"+id+"/sample", `{"interval_km":0}`)
	if resp.Status != 422 {
		t.Errorf("expected 422 for zero interval, got %d", resp.Status)
	}
	resp = doJSON(t, app, "POST", "/v1/pointsets/missing/sample", `{"interval_km":0.05}`)
	if resp.Status != 404 {
		t.Errorf("expected 404 for missing set, got %d", resp.Status)
	}
}

func TestGenerateGrid_Golden(t *testing.T) {
	app := setupApp(makeDeps(newMockRepo()))

	resp := doJSON(t, app, "POST", "/v1/grids", `{"bounds":`+sfBoundsJSON+`,"interval_km":0.05}`)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.Status, resp.Body)
	}
	var res struct {
		Grid struct {
			Rows int `json:"rows"`
			Cols int `json:"cols"`
		} `json:"grid"`
		OutputPoints int               `json:"output_points"`
		Points       []domain.GeoPoint `json:"points"`
	}
	resp.decode(t, &res)
	if res.Grid.Rows != 11 || res.Grid.Cols != 13 || res.OutputPoints != 143 || len(res.Points) != 143 {
		t.Errorf("expected 11x13 grid of 143 points, got %dx%d, %d points",
			res.Grid.Rows, res.Grid.Cols, len(res.Points))
	}
}

func TestGenerateGrid_Errors(t *testing.T) {
	app := setupApp(makeDeps(newMockRepo()))

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"missing bounds", `{"interval_km":0.05}`, 400},
		{"inverted bounds", `{"bounds":{"lo":{"lon":1,"lat":1},"hi":{"lon":0,"lat":0}},"interval_km":0.05}`, 422},
		{"degenerate", `{"bounds":{"lo":{"lon":0,"lat":0},"hi":{"lon":1,"lat":0}},"interval_km":0.05}`, 422},
		{"too large", `{"bounds":` + sfBoundsJSON + `,"interval_km":0.001}`, 422},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, app, "POST", "/v1/grids", tc.body)
			if resp.Status != tc.status {
				t.Errorf("expected %d, got %d: %s", tc.status, resp.Status, resp.Body)
			}
		})
	}
}

func TestGenerateGrid_OmitPoints(t *testing.T) {
	app := setupApp(makeDeps(newMockRepo()))

	resp := doJSON(t, app, "POST", "/v1/grids", `{"bounds":`+sfBoundsJSON+`,"omit_points":true}`)
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var res map[string]any
	resp.decode(t, &res)
	if res["points"] != nil {
		t.Errorf("expected points omitted, got %v", res["points"])
	}
	if res["output_points"] != float64(143) {
		t.Errorf("expected output_points 143, got %v", res["output_points"])
	}
}

// ---- Render handler tests ----

func TestRenderPointSet_Formats(t *testing.T) {
	repo := newMockRepo()
	id := seedSet(t, repo, "two",
		domain.GeoPoint{Lon: -122.41, Lat: 37.77, Aux: map[string]any{"pano": "a"}},
		domain.GeoPoint{Lon: -122.42, Lat: 37.78})
	app := setupApp(makeDeps(repo))

	resp := doJSON(t, app, "GET", "/v1/pointsets/"+id+"/render?radius=2", "")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if ct := resp.header("Content-Type"); ct != render.ContentTypeGeoJSON {
		t.Errorf("expected geojson content type, got %q", ct)
	}
	if !strings.Contains(string(resp.Body), `"radius":2`) {
		t.Errorf("expected radius property in %s", resp.Body)
	}

	resp = doJSON(t, app, "GET", "/v1/pointsets/"+id+"/render?format=html", "")
	if resp.Status != 200 || !strings.HasPrefix(resp.header("Content-Type"), "text/html") {
		t.Errorf("expected html page, got %d %q", resp.Status, resp.header("Content-Type"))
	}

	if resp := doJSON(t, app, "GET", "/v1/pointsets/"+id+"/render?format=png", ""); resp.Status != 400 {
		t.Errorf("expected 400 for unsupported format, got %d", resp.Status)
	}
}

func TestPlot_IsDeprecatedAlias(t *testing.T) {
	app := setupApp(makeDeps(newMockRepo()))

	resp := doJSON(t, app, "GET", "/v1/pointsets/abc/plot", "")
	if resp.Status != 301 {
		t.Fatalf("expected 301, got %d", resp.Status)
	}
	if loc := resp.header("Location"); loc != "/v1/pointsets/abc/render?format=html" {
		t.Errorf("unexpected redirect %q", loc)
	}
	if resp.header("Deprecation") != "true" || resp.header("Sunset") == "" {
		t.Errorf("expected deprecation headers, got %v", resp.Header)
	}
}

// ---- Middleware tests ----

func TestETag_NotModified(t *testing.T) {
	repo := newMockRepo()
	id := seedSet(t, repo, "etag", domain.GeoPoint{Lon: 1, Lat: 1})
	app := setupApp(makeDeps(repo))

	first := doJSON(t, app, "GET", "/v1/pointsets/"+id, "")
	etag := first.header("Etag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}
	if cc := first.header("Cache-Control"); cc != "no-cache" {
		t.Errorf("expected no-cache for point sets, got %q", cc)
	}

	req := httptest.NewRequest("GET", "/v1/pointsets/"+id, nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

// ---- Health handler tests ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps(newMockRepo()))

	resp := doJSON(t, app, "GET", "/v1/health", "")
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var result map[string]any
	resp.decode(t, &result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
}

func TestReady_NoDB(t *testing.T) {
	// DB, NATS, Cache are nil → not ready
	app := setupApp(makeDeps(newMockRepo()))

	resp := doJSON(t, app, "GET", "/v1/ready", "")
	if resp.Status != 503 {
		t.Fatalf("expected 503, got %d", resp.Status)
	}
}

// ---- Events ----

func TestRecentEvents(t *testing.T) {
	deps := makeDeps(newMockRepo())
	for i := range 3 {
		_ = deps.Events.Record(context.Background(), &domain.SamplingEvent{Kind: domain.SamplingGrid, OutputPoints: i})
	}
	app := setupApp(deps)

	resp := doJSON(t, app, "GET", "/v1/events/recent?limit=2", "")
	var events []domain.SamplingEvent
	resp.decode(t, &events)
	if len(events) != 2 || events[0].OutputPoints != 2 || events[1].OutputPoints != 1 {
		t.Errorf("expected newest two events, got %+v", events)
	}
}

func TestEventLog_Wraps(t *testing.T) {
	log := handler.NewEventLog(3)
	for i := range 5 {
		_ = log.Record(context.Background(), &domain.SamplingEvent{InputPoints: i})
	}
	got := log.Recent(10)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	for i, want := range []int{4, 3, 2} {
		if got[i].InputPoints != want {
			t.Errorf("event %d: expected %d, got %d", i, want, got[i].InputPoints)
		}
	}
}

// ---- GraphQL ----

func TestGraphQL_Grid(t *testing.T) {
	app := setupApp(makeDeps(newMockRepo()))

	query := `{ grid(bounds: {lo_lon: -122.4194, lo_lat: 37.7749, hi_lon: -122.4118, hi_lat: 37.7802}, interval_km: 0.05) {
		rows cols output_points points(limit: 2) { lon lat } } }`
	body, _ := json.Marshal(map[string]string{"query": query})

	resp := doJSON(t, app, "POST", "/graphql", string(body))
	if resp.Status != 200 {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	var result struct {
		Data struct {
			Grid struct {
				Rows         int               `json:"rows"`
				Cols         int               `json:"cols"`
				OutputPoints int               `json:"output_points"`
				Points       []domain.GeoPoint `json:"points"`
			} `json:"grid"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	resp.decode(t, &result)
	if len(result.Errors) > 0 {
		t.Fatalf("graphql errors: %v", result.Errors)
	}
	g := result.Data.Grid
	if g.Rows != 11 || g.Cols != 13 || g.OutputPoints != 143 || len(g.Points) != 2 {
		t.Errorf("unexpected grid %+v", g)
	}
	if g.Points[0].Lon != sfBounds.Lo.Lon || g.Points[0].Lat != sfBounds.Lo.Lat {
		t.Errorf("expected first vertex at lo corner, got %+v", g.Points[0])
	}
}

func TestGraphQL_PointSetAndDownsample(t *testing.T) {
	repo := newMockRepo()
	id := seedSet(t, repo, "sf", gridPoints(t)...)
	app := setupApp(makeDeps(repo))

	query := fmt.Sprintf(`mutation { downsample(id: %q, interval_km: 0.1, persist_as: "coarse") { kind result_id output_points } }`, id)
	body, _ := json.Marshal(map[string]string{"query": query})
	resp := doJSON(t, app, "POST", "/graphql", string(body))

	var mut struct {
		Data struct {
			Downsample struct {
				Kind         string `json:"kind"`
				ResultID     string `json:"result_id"`
				OutputPoints int    `json:"output_points"`
			} `json:"downsample"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	resp.decode(t, &mut)
	if len(mut.Errors) > 0 {
		t.Fatalf("graphql errors: %v", mut.Errors)
	}
	ds := mut.Data.Downsample
	if ds.Kind != "downsample" || ds.ResultID == "" || ds.OutputPoints == 0 || ds.OutputPoints >= 143 {
		t.Fatalf("unexpected downsample result %+v", ds)
	}

	query = fmt.Sprintf(`{ pointSet(id: %q) { name count source_id points(limit: 1) { lon } } }`, ds.ResultID)
	body, _ = json.Marshal(map[string]string{"query": query})
	resp = doJSON(t, app, "POST", "/graphql", string(body))

	var q struct {
		Data struct {
			PointSet struct {
				Name     string `json:"name"`
				Count    int    `json:"count"`
				SourceID string `json:"source_id"`
				Points   []struct {
					Lon float64 `json:"lon"`
				} `json:"points"`
			} `json:"pointSet"`
		} `json:"data"`
	}
	resp.decode(t, &q)
	ps := q.Data.PointSet
	if ps.Name != "coarse" || ps.Count != ds.OutputPoints || ps.SourceID != id || len(ps.Points) != 1 {
		t.Errorf("unexpected stored result %+v", ps)
	}
}
