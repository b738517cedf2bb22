//go:build integration

package http_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	handler "github.com/JettChenT/ek-geo/internal/adapters/http"
	"github.com/JettChenT/ek-geo/internal/adapters/postgres"
	"github.com/JettChenT/ek-geo/internal/core/domain"
	"github.com/JettChenT/ek-geo/internal/pkg/config"
)

// setupTestDB connects to the configured test database.
func setupTestDB(t *testing.T) *postgres.DB {
	t.Helper()
	cfg, err := config.Load("ekgeo-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		t.Skipf("database unavailable: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func TestIntegration_CreateSampleDelete(t *testing.T) {
	db := setupTestDB(t)
	deps := makeDeps(postgres.NewPointSetRepo(db), func(d *handler.Dependencies) { d.DB = db })
	app := setupApp(deps)

	points, _ := json.Marshal(gridPoints(t))
	resp := doJSON(t, app, "POST", "/v1/pointsets", `{"name":"it-grid","points":`+string(points)+`}`)
	if resp.Status != 201 {
		t.Fatalf("create: expected 201, got %d: %s", resp.Status, resp.Body)
	}
	var info domain.PointSetInfo
	resp.decode(t, &info)
	t.Cleanup(func() { doJSON(t, app, "DELETE", "/v1/pointsets/"+info.ID, "") })

	resp = doJSON(t, app, "POST", "/v1/pointsets/"+info.ID+"/sample",
		`{"interval_km":0.05,"bounds":`+sfBoundsJSON+`,"persist_as":"it-grid-50m"}`)
	if resp.Status != 201 {
		t.Fatalf("sample: expected 201, got %d: %s", resp.Status, resp.Body)
	}
	var res struct {
		OutputPoints int    `json:"output_points"`
		ResultID     string `json:"result_id"`
	}
	resp.decode(t, &res)
	t.Cleanup(func() { doJSON(t, app, "DELETE", "/v1/pointsets/"+res.ResultID, "") })
	if res.OutputPoints != 143 {
		t.Errorf("expected 143 sampled points, got %d", res.OutputPoints)
	}

	resp = doJSON(t, app, "GET", "/v1/pointsets/"+res.ResultID+"/bounds", "")
	if resp.Status != 200 {
		t.Errorf("bounds: expected 200, got %d", resp.Status)
	}

	if resp := doJSON(t, app, "GET", "/v1/ready", ""); resp.Status != 200 {
		t.Errorf("ready: expected 200 with a live database, got %d: %s", resp.Status, resp.Body)
	}
}
