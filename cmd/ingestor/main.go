package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/JettChenT/ek-geo/internal/adapters/postgres"
	"github.com/JettChenT/ek-geo/internal/core/usecases"
	"github.com/JettChenT/ek-geo/internal/pkg/config"
	"github.com/JettChenT/ek-geo/internal/pkg/geospatial"
	"github.com/JettChenT/ek-geo/internal/pkg/logging"
)

// Manifest lists point sources to load.
type Manifest struct {
	Source string        `json:"source"`
	Sets   []SourceEntry `json:"sets"`
}

// SourceEntry describes one point source. Format is "geojson", "csv" or
// "gtfs" (stops.txt inside a feed zip).
type SourceEntry struct {
	Name      string         `json:"name"`
	Slug      string         `json:"slug"`
	URL       string         `json:"url"`
	Format    string         `json:"format"`
	LonColumn string         `json:"lon_column,omitempty"`
	LatColumn string         `json:"lat_column,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	// DownsampleKm, when set, also stores a thinned copy at that spacing.
	DownsampleKm float64 `json:"downsample_km,omitempty"`
}

func main() {
	cfg, err := config.Load("ekgeo-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	sampling := usecases.NewSamplingService(
		postgres.NewPointSetRepo(db), nil, nil, nil,
		usecases.SamplingLimits{
			MaxPoints:    cfg.Sampling.MaxPoints,
			MaxGridCells: cfg.Sampling.MaxGridCells,
		},
	)

	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	slog.Info("point set ingestor", "sets", len(manifest.Sets), "source", manifest.Source)

	// Optional CLI arg: comma-separated slug list
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	client := &http.Client{Timeout: 120 * time.Second}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent downloads

	for _, entry := range manifest.Sets {
		if len(slugFilter) > 0 && !slugFilter[entry.Slug] {
			continue
		}

		wg.Add(1)
		go func(e SourceEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ingestSet(ctx, sampling, client, manifest.Source, e); err != nil {
				slog.Error("ingest failed", "slug", e.Slug, "error", err)
			}
		}(entry)
	}

	wg.Wait()
	slog.Info("ingestion complete")
}

func ingestSet(ctx context.Context, sampling *usecases.SamplingService, client *http.Client, source string, e SourceEntry) error {
	log := slog.With("slug", e.Slug)
	log.Info("downloading", "url", e.URL, "format", e.Format)

	body, err := fetch(client, e.URL)
	if err != nil {
		return err
	}

	points, err := parsePoints(e, body)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	meta := map[string]any{"source": source, "slug": e.Slug, "url": e.URL}
	for k, v := range e.Metadata {
		meta[k] = v
	}

	info, err := sampling.CreatePointSet(ctx, e.Name, points, meta)
	if err != nil {
		return fmt.Errorf("create point set: %w", err)
	}
	log.Info("stored", "id", info.ID, "points", info.Count)

	if e.DownsampleKm > 0 && info.Count > 0 {
		res, err := sampling.Downsample(ctx, usecases.DownsampleRequest{
			PointSetID: info.ID,
			Interval:   geospatial.Kilometers(e.DownsampleKm),
			PersistAs:  fmt.Sprintf("%s (%.3f km)", e.Name, e.DownsampleKm),
		})
		if err != nil {
			return fmt.Errorf("downsample: %w", err)
		}
		log.Info("thinned", "id", res.ResultID, "in", res.InputPoints, "out", res.OutputPoints)
	}
	return nil
}

// fetch reads an http(s) URL, or a local path for anything else.
func fetch(client *http.Client, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return os.ReadFile(strings.TrimPrefix(url, "file://"))
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
