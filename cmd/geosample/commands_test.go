package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JettChenT/ek-geo/internal/core/domain"
	"github.com/JettChenT/ek-geo/internal/pkg/config"
)

const sfBounds = "-122.4194,37.7749,-122.4118,37.7802"

func testConfig() *config.Config {
	return &config.Config{Sampling: config.SamplingConfig{
		DefaultIntervalKm: 0.05,
		MaxPoints:         10000,
		MaxGridCells:      10000,
	}}
}

type featureCollection struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func TestParseBounds(t *testing.T) {
	b, err := parseBounds("-122.4118, 37.7802, -122.4194, 37.7749")
	require.NoError(t, err)
	assert.Equal(t, -122.4194, b.Lo.Lon)
	assert.Equal(t, 37.7802, b.Hi.Lat)

	_, err = parseBounds("1,2,3")
	require.Error(t, err)
	_, err = parseBounds("0,95,1,1")
	require.ErrorIs(t, err, domain.ErrInvalidCoordinate)
}

func TestRunGrid_GeoJSON(t *testing.T) {
	var out bytes.Buffer
	err := runGrid(context.Background(), testConfig(), []string{"-bounds", sfBounds}, &out)
	require.NoError(t, err)

	var fc featureCollection
	require.NoError(t, json.Unmarshal(out.Bytes(), &fc))
	require.Len(t, fc.Features, 143)
	assert.Equal(t, []float64{-122.4194, 37.7749}, fc.Features[0].Geometry.Coordinates)
	assert.Equal(t, 0.3, fc.Features[0].Properties["radius"])
}

func TestRunGrid_Errors(t *testing.T) {
	cfg := testConfig()
	var out bytes.Buffer

	require.Error(t, runGrid(context.Background(), cfg, nil, &out))

	err := runGrid(context.Background(), cfg, []string{"-bounds", sfBounds, "-interval", "10"}, &out)
	require.ErrorIs(t, err, domain.ErrDegenerateGrid)

	cfg.Sampling.MaxGridCells = 100
	err = runGrid(context.Background(), cfg, []string{"-bounds", sfBounds}, &out)
	require.ErrorIs(t, err, domain.ErrGridTooLarge)

	err = runGrid(context.Background(), testConfig(), []string{"-bounds", sfBounds, "-format", "svg"}, &out)
	require.Error(t, err)
}

func TestRunDownsample_FirstPointPerCell(t *testing.T) {
	in := `[
		{"lon": -122.4190, "lat": 37.7750, "aux": {"name": "first"}},
		{"lon": -122.41901, "lat": 37.77501, "aux": {"name": "second"}},
		{"lon": -122.4120, "lat": 37.7800, "aux": {"name": "far"}}
	]`
	var out bytes.Buffer
	err := runDownsample(context.Background(), testConfig(), []string{"-index", "-bounds", sfBounds}, strings.NewReader(in), &out)
	require.NoError(t, err)

	var fc featureCollection
	require.NoError(t, json.Unmarshal(out.Bytes(), &fc))
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "first", fc.Features[0].Properties["name"])
	assert.Equal(t, float64(0), fc.Features[0].Properties["idx"])
}

func TestRunDownsample_HTMLToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plot.html")
	in := `[{"lon": -122.4190, "lat": 37.7750}, {"lon": -122.4120, "lat": 37.7800}]`

	err := runDownsample(context.Background(), testConfig(),
		[]string{"-format", "html", "-o", path}, strings.NewReader(in), &bytes.Buffer{})
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestRunDownsample_EmptyInput(t *testing.T) {
	err := runDownsample(context.Background(), testConfig(), nil, strings.NewReader(`[]`), &bytes.Buffer{})
	require.True(t, errors.Is(err, domain.ErrEmptyPointSet))
}

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitIDs(" a, ,b,"))
	assert.Nil(t, splitIDs(""))
}
