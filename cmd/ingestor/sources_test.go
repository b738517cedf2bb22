package main

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVPoints(t *testing.T) {
	in := "\xef\xbb\xbfname,lng,lat\nferry,-122.3937,37.7955\nbad,x,37.7\npier,-122.4097,37.8087\n"

	points, err := readCSVPoints(strings.NewReader(in), "lng", "lat")
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.InDelta(t, -122.3937, points[0].Lon, 1e-9)
	assert.InDelta(t, 37.8087, points[1].Lat, 1e-9)
	assert.Equal(t, "ferry", points[0].Aux["name"])
	assert.NotContains(t, points[0].Aux, "lng")
}

func TestReadCSVPoints_MissingColumn(t *testing.T) {
	_, err := readCSVPoints(strings.NewReader("x,y\n1,2\n"), "lon", "lat")
	require.Error(t, err)
}

func TestReadGTFSStops(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("stops.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("stop_id,stop_name,stop_lat,stop_lon\n" +
		"S1,Embarcadero,37.7929,-122.3971\n" +
		"S0,Unplaced,0,0\n" +
		"S2,Powell,37.7844,-122.4078\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	points, err := readGTFSStops(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "S1", points[0].Aux["stop_id"])
	assert.Equal(t, "Powell", points[1].Aux["stop_name"])
	assert.InDelta(t, -122.4078, points[1].Lon, 1e-9)
}

func TestParsePoints_GeoJSON(t *testing.T) {
	body := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[-122.41,37.77]},"properties":{"k":"v"}}
	]}`)
	points, err := parsePoints(SourceEntry{Format: "geojson"}, body)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "v", points[0].Aux["k"])
}

func TestParsePoints_UnknownFormat(t *testing.T) {
	_, err := parsePoints(SourceEntry{Format: "kml"}, nil)
	require.Error(t, err)
}
