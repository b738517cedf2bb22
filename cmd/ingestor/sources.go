package main

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JettChenT/ek-geo/internal/adapters/render"
	"github.com/JettChenT/ek-geo/internal/core/domain"
)

func parsePoints(e SourceEntry, body []byte) ([]domain.GeoPoint, error) {
	switch strings.ToLower(e.Format) {
	case "", "geojson", "json":
		return render.DecodePoints(body)
	case "csv":
		return readCSVPoints(bytes.NewReader(body), column(e.LonColumn, "lon"), column(e.LatColumn, "lat"))
	case "gtfs":
		return readGTFSStops(body)
	default:
		return nil, fmt.Errorf("unknown format %q", e.Format)
	}
}

func column(name, def string) string {
	if name == "" {
		return def
	}
	return name
}

// readCSVPoints reads one point per row. Columns other than the coordinate
// columns are kept in the point's aux map. Rows with unparsable coordinates
// are skipped.
func readCSVPoints(r io.Reader, lonCol, latCol string) ([]domain.GeoPoint, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	cols := indexColumns(header)
	if _, ok := cols[lonCol]; !ok {
		return nil, fmt.Errorf("missing column %q", lonCol)
	}
	if _, ok := cols[latCol]; !ok {
		return nil, fmt.Errorf("missing column %q", latCol)
	}

	var points []domain.GeoPoint
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		lon, err1 := strconv.ParseFloat(getField(record, cols, lonCol), 64)
		lat, err2 := strconv.ParseFloat(getField(record, cols, latCol), 64)
		if err1 != nil || err2 != nil {
			continue
		}

		var aux map[string]any
		for name, idx := range cols {
			if name == lonCol || name == latCol || idx >= len(record) {
				continue
			}
			if aux == nil {
				aux = make(map[string]any, len(cols)-2)
			}
			aux[name] = strings.TrimSpace(record[idx])
		}
		points = append(points, domain.GeoPoint{Lon: lon, Lat: lat, Aux: aux})
	}
	return points, nil
}

// readGTFSStops loads stops.txt from a GTFS feed zip.
func readGTFSStops(body []byte) ([]domain.GeoPoint, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	f, err := openCSV(zr, "stops.txt")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	cols := indexColumns(header)

	var points []domain.GeoPoint
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		lat, _ := strconv.ParseFloat(getField(record, cols, "stop_lat"), 64)
		lon, _ := strconv.ParseFloat(getField(record, cols, "stop_lon"), 64)
		if lat == 0 && lon == 0 {
			continue
		}
		points = append(points, domain.GeoPoint{
			Lon: lon,
			Lat: lat,
			Aux: map[string]any{
				"stop_id":   getField(record, cols, "stop_id"),
				"stop_name": getField(record, cols, "stop_name"),
			},
		})
	}
	return points, nil
}

func openCSV(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, name) {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("file %s not found in zip", name)
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.TrimSpace(col)] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
