// Command geosample generates grids and down-samples point files locally,
// and can hand a batch of stored sets to the sampling worker.
//
//	geosample grid       -bounds lon,lat,lon,lat [-interval km] [-format geojson|html] [-o file]
//	geosample downsample -in points.json [-bounds ...] [-interval km] [-index] [-format ...] [-o file]
//	geosample batch      -ids id1,id2 [-interval km] [-persist-prefix p]
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/JettChenT/ek-geo/internal/pkg/config"
	"github.com/JettChenT/ek-geo/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load("ekgeo-cli")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	// Logs go to stderr so stdout stays clean for output.
	slog.SetDefault(logging.New(os.Stderr, cfg.Log.Level, "text"))

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: geosample grid|downsample|batch [flags]")
		os.Exit(2)
	}

	ctx := context.Background()
	args := os.Args[2:]
	switch os.Args[1] {
	case "grid":
		err = runGrid(ctx, cfg, args, os.Stdout)
	case "downsample":
		err = runDownsample(ctx, cfg, args, os.Stdin, os.Stdout)
	case "batch":
		err = runBatch(ctx, cfg, args)
	default:
		err = fmt.Errorf("unknown command %q", os.Args[1])
	}
	if err != nil {
		slog.Error("geosample failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}
