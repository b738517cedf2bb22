package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"go.temporal.io/sdk/client"

	"github.com/JettChenT/ek-geo/internal/adapters/render"
	"github.com/JettChenT/ek-geo/internal/core/domain"
	"github.com/JettChenT/ek-geo/internal/core/ports"
	"github.com/JettChenT/ek-geo/internal/core/usecases"
	"github.com/JettChenT/ek-geo/internal/pkg/config"
	"github.com/JettChenT/ek-geo/internal/pkg/geospatial"
	"github.com/JettChenT/ek-geo/internal/workflows"
)

type outputFlags struct {
	format string
	radius float64
	out    string
}

func (o *outputFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&o.format, "format", "geojson", "output format: geojson or html")
	fs.Float64Var(&o.radius, "radius", 0.3, "point radius written to the output")
	fs.StringVar(&o.out, "o", "", "output file (default stdout)")
}

func (o *outputFlags) write(ctx context.Context, set *domain.PointSet, stdout io.Writer) error {
	var r ports.Renderer
	switch o.format {
	case "geojson":
		r = render.NewGeoJSON()
	case "html":
		r = render.NewDeck()
	default:
		return fmt.Errorf("unknown format %q", o.format)
	}

	data, _, err := r.Render(ctx, usecases.RenderRecords(set), o.radius)
	if err != nil {
		return err
	}
	if o.out == "" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(o.out, data, 0o644)
}

func runGrid(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("grid", flag.ContinueOnError)
	boundsArg := fs.String("bounds", "", "lon,lat,lon,lat of two opposite corners")
	interval := fs.Float64("interval", cfg.Sampling.DefaultIntervalKm, "grid spacing in km")
	var out outputFlags
	out.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *boundsArg == "" {
		return errors.New("-bounds is required")
	}
	b, err := parseBounds(*boundsArg)
	if err != nil {
		return err
	}
	g, err := domain.NewGrid(b, geospatial.Kilometers(*interval))
	if err != nil {
		return err
	}
	if g.Cells() > cfg.Sampling.MaxGridCells {
		return fmt.Errorf("%d cells: %w", g.Cells(), domain.ErrGridTooLarge)
	}

	set := g.Vertices()
	slog.Info("grid generated", "cols", g.Cols, "rows", g.Rows, "points", set.Len())
	return out.write(ctx, set, stdout)
}

func runDownsample(ctx context.Context, cfg *config.Config, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("downsample", flag.ContinueOnError)
	in := fs.String("in", "-", "points file (JSON array or GeoJSON), - for stdin")
	boundsArg := fs.String("bounds", "", "lon,lat,lon,lat (default: bounds of the input)")
	interval := fs.Float64("interval", cfg.Sampling.DefaultIntervalKm, "grid spacing in km")
	index := fs.Bool("index", false, "record each point's input position under \"idx\"")
	var out outputFlags
	out.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	data, err := readInput(*in, stdin)
	if err != nil {
		return err
	}
	points, err := render.DecodePoints(data)
	if err != nil {
		return err
	}
	set := domain.NewPointSet(points...)
	if *index {
		set = set.InjectIndex()
	}

	var b domain.Bounds
	if *boundsArg != "" {
		if b, err = parseBounds(*boundsArg); err != nil {
			return err
		}
	} else {
		var ok bool
		if b, ok = set.Bounds(); !ok {
			return domain.ErrEmptyPointSet
		}
	}

	thinned, err := set.Sample(b, geospatial.Kilometers(*interval))
	if err != nil {
		return err
	}
	slog.Info("points down-sampled", "in", set.Len(), "out", thinned.Len())
	return out.write(ctx, thinned, stdout)
}

func runBatch(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	ids := fs.String("ids", "", "comma-separated stored point set ids")
	interval := fs.Float64("interval", cfg.Sampling.DefaultIntervalKm, "grid spacing in km")
	prefix := fs.String("persist-prefix", "", "store results named <prefix><id>")
	index := fs.Bool("index", false, "record each point's input position under \"idx\"")
	if err := fs.Parse(args); err != nil {
		return err
	}

	input := workflows.BatchDownsampleInput{
		PointSetIDs:   splitIDs(*ids),
		IntervalKm:    *interval,
		PersistPrefix: *prefix,
		InjectIndex:   *index,
	}
	if len(input.PointSetIDs) == 0 {
		return errors.New("-ids is required")
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflows.BatchDownsampleWorkflowName, input)
	if err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	slog.Info("batch started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var res workflows.BatchDownsampleResult
	if err := run.Get(ctx, &res); err != nil {
		return err
	}
	for _, o := range res.Outcomes {
		slog.Info("set down-sampled", "source", o.SourceID, "result", o.ResultID, "in", o.InputPoints, "out", o.OutputPoints)
	}
	return nil
}

// parseBounds reads "lon,lat,lon,lat" as two opposite corners.
func parseBounds(s string) (domain.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.Bounds{}, fmt.Errorf("bounds %q: want lon,lat,lon,lat", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.Bounds{}, fmt.Errorf("bounds %q: %w", s, err)
		}
		v[i] = f
	}
	a, err := domain.NewGeoPoint(v[0], v[1])
	if err != nil {
		return domain.Bounds{}, err
	}
	b, err := domain.NewGeoPoint(v[2], v[3])
	if err != nil {
		return domain.Bounds{}, err
	}
	return domain.NewBounds(a, b), nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
