package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/JettChenT/ek-geo/internal/core/domain"
	"github.com/JettChenT/ek-geo/internal/core/usecases"
	"github.com/JettChenT/ek-geo/internal/pkg/geospatial"
)

// Sampler is the part of the sampling service the activities drive.
type Sampler interface {
	Downsample(ctx context.Context, req usecases.DownsampleRequest) (*domain.SamplingResult, error)
	DeletePointSet(ctx context.Context, id string) error
}

// SamplingActivities holds the activity implementations for batch sampling.
type SamplingActivities struct {
	Sampling Sampler
}

// DownsampleActivityInput is the payload of one DownsamplePointSet call.
// Intervals travel as kilometers since domain.Distance has no wire form.
type DownsampleActivityInput struct {
	PointSetID  string
	Bounds      *domain.Bounds
	IntervalKm  float64
	PersistAs   string
	InjectIndex bool
}

// DownsampleOutcome summarises one down-sampled set.
type DownsampleOutcome struct {
	SourceID     string
	ResultID     string
	InputPoints  int
	OutputPoints int
}

// DownsamplePointSet down-samples a stored set. Errors caused by the
// request itself are non-retryable. Every attempt of one activity carries
// the same request key, so a retry after a lost response reuses the set
// the earlier attempt stored.
func (a *SamplingActivities) DownsamplePointSet(ctx context.Context, in DownsampleActivityInput) (DownsampleOutcome, error) {
	logger := activity.GetLogger(ctx)
	info := activity.GetInfo(ctx)

	res, err := a.Sampling.Downsample(ctx, usecases.DownsampleRequest{
		PointSetID:  in.PointSetID,
		Bounds:      in.Bounds,
		Interval:    geospatial.Kilometers(in.IntervalKm),
		PersistAs:   in.PersistAs,
		RequestKey:  requestKey(info),
		InjectIndex: in.InjectIndex,
	})
	if err != nil {
		if permanent(err) {
			return DownsampleOutcome{}, temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("downsample %s: %v", in.PointSetID, err), "InvalidRequest", err)
		}
		return DownsampleOutcome{}, fmt.Errorf("downsample %s: %w", in.PointSetID, err)
	}

	logger.Info("Point set down-sampled",
		"source", in.PointSetID, "result", res.ResultID,
		"in", res.InputPoints, "out", res.OutputPoints)
	return DownsampleOutcome{
		SourceID:     in.PointSetID,
		ResultID:     res.ResultID,
		InputPoints:  res.InputPoints,
		OutputPoints: res.OutputPoints,
	}, nil
}

// DeletePointSet removes a persisted result (saga compensation).
// A set that is already gone counts as deleted.
func (a *SamplingActivities) DeletePointSet(ctx context.Context, id string) error {
	err := a.Sampling.DeletePointSet(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete point set %s: %w", id, err)
	}
	activity.GetLogger(ctx).Info("Point set deleted (saga compensation)", "id", id)
	return nil
}

func requestKey(info activity.Info) string {
	return info.WorkflowExecution.ID + "/" + info.WorkflowExecution.RunID + "/" + info.ActivityID
}

func permanent(err error) bool {
	for _, target := range []error{
		domain.ErrNotFound,
		domain.ErrInvalidCoordinate,
		domain.ErrDegenerateGrid,
		domain.ErrGridTooLarge,
		domain.ErrEmptyPointSet,
		domain.ErrTooManyPoints,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
