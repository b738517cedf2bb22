package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/JettChenT/ek-geo/internal/core/domain"
)

// BatchDownsampleWorkflowName is the registered workflow type.
const BatchDownsampleWorkflowName = "BatchDownsampleWorkflow"

// BatchDownsampleInput is the input for the batch down-sampling workflow.
type BatchDownsampleInput struct {
	PointSetIDs []string
	// Bounds applies to every set; nil means each set's own bounds.
	Bounds     *domain.Bounds
	IntervalKm float64
	// PersistPrefix names persisted results "<prefix><source id>".
	// Empty means results are not stored.
	PersistPrefix string
	InjectIndex   bool
}

// BatchDownsampleResult lists one outcome per input set, in input order.
type BatchDownsampleResult struct {
	Outcomes []DownsampleOutcome
}

// BatchDownsampleWorkflow down-samples several stored sets onto the same
// spacing. If any set fails, results already persisted by this run are
// deleted again (saga compensation) and the failure is returned.
func BatchDownsampleWorkflow(ctx workflow.Context, input BatchDownsampleInput) (*BatchDownsampleResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting batch downsample workflow", "sets", len(input.PointSetIDs), "intervalKm", input.IntervalKm)

	if input.IntervalKm <= 0 {
		return nil, temporal.NewNonRetryableApplicationError("interval must be positive", "InvalidRequest", nil)
	}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	result := &BatchDownsampleResult{}
	for _, id := range input.PointSetIDs {
		in := DownsampleActivityInput{
			PointSetID:  id,
			Bounds:      input.Bounds,
			IntervalKm:  input.IntervalKm,
			InjectIndex: input.InjectIndex,
		}
		if input.PersistPrefix != "" {
			in.PersistAs = input.PersistPrefix + id
		}

		var out DownsampleOutcome
		if err := workflow.ExecuteActivity(ctx, "DownsamplePointSet", in).Get(ctx, &out); err != nil {
			logger.Warn("downsample failed, compensating", "source", id, "error", err)
			compensate(ctx, result.Outcomes)
			return nil, err
		}
		result.Outcomes = append(result.Outcomes, out)
	}

	logger.Info("Batch downsample completed", "sets", len(result.Outcomes))
	return result, nil
}

// compensate deletes persisted results, newest first.
func compensate(ctx workflow.Context, done []DownsampleOutcome) {
	logger := workflow.GetLogger(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		if done[i].ResultID == "" {
			continue
		}
		if err := workflow.ExecuteActivity(ctx, "DeletePointSet", done[i].ResultID).Get(ctx, nil); err != nil {
			logger.Error("compensation failed", "result", done[i].ResultID, "error", err)
		}
	}
}
