package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// PrecomputeInput selects the presets to warm. Empty means all of them.
type PrecomputeInput struct {
	Presets []string
}

// PrecomputeResult reports feature counts per preset and the presets that failed.
type PrecomputeResult struct {
	Counts map[string]int
	Failed []string
}

// PrecomputeWorkflow runs the selected presets in parallel so their results
// are cached before charts ask for them. A preset that still fails after
// retries is logged and skipped.
func PrecomputeWorkflow(ctx workflow.Context, input PrecomputeInput) (PrecomputeResult, error) {
	logger := workflow.GetLogger(ctx)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	names := input.Presets
	if len(names) == 0 {
		if err := workflow.ExecuteActivity(ctx, "ListPresets").Get(ctx, &names); err != nil {
			return PrecomputeResult{}, err
		}
	}
	logger.Info("Starting precompute workflow", "presets", len(names))

	futures := make([]workflow.Future, len(names))
	for i, name := range names {
		futures[i] = workflow.ExecuteActivity(ctx, "RunPreset", name)
	}

	result := PrecomputeResult{Counts: make(map[string]int, len(names))}
	for i, f := range futures {
		var run PresetRun
		if err := f.Get(ctx, &run); err != nil {
			logger.Warn("preset failed, skipping", "preset", names[i], "error", err)
			result.Failed = append(result.Failed, names[i])
			continue
		}
		result.Counts[names[i]] = run.FeatureCount
	}

	logger.Info("Precompute finished", "succeeded", len(result.Counts), "failed", len(result.Failed))
	return result, nil
}
