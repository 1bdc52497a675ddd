package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/geoanalysis/internal/core/domain"
	"github.com/samirrijal/geoanalysis/internal/pkg/presets"
)

// AnalysisRunner runs a spatial analysis; *usecases.AnalysisService satisfies it.
type AnalysisRunner interface {
	Run(ctx context.Context, a domain.SpatialAnalysis) (*domain.AnalysisResult, error)
}

// PresetRun summarises one precomputed preset.
type PresetRun struct {
	Name         string `json:"name"`
	AnalysisID   string `json:"analysis_id"`
	Mode         string `json:"mode"`
	FeatureCount int    `json:"feature_count"`
}

// PrecomputeActivities holds the activity implementations for the precompute workflow.
type PrecomputeActivities struct {
	Presets  *presets.Registry
	Analyses AnalysisRunner
}

// ListPresets returns the names of every configured preset.
func (a *PrecomputeActivities) ListPresets(ctx context.Context) ([]string, error) {
	if a.Presets == nil {
		return nil, nil
	}
	return a.Presets.Names(), nil
}

// RunPreset runs the named preset. The analysis service caches the result,
// so later chart requests for the same preset are served warm.
func (a *PrecomputeActivities) RunPreset(ctx context.Context, name string) (PresetRun, error) {
	if a.Presets == nil {
		return PresetRun{}, fmt.Errorf("%w: %s", presets.ErrPresetNotFound, name)
	}
	p, err := a.Presets.Get(name)
	if err != nil {
		return PresetRun{}, err
	}

	result, err := a.Analyses.Run(ctx, p.Analysis)
	if err != nil {
		return PresetRun{}, fmt.Errorf("run preset %s: %w", name, err)
	}

	run := PresetRun{Name: name, AnalysisID: result.ID, Mode: string(result.Mode)}
	if result.Features != nil {
		run.FeatureCount = len(result.Features.Features)
	}
	slog.InfoContext(ctx, "preset precomputed", "preset", name, "features", run.FeatureCount)
	return run, nil
}
