package workflows

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/geoanalysis/internal/core/domain"
	"github.com/samirrijal/geoanalysis/internal/pkg/presets"
)

const testPresets = `
presets:
  - name: shops-near-stations
    analysis:
      main_layer: shops
      compare_layer: stations
      operation: {type: dwithin, distance: 300}
  - name: shops-per-district
    analysis:
      main_layer: shops
      compare_layer: districts
      operation: {type: intersects, choropleth: true}
  - name: broken
    analysis:
      main_layer: missing
      compare_layer: stations
      operation: {type: intersects}
`

// fakeRunner returns n point features per call, or fails for the "missing" layer.
type fakeRunner struct {
	features int

	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeRunner) Run(_ context.Context, a domain.SpatialAnalysis) (*domain.AnalysisResult, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[a.MainLayer]++
	f.mu.Unlock()
	if a.MainLayer == "missing" {
		return nil, errors.New("layer not found")
	}
	fc := geojson.NewFeatureCollection()
	for i := 0; i < f.features; i++ {
		fc.Append(geojson.NewFeature(orb.Point{-2.93, 43.26}))
	}
	return &domain.AnalysisResult{ID: "r-" + a.MainLayer, Mode: domain.ModePoint, Features: fc}, nil
}

func newTestActivities(t *testing.T, runner AnalysisRunner) *PrecomputeActivities {
	t.Helper()
	reg, err := presets.Parse([]byte(testPresets))
	require.NoError(t, err)
	return &PrecomputeActivities{Presets: reg, Analyses: runner}
}

func TestPrecomputeWorkflow_SelectedPresets(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PrecomputeWorkflow)
	env.RegisterActivity(newTestActivities(t, &fakeRunner{features: 3}))

	env.ExecuteWorkflow(PrecomputeWorkflow, PrecomputeInput{Presets: []string{"shops-near-stations"}})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result PrecomputeResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, map[string]int{"shops-near-stations": 3}, result.Counts)
	assert.Empty(t, result.Failed)
}

func TestPrecomputeWorkflow_AllPresetsSkipsFailures(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	runner := &fakeRunner{features: 2}
	env.RegisterWorkflow(PrecomputeWorkflow)
	env.RegisterActivity(newTestActivities(t, runner))

	env.ExecuteWorkflow(PrecomputeWorkflow, PrecomputeInput{})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result PrecomputeResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, map[string]int{"shops-near-stations": 2, "shops-per-district": 2}, result.Counts)
	assert.Equal(t, []string{"broken"}, result.Failed)
	assert.Equal(t, 3, runner.calls["missing"], "failed preset should be retried up to the attempt limit")
}

func TestPrecomputeWorkflow_UnknownPreset(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PrecomputeWorkflow)
	env.RegisterActivity(newTestActivities(t, &fakeRunner{}))

	env.ExecuteWorkflow(PrecomputeWorkflow, PrecomputeInput{Presets: []string{"nope"}})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result PrecomputeResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Empty(t, result.Counts)
	assert.Equal(t, []string{"nope"}, result.Failed)
}

func TestRunPreset_Activity(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(newTestActivities(t, &fakeRunner{features: 4}))

	val, err := env.ExecuteActivity("RunPreset", "shops-per-district")
	require.NoError(t, err)

	var run PresetRun
	require.NoError(t, val.Get(&run))
	assert.Equal(t, "shops-per-district", run.Name)
	assert.Equal(t, "r-shops", run.AnalysisID)
	assert.Equal(t, 4, run.FeatureCount)
}

func TestRunPreset_NotFound(t *testing.T) {
	acts := newTestActivities(t, &fakeRunner{})
	_, err := acts.RunPreset(context.Background(), "nope")
	assert.ErrorIs(t, err, presets.ErrPresetNotFound)
}
