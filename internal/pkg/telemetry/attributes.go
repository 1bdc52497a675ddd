package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys recorded on analysis spans.
const (
	// Request shape
	AttrMainLayer    = attribute.Key("analysis.main_layer")
	AttrCompareLayer = attribute.Key("analysis.compare_layer")
	AttrOperation    = attribute.Key("analysis.operation")
	AttrMode         = attribute.Key("analysis.mode")
	AttrBuffer       = attribute.Key("analysis.buffer")

	// Outcome
	AttrCached       = attribute.Key("analysis.cached")
	AttrFeatureCount = attribute.Key("analysis.feature_count")

	// Presets
	AttrPreset = attribute.Key("preset.name")
)
