package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
)

var (
	ErrInvalidAnalysis = errors.New("invalid spatial analysis")
	ErrBufferRequired  = errors.New("dwithin analysis requires a distance")
	ErrLayerNotFound   = errors.New("layer not found")
)

// AnalysisMode selects how analysis results are rendered.
type AnalysisMode string

const (
	ModePoint      AnalysisMode = "point"
	ModeChoropleth AnalysisMode = "choropleth"
)

// SpatialAnalysis is the geo analysis block of a chart layer: features of
// MainLayer are filtered against CompareLayer using Operation.
type SpatialAnalysis struct {
	MainLayer    string    `json:"main_layer" yaml:"main_layer"`
	CompareLayer string    `json:"compare_layer" yaml:"compare_layer"`
	Operation    Operation `json:"operation" yaml:"operation"`
	Bounds       *Bounds   `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	Limit        int       `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// Validate checks the analysis is complete. The operation's own parameters
// are not validated.
func (a SpatialAnalysis) Validate() error {
	if a.MainLayer == "" {
		return fmt.Errorf("%w: main_layer is required", ErrInvalidAnalysis)
	}
	if a.CompareLayer == "" {
		return fmt.Errorf("%w: compare_layer is required", ErrInvalidAnalysis)
	}
	if a.Operation.IsZero() {
		return fmt.Errorf("%w: operation is required", ErrInvalidAnalysis)
	}
	if a.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidAnalysis)
	}
	if a.Bounds != nil {
		if err := a.Bounds.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
		}
	}
	return nil
}

// Mode is ModeChoropleth when the operation asks for region fills.
func (a SpatialAnalysis) Mode() AnalysisMode {
	if !a.Operation.IsZero() && a.Operation.Choropleth() {
		return ModeChoropleth
	}
	return ModePoint
}

// AnalysisResult is what a chart receives after running an analysis.
// In choropleth mode every feature carries a "count" property.
type AnalysisResult struct {
	ID           string                     `json:"id"`
	Mode         AnalysisMode               `json:"mode"`
	MainLayer    string                     `json:"main_layer"`
	CompareLayer string                     `json:"compare_layer"`
	Operation    Operation                  `json:"operation"`
	Buffer       *int                       `json:"buffer"`
	Features     *geojson.FeatureCollection `json:"features"`
	GeneratedAt  time.Time                  `json:"generated_at"`
}

// AnalysisEvent is published after an analysis completes.
type AnalysisEvent struct {
	ID           string       `json:"id"`
	MainLayer    string       `json:"main_layer"`
	CompareLayer string       `json:"compare_layer"`
	Operation    Operation    `json:"operation"`
	Mode         AnalysisMode `json:"mode"`
	FeatureCount int          `json:"feature_count"`
	Cached       bool         `json:"cached"`
	CompletedAt  time.Time    `json:"completed_at"`
}

// Layer is a named set of features that analyses can reference.
type Layer struct {
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	GeometryType string    `json:"geometry_type"`
	FeatureCount int       `json:"feature_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OperationView exposes an operation together with its derived accessors.
type OperationView struct {
	Type       OperationType   `json:"type"`
	Buffer     *int            `json:"buffer"`
	Choropleth bool            `json:"choropleth"`
	Distance   *int            `json:"distance,omitempty"`
	Encoded    json.RawMessage `json:"encoded"`
}

// DescribeOperation builds the read model for op.
func DescribeOperation(op GeoSpatialOperation) (OperationView, error) {
	op = unwrapOperation(op)
	encoded, err := EncodeOperation(op)
	if err != nil {
		return OperationView{}, err
	}
	view := OperationView{
		Type:       op.Type(),
		Buffer:     op.Buffer(),
		Choropleth: op.Choropleth(),
		Encoded:    encoded,
	}
	if d, ok := op.(distancer); ok {
		view.Distance = d.Distance()
	}
	return view, nil
}
