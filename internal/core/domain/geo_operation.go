package domain

import "encoding/json"

// OperationType is the wire discriminator of a GeoSpatialOperation.
type OperationType string

const (
	OperationDistanceWithin OperationType = "dwithin"
	OperationIntersects     OperationType = "intersects"
)

// GeoSpatialOperation is the spatial filter attached to a chart analysis.
// The variant set is closed: DistanceWithin and Intersects.
type GeoSpatialOperation interface {
	// Type returns the discriminator used on the wire.
	Type() OperationType
	// Buffer returns the radius a consumer should use to build the spatial
	// query. It is derived and never encoded.
	Buffer() *int
	// Choropleth reports whether results render as filled regions.
	Choropleth() bool

	isGeoSpatialOperation()
}

// DistanceWithin matches features within Distance of the compare layer.
type DistanceWithin struct {
	distance    int
	hasDistance bool
	choropleth  bool
}

// NewDistanceWithin builds a DistanceWithin. A nil distance is kept as nil;
// a nil choropleth means false.
func NewDistanceWithin(distance *int, choropleth *bool) DistanceWithin {
	d := DistanceWithin{choropleth: isTrue(choropleth)}
	if distance != nil {
		d.distance = *distance
		d.hasDistance = true
	}
	return d
}

func (DistanceWithin) Type() OperationType { return OperationDistanceWithin }

// Distance returns the configured radius, or nil if none was given.
func (d DistanceWithin) Distance() *int {
	if !d.hasDistance {
		return nil
	}
	v := d.distance
	return &v
}

func (d DistanceWithin) Buffer() *int     { return d.Distance() }
func (d DistanceWithin) Choropleth() bool { return d.choropleth }

func (DistanceWithin) isGeoSpatialOperation() {}

func (d DistanceWithin) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       OperationType `json:"type"`
		Distance   *int          `json:"distance"`
		Choropleth bool          `json:"choropleth"`
	}{d.Type(), d.Distance(), d.choropleth})
}

// Intersects matches features whose geometry intersects the compare layer.
type Intersects struct {
	choropleth bool
}

// NewIntersects builds an Intersects; a nil choropleth means false.
func NewIntersects(choropleth *bool) Intersects {
	return Intersects{choropleth: isTrue(choropleth)}
}

func (Intersects) Type() OperationType { return OperationIntersects }

// Buffer is always zero for Intersects.
func (Intersects) Buffer() *int {
	zero := 0
	return &zero
}

func (i Intersects) Choropleth() bool { return i.choropleth }

func (Intersects) isGeoSpatialOperation() {}

func (i Intersects) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       OperationType `json:"type"`
		Choropleth bool          `json:"choropleth"`
	}{i.Type(), i.choropleth})
}

// NewOperation builds the variant named by tag. Parameters a variant does
// not take are ignored.
func NewOperation(tag OperationType, distance *int, choropleth *bool) (GeoSpatialOperation, error) {
	switch tag {
	case OperationDistanceWithin:
		return NewDistanceWithin(distance, choropleth), nil
	case OperationIntersects:
		return NewIntersects(choropleth), nil
	default:
		return nil, &UnknownVariantError{Tag: string(tag)}
	}
}

// OperationsEqual compares the observable fields of two operations.
func OperationsEqual(a, b GeoSpatialOperation) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() || a.Choropleth() != b.Choropleth() {
		return false
	}
	ab, bb := a.Buffer(), b.Buffer()
	if ab == nil || bb == nil {
		return ab == nil && bb == nil
	}
	return *ab == *bb
}

// isTrue collapses an optional flag: only an explicit true is true.
func isTrue(b *bool) bool {
	return b != nil && *b
}
