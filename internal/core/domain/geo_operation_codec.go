package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownVariant is matched by every UnknownVariantError.
	ErrUnknownVariant = errors.New("unknown geospatial operation variant")
	// ErrMalformedOperation is returned for payloads that are not a JSON object.
	ErrMalformedOperation = errors.New("malformed geospatial operation")
)

// UnknownVariantError reports a discriminator that names no known variant.
type UnknownVariantError struct {
	Tag string
}

func (e *UnknownVariantError) Error() string {
	if e.Tag == "" {
		return `unknown geospatial operation variant: missing "type"`
	}
	return fmt.Sprintf("unknown geospatial operation variant %q", e.Tag)
}

func (e *UnknownVariantError) Is(target error) bool {
	return target == ErrUnknownVariant
}

// DecodeOperation decodes the externally tagged wire form. The "type" field
// picks the variant; the remaining fields are coerced and never rejected.
func DecodeOperation(data []byte) (GeoSpatialOperation, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedOperation)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected object, got %s", ErrMalformedOperation, root.Type)
	}

	tag := root.Get("type")
	if tag.Type != gjson.String {
		return nil, &UnknownVariantError{Tag: tag.Raw}
	}

	return NewOperation(
		OperationType(tag.Str),
		coerceInt(root.Get("distance")),
		coerceBool(root.Get("choropleth")),
	)
}

// EncodeOperation returns the wire form of op. Buffer is not part of it.
func EncodeOperation(op GeoSpatialOperation) ([]byte, error) {
	op = unwrapOperation(op)
	if op == nil {
		return nil, errors.New("encode geospatial operation: nil operation")
	}
	return json.Marshal(op)
}

func coerceBool(r gjson.Result) *bool {
	var v bool
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		v = true
	case gjson.String:
		v = strings.EqualFold(strings.TrimSpace(r.Str), "true")
	}
	return &v
}

// coerceInt truncates numbers and numeric strings to an int. Values outside
// the 32-bit range (and NaN) have no integer form and become nil.
func coerceInt(r gjson.Result) *int {
	var f float64
	switch r.Type {
	case gjson.Number:
		f = r.Num
	case gjson.String:
		var err error
		f, err = strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return nil
		}
	default:
		return nil
	}
	if !(f >= math.MinInt32 && f <= math.MaxInt32) {
		return nil
	}
	v := int(f)
	return &v
}

// Operation holds a GeoSpatialOperation inside configuration structs so the
// value can be decoded from JSON or YAML without knowing the variant.
type Operation struct {
	GeoSpatialOperation
}

// distancer is implemented by DistanceWithin and *DistanceWithin.
type distancer interface {
	Distance() *int
}

// unwrapOperation returns the variant held by an Operation holder,
// following nested and pointer holders.
func unwrapOperation(op GeoSpatialOperation) GeoSpatialOperation {
	for {
		switch h := op.(type) {
		case Operation:
			op = h.GeoSpatialOperation
		case *Operation:
			if h == nil {
				return nil
			}
			op = h.GeoSpatialOperation
		default:
			return op
		}
	}
}

// IsZero reports whether no operation is set.
func (o Operation) IsZero() bool {
	return o.GeoSpatialOperation == nil
}

func (o Operation) MarshalJSON() ([]byte, error) {
	if o.GeoSpatialOperation == nil {
		return []byte("null"), nil
	}
	return EncodeOperation(o.GeoSpatialOperation)
}

func (o *Operation) UnmarshalJSON(data []byte) error {
	if gjson.ParseBytes(data).Type == gjson.Null {
		o.GeoSpatialOperation = nil
		return nil
	}
	op, err := DecodeOperation(data)
	if err != nil {
		return err
	}
	o.GeoSpatialOperation = op
	return nil
}

type yamlDistanceWithin struct {
	Type       OperationType `yaml:"type"`
	Distance   *int          `yaml:"distance"`
	Choropleth bool          `yaml:"choropleth"`
}

type yamlIntersects struct {
	Type       OperationType `yaml:"type"`
	Choropleth bool          `yaml:"choropleth"`
}

func (o Operation) MarshalYAML() (interface{}, error) {
	op := unwrapOperation(o.GeoSpatialOperation)
	if op == nil {
		return nil, nil
	}
	if d, ok := op.(distancer); ok {
		return yamlDistanceWithin{op.Type(), d.Distance(), op.Choropleth()}, nil
	}
	return yamlIntersects{op.Type(), op.Choropleth()}, nil
}

// UnmarshalYAML routes the node through DecodeOperation so YAML and JSON
// share the same coercion rules.
func (o *Operation) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		o.GeoSpatialOperation = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: line %d: expected mapping", ErrMalformedOperation, node.Line)
	}

	var raw map[string]interface{}
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("decode geospatial operation: %w", err)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("decode geospatial operation: %w", err)
	}
	op, err := DecodeOperation(data)
	if err != nil {
		return err
	}
	o.GeoSpatialOperation = op
	return nil
}
