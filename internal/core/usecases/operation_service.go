package usecases

import (
	"github.com/samirrijal/geoanalysis/internal/core/domain"
	"github.com/samirrijal/geoanalysis/internal/pkg/metrics"
)

// OperationService decodes geospatial operations sent by chart clients.
type OperationService struct{}

// NewOperationService creates a new OperationService.
func NewOperationService() *OperationService {
	return &OperationService{}
}

// Decode parses the wire form and records the outcome.
func (s *OperationService) Decode(raw []byte) (domain.GeoSpatialOperation, error) {
	op, err := domain.DecodeOperation(raw)
	if err != nil {
		metrics.OperationDecodeErrors.Inc()
		return nil, err
	}
	metrics.OperationsDecoded.WithLabelValues(string(op.Type())).Inc()
	return op, nil
}

// Describe decodes raw and returns the operation with its derived fields.
func (s *OperationService) Describe(raw []byte) (domain.OperationView, error) {
	op, err := s.Decode(raw)
	if err != nil {
		return domain.OperationView{}, err
	}
	return domain.DescribeOperation(op)
}

// Build constructs an operation from already separated parameters, as
// GraphQL arguments arrive.
func (s *OperationService) Build(tag string, distance *int, choropleth *bool) (domain.GeoSpatialOperation, error) {
	op, err := domain.NewOperation(domain.OperationType(tag), distance, choropleth)
	if err != nil {
		metrics.OperationDecodeErrors.Inc()
		return nil, err
	}
	metrics.OperationsDecoded.WithLabelValues(string(op.Type())).Inc()
	return op, nil
}
