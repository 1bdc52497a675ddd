package ports

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geoanalysis/internal/core/domain"
)

// FeatureRepository evaluates spatial analyses against stored layers.
type FeatureRepository interface {
	// FindRelated returns main-layer features related to at least one
	// compare-layer feature by the analysis operation.
	FindRelated(ctx context.Context, a domain.SpatialAnalysis) (*geojson.FeatureCollection, error)
	// CountByRegion returns compare-layer features, each with a "count"
	// property of related main-layer features.
	CountByRegion(ctx context.Context, a domain.SpatialAnalysis) (*geojson.FeatureCollection, error)
}

// LayerRepository reads layer metadata.
type LayerRepository interface {
	List(ctx context.Context) ([]domain.Layer, error)
	Get(ctx context.Context, name string) (*domain.Layer, error)
}
