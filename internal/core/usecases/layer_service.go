package usecases

import (
	"context"
	"encoding/json"

	"github.com/samirrijal/geoanalysis/internal/core/domain"
	"github.com/samirrijal/geoanalysis/internal/core/ports"
	"github.com/samirrijal/geoanalysis/internal/pkg/metrics"
)

const layersCacheKey = "layers:all"

// LayerService handles layer lookups.
type LayerService struct {
	layers ports.LayerRepository
	cache  ports.CacheService
}

// NewLayerService creates a new LayerService.
func NewLayerService(layers ports.LayerRepository, cache ports.CacheService) *LayerService {
	return &LayerService{layers: layers, cache: cache}
}

// List returns all layers, cached for a minute.
func (s *LayerService) List(ctx context.Context) ([]domain.Layer, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, layersCacheKey); err == nil {
			var layers []domain.Layer
			if err := json.Unmarshal(data, &layers); err == nil {
				metrics.CacheHits.WithLabelValues("layers").Inc()
				return layers, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("layers").Inc()
	}

	layers, err := s.layers.List(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(layers); err == nil {
			_ = s.cache.Set(ctx, layersCacheKey, data, 60)
		}
	}
	return layers, nil
}

// Get returns a single layer. Not cached: analyses depend on UpdatedAt.
func (s *LayerService) Get(ctx context.Context, name string) (*domain.Layer, error) {
	return s.layers.Get(ctx, name)
}
