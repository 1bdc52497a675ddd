package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/geoanalysis/internal/core/domain"
	"github.com/samirrijal/geoanalysis/internal/core/usecases"
)

func TestLayerService_ListCachesResult(t *testing.T) {
	calls := 0
	repo := &mockLayerRepo{
		listFn: func(ctx context.Context) ([]domain.Layer, error) {
			calls++
			return []domain.Layer{{Name: "stores", FeatureCount: 12}, {Name: "stations"}}, nil
		},
	}
	cache := newMemCache()
	svc := usecases.NewLayerService(repo, cache)

	for i := 0; i < 2; i++ {
		layers, err := svc.List(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(layers) != 2 || layers[0].Name != "stores" || layers[0].FeatureCount != 12 {
			t.Errorf("unexpected layers: %+v", layers)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 repo call, got %d", calls)
	}
	if cache.sets != 1 {
		t.Errorf("expected 1 cache write, got %d", cache.sets)
	}
}

func TestLayerService_ListWithoutCache(t *testing.T) {
	calls := 0
	repo := &mockLayerRepo{
		listFn: func(ctx context.Context) ([]domain.Layer, error) {
			calls++
			return nil, nil
		},
	}
	svc := usecases.NewLayerService(repo, nil)

	_, _ = svc.List(context.Background())
	_, _ = svc.List(context.Background())
	if calls != 2 {
		t.Errorf("expected 2 repo calls, got %d", calls)
	}
}

func TestLayerService_ListCorruptCacheFallsBack(t *testing.T) {
	repo := &mockLayerRepo{
		listFn: func(ctx context.Context) ([]domain.Layer, error) {
			return []domain.Layer{{Name: "districts"}}, nil
		},
	}
	cache := newMemCache()
	cache.data["layers:all"] = []byte("not json")
	svc := usecases.NewLayerService(repo, cache)

	layers, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(layers) != 1 || layers[0].Name != "districts" {
		t.Errorf("unexpected layers: %+v", layers)
	}
}

func TestLayerService_GetPassesErrors(t *testing.T) {
	repo := &mockLayerRepo{
		getFn: func(ctx context.Context, name string) (*domain.Layer, error) {
			return nil, domain.ErrLayerNotFound
		},
	}
	svc := usecases.NewLayerService(repo, newMemCache())

	_, err := svc.Get(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrLayerNotFound) {
		t.Errorf("expected ErrLayerNotFound, got %v", err)
	}
}

func TestLayerService_Get(t *testing.T) {
	svc := usecases.NewLayerService(&mockLayerRepo{}, nil)

	layer, err := svc.Get(context.Background(), "stores")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if layer.Name != "stores" {
		t.Errorf("expected stores, got %s", layer.Name)
	}
}
