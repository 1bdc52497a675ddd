package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/geoanalysis/internal/core/domain"
)

// FeatureRepo implements ports.FeatureRepository with PostGIS.
type FeatureRepo struct {
	db *DB
}

// NewFeatureRepo creates a new FeatureRepo.
func NewFeatureRepo(db *DB) *FeatureRepo {
	return &FeatureRepo{db: db}
}

// FindRelated returns main-layer features matching the operation.
func (r *FeatureRepo) FindRelated(ctx context.Context, a domain.SpatialAnalysis) (*geojson.FeatureCollection, error) {
	query, args, err := buildRelatedQuery(a)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectFeatures(rows, false)
}

// CountByRegion returns compare-layer features with a "count" property.
func (r *FeatureRepo) CountByRegion(ctx context.Context, a domain.SpatialAnalysis) (*geojson.FeatureCollection, error) {
	query, args, err := buildRegionQuery(a)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectFeatures(rows, true)
}

func collectFeatures(rows pgx.Rows, withCount bool) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var (
			id, name, geom string
			props          map[string]any
			count          int64
		)
		dest := []any{&id, &name, &props, &geom}
		if withCount {
			dest = append(dest, &count)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		f, err := newFeature(id, name, props, []byte(geom))
		if err != nil {
			return nil, err
		}
		if withCount {
			f.Properties["count"] = count
		}
		fc.Append(f)
	}
	return fc, rows.Err()
}

// newFeature decodes an ST_AsGeoJSON geometry into a feature.
func newFeature(id, name string, props map[string]any, geom []byte) (*geojson.Feature, error) {
	g, err := geojson.UnmarshalGeometry(geom)
	if err != nil {
		return nil, fmt.Errorf("feature %s geometry: %w", id, err)
	}
	f := geojson.NewFeature(g.Geometry())
	f.ID = id
	for k, v := range props {
		f.Properties[k] = v
	}
	if name != "" {
		f.Properties["name"] = name
	}
	return f, nil
}
