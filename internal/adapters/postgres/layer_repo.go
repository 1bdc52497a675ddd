package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/geoanalysis/internal/core/domain"
)

// LayerRepo implements ports.LayerRepository with pgx.
type LayerRepo struct {
	db *DB
}

// NewLayerRepo creates a new LayerRepo.
func NewLayerRepo(db *DB) *LayerRepo {
	return &LayerRepo{db: db}
}

// List returns every layer with its feature count.
func (r *LayerRepo) List(ctx context.Context) ([]domain.Layer, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT l.name, COALESCE(l.description, ''), l.geometry_type,
		       count(f.id), l.updated_at
		FROM layers l
		LEFT JOIN features f ON f.layer = l.name
		GROUP BY l.name
		ORDER BY l.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var layers []domain.Layer
	for rows.Next() {
		var l domain.Layer
		if err := rows.Scan(&l.Name, &l.Description, &l.GeometryType, &l.FeatureCount, &l.UpdatedAt); err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}
	return layers, rows.Err()
}

// Get returns a layer by name, or domain.ErrLayerNotFound.
func (r *LayerRepo) Get(ctx context.Context, name string) (*domain.Layer, error) {
	var l domain.Layer
	err := r.db.Pool.QueryRow(ctx, `
		SELECT l.name, COALESCE(l.description, ''), l.geometry_type,
		       count(f.id), l.updated_at
		FROM layers l
		LEFT JOIN features f ON f.layer = l.name
		WHERE l.name = $1
		GROUP BY l.name
	`, name).Scan(&l.Name, &l.Description, &l.GeometryType, &l.FeatureCount, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}
