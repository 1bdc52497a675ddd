//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/geoanalysis/internal/adapters/http"
	"github.com/samirrijal/geoanalysis/internal/adapters/postgres"
	"github.com/samirrijal/geoanalysis/internal/core/usecases"
	"github.com/samirrijal/geoanalysis/internal/pkg/config"
)

// setupTestDB connects to the database named by the usual GEOANALYSIS_*
// settings. Migrations must already be applied.
func setupTestDB(t *testing.T) *postgres.DB {
	t.Helper()
	cfg, err := config.Load("geoanalysis-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}
	return &postgres.DB{Pool: pool}
}

// seedLayers creates two small layers around Bilbao and removes them after the test.
func seedLayers(t *testing.T, db *postgres.DB) (shops, stations string) {
	t.Helper()
	suffix := time.Now().UnixNano()
	shops = fmt.Sprintf("it_shops_%d", suffix)
	stations = fmt.Sprintf("it_stations_%d", suffix)
	ctx := context.Background()

	stmts := []string{
		`INSERT INTO layers (name, geometry_type) VALUES ($1, 'Point'), ($2, 'Polygon')`,
		// Abando station area (small square) and a shop inside it, another ~2 km away.
		`INSERT INTO features (layer, name, geom) VALUES
			($2, 'abando', ST_GeogFromText('POLYGON((-2.927 43.261,-2.923 43.261,-2.923 43.263,-2.927 43.263,-2.927 43.261))')),
			($1, 'inside', ST_GeogFromText('POINT(-2.925 43.262)')),
			($1, 'near',   ST_GeogFromText('POINT(-2.928 43.262)')),
			($1, 'far',    ST_GeogFromText('POINT(-2.950 43.270)'))`,
	}
	for _, stmt := range stmts {
		if _, err := db.Pool.Exec(ctx, stmt, shops, stations); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM layers WHERE name IN ($1, $2)`, shops, stations)
	})
	return shops, stations
}

func setupIntegrationDeps(db *postgres.DB) *http.Dependencies {
	features := postgres.NewFeatureRepo(db)
	layers := postgres.NewLayerRepo(db)
	return &http.Dependencies{
		Analyses:   usecases.NewAnalysisService(features, layers, nil, nil, usecases.AnalysisOptions{}),
		Operations: usecases.NewOperationService(),
		Layers:     usecases.NewLayerService(layers, nil),
		DB:         db,
	}
}

func runAnalysis(t *testing.T, deps *http.Dependencies, body string) (mode string, names []string, counts []int) {
	t.Helper()
	resp := post(t, setupApp(deps), "/v1/analyses", body)
	if resp.status != 200 {
		t.Fatalf("expected 200, got %d: %s", resp.status, resp.body)
	}
	var result struct {
		Mode     string `json:"mode"`
		Features struct {
			Features []struct {
				Properties map[string]any `json:"properties"`
			} `json:"features"`
		} `json:"features"`
	}
	if err := json.Unmarshal(resp.body, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, f := range result.Features.Features {
		names = append(names, fmt.Sprint(f.Properties["name"]))
		if c, ok := f.Properties["count"].(float64); ok {
			counts = append(counts, int(c))
		}
	}
	return result.Mode, names, counts
}

func TestIntegration_Intersects(t *testing.T) {
	db := setupTestDB(t)
	shops, stations := seedLayers(t, db)
	deps := setupIntegrationDeps(db)

	_, names, _ := runAnalysis(t, deps, fmt.Sprintf(
		`{"main_layer":%q,"compare_layer":%q,"operation":{"type":"intersects"}}`, shops, stations))
	if len(names) != 1 || names[0] != "inside" {
		t.Errorf("expected only 'inside', got %v", names)
	}
}

func TestIntegration_DistanceWithin(t *testing.T) {
	db := setupTestDB(t)
	shops, stations := seedLayers(t, db)
	deps := setupIntegrationDeps(db)

	_, names, _ := runAnalysis(t, deps, fmt.Sprintf(
		`{"main_layer":%q,"compare_layer":%q,"operation":{"type":"dwithin","distance":"300"}}`, shops, stations))
	if len(names) != 2 {
		t.Errorf("expected 'inside' and 'near', got %v", names)
	}
}

func TestIntegration_Choropleth(t *testing.T) {
	db := setupTestDB(t)
	shops, stations := seedLayers(t, db)
	deps := setupIntegrationDeps(db)

	mode, names, counts := runAnalysis(t, deps, fmt.Sprintf(
		`{"main_layer":%q,"compare_layer":%q,"operation":{"type":"dwithin","distance":300,"choropleth":true}}`, shops, stations))
	if mode != "choropleth" {
		t.Fatalf("expected choropleth mode, got %s", mode)
	}
	if len(names) != 1 || names[0] != "abando" || len(counts) != 1 || counts[0] != 2 {
		t.Errorf("expected abando with 2 matches, got %v %v", names, counts)
	}
}

func TestIntegration_LayerTouchedByFeatureInsert(t *testing.T) {
	db := setupTestDB(t)
	shops, _ := seedLayers(t, db)
	deps := setupIntegrationDeps(db)
	ctx := context.Background()

	before, err := deps.Layers.Get(ctx, shops)
	if err != nil {
		t.Fatalf("get layer: %v", err)
	}
	if _, err := db.Pool.Exec(ctx,
		`INSERT INTO features (layer, name, geom) VALUES ($1, 'late', ST_GeogFromText('POINT(-2.9 43.2)'))`, shops); err != nil {
		t.Fatalf("insert: %v", err)
	}
	after, err := deps.Layers.Get(ctx, shops)
	if err != nil {
		t.Fatalf("get layer: %v", err)
	}
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Errorf("expected updated_at to advance: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
	if after.FeatureCount != before.FeatureCount+1 {
		t.Errorf("expected feature count %d, got %d", before.FeatureCount+1, after.FeatureCount)
	}
}
