package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geoanalysis/internal/adapters/postgres"
	"github.com/samirrijal/geoanalysis/internal/adapters/valkey"
	"github.com/samirrijal/geoanalysis/internal/core/usecases"
	"github.com/samirrijal/geoanalysis/internal/pkg/presets"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Analyses   *usecases.AnalysisService
	Operations *usecases.OperationService
	Layers     *usecases.LayerService
	Presets    *presets.Registry
	NATS       *nats.Conn
	DB         *postgres.DB
	Cache      *valkey.Cache
}
