package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geoanalysis/internal/core/domain"
)

// HealthHandler is the liveness check. It also reports what the service can
// analyse: the operation variants it decodes and the presets it loaded.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()
	operations := []domain.OperationType{domain.OperationDistanceWithin, domain.OperationIntersects}

	return func(c *fiber.Ctx) error {
		presets := 0
		if deps.Presets != nil {
			presets = len(deps.Presets.Names())
		}
		return c.JSON(fiber.Map{
			"status":     "healthy",
			"uptime":     time.Since(startedAt).String(),
			"version":    "dev",
			"operations": operations,
			"presets":    presets,
		})
	}
}

var errDisconnected = errors.New("disconnected")

// readinessCheck probes one dependency. A required check that fails makes the
// service not ready; optional ones only fail it when configured and broken.
type readinessCheck struct {
	name     string
	required bool
	probe    func(ctx context.Context) (configured bool, err error)
}

func readinessChecks(deps *Dependencies) []readinessCheck {
	return []readinessCheck{
		{
			name:     "database",
			required: true,
			probe: func(ctx context.Context) (bool, error) {
				if deps.DB == nil {
					return false, nil
				}
				return true, deps.DB.Pool.Ping(ctx)
			},
		},
		{
			// Every analysis runs ST_DWithin or ST_Intersects.
			name:     "postgis",
			required: true,
			probe: func(ctx context.Context) (bool, error) {
				if deps.DB == nil {
					return false, nil
				}
				var version string
				return true, deps.DB.Pool.QueryRow(ctx, `SELECT postgis_lib_version()`).Scan(&version)
			},
		},
		{
			name: "nats",
			probe: func(ctx context.Context) (bool, error) {
				if deps.NATS == nil {
					return false, nil
				}
				if !deps.NATS.IsConnected() {
					return true, errDisconnected
				}
				return true, nil
			},
		},
		{
			name: "cache",
			probe: func(ctx context.Context) (bool, error) {
				if deps.Cache == nil {
					return false, nil
				}
				return true, deps.Cache.Ping(ctx)
			},
		},
	}
}

// ReadyHandler runs the readiness checks with a shared 3s budget.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	checks := readinessChecks(deps)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		results := make(map[string]string, len(checks))
		ready := true
		for _, chk := range checks {
			configured, err := chk.probe(ctx)
			switch {
			case !configured:
				results[chk.name] = "not configured"
				if chk.required {
					ready = false
				}
			case err != nil:
				results[chk.name] = "error: " + err.Error()
				ready = false
			default:
				results[chk.name] = "ok"
			}
		}

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
				"checks": results,
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
			"checks": results,
		})
	}
}
