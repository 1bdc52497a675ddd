package http

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geoanalysis/internal/core/domain"
)

// DescribeOperationHandler decodes a geospatial operation and returns its
// derived view (type, buffer, choropleth, canonical encoding).
func DescribeOperationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := c.Body()
		if len(body) == 0 {
			return errBadRequest(c, "request body is required")
		}

		view, err := deps.Operations.Describe(body)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(view)
	}
}

// ListLayersHandler returns all layers with offset/limit pagination.
func ListLayersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		layers, err := deps.Layers.List(c.UserContext())
		if err != nil {
			return writeDomainError(c, err)
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 50)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		total := len(layers)
		page := []domain.Layer{}
		if offset < total {
			end := offset + limit
			if end > total {
				end = total
			}
			page = layers[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetLayerHandler returns a single layer by name.
func GetLayerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("name")
		if name == "" {
			return errBadRequest(c, "layer name is required")
		}
		layer, err := deps.Layers.Get(c.UserContext(), name)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(layer)
	}
}

// RunAnalysisHandler runs the spatial analysis in the request body.
func RunAnalysisHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var a domain.SpatialAnalysis
		if err := json.Unmarshal(c.Body(), &a); err != nil {
			if errors.Is(err, domain.ErrUnknownVariant) || errors.Is(err, domain.ErrMalformedOperation) {
				return writeDomainError(c, err)
			}
			return errBadRequest(c, "invalid request body")
		}

		result, err := deps.Analyses.Run(c.UserContext(), a)
		if err != nil {
			return writeDomainError(c, err)
		}

		c.Set("Cache-Control", "private, max-age=0")
		return c.JSON(result)
	}
}

// ListPresetsHandler returns the configured analysis presets.
func ListPresetsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Presets == nil {
			return c.JSON([]any{})
		}
		return c.JSON(deps.Presets.List())
	}
}

// RunPresetHandler runs a named preset. An optional "limit" query parameter
// overrides the preset limit.
func RunPresetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Presets == nil {
			return errNotFound(c, "no presets configured")
		}
		p, err := deps.Presets.Get(c.Params("name"))
		if err != nil {
			return writeDomainError(c, err)
		}

		a := p.Analysis
		if limit := c.QueryInt("limit", 0); limit > 0 {
			a.Limit = limit
		}

		result, err := deps.Analyses.Run(c.UserContext(), a)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(result)
	}
}
