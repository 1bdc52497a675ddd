package http

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/geoanalysis/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	operationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoSpatialOperation",
		Fields: graphql.Fields{
			"type":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"buffer":     &graphql.Field{Type: graphql.Int},
			"choropleth": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"distance":   &graphql.Field{Type: graphql.Int},
			"encoded":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})

	layerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Layer",
		Fields: graphql.Fields{
			"name":          &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"description":   &graphql.Field{Type: graphql.String},
			"geometry_type": &graphql.Field{Type: graphql.String},
			"feature_count": &graphql.Field{Type: graphql.Int},
			"updated_at":    &graphql.Field{Type: graphql.String},
		},
	})

	analysisType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AnalysisResult",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"mode":          &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"main_layer":    &graphql.Field{Type: graphql.String},
			"compare_layer": &graphql.Field{Type: graphql.String},
			"operation":     &graphql.Field{Type: operationType},
			"buffer":        &graphql.Field{Type: graphql.Int},
			"feature_count": &graphql.Field{Type: graphql.Int},
			"features":      &graphql.Field{Type: graphql.String, Description: "GeoJSON FeatureCollection"},
			"generated_at":  &graphql.Field{Type: graphql.String},
		},
	})

	operationArgs := graphql.FieldConfigArgument{
		"type":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		"distance":   &graphql.ArgumentConfig{Type: graphql.Int},
		"choropleth": &graphql.ArgumentConfig{Type: graphql.Boolean},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"operation": &graphql.Field{
				Type:        operationType,
				Description: "Build a geospatial operation and show its derived values",
				Args:        operationArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					op, err := buildOperation(deps, p.Args)
					if err != nil {
						return nil, err
					}
					return operationMap(op)
				},
			},
			"layers": &graphql.Field{
				Type:        graphql.NewList(layerType),
				Description: "List all layers",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					layers, err := deps.Layers.List(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(layers))
					for i := range layers {
						out = append(out, layerMap(&layers[i]))
					}
					return out, nil
				},
			},
			"layer": &graphql.Field{
				Type:        layerType,
				Description: "Get a layer by name",
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					layer, err := deps.Layers.Get(p.Context, p.Args["name"].(string))
					if err != nil {
						return nil, err
					}
					return layerMap(layer), nil
				},
			},
			"presets": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "Names of configured analysis presets",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Presets == nil {
						return []string{}, nil
					}
					return deps.Presets.Names(), nil
				},
			},
			"analyze": &graphql.Field{
				Type:        analysisType,
				Description: "Run a spatial analysis between two layers",
				Args: graphql.FieldConfigArgument{
					"mainLayer":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"compareLayer": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"type":         operationArgs["type"],
					"distance":     operationArgs["distance"],
					"choropleth":   operationArgs["choropleth"],
					"limit":        &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					op, err := buildOperation(deps, p.Args)
					if err != nil {
						return nil, err
					}
					a := domain.SpatialAnalysis{
						MainLayer:    p.Args["mainLayer"].(string),
						CompareLayer: p.Args["compareLayer"].(string),
						Operation:    domain.Operation{GeoSpatialOperation: op},
					}
					if limit, ok := p.Args["limit"].(int); ok {
						a.Limit = limit
					}
					result, err := deps.Analyses.Run(p.Context, a)
					if err != nil {
						return nil, err
					}
					return analysisMap(result)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func buildOperation(deps *Dependencies, args map[string]interface{}) (domain.GeoSpatialOperation, error) {
	tag, _ := args["type"].(string)
	var distance *int
	if d, ok := args["distance"].(int); ok {
		distance = &d
	}
	var choropleth *bool
	if c, ok := args["choropleth"].(bool); ok {
		choropleth = &c
	}
	return deps.Operations.Build(tag, distance, choropleth)
}

func operationMap(op domain.GeoSpatialOperation) (map[string]interface{}, error) {
	view, err := domain.DescribeOperation(op)
	if err != nil {
		return nil, err
	}
	m := map[string]interface{}{
		"type":       string(view.Type),
		"choropleth": view.Choropleth,
		"encoded":    string(view.Encoded),
	}
	if view.Buffer != nil {
		m["buffer"] = *view.Buffer
	}
	if view.Distance != nil {
		m["distance"] = *view.Distance
	}
	return m, nil
}

func layerMap(l *domain.Layer) map[string]interface{} {
	return map[string]interface{}{
		"name":          l.Name,
		"description":   l.Description,
		"geometry_type": l.GeometryType,
		"feature_count": l.FeatureCount,
		"updated_at":    l.UpdatedAt.Format(time.RFC3339),
	}
}

func analysisMap(r *domain.AnalysisResult) (map[string]interface{}, error) {
	if r.Operation.IsZero() {
		return nil, errors.New("analysis result without operation")
	}
	op, err := operationMap(r.Operation.GeoSpatialOperation)
	if err != nil {
		return nil, err
	}
	features, err := json.Marshal(r.Features)
	if err != nil {
		return nil, err
	}
	count := 0
	if r.Features != nil {
		count = len(r.Features.Features)
	}
	m := map[string]interface{}{
		"id":            r.ID,
		"mode":          string(r.Mode),
		"main_layer":    r.MainLayer,
		"compare_layer": r.CompareLayer,
		"operation":     op,
		"feature_count": count,
		"features":      string(features),
		"generated_at":  r.GeneratedAt.Format(time.RFC3339),
	}
	if r.Buffer != nil {
		m["buffer"] = *r.Buffer
	}
	return m, nil
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Query == "" {
			return errBadRequest(c, "query is required")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		c.Set("Cache-Control", "private, max-age=0")
		return c.JSON(result)
	}
}
