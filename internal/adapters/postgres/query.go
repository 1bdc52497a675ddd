package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samirrijal/geoanalysis/internal/core/domain"
)

// queryArgs collects positional parameters while a query is assembled.
type queryArgs []any

func (q *queryArgs) add(v any) string {
	*q = append(*q, v)
	return "$" + strconv.Itoa(len(*q))
}

// spatialPredicate renders the relation between a main-layer feature (m)
// and a compare-layer feature (c). Only the operation's buffer and type are
// read.
func spatialPredicate(op domain.GeoSpatialOperation, args *queryArgs) (string, error) {
	switch op.Type() {
	case domain.OperationIntersects:
		return "ST_Intersects(m.geom, c.geom)", nil
	case domain.OperationDistanceWithin:
		buffer := op.Buffer()
		if buffer == nil {
			return "", domain.ErrBufferRequired
		}
		return fmt.Sprintf("ST_DWithin(m.geom, c.geom, %s)", args.add(float64(*buffer))), nil
	default:
		return "", &domain.UnknownVariantError{Tag: string(op.Type())}
	}
}

// boundsPredicate limits main-layer features to the analysis bounds.
func boundsPredicate(b *domain.Bounds, args *queryArgs) string {
	if b == nil {
		return ""
	}
	box := b.Bound()
	return fmt.Sprintf(
		" AND ST_Intersects(m.geom, ST_MakeEnvelope(%s, %s, %s, %s, 4326)::geography)",
		args.add(box.Min.Lon()), args.add(box.Min.Lat()),
		args.add(box.Max.Lon()), args.add(box.Max.Lat()),
	)
}

// buildRelatedQuery selects main-layer features related to any
// compare-layer feature.
func buildRelatedQuery(a domain.SpatialAnalysis) (string, []any, error) {
	if a.Operation.IsZero() {
		return "", nil, fmt.Errorf("%w: operation is required", domain.ErrInvalidAnalysis)
	}
	var args queryArgs
	mainLayer := args.add(a.MainLayer)
	compareLayer := args.add(a.CompareLayer)

	pred, err := spatialPredicate(a.Operation, &args)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT m.id::text, COALESCE(m.name, ''), COALESCE(m.properties, '{}'::jsonb),
		       ST_AsGeoJSON(m.geom)
		FROM features m
		WHERE m.layer = `)
	sb.WriteString(mainLayer)
	sb.WriteString(boundsPredicate(a.Bounds, &args))
	fmt.Fprintf(&sb, `
		  AND EXISTS (
		      SELECT 1 FROM features c
		      WHERE c.layer = %s AND %s
		  )
		ORDER BY m.id
		LIMIT %s`, compareLayer, pred, args.add(a.Limit))

	return sb.String(), args, nil
}

// buildRegionQuery counts related main-layer features per compare-layer
// feature. Regions with no match are kept with a zero count.
func buildRegionQuery(a domain.SpatialAnalysis) (string, []any, error) {
	if a.Operation.IsZero() {
		return "", nil, fmt.Errorf("%w: operation is required", domain.ErrInvalidAnalysis)
	}
	var args queryArgs
	mainLayer := args.add(a.MainLayer)
	compareLayer := args.add(a.CompareLayer)

	pred, err := spatialPredicate(a.Operation, &args)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `
		SELECT c.id::text, COALESCE(c.name, ''), COALESCE(c.properties, '{}'::jsonb),
		       ST_AsGeoJSON(c.geom), count(m.id) AS matches
		FROM features c
		LEFT JOIN features m ON m.layer = %s AND %s`, mainLayer, pred)
	sb.WriteString(boundsPredicate(a.Bounds, &args))
	fmt.Fprintf(&sb, `
		WHERE c.layer = %s
		GROUP BY c.id
		ORDER BY matches DESC, c.id
		LIMIT %s`, compareLayer, args.add(a.Limit))

	return sb.String(), args, nil
}
