package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/geoanalysis/internal/core/domain"
	"github.com/samirrijal/geoanalysis/internal/core/ports"
	"github.com/samirrijal/geoanalysis/internal/pkg/metrics"
	"github.com/samirrijal/geoanalysis/internal/pkg/telemetry"
)

var tracer = otel.Tracer("github.com/samirrijal/geoanalysis/internal/core/usecases")

// AnalysisOptions bounds analysis queries.
type AnalysisOptions struct {
	DefaultLimit    int
	MaxLimit        int
	CacheTTLSeconds int
}

// AnalysisService runs spatial analyses between two layers.
type AnalysisService struct {
	features ports.FeatureRepository
	layers   ports.LayerRepository
	cache    ports.CacheService
	events   ports.EventPublisher
	opts     AnalysisOptions
	now      func() time.Time
}

// NewAnalysisService creates a new AnalysisService. cache and events may be nil.
func NewAnalysisService(
	features ports.FeatureRepository,
	layers ports.LayerRepository,
	cache ports.CacheService,
	events ports.EventPublisher,
	opts AnalysisOptions,
) *AnalysisService {
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 1000
	}
	if opts.DefaultLimit <= 0 || opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}
	if opts.CacheTTLSeconds <= 0 {
		opts.CacheTTLSeconds = 300
	}
	return &AnalysisService{
		features: features,
		layers:   layers,
		cache:    cache,
		events:   events,
		opts:     opts,
		now:      time.Now,
	}
}

// Run evaluates the analysis. A DistanceWithin without a distance is
// rejected with domain.ErrBufferRequired.
func (s *AnalysisService) Run(ctx context.Context, a domain.SpatialAnalysis) (*domain.AnalysisResult, error) {
	ctx, span := tracer.Start(ctx, "AnalysisService.Run")
	defer span.End()

	if err := a.Validate(); err != nil {
		return nil, err
	}
	buffer := a.Operation.Buffer()
	if buffer == nil {
		return nil, domain.ErrBufferRequired
	}
	a.Limit = s.clampLimit(a.Limit)
	mode := a.Mode()

	span.SetAttributes(
		telemetry.AttrMainLayer.String(a.MainLayer),
		telemetry.AttrCompareLayer.String(a.CompareLayer),
		telemetry.AttrOperation.String(string(a.Operation.Type())),
		telemetry.AttrMode.String(string(mode)),
		telemetry.AttrBuffer.Int(*buffer),
	)

	mainLayer, err := s.layers.Get(ctx, a.MainLayer)
	if err != nil {
		return nil, fmt.Errorf("main layer %q: %w", a.MainLayer, err)
	}
	compareLayer, err := s.layers.Get(ctx, a.CompareLayer)
	if err != nil {
		return nil, fmt.Errorf("compare layer %q: %w", a.CompareLayer, err)
	}

	cacheKey, err := analysisCacheKey(a, mainLayer.UpdatedAt, compareLayer.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if result, ok := s.cached(ctx, cacheKey); ok {
		span.SetAttributes(telemetry.AttrCached.Bool(true))
		s.publish(ctx, result, true)
		return result, nil
	}

	start := time.Now()
	var fc *geojson.FeatureCollection
	switch mode {
	case domain.ModeChoropleth:
		fc, err = s.features.CountByRegion(ctx, a)
	default:
		fc, err = s.features.FindRelated(ctx, a)
	}
	metrics.AnalysisDuration.WithLabelValues(string(a.Operation.Type()), string(mode)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AnalysisErrors.WithLabelValues(string(a.Operation.Type())).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("run %s analysis: %w", mode, err)
	}
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}

	result := &domain.AnalysisResult{
		ID:           uuid.NewString(),
		Mode:         mode,
		MainLayer:    a.MainLayer,
		CompareLayer: a.CompareLayer,
		Operation:    a.Operation,
		Buffer:       buffer,
		Features:     fc,
		GeneratedAt:  s.now().UTC(),
	}
	metrics.AnalysesRun.WithLabelValues(string(a.Operation.Type()), string(mode)).Inc()
	span.SetAttributes(
		telemetry.AttrCached.Bool(false),
		telemetry.AttrFeatureCount.Int(len(fc.Features)),
	)

	if s.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.opts.CacheTTLSeconds)
		}
	}

	s.publish(ctx, result, false)
	return result, nil
}

func (s *AnalysisService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.opts.DefaultLimit
	}
	if limit > s.opts.MaxLimit {
		return s.opts.MaxLimit
	}
	return limit
}

func (s *AnalysisService) cached(ctx context.Context, key string) (*domain.AnalysisResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues("analysis").Inc()
		return nil, false
	}
	var result domain.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		metrics.CacheMisses.WithLabelValues("analysis").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("analysis").Inc()
	return &result, true
}

func (s *AnalysisService) publish(ctx context.Context, result *domain.AnalysisResult, cached bool) {
	if s.events == nil {
		return
	}
	count := 0
	if result.Features != nil {
		count = len(result.Features.Features)
	}
	event := &domain.AnalysisEvent{
		ID:           result.ID,
		MainLayer:    result.MainLayer,
		CompareLayer: result.CompareLayer,
		Operation:    result.Operation,
		Mode:         result.Mode,
		FeatureCount: count,
		Cached:       cached,
		CompletedAt:  s.now().UTC(),
	}
	if err := s.events.PublishAnalysisCompleted(ctx, event); err != nil {
		slog.WarnContext(ctx, "publish analysis event failed", "analysis_id", result.ID, "error", err)
	}
}

// analysisCacheKey changes whenever the analysis or either layer changes.
func analysisCacheKey(a domain.SpatialAnalysis, mainUpdated, compareUpdated time.Time) (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode analysis: %w", err)
	}
	h := sha256.New()
	h.Write(data)
	fmt.Fprintf(h, "|%d|%d", mainUpdated.UnixNano(), compareUpdated.UnixNano())
	return "analysis:" + hex.EncodeToString(h.Sum(nil)), nil
}
