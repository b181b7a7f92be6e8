package forecast

import (
	"context"
	"fmt"

	"github.com/arnavshah/covers-scheduler-api/pkg/metrics"
	"github.com/arnavshah/covers-scheduler-api/pkg/models"
	"github.com/arnavshah/covers-scheduler-api/pkg/scheduler"
	"go.uber.org/zap"
)

// Service owns the loaded forecast artifacts and answers forecast requests
type Service struct {
	features Resolver
	model    Predictor
	planner  *scheduler.Planner
	cache    Cache
	version  string
	log      *zap.Logger
}

// Option configures optional Service collaborators
type Option func(*Service)

// WithCache enables caching of predictions made by the given model version
func WithCache(cache Cache, version string) Option {
	return func(s *Service) {
		s.cache = cache
		s.version = version
	}
}

// NewService wires a feature resolver, a predictor and a planner together
func NewService(features Resolver, model Predictor, planner *scheduler.Planner, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{features: features, model: model, planner: planner, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Forecast predicts covers for date at hour and the staff they require
func (s *Service) Forecast(ctx context.Context, date string, hour int) (*models.ForecastResult, error) {
	rec, err := s.features.Resolve(date, hour)
	if err != nil {
		return nil, err
	}

	covers, err := s.covers(ctx, rec)
	if err != nil {
		return nil, err
	}
	metrics.PredictedCovers.Observe(float64(covers))

	return &models.ForecastResult{
		Covers:        covers,
		RequiredStaff: s.planner.Plan(covers),
	}, nil
}

func (s *Service) covers(ctx context.Context, rec models.FeatureRecord) (int, error) {
	var key string
	if s.cache != nil {
		key = CacheKey(s.version, rec.Timestamp)
		covers, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.ForecastCacheTotal.WithLabelValues("error").Inc()
			s.log.Warn("forecast cache read failed", zap.String("key", key), zap.Error(err))
		case ok:
			metrics.ForecastCacheTotal.WithLabelValues("hit").Inc()
			return covers, nil
		default:
			metrics.ForecastCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	covers, err := s.model.Predict(ctx, Vector(rec))
	if err != nil {
		return 0, fmt.Errorf("predict with %s: %w", s.model.Name(), err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, covers); err != nil {
			s.log.Warn("forecast cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return covers, nil
}
