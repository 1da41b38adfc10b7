package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

const (
	referenceCacheTeachers = "ref:teachers"
	referenceCachePeriods  = "ref:periods"
	referenceCacheHolidays = "ref:holidays"
	referenceCachePattern  = "ref:*"
)

type referenceUpstream interface {
	ListTeachers(ctx context.Context) ([]models.Teacher, error)
	ListPeriods(ctx context.Context) ([]models.Period, error)
	ListHolidays(ctx context.Context) ([]models.Holiday, error)
}

type referenceCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// ReferenceService serves the slow-changing lists shared by every workspace:
// teachers, periods and holidays.
type ReferenceService struct {
	upstream referenceUpstream
	cache    referenceCache
	ttl      time.Duration
	logger   *zap.Logger
}

// NewReferenceService constructs a ReferenceService. cache may be nil.
func NewReferenceService(upstream referenceUpstream, cache referenceCache, ttl time.Duration, logger *zap.Logger) *ReferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceService{upstream: upstream, cache: cache, ttl: ttl, logger: logger}
}

// Teachers lists the teacher roster.
func (s *ReferenceService) Teachers(ctx context.Context) ([]models.Teacher, error) {
	var teachers []models.Teacher
	if s.fromCache(ctx, referenceCacheTeachers, &teachers) {
		return teachers, nil
	}
	teachers, err := s.upstream.ListTeachers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load teachers")
	}
	s.toCache(ctx, referenceCacheTeachers, teachers)
	return teachers, nil
}

// Periods lists the daily time slots.
func (s *ReferenceService) Periods(ctx context.Context) ([]models.Period, error) {
	var periods []models.Period
	if s.fromCache(ctx, referenceCachePeriods, &periods) {
		return periods, nil
	}
	periods, err := s.upstream.ListPeriods(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load periods")
	}
	s.toCache(ctx, referenceCachePeriods, periods)
	return periods, nil
}

// Holidays lists every known holiday.
func (s *ReferenceService) Holidays(ctx context.Context) ([]models.Holiday, error) {
	var holidays []models.Holiday
	if s.fromCache(ctx, referenceCacheHolidays, &holidays) {
		return holidays, nil
	}
	holidays, err := s.upstream.ListHolidays(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load holidays")
	}
	s.toCache(ctx, referenceCacheHolidays, holidays)
	return holidays, nil
}

// Invalidate drops every cached reference list.
func (s *ReferenceService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, referenceCachePattern)
}

func (s *ReferenceService) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		return false
	}
	return hit
}

// toCache stores non-empty lists only.
func (s *ReferenceService) toCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	switch v := value.(type) {
	case []models.Teacher:
		if len(v) == 0 {
			return
		}
	case []models.Period:
		if len(v) == 0 {
			return
		}
	case []models.Holiday:
		if len(v) == 0 {
			return
		}
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Debug("reference cache write skipped", zap.String("key", key), zap.Error(err))
	}
}
