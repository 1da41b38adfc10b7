package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

// memoryCacheRepo round-trips values through JSON like the redis repository.
type memoryCacheRepo struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.items[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	return nil
}

type referenceUpstreamStub struct {
	teachers []models.Teacher
	periods  []models.Period
	holidays []models.Holiday
	err      error
	calls    int
}

func (s *referenceUpstreamStub) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	s.calls++
	return s.teachers, s.err
}

func (s *referenceUpstreamStub) ListPeriods(ctx context.Context) ([]models.Period, error) {
	s.calls++
	return s.periods, s.err
}

func (s *referenceUpstreamStub) ListHolidays(ctx context.Context) ([]models.Holiday, error) {
	s.calls++
	return s.holidays, s.err
}

func TestReferenceServiceCachesLists(t *testing.T) {
	upstream := &referenceUpstreamStub{
		teachers: []models.Teacher{{UserID: 9, Name: "Original"}},
		periods:  []models.Period{{ID: 1, Name: "P1"}},
	}
	metrics := NewMetricsService()
	cache := NewCacheService(newMemoryCacheRepo(), metrics, time.Minute, zap.NewNop(), true)
	svc := NewReferenceService(upstream, cache, time.Minute, zap.NewNop())

	first, err := svc.Teachers(context.Background())
	require.NoError(t, err)
	second, err := svc.Teachers(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, upstream.calls)

	_, err = svc.Periods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.calls)

	require.NoError(t, svc.Invalidate(context.Background()))
	_, err = svc.Teachers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, upstream.calls)
}

func TestReferenceServiceDoesNotCacheEmptyLists(t *testing.T) {
	upstream := &referenceUpstreamStub{}
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	svc := NewReferenceService(upstream, cache, time.Minute, nil)

	_, err := svc.Holidays(context.Background())
	require.NoError(t, err)
	_, err = svc.Holidays(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, upstream.calls)
}

func TestReferenceServiceWrapsUpstreamErrors(t *testing.T) {
	svc := NewReferenceService(&referenceUpstreamStub{err: errors.New("erp down")}, nil, time.Minute, nil)

	_, err := svc.Teachers(context.Background())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErr.Code)
	assert.Equal(t, "failed to load teachers", appErr.Message)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, 0, nil, false)

	require.NoError(t, cache.Set(context.Background(), "k", "v", 0))
	hit, err := cache.Get(context.Background(), "k", new(string))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, repo.items)

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
}
