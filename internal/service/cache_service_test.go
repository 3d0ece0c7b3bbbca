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

	"github.com/noah-isme/oncall-board-api/internal/models"
	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
)

type mapCache struct {
	mu       sync.Mutex
	entries  map[string][]byte
	counters map[string]int64
	getErr   error
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]byte{}, counters: map[string]int64{}}
}

func (m *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *mapCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *mapCache) Counter(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key], nil
}

func (m *mapCache) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	var nilCache *CacheService
	var dest ScheduleGrid
	assert.False(t, nilCache.Get(context.Background(), "k", &dest))
	nilCache.Set(context.Background(), "k", dest, 0)
	nilCache.Invalidate(context.Background(), "k*")

	repo := newMapCache()
	disabled := NewCacheService(repo, nil, 0, nil, false)
	disabled.Set(context.Background(), "k", dest, 0)
	assert.Empty(t, repo.entries)
}

func TestScheduleGridIsCachedAndInvalidatedPerTrack(t *testing.T) {
	repo := newMapCache()
	metrics := NewMetricsService()
	cache := NewCacheService(repo, metrics, time.Minute, nil, true)

	reader := &assignmentReaderStub{views: []models.AssignmentView{
		{Date: "2025-03-01", TimeSlot: "09:00-10:00", UserID: "user-a", FirstName: "Ann", LastName: "Lee"},
	}}
	window := fixedWindow{
		start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		end:   time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	svc := NewScheduleService(reader, window, &onCallStub{}, newUserRepoStub(), cache, ScheduleClock{}, nil)

	first, err := svc.Grid(context.Background(), models.TrackLive)
	require.NoError(t, err)
	second, err := svc.Grid(context.Background(), models.TrackLive)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, reader.dates, 1, "second read is served from cache")
	assert.Contains(t, repo.entries, "schedule:live:0:2025-03-01:2025-03-02")

	_, err = svc.Grid(context.Background(), models.TrackTest)
	require.NoError(t, err)
	invalidateSchedule(context.Background(), cache, models.TrackLive)
	assert.NotContains(t, repo.entries, "schedule:live:0:2025-03-01:2025-03-02")
	assert.Contains(t, repo.entries, "schedule:test:0:2025-03-01:2025-03-02")
	assert.Equal(t, int64(1), repo.counters["schedule-gen:live"])
	assert.Zero(t, repo.counters["schedule-gen:test"])

	snapshot := metrics.Snapshot()
	assert.InDelta(t, 1.0/3.0, snapshot.CacheHitRatio, 0.001)
}

func TestCacheServiceTreatsErrorsAsMiss(t *testing.T) {
	repo := newMapCache()
	repo.getErr = errors.New("redis down")
	cache := NewCacheService(repo, nil, 0, nil, true)
	var dest ScheduleGrid
	assert.False(t, cache.Get(context.Background(), "k", &dest))
}

func TestScheduleGridLoadedBeforeInvalidationIsNotCached(t *testing.T) {
	repo := newMapCache()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	reader := &assignmentReaderStub{}
	window := fixedWindow{
		start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		end:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	svc := NewScheduleService(reader, window, &onCallStub{}, newUserRepoStub(), cache, ScheduleClock{}, nil)

	// A batch commits and invalidates while the first read is in flight.
	reader.onList = func() {
		reader.onList = nil
		reader.views = []models.AssignmentView{
			{Date: "2025-03-01", TimeSlot: "09:00-10:00", UserID: "user-a", FirstName: "Ann", LastName: "Lee"},
		}
		invalidateSchedule(context.Background(), cache, models.TrackLive)
	}

	inFlight, err := svc.Grid(context.Background(), models.TrackLive)
	require.NoError(t, err)
	assert.Empty(t, inFlight.Assignments)
	assert.Empty(t, repo.entries, "grid read before the invalidation must not be stored")

	reloaded, err := svc.Grid(context.Background(), models.TrackLive)
	require.NoError(t, err)
	require.Len(t, reloaded.Assignments[models.CanonicalKey("2025-03-01", "09:00-10:00")], 1)
	assert.Len(t, reader.dates, 2)
	assert.Contains(t, repo.entries, "schedule:live:1:2025-03-01:2025-03-01")
}
