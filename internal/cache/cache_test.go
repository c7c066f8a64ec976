package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rewired-gh/venuepulse/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

func snap(venueID string) *models.LearningSnapshot {
	return &models.LearningSnapshot{
		VenueID:         venueID,
		Windows:         map[models.TimeWindow]models.WindowLearning{},
		BestOccurrences: map[models.TimeWindow]models.BestOccurrence{},
		Patterns:        []models.DiscoveredPattern{},
		LastAnalyzed:    time.Date(2026, time.January, 24, 12, 0, 0, 0, time.UTC),
		Status:          models.StatusInsufficientData,
	}
}

// mapStore is a Store with injectable failures.
type mapStore struct {
	mu     sync.Mutex
	data   map[string]*models.LearningSnapshot
	getErr error
	putErr error
	puts   int
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string]*models.LearningSnapshot)}
}

func (s *mapStore) GetSnapshot(_ context.Context, venueID string) (*models.LearningSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.data[venueID], nil
}

func (s *mapStore) PutSnapshot(_ context.Context, venueID string, sn *models.LearningSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.data[venueID] = sn
	return nil
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0, 0)

	got, err := m.GetSnapshot(ctx, "venue-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	want := snap("venue-1")
	require.NoError(t, m.PutSnapshot(ctx, "venue-1", want))
	got, err = m.GetSnapshot(ctx, "venue-1")
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, 1, m.Len())

	m.Delete("venue-1")
	got, _ = m.GetSnapshot(ctx, "venue-1")
	assert.Nil(t, got)
}

func TestMemoryRetention(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(20*time.Millisecond, time.Minute)

	require.NoError(t, m.PutSnapshot(ctx, "venue-1", snap("venue-1")))
	assert.Eventually(t, func() bool {
		got, _ := m.GetSnapshot(ctx, "venue-1")
		return got == nil
	}, time.Second, 10*time.Millisecond)
}

func TestTieredReadThrough(t *testing.T) {
	ctx := context.Background()
	fast, durable := newMapStore(), newMapStore()
	durable.data["venue-1"] = snap("venue-1")
	tiered := NewTiered(fast, nil, durable)

	got, err := tiered.GetSnapshot(ctx, "venue-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Same(t, durable.data["venue-1"], fast.data["venue-1"], "hit should backfill faster layer")

	got, err = tiered.GetSnapshot(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTieredFastLayerFailureFallsThrough(t *testing.T) {
	ctx := context.Background()
	fast, durable := newMapStore(), newMapStore()
	fast.getErr = errors.New("connection refused")
	durable.data["venue-1"] = snap("venue-1")

	got, err := NewTiered(fast, durable).GetSnapshot(ctx, "venue-1")
	require.NoError(t, err)
	assert.NotNil(t, got)

	durable.getErr = errors.New("disk gone")
	_, err = NewTiered(fast, durable).GetSnapshot(ctx, "venue-1")
	assert.EqualError(t, err, "disk gone")
}

func TestTieredWriteThrough(t *testing.T) {
	ctx := context.Background()

	t.Run("writes every layer", func(t *testing.T) {
		fast, durable := newMapStore(), newMapStore()
		require.NoError(t, NewTiered(fast, durable).PutSnapshot(ctx, "venue-1", snap("venue-1")))
		assert.NotNil(t, fast.data["venue-1"])
		assert.NotNil(t, durable.data["venue-1"])
	})

	t.Run("durable failure stops the write", func(t *testing.T) {
		fast, durable := newMapStore(), newMapStore()
		durable.putErr = errors.New("disk full")
		err := NewTiered(fast, durable).PutSnapshot(ctx, "venue-1", snap("venue-1"))
		assert.EqualError(t, err, "disk full")
		assert.Equal(t, 0, fast.puts)
	})

	t.Run("fast layer failure is tolerated", func(t *testing.T) {
		fast, durable := newMapStore(), newMapStore()
		fast.putErr = errors.New("redis down")
		require.NoError(t, NewTiered(fast, durable).PutSnapshot(ctx, "venue-1", snap("venue-1")))
		assert.NotNil(t, durable.data["venue-1"])
	})
}

func TestRedisKey(t *testing.T) {
	r := NewRedisWithClient(nil, "", 0)
	assert.Equal(t, "venuepulse:snapshot:venue-1", r.Key("venue-1"))

	r = NewRedisWithClient(nil, "test:", 0)
	assert.Equal(t, "test:venue-1", r.Key("venue-1"))
}

// TestRedisRoundTrip runs against a real server when one is configured.
func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("VENUEPULSE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("VENUEPULSE_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	r, err := NewRedis(ctx, RedisConfig{Addr: addr, Prefix: "venuepulse:test:", Retention: time.Minute})
	require.NoError(t, err)
	defer r.Close()

	want := snap("venue-1")
	require.NoError(t, r.PutSnapshot(ctx, "venue-1", want))
	got, err := r.GetSnapshot(ctx, "venue-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, r.rdb.Set(ctx, r.Key("venue-2"), "not json", time.Minute).Err())
	got, err = r.GetSnapshot(ctx, "venue-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}
