package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/rewired-gh/venuepulse/internal/models"
)

// Memory is an in-process snapshot tier backed by go-cache.
type Memory struct {
	c *gocache.Cache
}

// NewMemory creates a memory tier. Entries are evicted after retention
// (0 keeps them forever); expired entries are swept every cleanupInterval.
func NewMemory(retention, cleanupInterval time.Duration) *Memory {
	if retention <= 0 {
		retention = gocache.NoExpiration
	}
	return &Memory{c: gocache.New(retention, cleanupInterval)}
}

// GetSnapshot implements Store. Snapshots are shared, not copied; callers
// must treat them as read-only.
func (m *Memory) GetSnapshot(_ context.Context, venueID string) (*models.LearningSnapshot, error) {
	v, ok := m.c.Get(venueID)
	if !ok {
		return nil, nil
	}
	snap, ok := v.(*models.LearningSnapshot)
	if !ok {
		m.c.Delete(venueID)
		return nil, nil
	}
	return snap, nil
}

// PutSnapshot implements Store.
func (m *Memory) PutSnapshot(_ context.Context, venueID string, snap *models.LearningSnapshot) error {
	m.c.Set(venueID, snap, gocache.DefaultExpiration)
	return nil
}

// Delete drops a venue's entry.
func (m *Memory) Delete(venueID string) {
	m.c.Delete(venueID)
}

// Len returns the number of cached venues, including expired entries not
// yet swept.
func (m *Memory) Len() int {
	return m.c.ItemCount()
}
