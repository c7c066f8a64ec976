// Package cache provides snapshot caches that sit in front of the durable
// snapshot store: an in-process memory tier, a shared Redis tier, and a
// Tiered chain that reads through and writes through a list of layers.
//
// Every tier stores whole snapshots keyed by venue ID. Staleness is not
// judged here; callers compare LastAnalyzed against their own TTL.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/rewired-gh/venuepulse/internal/logger"
	"github.com/rewired-gh/venuepulse/internal/models"
)

// Store is the snapshot get/put contract shared by every tier and by the
// durable store. GetSnapshot returns nil, nil on a miss.
type Store interface {
	GetSnapshot(ctx context.Context, venueID string) (*models.LearningSnapshot, error)
	PutSnapshot(ctx context.Context, venueID string, snap *models.LearningSnapshot) error
}

// Tiered chains stores from fastest to most durable. Reads stop at the first
// hit and backfill the faster layers; writes go to every layer.
type Tiered struct {
	layers []Store
}

// NewTiered creates a Tiered store. Nil layers are skipped.
func NewTiered(layers ...Store) *Tiered {
	t := &Tiered{}
	for _, l := range layers {
		if l != nil {
			t.layers = append(t.layers, l)
		}
	}
	return t
}

// GetSnapshot implements Store. A failing layer is logged and skipped so a
// cache outage degrades to the next layer instead of failing the read; only
// the error of the last layer is returned.
func (t *Tiered) GetSnapshot(ctx context.Context, venueID string) (*models.LearningSnapshot, error) {
	for i, l := range t.layers {
		snap, err := l.GetSnapshot(ctx, venueID)
		if err != nil {
			if i == len(t.layers)-1 {
				return nil, err
			}
			logger.Warn("Snapshot cache layer %d read failed for %s: %v", i, venueID, err)
			continue
		}
		if snap == nil {
			continue
		}
		for j := 0; j < i; j++ {
			if err := t.layers[j].PutSnapshot(ctx, venueID, snap); err != nil {
				logger.Warn("Snapshot cache layer %d backfill failed for %s: %v", j, venueID, err)
			}
		}
		return snap, nil
	}
	return nil, nil
}

// PutSnapshot implements Store. The most durable layer is written first; if
// it fails nothing else is written, so faster layers never hold a snapshot
// the durable layer lacks.
func (t *Tiered) PutSnapshot(ctx context.Context, venueID string, snap *models.LearningSnapshot) error {
	var errs []error
	for i := len(t.layers) - 1; i >= 0; i-- {
		err := t.layers[i].PutSnapshot(ctx, venueID, snap)
		if err == nil {
			continue
		}
		if i == len(t.layers)-1 {
			return err
		}
		errs = append(errs, fmt.Errorf("layer %d: %w", i, err))
	}
	if len(errs) > 0 {
		logger.Warn("Snapshot cache write partially failed for %s: %v", venueID, errors.Join(errs...))
	}
	return nil
}
