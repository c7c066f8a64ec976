package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rewired-gh/venuepulse/internal/logger"
	"github.com/rewired-gh/venuepulse/internal/models"
)

// RedisConfig configures the shared Redis tier.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Prefix    string        // key prefix, e.g. "venuepulse:snapshot:"
	Retention time.Duration // key expiry; 0 keeps keys forever
}

// Redis is a snapshot tier shared between processes. Snapshots are stored
// as their JSON document under Prefix+venueID.
type Redis struct {
	rdb       goredis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisWithClient(rdb, cfg.Prefix, cfg.Retention), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rdb goredis.UniversalClient, prefix string, retention time.Duration) *Redis {
	if prefix == "" {
		prefix = "venuepulse:snapshot:"
	}
	return &Redis{rdb: rdb, prefix: prefix, retention: retention}
}

// Key returns the Redis key for a venue.
func (r *Redis) Key(venueID string) string {
	return r.prefix + venueID
}

// GetSnapshot implements Store. Undecodable values are treated as a miss.
func (r *Redis) GetSnapshot(ctx context.Context, venueID string) (*models.LearningSnapshot, error) {
	raw, err := r.rdb.Get(ctx, r.Key(venueID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	snap, err := models.UnmarshalSnapshot(raw)
	if err != nil || snap.VenueID != venueID {
		logger.Warn("Discarding unreadable cached snapshot for %s: %v", venueID, err)
		return nil, nil
	}
	return snap, nil
}

// PutSnapshot implements Store.
func (r *Redis) PutSnapshot(ctx context.Context, venueID string, snap *models.LearningSnapshot) error {
	raw, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := r.rdb.Set(ctx, r.Key(venueID), raw, r.retention).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
