package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rewired-gh/venuepulse/internal/cache"
	"github.com/rewired-gh/venuepulse/internal/config"
	"github.com/rewired-gh/venuepulse/internal/genre"
	"github.com/rewired-gh/venuepulse/internal/logger"
	"github.com/rewired-gh/venuepulse/internal/metrics"
	"github.com/rewired-gh/venuepulse/internal/monitor"
	"github.com/rewired-gh/venuepulse/internal/readingapi"
	"github.com/rewired-gh/venuepulse/internal/readings"
	"github.com/rewired-gh/venuepulse/internal/storage"
	"github.com/rewired-gh/venuepulse/internal/telegram"
	"github.com/rewired-gh/venuepulse/internal/telemetry"
)

const dirPermissions = 0o755

// app wires the configured components together.
type app struct {
	cfg       *config.Config
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	snapshots *storage.Store
	redis     *cache.Redis
	readings  *readings.Repository // nil when readings come from the API
	monitor   *monitor.Monitor

	shutdownTracing func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.shutdownTracing, err = telemetry.Setup(telemetry.Config{Enabled: cfg.Telemetry.TracingEnabled})
	if err != nil {
		return nil, err
	}

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if a.metrics, err = metrics.New(a.registry); err != nil {
		return nil, err
	}

	// Snapshot tiers, fastest first; the durable store goes last.
	a.snapshots, err = storage.Open(cfg.Storage.DBPath, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot storage: %w", err)
	}
	var layers []cache.Store
	if cfg.Cache.MemoryEnabled {
		layers = append(layers, cache.NewMemory(cfg.Cache.Retention, cfg.Cache.CleanupInterval))
	}
	if cfg.Cache.RedisEnabled {
		a.redis, err = cache.NewRedis(ctx, cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddr,
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			Prefix:    cfg.Cache.RedisPrefix,
			Retention: cfg.Cache.Retention,
		})
		if err != nil {
			return nil, err
		}
		layers = append(layers, a.redis)
	}
	layers = append(layers, a.snapshots)

	var source monitor.ReadingSource
	switch cfg.Readings.Source {
	case config.SourceAPI:
		source = readingapi.NewClient(cfg.Readings.APIBaseURL, cfg.Readings.Timeout, cfg.Readings.MaxRetries, cfg.Readings.RetryDelayBase)
	default:
		if cfg.Readings.Driver == readings.DriverSQLite {
			if err := os.MkdirAll(filepath.Dir(cfg.Readings.DSN), dirPermissions); err != nil {
				return nil, fmt.Errorf("failed to create readings directory: %w", err)
			}
		}
		a.readings, err = readings.Open(readings.Config{
			Driver: cfg.Readings.Driver,
			DSN:    cfg.Readings.DSN,
			Debug:  cfg.Logging.Level == "debug",
		})
		if err != nil {
			return nil, err
		}
		source = a.readings
	}

	var notifier monitor.Notifier
	if cfg.Telegram.Enabled {
		tg, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		notifier = tg
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	a.monitor, err = monitor.New(monitor.Options{
		Store:       cache.NewTiered(layers...),
		Source:      source,
		Notifier:    notifier,
		Metrics:     a.metrics,
		Detector:    genre.NewKeywordDetector(genre.DefaultVocabulary()),
		Lookback:    cfg.Analysis.Lookback,
		MaxReadings: cfg.Analysis.MaxReadings,
		CacheTTL:    cfg.Analysis.CacheTTL,
		Workers:     cfg.Analysis.Workers,
	})
	if err != nil {
		return nil, err
	}
	for _, v := range cfg.Venues {
		loc, err := v.Location()
		if err != nil {
			return nil, err
		}
		composite := v.Composite
		if composite == "" {
			composite = cfg.Analysis.Composite
		}
		if err := a.monitor.AddVenue(monitor.Venue{ID: v.ID, Location: loc, Capacity: v.Capacity, Composite: composite}); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// requireReadings returns the local reading repository or an error when
// readings come from a remote store.
func (a *app) requireReadings() (*readings.Repository, error) {
	if a.readings == nil {
		return nil, errors.New("this command needs readings.source=database")
	}
	return a.readings, nil
}

// Close releases everything newApp opened.
func (a *app) Close() {
	if a.monitor != nil {
		a.monitor.Close()
	}
	if a.readings != nil {
		if err := a.readings.Close(); err != nil {
			logger.Error("Failed to close reading store: %v", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Error("Failed to close redis: %v", err)
		}
	}
	if a.snapshots != nil {
		if err := a.snapshots.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(context.Background()); err != nil {
			logger.Warn("Failed to flush traces: %v", err)
		}
	}
}
