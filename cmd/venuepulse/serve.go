package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/venuepulse/internal/httpapi"
	"github.com/rewired-gh/venuepulse/internal/ingest"
	"github.com/rewired-gh/venuepulse/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func serveCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run ingestion, periodic analysis and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c)
		},
	}
}

func serve(ctx context.Context, c *cli) error {
	cfg := c.cfg
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Ingest.MQTT.Enabled {
		sub := ingest.NewMQTTSubscriber(ingest.MQTTConfig{
			Broker:   cfg.Ingest.MQTT.Broker,
			ClientID: cfg.Ingest.MQTT.ClientID,
			Username: cfg.Ingest.MQTT.Username,
			Password: cfg.Ingest.MQTT.Password,
			Topic:    cfg.Ingest.MQTT.Topic,
		}, a.readings, a.metrics)
		if err := sub.Start(gctx); err != nil {
			return err
		}
		defer sub.Stop()
	}

	if cfg.Ingest.Kafka.Enabled {
		consumer, err := ingest.NewKafkaConsumer(ingest.KafkaConfig{
			Brokers: cfg.Ingest.Kafka.Brokers,
			Topic:   cfg.Ingest.Kafka.Topic,
			GroupID: cfg.Ingest.Kafka.GroupID,
		}, a.readings, a.metrics)
		if err != nil {
			return err
		}
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.Warn("Failed to close kafka consumer: %v", err)
			}
		}()
		g.Go(func() error { return consumer.Run(gctx) })
	}

	if cfg.HTTP.Enabled {
		srv := httpapi.New(a.monitor, a.registry)
		g.Go(func() error { return srv.Start(cfg.HTTP.Listen) })
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		runRefreshLoop(gctx, a)
		return nil
	})

	err = g.Wait()
	logger.Info("Service stopped")
	return err
}

// runRefreshLoop refreshes every configured venue on each tick until ctx
// ends, pruning expired readings along the way.
func runRefreshLoop(ctx context.Context, a *app) {
	interval := a.cfg.Analysis.RefreshInterval
	logger.Info("Starting refresh loop (interval: %v, venues: %d, workers: %d)",
		interval, len(a.cfg.Venues), a.cfg.Analysis.Workers)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	consecutiveFailures := 0
	runCycle := func(now time.Time) {
		failed, err := a.monitor.RefreshAll(ctx, nil)
		if err != nil {
			return
		}
		for _, f := range failed {
			logger.Error("%v", f)
		}
		if len(failed) > 0 {
			consecutiveFailures++
			if consecutiveFailures > 1 {
				logger.Warn("Refresh cycle has failed %d times in a row", consecutiveFailures)
			}
		} else {
			if consecutiveFailures > 0 {
				logger.Info("Refresh cycle recovered after %d failed cycles", consecutiveFailures)
			}
			consecutiveFailures = 0
		}

		if a.readings != nil && a.cfg.Readings.Retention > 0 {
			removed, err := a.readings.Prune(ctx, now.Add(-a.cfg.Readings.Retention))
			if err != nil {
				logger.Warn("Failed to prune readings: %v", err)
			} else if removed > 0 {
				logger.Info("Pruned %d readings older than %v", removed, a.cfg.Readings.Retention)
			}
		}
	}

	// Run the initial cycle immediately.
	logger.Debug("Running initial refresh cycle")
	runCycle(time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case tickTime := <-ticker.C:
			logger.Debug("Starting scheduled refresh cycle")
			runCycle(tickTime)
		}
	}
}
