// Package monitor keeps each venue's learning snapshot current and serves
// live scores from it.
//
// Snapshots are read stale-while-revalidate:
//
//	fresh   (LastAnalyzed within CacheTTL) -> served as is
//	stale   -> served as is, one background refresh per venue is started
//	missing -> computed synchronously (fetch, analyze, store)
//
// Score never waits for an analysis: on a miss it rates the reading against
// the neutral baseline and starts the refresh in the background.
//
// A refresh fetches the lookback window from the ReadingSource, runs the
// venue's learning engine and replaces the stored snapshot wholesale. The
// run is shared by every caller asking for the same venue and is bounded by
// RefreshTimeout and Close, not by any one caller's context.
// Reading source failures are returned to the caller unchanged so transport
// errors stay recognizable; the monitor never retries them itself.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rewired-gh/venuepulse/internal/genre"
	"github.com/rewired-gh/venuepulse/internal/learning"
	"github.com/rewired-gh/venuepulse/internal/logger"
	"github.com/rewired-gh/venuepulse/internal/metrics"
	"github.com/rewired-gh/venuepulse/internal/models"
	"github.com/rewired-gh/venuepulse/internal/scoring"
	"github.com/rewired-gh/venuepulse/internal/telemetry"
)

// SnapshotStore persists one learning snapshot per venue. GetSnapshot
// returns nil, nil on a miss.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, venueID string) (*models.LearningSnapshot, error)
	PutSnapshot(ctx context.Context, venueID string, snap *models.LearningSnapshot) error
}

// ReadingSource returns a venue's readings with timestamps in [start, end),
// in any order.
type ReadingSource interface {
	FetchReadings(ctx context.Context, venueID string, start, end time.Time, limit int) ([]models.Reading, error)
}

// Notifier is told when a venue's learning status improves.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, snap *models.LearningSnapshot, previous models.LearningStatus) error
}

// Venue holds per-venue analysis settings.
type Venue struct {
	ID        string
	Location  *time.Location // nil means UTC
	Capacity  int
	Composite string // see learning.CompositeByName
}

// Options configures a Monitor. Store and Source are required.
type Options struct {
	Store    SnapshotStore
	Source   ReadingSource
	Notifier Notifier
	Metrics  *metrics.Metrics
	Detector genre.Detector

	Lookback       time.Duration // default 12 weeks
	MaxReadings    int           // default 10000
	CacheTTL       time.Duration // default 30m
	Workers        int           // default 4
	RefreshTimeout time.Duration // background refresh bound, default 2m
}

// RefreshError represents a per-venue error during a bulk refresh.
type RefreshError struct {
	VenueID string
	Err     error
}

func (e RefreshError) Error() string {
	return fmt.Sprintf("refresh error for venue %s: %v", e.VenueID, e.Err)
}

func (e RefreshError) Unwrap() error {
	return e.Err
}

// venueRuntime is the resolved engine and scorer for one venue.
type venueRuntime struct {
	engine *learning.Engine
	scorer *scoring.Scorer
}

// Monitor coordinates analysis, snapshot caching and live scoring.
type Monitor struct {
	opts   Options
	tracer trace.Tracer
	now    func() time.Time

	mu           sync.Mutex
	venues       map[string]venueRuntime
	revalidating map[string]bool

	group  singleflight.Group
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Monitor. Venues not registered with AddVenue are analyzed
// with default settings.
func New(opts Options) (*Monitor, error) {
	if opts.Store == nil {
		return nil, errors.New("snapshot store is required")
	}
	if opts.Source == nil {
		return nil, errors.New("reading source is required")
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 12 * 7 * 24 * time.Hour
	}
	if opts.MaxReadings <= 0 {
		opts.MaxReadings = 10000
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Minute
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 2 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		opts:         opts,
		tracer:       telemetry.Tracer(),
		now:          time.Now,
		venues:       make(map[string]venueRuntime),
		revalidating: make(map[string]bool),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// AddVenue registers per-venue settings, replacing earlier ones.
func (m *Monitor) AddVenue(v Venue) error {
	if v.ID == "" {
		return errors.New("venue ID must not be empty")
	}
	composite, err := learning.CompositeByName(v.Composite, v.Capacity)
	if err != nil {
		return fmt.Errorf("venue %s: %w", v.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.venues[v.ID] = venueRuntime{
		engine: learning.New(learning.Options{
			Location:  v.Location,
			Composite: composite,
			Detector:  m.opts.Detector,
		}),
		scorer: scoring.New(v.Location, m.opts.Detector),
	}
	return nil
}

// Venues returns the registered venue IDs in sorted order.
func (m *Monitor) Venues() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.venues))
	for id := range m.venues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Monitor) runtime(venueID string) venueRuntime {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rt, ok := m.venues[venueID]; ok {
		return rt
	}
	return venueRuntime{
		engine: learning.New(learning.Options{Detector: m.opts.Detector}),
		scorer: scoring.New(nil, m.opts.Detector),
	}
}

// ErrClosed is returned by Refresh after Close.
var ErrClosed = errors.New("monitor closed")

// Refresh runs a full analysis for a venue and stores the result.
// Concurrent refreshes of the same venue share one run. A caller whose ctx
// ends stops waiting, but the shared run carries on for the others.
func (m *Monitor) Refresh(ctx context.Context, venueID string) (*models.LearningSnapshot, error) {
	if venueID == "" {
		return nil, errors.New("venue ID must not be empty")
	}

	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.wg.Add(1)
	m.mu.Unlock()

	parent := trace.SpanFromContext(ctx)
	done := make(chan singleflight.Result, 1)
	go func() {
		defer m.wg.Done()
		v, err, shared := m.group.Do(venueID, func() (any, error) {
			runCtx, cancel := context.WithTimeout(m.ctx, m.opts.RefreshTimeout)
			defer cancel()
			return m.refresh(trace.ContextWithSpan(runCtx, parent), venueID)
		})
		done <- singleflight.Result{Val: v, Err: err, Shared: shared}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.LearningSnapshot), nil
	}
}

func (m *Monitor) refresh(ctx context.Context, venueID string) (_ *models.LearningSnapshot, err error) {
	ctx, span := m.tracer.Start(ctx, "monitor.Refresh", trace.WithAttributes(attribute.String("venue.id", venueID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	started := m.now()
	rt := m.runtime(venueID)

	previous := models.StatusInsufficientData
	if prev, err := m.opts.Store.GetSnapshot(ctx, venueID); err != nil {
		logger.Warn("Refresh %s: could not read previous snapshot: %v", venueID, err)
	} else if prev != nil {
		previous = prev.Status
	}

	fetchCtx, fetchSpan := m.tracer.Start(ctx, "monitor.FetchReadings")
	readings, err := m.opts.Source.FetchReadings(fetchCtx, venueID, started.Add(-m.opts.Lookback), started, m.opts.MaxReadings)
	fetchSpan.SetAttributes(attribute.Int("readings.count", len(readings)))
	fetchSpan.End()
	if err != nil {
		m.opts.Metrics.IncAnalysisError(venueID, "fetch")
		return nil, fmt.Errorf("failed to fetch readings for %s: %w", venueID, err)
	}

	_, analyzeSpan := m.tracer.Start(ctx, "monitor.Analyze")
	snap := rt.engine.Analyze(venueID, readings, started)
	analyzeSpan.SetAttributes(
		attribute.String("learning.status", string(snap.Status)),
		attribute.Int("learning.progress", snap.Progress),
	)
	analyzeSpan.End()

	if err := ctx.Err(); err != nil {
		// Abandoned before the write; the previous snapshot stays intact.
		return nil, err
	}

	storeCtx, storeSpan := m.tracer.Start(ctx, "monitor.PutSnapshot")
	err = m.opts.Store.PutSnapshot(storeCtx, venueID, snap)
	storeSpan.End()
	if err != nil {
		m.opts.Metrics.IncAnalysisError(venueID, "store")
		return nil, fmt.Errorf("failed to store snapshot for %s: %w", venueID, err)
	}

	m.opts.Metrics.ObserveAnalysis(venueID, snap.TotalReadings, snap.Progress, m.now().Sub(started))
	logger.Info("Analyzed %s: %d readings, %.1f weeks, status=%s, progress=%d%%",
		venueID, snap.TotalReadings, snap.WeeksOfData, snap.Status, snap.Progress)

	if snap.Status.Rank() > previous.Rank() && m.opts.Notifier != nil {
		if err := m.opts.Notifier.NotifyStatusChange(ctx, snap, previous); err != nil {
			logger.Warn("Refresh %s: status notification failed: %v", venueID, err)
		}
	}
	return snap, nil
}

// Snapshot returns the venue's snapshot. A stale snapshot is returned
// immediately while a background refresh replaces it. A missing one is
// computed before returning.
func (m *Monitor) Snapshot(ctx context.Context, venueID string) (*models.LearningSnapshot, error) {
	if venueID == "" {
		return nil, errors.New("venue ID must not be empty")
	}

	snap, outcome := m.lookup(ctx, venueID)
	switch outcome {
	case metrics.CacheMiss:
		return m.Refresh(ctx, venueID)
	case metrics.CacheStale:
		m.revalidate(venueID)
	}
	return snap, nil
}

// lookup reads the stored snapshot and classifies it as fresh, stale or
// missing. An unreadable store or a snapshot stored for another venue
// counts as a miss.
func (m *Monitor) lookup(ctx context.Context, venueID string) (*models.LearningSnapshot, string) {
	snap, err := m.opts.Store.GetSnapshot(ctx, venueID)
	if err != nil {
		logger.Warn("Snapshot %s: store lookup failed: %v", venueID, err)
		snap = nil
	}
	if snap != nil && snap.VenueID != venueID {
		logger.Warn("Snapshot %s: stored snapshot belongs to %s, ignoring", venueID, snap.VenueID)
		snap = nil
	}

	outcome := metrics.CacheFresh
	switch {
	case snap == nil:
		outcome = metrics.CacheMiss
	case snap.IsStale(m.opts.CacheTTL, m.now()):
		outcome = metrics.CacheStale
	}
	m.opts.Metrics.IncCacheLookup(outcome)
	return snap, outcome
}

// revalidate starts a background refresh unless one is already running for
// the venue.
func (m *Monitor) revalidate(venueID string) {
	m.mu.Lock()
	if m.revalidating[venueID] || m.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.revalidating[venueID] = true
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.revalidating, venueID)
			m.mu.Unlock()
		}()

		if _, err := m.Refresh(m.ctx, venueID); err != nil {
			logger.Warn("Background refresh of %s failed, keeping stale snapshot: %v", venueID, err)
		}
	}()
}

// Score rates a live reading against the venue's snapshot. It only reads
// what is stored: when no snapshot exists yet the reading is scored against
// the neutral baseline and an analysis is started in the background, and a
// stale snapshot is used while it is replaced.
func (m *Monitor) Score(ctx context.Context, venueID string, r models.Reading) (models.ScoreResult, error) {
	if venueID == "" {
		return models.ScoreResult{}, errors.New("venue ID must not be empty")
	}
	if r.VenueID == "" {
		r.VenueID = venueID
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = m.now()
	}

	snap, outcome := m.lookup(ctx, venueID)
	if outcome != metrics.CacheFresh {
		m.revalidate(venueID)
	}

	result := m.runtime(venueID).scorer.Score(venueID, r, snap)
	m.opts.Metrics.ObserveScore(string(result.Window), result.Score)
	return result, nil
}

// RefreshAll refreshes the given venues (all registered venues when empty)
// with at most Workers analyses in flight. Per-venue failures are returned
// as RefreshErrors; the error result is only set when ctx ends first.
func (m *Monitor) RefreshAll(ctx context.Context, venueIDs []string) ([]RefreshError, error) {
	if len(venueIDs) == 0 {
		venueIDs = m.Venues()
	}

	var (
		mu     sync.Mutex
		failed []RefreshError
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for _, id := range venueIDs {
		g.Go(func() error {
			if _, err := m.Refresh(gctx, id); err != nil {
				mu.Lock()
				failed = append(failed, RefreshError{VenueID: id, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(failed, func(i, j int) bool { return failed[i].VenueID < failed[j].VenueID })
	logger.Debug("RefreshAll: %d venues, %d failed", len(venueIDs), len(failed))
	return failed, ctx.Err()
}

// Wait blocks until background refreshes have finished.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// Close cancels background refreshes and waits for them to return.
func (m *Monitor) Close() {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()
	m.wg.Wait()
}
