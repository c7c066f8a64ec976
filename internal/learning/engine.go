// Package learning discovers, per recurring time-of-week window, which
// environmental conditions historically coincide with guests staying longest.
//
// A full analysis run works in one pass over a venue's reading history:
//
//	readings -> dwell proxy -> window classification
//	         -> {optimal ranges, best occurrence} per window
//	         -> dynamic weights -> progress/status -> LearningSnapshot
//
// Everything here is pure computation. Fetching readings and persisting
// snapshots belong to the caller (see the monitor package).
package learning

import (
	"sort"
	"time"

	"github.com/rewired-gh/venuepulse/internal/genre"
	"github.com/rewired-gh/venuepulse/internal/logger"
	"github.com/rewired-gh/venuepulse/internal/models"
)

// Options configures an Engine.
type Options struct {
	// Location is the venue's local time zone. Nil means UTC.
	Location *time.Location
	// Composite ranks candidate best dates. Nil means GuestDwellComposite.
	Composite Composite
	// Detector extracts genres from track text. Nil disables genre detection.
	Detector genre.Detector
}

// Engine runs full learning analyses for one venue configuration.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	loc       *time.Location
	composite Composite
	detector  genre.Detector
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Composite == nil {
		opts.Composite = GuestDwellComposite{}
	}
	return &Engine{
		loc:       opts.Location,
		composite: opts.Composite,
		detector:  opts.Detector,
	}
}

// Location returns the venue time zone the engine classifies in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Window classifies t in the venue's local time.
func (e *Engine) Window(t time.Time) models.TimeWindow {
	return Classify(t.In(e.loc))
}

// Analyze builds a complete LearningSnapshot from a batch of historical
// readings. Readings may arrive in any order and with any optional factor
// missing. Readings belonging to another venue or lacking a timestamp are
// ignored. Zero usable readings yield an empty insufficient_data snapshot.
func (e *Engine) Analyze(venueID string, readings []models.Reading, now time.Time) *models.LearningSnapshot {
	snap := &models.LearningSnapshot{
		VenueID:         venueID,
		Windows:         make(map[models.TimeWindow]models.WindowLearning),
		BestOccurrences: make(map[models.TimeWindow]models.BestOccurrence),
		Patterns:        []models.DiscoveredPattern{},
		LastAnalyzed:    now.UTC(),
		Status:          models.StatusInsufficientData,
	}

	local := make([]models.Reading, 0, len(readings))
	skipped := 0
	for _, r := range readings {
		if r.Timestamp.IsZero() || (r.VenueID != "" && r.VenueID != venueID) {
			skipped++
			continue
		}
		r.Timestamp = r.Timestamp.In(e.loc)
		local = append(local, r)
	}
	if len(local) == 0 {
		logger.Debug("Analyze %s: no usable readings (%d skipped)", venueID, skipped)
		return snap
	}
	sort.SliceStable(local, func(i, j int) bool { return local[i].Timestamp.Before(local[j].Timestamp) })

	byWindow := make(map[models.TimeWindow][]models.Reading)
	for _, r := range local {
		w := Classify(r.Timestamp)
		byWindow[w] = append(byWindow[w], r)
	}

	covered := 0
	for _, w := range models.AllWindows() {
		rs := byWindow[w]
		if len(rs) == 0 {
			continue
		}

		wl := models.WindowLearning{
			Sound:              LearnRange(rs, models.FactorSound),
			Light:              LearnRange(rs, models.FactorLight),
			Temperature:        LearnRange(rs, models.FactorTemperature),
			SupportingReadings: len(rs),
			WeeksOfData:        WeeksBetween(rs[0].Timestamp, rs[len(rs)-1].Timestamp),
		}
		wl.Weights = CalculateWeights(wl.Sound, wl.Light, wl.Temperature)
		if wl.HasSignal() {
			covered++
		}
		snap.Windows[w] = wl

		if best := FindBestOccurrence(rs, e.composite, e.detector); best != nil {
			snap.BestOccurrences[w] = *best
		}
	}

	oldest := local[0].Timestamp.UTC()
	newest := local[len(local)-1].Timestamp.UTC()
	snap.OldestReading = &oldest
	snap.NewestReading = &newest
	snap.TotalReadings = len(local)
	snap.WeeksOfData = WeeksBetween(oldest, newest)
	snap.Progress = Progress(snap.WeeksOfData, snap.TotalReadings, covered)
	snap.Status = StatusFor(snap.WeeksOfData, snap.TotalReadings, covered)
	snap.Patterns = BuildPatterns(snap.Windows)
	snap.Profile = BuildProfile(local)

	logger.Debug("Analyze %s: readings=%d skipped=%d windows=%d covered=%d best=%d weeks=%.2f progress=%d status=%s",
		venueID, len(local), skipped, len(snap.Windows), covered, len(snap.BestOccurrences),
		snap.WeeksOfData, snap.Progress, snap.Status)

	return snap
}
