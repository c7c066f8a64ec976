// Package scoring rates live venue conditions against the venue's own
// learned history. A live reading is compared to the best historical night
// for the current time window, factor by factor, and the matches are blended
// with the window's learned weights.
package scoring

import (
	"math"
	"time"

	"github.com/rewired-gh/venuepulse/internal/genre"
	"github.com/rewired-gh/venuepulse/internal/learning"
	"github.com/rewired-gh/venuepulse/internal/models"
)

const (
	// BaselineScore is returned when there is nothing learned to compare to.
	BaselineScore = 50
	// BaselineLabel accompanies BaselineScore.
	BaselineLabel = "learning"

	occupancyShare = 0.4
	neutralMatch   = 80

	genreHit  = 100
	genreMiss = 60

	optimalThreshold = 85
	goodThreshold    = 60
)

// Status labels.
const (
	LabelOptimal          = "optimal"
	LabelGood             = "good"
	LabelNeedsImprovement = "needs-improvement"
	learningSuffix        = " (learning)"
)

// threshold maps an absolute difference to a match percentage.
type threshold struct {
	maxDiff float64
	match   int
}

var (
	soundThresholds = []threshold{{3, 100}, {6, 85}, {10, 65}}
	lightThresholds = []threshold{{50, 100}, {100, 85}, {200, 65}}
)

const farMatch = 40

// Scorer computes live scores. It is safe for concurrent use.
type Scorer struct {
	loc      *time.Location
	detector genre.Detector
}

// New creates a Scorer that classifies readings in loc. A nil detector
// leaves every genre match neutral.
func New(loc *time.Location, detector genre.Detector) *Scorer {
	if loc == nil {
		loc = time.UTC
	}
	return &Scorer{loc: loc, detector: detector}
}

// Score rates a live reading against a snapshot. A nil snapshot or a window
// without a best occurrence yields the neutral baseline; neither is an error.
func (s *Scorer) Score(venueID string, r models.Reading, snap *models.LearningSnapshot) models.ScoreResult {
	window := learning.Classify(r.Timestamp.In(s.loc))
	if snap == nil {
		return baseline(venueID, window)
	}
	best, ok := snap.BestOccurrences[window]
	if !ok {
		return baseline(venueID, window)
	}

	weights := learning.DefaultWeights()
	if wl, ok := snap.Windows[window]; ok {
		weights = wl.Weights
	}

	m := models.Matches{
		Occupancy: OccupancyMatch(r.Occupancy, occupancyTarget(best)),
		Sound:     diffMatch(r.SoundDB, soundTarget(best), soundThresholds),
		Light:     diffMatch(r.LightLux, lightTarget(best), lightThresholds),
		Genre:     s.genreMatch(r, best.Genres),
	}

	score := blend(m, weights)
	return models.ScoreResult{
		VenueID:     venueID,
		Window:      window,
		Score:       score,
		StatusLabel: Label(score, snap.Status),
		Matches:     m,
	}
}

func baseline(venueID string, window models.TimeWindow) models.ScoreResult {
	return models.ScoreResult{
		VenueID:     venueID,
		Window:      window,
		Score:       BaselineScore,
		StatusLabel: BaselineLabel,
		Matches: models.Matches{
			Occupancy: BaselineScore,
			Sound:     BaselineScore,
			Light:     BaselineScore,
			Genre:     BaselineScore,
		},
		Baseline: true,
	}
}

// blend combines matches: occupancy takes a fixed share, the rest is split
// across sound, light and genre in proportion to the window weights. Genre
// uses the residual weight.
func blend(m models.Matches, w models.Weights) int {
	split := w.Sound + w.Light + w.Residual
	if split <= 0 {
		w = learning.DefaultWeights()
		split = w.Sound + w.Light + w.Residual
	}
	rest := (w.Sound*float64(m.Sound) + w.Light*float64(m.Light) + w.Residual*float64(m.Genre)) / split
	total := occupancyShare*float64(m.Occupancy) + (1-occupancyShare)*rest
	return clamp(int(math.Round(total)))
}

// Label maps a score to its status label. Anything below a confident
// snapshot is marked as still learning.
func Label(score int, status models.LearningStatus) string {
	label := LabelNeedsImprovement
	switch {
	case score >= optimalThreshold:
		label = LabelOptimal
	case score >= goodThreshold:
		label = LabelGood
	}
	if !status.AtLeastConfident() {
		label += learningSuffix
	}
	return label
}

// OccupancyMatch ramps the current occupancy against a target: 100 at or
// above it, 80-100 from 80%, 50-80 from 50%, and linear below that.
// A missing target is neutral.
func OccupancyMatch(current int, target float64) int {
	if target <= 0 {
		return neutralMatch
	}
	ratio := float64(max(current, 0)) / target
	var m float64
	switch {
	case ratio >= 1:
		m = 100
	case ratio >= 0.8:
		m = 80 + (ratio-0.8)*100
	case ratio >= 0.5:
		m = 50 + (ratio-0.5)*100
	default:
		m = ratio * 100
	}
	return clamp(int(math.Round(m)))
}

func diffMatch(current, target *float64, steps []threshold) int {
	if current == nil || target == nil {
		return neutralMatch
	}
	diff := math.Abs(*current - *target)
	for _, s := range steps {
		if diff <= s.maxDiff {
			return s.match
		}
	}
	return farMatch
}

func (s *Scorer) genreMatch(r models.Reading, target []string) int {
	if s.detector == nil {
		return neutralMatch
	}
	detected := s.detector.Detect(genre.TrackText(r.Track, r.Artist))
	switch {
	case len(detected) == 0:
		return neutralMatch
	case genre.Intersects(detected, target):
		return genreHit
	}
	return genreMiss
}

// Targets prefer the busiest hour of the best night over whole-night averages.

func occupancyTarget(b models.BestOccurrence) float64 {
	if b.PeakHour.Occupancy > 0 {
		return b.PeakHour.Occupancy
	}
	return float64(b.PeakOccupancy)
}

func soundTarget(b models.BestOccurrence) *float64 {
	if b.PeakHour.SoundDB != nil {
		return b.PeakHour.SoundDB
	}
	return b.AvgSoundDB
}

func lightTarget(b models.BestOccurrence) *float64 {
	if b.PeakHour.LightLux != nil {
		return b.PeakHour.LightLux
	}
	return b.AvgLightLux
}

func clamp(v int) int {
	return min(100, max(0, v))
}
