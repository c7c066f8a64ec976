package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// LearningStatus is the coarse trust label attached to a snapshot.
type LearningStatus string

const (
	StatusInsufficientData LearningStatus = "insufficient_data"
	StatusLearning         LearningStatus = "learning"
	StatusConfident        LearningStatus = "confident"
	StatusHighlyConfident  LearningStatus = "highly_confident"
)

// Rank orders statuses from least to most trusted.
func (s LearningStatus) Rank() int {
	switch s {
	case StatusLearning:
		return 1
	case StatusConfident:
		return 2
	case StatusHighlyConfident:
		return 3
	}
	return 0
}

// AtLeastConfident reports whether the status is confident or better.
func (s LearningStatus) AtLeastConfident() bool {
	return s.Rank() >= StatusConfident.Rank()
}

// LearnedRange is an empirically discovered value interval for one factor
// within one window, associated with longer estimated dwell.
type LearnedRange struct {
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
	AvgDwellInRange  float64 `json:"avg_dwell_in_range"`
	AvgDwellOverall  float64 `json:"avg_dwell_overall"`
	ImprovementPct   float64 `json:"improvement_pct"`
	SupportingPoints int     `json:"supporting_points"`
	Confidence       int     `json:"confidence"` // 0-100, saturates at 20 points
}

// Contains reports whether v falls inside the range (inclusive).
func (r *LearnedRange) Contains(v float64) bool {
	return r != nil && v >= r.Min && v <= r.Max
}

// Weights is the per-window factor importance vector. Sound, Light and
// Temperature sum to 0.9; Residual is fixed at 0.1.
type Weights struct {
	Sound       float64 `json:"sound"`
	Light       float64 `json:"light"`
	Temperature float64 `json:"temperature"`
	Residual    float64 `json:"residual"`
}

// Sum returns the total weight across all factors.
func (w Weights) Sum() float64 {
	return w.Sound + w.Light + w.Temperature + w.Residual
}

// WindowLearning holds the learned ranges and weights for one window.
type WindowLearning struct {
	Sound              *LearnedRange `json:"sound"`
	Light              *LearnedRange `json:"light"`
	Temperature        *LearnedRange `json:"temperature"`
	Weights            Weights       `json:"weights"`
	SupportingReadings int           `json:"supporting_readings"`
	WeeksOfData        float64       `json:"weeks_of_data"`
}

// Range returns the learned range for a factor, or nil.
func (w *WindowLearning) Range(f Factor) *LearnedRange {
	switch f {
	case FactorSound:
		return w.Sound
	case FactorLight:
		return w.Light
	case FactorTemperature:
		return w.Temperature
	}
	return nil
}

// HasSignal reports whether at least one factor has a learned range.
func (w *WindowLearning) HasSignal() bool {
	return w.Sound != nil || w.Light != nil || w.Temperature != nil
}

// PeakHour is the condition profile of the busiest hour on a best date.
type PeakHour struct {
	Hour      int      `json:"hour"`
	Occupancy float64  `json:"occupancy"` // average concurrent occupancy during the hour
	SoundDB   *float64 `json:"sound_db,omitempty"`
	LightLux  *float64 `json:"light_lux,omitempty"`
}

// BestOccurrence is the single best historical calendar date for a window.
type BestOccurrence struct {
	Date            string   `json:"date"` // YYYY-MM-DD in venue local time
	DayOfWeek       string   `json:"day_of_week"`
	TotalGuests     int      `json:"total_guests"`
	PeakOccupancy   int      `json:"peak_occupancy"`
	AvgDwellMinutes float64  `json:"avg_dwell_minutes"`
	AvgSoundDB      *float64 `json:"avg_sound_db,omitempty"`
	AvgLightLux     *float64 `json:"avg_light_lux,omitempty"`
	Artists         []string `json:"artists"`
	Genres          []string `json:"genres"`
	PeakHour        PeakHour `json:"peak_hour"`
	CompositeScore  float64  `json:"composite_score"`
	ReadingCount    int      `json:"reading_count"`
	Confidence      int      `json:"confidence"`
}

// DiscoveredPattern is a human-readable, factor-tagged finding.
type DiscoveredPattern struct {
	ID             string     `json:"id"`
	Window         TimeWindow `json:"window"`
	Factor         Factor     `json:"factor"`
	Statement      string     `json:"statement"`
	ImprovementPct float64    `json:"improvement_pct"`
	Confidence     int        `json:"confidence"`
}

// VenueProfile summarizes the venue across all windows.
type VenueProfile struct {
	PeakDay           string  `json:"peak_day"`
	PeakHour          int     `json:"peak_hour"`
	AvgDwellMinutes   float64 `json:"avg_dwell_minutes"`
	BestDwellMinutes  float64 `json:"best_dwell_minutes"`
	WorstDwellMinutes float64 `json:"worst_dwell_minutes"`
}

// LearningSnapshot is the full per-venue analysis result. It is produced
// wholesale by one analysis run and replaces any prior snapshot.
type LearningSnapshot struct {
	VenueID         string                        `json:"venue_id"`
	Progress        int                           `json:"progress"`
	TotalReadings   int                           `json:"total_readings"`
	OldestReading   *time.Time                    `json:"oldest_reading,omitempty"`
	NewestReading   *time.Time                    `json:"newest_reading,omitempty"`
	WeeksOfData     float64                       `json:"weeks_of_data"`
	Windows         map[TimeWindow]WindowLearning `json:"windows"`
	BestOccurrences map[TimeWindow]BestOccurrence `json:"best_occurrences"`
	Patterns        []DiscoveredPattern           `json:"patterns"`
	Profile         VenueProfile                  `json:"profile"`
	LastAnalyzed    time.Time                     `json:"last_analyzed"`
	Status          LearningStatus                `json:"status"`
}

// Validate checks that all snapshot fields are valid.
func (s *LearningSnapshot) Validate() error {
	if s.VenueID == "" {
		return errors.New("venue ID must not be empty")
	}
	if s.Progress < 0 || s.Progress > 100 {
		return errors.New("progress must be between 0 and 100")
	}
	if s.TotalReadings < 0 {
		return errors.New("total readings must not be negative")
	}
	switch s.Status {
	case StatusInsufficientData, StatusLearning, StatusConfident, StatusHighlyConfident:
	default:
		return fmt.Errorf("unknown status %q", s.Status)
	}
	for w := range s.Windows {
		if !w.Valid() {
			return fmt.Errorf("unknown window %q", w)
		}
	}
	for w := range s.BestOccurrences {
		if !w.Valid() {
			return fmt.Errorf("unknown window %q", w)
		}
	}
	if s.LastAnalyzed.IsZero() {
		return errors.New("last analyzed must be set")
	}
	return nil
}

// IsStale reports whether the snapshot is older than ttl at now.
func (s *LearningSnapshot) IsStale(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.LastAnalyzed) > ttl
}

// Marshal serializes the snapshot to its persisted JSON form.
func (s *LearningSnapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot decodes and validates a persisted snapshot.
func UnmarshalSnapshot(data []byte) (*LearningSnapshot, error) {
	var s LearningSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	return &s, nil
}
