package learning

import (
	"math"
	"time"

	"github.com/rewired-gh/venuepulse/internal/models"
)

// Progress targets: the amount of history at which each sub-score tops out.
const (
	targetWeeks    = 8.0
	targetReadings = 500.0
	targetWindows  = 5.0

	weeksShare    = 0.4
	readingsShare = 0.4
	coverageShare = 0.2
)

const week = 7 * 24 * time.Hour

// WeeksBetween returns the elapsed span between two instants in fractional
// weeks. Returns 0 when newest is not after oldest.
func WeeksBetween(oldest, newest time.Time) float64 {
	if !newest.After(oldest) {
		return 0
	}
	return float64(newest.Sub(oldest)) / float64(week)
}

// Progress blends elapsed weeks, reading volume and window coverage into a
// 0-100 trust score. Each input saturates at its target.
func Progress(weeks float64, readings, coveredWindows int) int {
	w := math.Min(1, math.Max(0, weeks)/targetWeeks)
	r := math.Min(1, math.Max(0, float64(readings))/targetReadings)
	c := math.Min(1, math.Max(0, float64(coveredWindows))/targetWindows)
	return int(math.Round(100 * (weeksShare*w + readingsShare*r + coverageShare*c)))
}

// StatusFor derives the learning status. Each level requires both a time
// condition and a density condition, so many readings packed into one day
// or a long span with almost no readings cannot claim confidence.
func StatusFor(weeks float64, readings, coveredWindows int) models.LearningStatus {
	switch {
	case weeks >= 8 && readings >= 500 && coveredWindows >= 5:
		return models.StatusHighlyConfident
	case weeks >= 4 && readings >= 200 && coveredWindows >= 3:
		return models.StatusConfident
	case weeks >= 1 && readings >= 50:
		return models.StatusLearning
	}
	return models.StatusInsufficientData
}
