package learning

import "github.com/rewired-gh/venuepulse/internal/models"

// Dwell proxy constants, in minutes. These are hand-tuned and have not been
// validated against observed stay durations.
const (
	baseDwellMinutes      = 45.0
	lowTurnoverDwell      = 70.0
	moderateTurnoverDwell = 55.0
	highTurnoverDwell     = 30.0
)

// EstimateDwell returns a proxy for how long guests are staying at the time
// of a reading. Per-guest stay times are not observable from door counters,
// so the proxy only looks at turnover (exits relative to entries): a room
// that keeps what it lets in is assumed to hold guests longer.
//
// The result is a coarse heuristic, not a measurement.
func EstimateDwell(r models.Reading) float64 {
	if r.Occupancy <= 0 || r.Entries <= 0 {
		return baseDwellMinutes
	}

	turnover := float64(r.Exits) / float64(max(r.Entries, 1))
	switch {
	case turnover < 0.5:
		return lowTurnoverDwell
	case turnover < 1.0:
		return moderateTurnoverDwell
	case turnover > 1.5:
		return highTurnoverDwell
	default:
		return baseDwellMinutes
	}
}
