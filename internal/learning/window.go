package learning

import (
	"time"

	"github.com/rewired-gh/venuepulse/internal/models"
)

// Window boundaries, in local hours.
const (
	eveningStartHour = 16
	weekdayNightHour = 19
	weekendPeakHour  = 21
)

// Classify maps a timestamp to its recurring time window using the
// timestamp's own location. Convert to venue local time before calling.
//
// Friday and Saturday before 16:00 have no dedicated window and fall into
// weekday_daytime.
func Classify(t time.Time) models.TimeWindow {
	hour := t.Hour()

	switch t.Weekday() {
	case time.Sunday:
		return models.WindowSundayFunday
	case time.Friday:
		switch {
		case hour >= weekendPeakHour:
			return models.WindowFridayPeak
		case hour >= eveningStartHour:
			return models.WindowFridayEarly
		}
	case time.Saturday:
		switch {
		case hour >= weekendPeakHour:
			return models.WindowSaturdayPeak
		case hour >= eveningStartHour:
			return models.WindowSaturdayEarly
		}
	default:
		switch {
		case hour >= weekdayNightHour:
			return models.WindowWeekdayNight
		case hour >= eveningStartHour:
			return models.WindowWeekdayHappyHour
		}
	}
	return models.WindowWeekdayDaytime
}
