package models

// TimeWindow is one of the eight recurring time-of-week windows used as the
// unit of personalization. It is derived from a timestamp on demand and is
// never persisted on its own.
type TimeWindow string

const (
	WindowWeekdayDaytime   TimeWindow = "weekday_daytime"
	WindowWeekdayHappyHour TimeWindow = "weekday_happy_hour"
	WindowWeekdayNight     TimeWindow = "weekday_night"
	WindowFridayEarly      TimeWindow = "friday_early"
	WindowFridayPeak       TimeWindow = "friday_peak"
	WindowSaturdayEarly    TimeWindow = "saturday_early"
	WindowSaturdayPeak     TimeWindow = "saturday_peak"
	WindowSundayFunday     TimeWindow = "sunday_funday"
)

// AllWindows returns every window in canonical order.
func AllWindows() []TimeWindow {
	return []TimeWindow{
		WindowWeekdayDaytime,
		WindowWeekdayHappyHour,
		WindowWeekdayNight,
		WindowFridayEarly,
		WindowFridayPeak,
		WindowSaturdayEarly,
		WindowSaturdayPeak,
		WindowSundayFunday,
	}
}

// Valid reports whether w is one of the known windows.
func (w TimeWindow) Valid() bool {
	for _, known := range AllWindows() {
		if w == known {
			return true
		}
	}
	return false
}

// Label returns a human-readable window name.
func (w TimeWindow) Label() string {
	switch w {
	case WindowWeekdayDaytime:
		return "weekday daytime"
	case WindowWeekdayHappyHour:
		return "weekday happy hour"
	case WindowWeekdayNight:
		return "weekday nights"
	case WindowFridayEarly:
		return "early Friday evening"
	case WindowFridayPeak:
		return "Friday peak"
	case WindowSaturdayEarly:
		return "early Saturday evening"
	case WindowSaturdayPeak:
		return "Saturday peak"
	case WindowSundayFunday:
		return "Sunday funday"
	}
	return string(w)
}
