// Package models defines the core domain entities for venuepulse.
// These models represent raw sensor readings from a venue, the recurring
// time-of-week windows readings are grouped into, and the learning snapshot
// produced by a full analysis run.
//
// Terminology:
//   - Reading: one timestamped sensor snapshot published by a venue device.
//   - TimeWindow: one of eight recurring day-of-week/hour-of-day buckets.
//   - LearningSnapshot: the complete per-venue analysis result; the only
//     entity that is persisted.
package models

import (
	"errors"
	"time"
)

// Reading is one sensor snapshot for a venue. Environmental factors are
// nullable because devices routinely publish partial payloads.
type Reading struct {
	ID           string    `json:"id"`
	VenueID      string    `json:"venue_id"`
	Timestamp    time.Time `json:"timestamp"`
	SoundDB      *float64  `json:"sound_db,omitempty"`      // average sound level in dB
	LightLux     *float64  `json:"light_lux,omitempty"`     // ambient light in lux
	TemperatureF *float64  `json:"temperature_f,omitempty"` // indoor temperature in °F
	Humidity     *float64  `json:"humidity,omitempty"`
	Entries      int       `json:"entries"`   // cumulative entry counter
	Exits        int       `json:"exits"`     // cumulative exit counter
	Occupancy    int       `json:"occupancy"` // current concurrent occupancy
	Track        string    `json:"track,omitempty"`
	Artist       string    `json:"artist,omitempty"`
}

// Validate checks that all reading fields are valid.
func (r *Reading) Validate() error {
	if r.VenueID == "" {
		return errors.New("venue ID must not be empty")
	}
	if r.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	if r.Entries < 0 || r.Exits < 0 {
		return errors.New("entry and exit counters must not be negative")
	}
	if r.Occupancy < 0 {
		return errors.New("occupancy must not be negative")
	}
	return nil
}

// Value returns the reading's value for an environmental factor, or false
// when the device did not report it.
func (r *Reading) Value(f Factor) (float64, bool) {
	var p *float64
	switch f {
	case FactorSound:
		p = r.SoundDB
	case FactorLight:
		p = r.LightLux
	case FactorTemperature:
		p = r.TemperatureF
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Float returns a pointer to v. Handy for building readings by hand.
func Float(v float64) *float64 {
	return &v
}

// Factor identifies an environmental or crowd dimension.
type Factor string

const (
	FactorSound       Factor = "sound"
	FactorLight       Factor = "light"
	FactorTemperature Factor = "temperature"
	FactorOccupancy   Factor = "occupancy"
	FactorGenre       Factor = "genre"
)

// LearnedFactors lists the factors the range learner discovers preferences for.
func LearnedFactors() []Factor {
	return []Factor{FactorSound, FactorLight, FactorTemperature}
}

// Unit returns the display unit for a factor.
func (f Factor) Unit() string {
	switch f {
	case FactorSound:
		return "dB"
	case FactorLight:
		return "lux"
	case FactorTemperature:
		return "°F"
	}
	return ""
}
