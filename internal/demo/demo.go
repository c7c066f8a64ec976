// Package demo generates synthetic venue readings for sandbox use: trying the
// learning engine without hardware, seeding a local reading store, and
// tests. It is never a fallback for an unavailable reading store.
//
// Crowd level follows a simple weekly curve (quiet afternoons, busy
// evenings, busiest on Friday and Saturday nights, closed before dawn) and
// the environmental factors drift with it around 65 dB, 300 lux and 70 °F.
package demo

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/venuepulse/internal/models"
)

// Config controls a generated series.
type Config struct {
	VenueID  string
	Days     int
	Interval time.Duration // default 15m
	Capacity int           // default 200
	Seed     int64
	Location *time.Location // default UTC
}

// track is a rotating playlist entry.
type track struct {
	title, artist string
}

var playlist = []track{
	{"Wagon Wheel", "Darius Rucker"},
	{"Tennessee Whiskey", "Chris Stapleton"},
	{"Mr. Brightside", "The Killers"},
	{"Uptown Funk", "Bruno Mars"},
	{"Levels", "Avicii"},
	{"Despacito", "Luis Fonsi"},
	{"Sweet Child O' Mine", "Guns N' Roses"},
	{"HUMBLE.", "Kendrick Lamar"},
	{"Fast Car", "Luke Combs"},
	{"Blinding Lights", "The Weeknd"},
}

// counterResetHour is the local hour at which door counters restart.
const counterResetHour = 4

// namespace scopes generated reading IDs.
var namespace = uuid.MustParse("5d1c6b5e-7f0a-4a52-9d8e-3c4a0e8f2b11")

// Generate returns readings for the cfg.Days days ending at end, oldest
// first. The same config and end always produce the same readings.
func Generate(cfg Config, end time.Time) ([]models.Reading, error) {
	if cfg.VenueID == "" {
		return nil, errors.New("venue ID must not be empty")
	}
	if cfg.Days <= 0 {
		return nil, errors.New("days must be positive")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 200
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	end = end.Truncate(cfg.Interval)
	start := end.AddDate(0, 0, -cfg.Days)

	steps := int(end.Sub(start) / cfg.Interval)
	out := make([]models.Reading, 0, steps)

	entries, exits, occupancy := 0, 0, 0
	lastDay := ""
	for i := 0; i < steps; i++ {
		ts := start.Add(time.Duration(i) * cfg.Interval)
		local := ts.In(cfg.Location)

		// Counters restart at the start of each business day.
		day := local.Add(-counterResetHour * time.Hour).Format("2006-01-02")
		if day != lastDay {
			entries, exits, occupancy = 0, 0, 0
			lastDay = day
		}

		crowd := crowdLevel(local)
		arrivals := int(math.Round(crowd * float64(cfg.Capacity) / 10 * uniform(rng, 0.5, 1.5)))
		// Guests linger when the room is lively.
		leaveShare := 0.1 + (1-crowd)*0.35
		if crowd == 0 {
			leaveShare = 1
		}
		departures := int(math.Round(float64(occupancy) * leaveShare))
		if room := cfg.Capacity - (occupancy - departures); arrivals > room {
			arrivals = max(room, 0)
		}
		entries += arrivals
		exits += departures
		occupancy += arrivals - departures

		r := models.Reading{
			ID:        uuid.NewSHA1(namespace, []byte(cfg.VenueID+"|"+ts.Format(time.RFC3339))).String(),
			VenueID:   cfg.VenueID,
			Timestamp: ts.UTC(),
			Entries:   entries,
			Exits:     exits,
			Occupancy: occupancy,
		}
		if crowd > 0 {
			r.SoundDB = models.Float(round2(65 + uniform(rng, -10, 20)*0.5 + crowd*15))
			r.LightLux = models.Float(round2(300 + uniform(rng, -50, 150) + (1-crowd)*100))
			r.TemperatureF = models.Float(round2(70 + uniform(rng, -3, 5)*0.5 + crowd*4))
			r.Humidity = models.Float(round2(45 + uniform(rng, -10, 15) + crowd*10))
			t := playlist[(i/3)%len(playlist)]
			r.Track, r.Artist = t.title, t.artist
		}
		out = append(out, r)
	}
	return out, nil
}

// crowdLevel returns the expected fullness (0-1) at a local time.
func crowdLevel(t time.Time) float64 {
	h := t.Hour()
	var level float64
	switch {
	case h >= counterResetHour && h < 11:
		return 0
	case h < counterResetHour:
		level = 0.45
	case h < 16:
		level = 0.2
	case h < 20:
		level = 0.4
	default:
		level = 0.65
	}
	// After midnight still belongs to the previous night.
	night := t
	if h < counterResetHour {
		night = t.AddDate(0, 0, -1)
	}
	if wd := night.Weekday(); wd == time.Friday || wd == time.Saturday {
		level *= 1.45
	}
	return math.Min(level, 1)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
