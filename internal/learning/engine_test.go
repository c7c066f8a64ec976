package learning

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/venuepulse/internal/genre"
	"github.com/rewired-gh/venuepulse/internal/models"
)

// fridayNights builds readings every 10 minutes from 21:00 to 23:50 on four
// consecutive Fridays. The first Friday is loud with heavy turnover; the
// other three sit around 72 dB and hold their crowd.
func fridayNights(t *testing.T) []models.Reading {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	first := time.Date(2026, time.January, 2, 21, 0, 0, 0, time.UTC)
	require.Equal(t, time.Friday, first.Weekday())

	var rs []models.Reading
	for week := 0; week < 4; week++ {
		night := first.AddDate(0, 0, 7*week)
		loud := week == 0
		for i := 0; i < 18; i++ {
			entries := 10 + 10*i
			r := models.Reading{
				VenueID:   "venue-1",
				Timestamp: night.Add(time.Duration(i*10) * time.Minute),
				LightLux:  models.Float(150),
				Entries:   entries,
				Occupancy: 40 + i,
				Track:     "Wagon Wheel",
				Artist:    "Luke Combs",
			}
			if loud {
				r.SoundDB = models.Float(90)
				r.Exits = entries * 2
				r.Artist = "Unknown"
			} else {
				r.SoundDB = models.Float(70.1 + rng.Float64()*3.8)
				r.Exits = entries / 4
			}
			rs = append(rs, r)
		}
	}
	// Arrival order should not matter.
	rng.Shuffle(len(rs), func(i, j int) { rs[i], rs[j] = rs[j], rs[i] })
	return rs
}

func TestAnalyzeFridayNights(t *testing.T) {
	e := New(Options{Detector: genre.NewKeywordDetector(nil)})
	now := time.Date(2026, time.January, 24, 12, 0, 0, 0, time.UTC)

	snap := e.Analyze("venue-1", fridayNights(t), now)
	require.NoError(t, snap.Validate())

	assert.Equal(t, 72, snap.TotalReadings)
	assert.Equal(t, models.StatusLearning, snap.Status)
	assert.Greater(t, snap.WeeksOfData, 3.0)
	assert.Equal(t, now, snap.LastAnalyzed)
	require.NotNil(t, snap.OldestReading)
	assert.Equal(t, time.Date(2026, time.January, 2, 21, 0, 0, 0, time.UTC), *snap.OldestReading)

	require.Len(t, snap.Windows, 1)
	wl, ok := snap.Windows[models.WindowFridayPeak]
	require.True(t, ok)
	assert.Equal(t, 72, wl.SupportingReadings)
	require.NotNil(t, wl.Sound)
	assert.Equal(t, 70.0, wl.Sound.Min)
	assert.Equal(t, 75.0, wl.Sound.Max)
	assert.Equal(t, 54, wl.Sound.SupportingPoints)
	assert.Nil(t, wl.Light, "constant light carries no signal")
	assert.Nil(t, wl.Temperature)
	assert.Greater(t, wl.Weights.Sound, wl.Weights.Light)
	assert.InDelta(t, 0.9, wl.Weights.Sound+wl.Weights.Light+wl.Weights.Temperature, 1e-9)

	best, ok := snap.BestOccurrences[models.WindowFridayPeak]
	require.True(t, ok)
	assert.Equal(t, "2026-01-09", best.Date, "ties between equally good nights go to the earliest")
	assert.Equal(t, "Friday", best.DayOfWeek)
	assert.Equal(t, 170, best.TotalGuests)
	assert.Equal(t, 57, best.PeakOccupancy)
	assert.Equal(t, lowTurnoverDwell, best.AvgDwellMinutes)
	assert.Equal(t, 18, best.ReadingCount)
	assert.Equal(t, 90, best.Confidence)
	assert.Equal(t, []string{"Luke Combs"}, best.Artists)
	assert.Equal(t, []string{"country"}, best.Genres)
	assert.Equal(t, 23, best.PeakHour.Hour)
	require.NotNil(t, best.AvgSoundDB)
	assert.InDelta(t, 72, *best.AvgSoundDB, 2)

	require.Len(t, snap.Patterns, 1)
	assert.Equal(t, "friday_peak/sound", snap.Patterns[0].ID)
	assert.Contains(t, snap.Patterns[0].Statement, "Friday peak")
	assert.Contains(t, snap.Patterns[0].Statement, "70-75 dB")

	assert.Equal(t, "Friday", snap.Profile.PeakDay)
	assert.Equal(t, 23, snap.Profile.PeakHour)
	assert.Equal(t, lowTurnoverDwell, snap.Profile.BestDwellMinutes)
	assert.Equal(t, highTurnoverDwell, snap.Profile.WorstDwellMinutes)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	e := New(Options{})
	now := time.Date(2026, time.January, 24, 12, 0, 0, 0, time.UTC)
	rs := fridayNights(t)

	a, err := e.Analyze("venue-1", rs, now).Marshal()
	require.NoError(t, err)
	b, err := e.Analyze("venue-1", rs, now).Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestAnalyzeNoReadings(t *testing.T) {
	now := time.Date(2026, time.January, 24, 12, 0, 0, 0, time.UTC)
	snap := New(Options{}).Analyze("venue-1", nil, now)

	require.NoError(t, snap.Validate())
	assert.Equal(t, models.StatusInsufficientData, snap.Status)
	assert.Equal(t, 0, snap.Progress)
	assert.Equal(t, 0, snap.TotalReadings)
	assert.NotNil(t, snap.Windows)
	assert.Empty(t, snap.Windows)
	assert.NotNil(t, snap.BestOccurrences)
	assert.Empty(t, snap.BestOccurrences)
	assert.Empty(t, snap.Patterns)
	assert.Nil(t, snap.OldestReading)
}

func TestAnalyzeSkipsForeignReadings(t *testing.T) {
	now := time.Date(2026, time.January, 24, 12, 0, 0, 0, time.UTC)
	rs := []models.Reading{
		{VenueID: "other", Timestamp: now.Add(-time.Hour), Occupancy: 10},
		{VenueID: "venue-1"},
		{VenueID: "venue-1", Timestamp: now.Add(-2 * time.Hour), Occupancy: 10},
	}

	snap := New(Options{}).Analyze("venue-1", rs, now)
	assert.Equal(t, 1, snap.TotalReadings)
	assert.Equal(t, models.StatusInsufficientData, snap.Status)
}

func TestAnalyzeWithMissingFactors(t *testing.T) {
	now := time.Date(2026, time.January, 24, 12, 0, 0, 0, time.UTC)
	var rs []models.Reading
	for i := 0; i < 30; i++ {
		rs = append(rs, models.Reading{
			VenueID:   "venue-1",
			Timestamp: now.Add(-time.Duration(i) * time.Hour),
			Entries:   i,
			Occupancy: i,
		})
	}

	snap := New(Options{}).Analyze("venue-1", rs, now)
	require.NoError(t, snap.Validate())
	for w, wl := range snap.Windows {
		assert.False(t, wl.HasSignal(), "window %s", w)
		assert.Equal(t, DefaultWeights(), wl.Weights)
	}
	for _, b := range snap.BestOccurrences {
		assert.Nil(t, b.AvgSoundDB)
		assert.Nil(t, b.AvgLightLux)
	}
}

func TestFindBestOccurrenceFilters(t *testing.T) {
	day := time.Date(2026, time.January, 9, 21, 0, 0, 0, time.UTC)
	reading := func(d time.Time, entries, occupancy int) models.Reading {
		return models.Reading{Timestamp: d, Entries: entries, Occupancy: occupancy}
	}

	t.Run("sparse date", func(t *testing.T) {
		rs := []models.Reading{reading(day, 10, 50), reading(day.Add(time.Hour), 60, 50)}
		assert.Nil(t, FindBestOccurrence(rs, nil, nil))
	})

	t.Run("quiet date", func(t *testing.T) {
		rs := []models.Reading{
			reading(day, 0, 1), reading(day.Add(time.Hour), 1, 2), reading(day.Add(2*time.Hour), 2, 1),
		}
		assert.Nil(t, FindBestOccurrence(rs, nil, nil))
	})

	t.Run("counter reset", func(t *testing.T) {
		rs := []models.Reading{
			reading(day, 10, 20), reading(day.Add(time.Hour), 20, 20),
			reading(day.Add(2*time.Hour), 0, 20), reading(day.Add(150*time.Minute), 5, 20),
		}
		best := FindBestOccurrence(rs, nil, nil)
		require.NotNil(t, best)
		assert.Equal(t, 15, best.TotalGuests)
		assert.Empty(t, best.Genres)
	})
}

func TestCompositeByName(t *testing.T) {
	c, err := CompositeByName("", 0)
	require.NoError(t, err)
	assert.Equal(t, "guest_dwell", c.Name())

	c, err = CompositeByName("occupancy_retention", 150)
	require.NoError(t, err)
	assert.Equal(t, OccupancyRetentionComposite{Capacity: 150}, c)

	_, err = CompositeByName("vibes", 0)
	assert.Error(t, err)

	full := DayStats{Guests: 100, Departures: 0, PeakOccupancy: 150}
	assert.Equal(t, 100.0, c.Score(full))
}
