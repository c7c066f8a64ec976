package learning

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rewired-gh/venuepulse/internal/genre"
	"github.com/rewired-gh/venuepulse/internal/models"
)

const (
	// minReadingsPerDate drops calendar dates too sparse to describe a night.
	minReadingsPerDate = 3
	// minNightActivity is the guest/occupancy floor below which a date is
	// treated as noise rather than a real night.
	minNightActivity = 5
	// occurrenceConfidencePerReading converts a date's reading count into
	// a 0-100 confidence.
	occurrenceConfidencePerReading = 5

	dateLayout = "2006-01-02"
)

// DayStats summarizes one calendar date of readings within a window.
type DayStats struct {
	Date          string
	Weekday       time.Weekday
	Readings      []models.Reading // sorted by timestamp, venue local time
	Guests        int              // new entries during the date
	Departures    int              // exits during the date
	PeakOccupancy int
	AvgDwell      float64
}

// Composite ranks candidate dates for a window. Higher is better.
type Composite interface {
	Name() string
	Score(d DayStats) float64
}

// GuestDwellComposite weights guest volume (60%) and estimated dwell (40%),
// each normalized against a strong night: 200 guests, 90 minutes.
type GuestDwellComposite struct{}

// Name implements Composite.
func (GuestDwellComposite) Name() string { return "guest_dwell" }

// Score implements Composite.
func (GuestDwellComposite) Score(d DayStats) float64 {
	guests := math.Min(100, float64(d.Guests)/200*100)
	dwell := math.Min(100, d.AvgDwell/90*100)
	return 0.6*guests + 0.4*dwell
}

// OccupancyRetentionComposite weights peak occupancy against venue capacity
// and the share of the night's entries that had not left by close.
type OccupancyRetentionComposite struct {
	Capacity int
}

// Name implements Composite.
func (OccupancyRetentionComposite) Name() string { return "occupancy_retention" }

// Score implements Composite.
func (c OccupancyRetentionComposite) Score(d DayStats) float64 {
	capacity := c.Capacity
	if capacity <= 0 {
		capacity = 200
	}
	occupancy := math.Min(100, float64(d.PeakOccupancy)/float64(capacity)*100)
	retention := 0.0
	if d.Guests > 0 {
		retention = 100 * (1 - math.Min(1, float64(d.Departures)/float64(d.Guests)))
	}
	return 0.5*occupancy + 0.5*retention
}

// CompositeByName resolves a configured composite name.
func CompositeByName(name string, capacity int) (Composite, error) {
	switch strings.ToLower(name) {
	case "", "guest_dwell":
		return GuestDwellComposite{}, nil
	case "occupancy_retention":
		return OccupancyRetentionComposite{Capacity: capacity}, nil
	}
	return nil, fmt.Errorf("unknown composite %q", name)
}

// counterDelta sums the positive steps of a cumulative counter. For a
// monotonic counter this equals last minus first; it also survives device
// resets mid-night.
func counterDelta(values []int) int {
	total := 0
	for i := 1; i < len(values); i++ {
		if d := values[i] - values[i-1]; d > 0 {
			total += d
		}
	}
	return total
}

// groupByDate splits readings (already in venue local time) into per-date
// stats, ordered by date.
func groupByDate(readings []models.Reading) []DayStats {
	byDate := make(map[string][]models.Reading)
	for _, r := range readings {
		key := r.Timestamp.Format(dateLayout)
		byDate[key] = append(byDate[key], r)
	}

	days := make([]DayStats, 0, len(byDate))
	for date, rs := range byDate {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Timestamp.Before(rs[j].Timestamp) })

		entries := make([]int, len(rs))
		exits := make([]int, len(rs))
		peak := 0
		for i, r := range rs {
			entries[i] = r.Entries
			exits[i] = r.Exits
			peak = max(peak, r.Occupancy)
		}

		days = append(days, DayStats{
			Date:          date,
			Weekday:       rs[0].Timestamp.Weekday(),
			Readings:      rs,
			Guests:        counterDelta(entries),
			Departures:    counterDelta(exits),
			PeakOccupancy: peak,
			AvgDwell:      AverageDwell(rs),
		})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

// FindBestOccurrence selects the highest-scoring calendar date among the
// given window readings and snapshots its full condition profile. Readings
// must already be in venue local time. Returns nil when no date qualifies.
func FindBestOccurrence(readings []models.Reading, composite Composite, detector genre.Detector) *models.BestOccurrence {
	if composite == nil {
		composite = GuestDwellComposite{}
	}

	var (
		best      *DayStats
		bestScore float64
	)
	days := groupByDate(readings)
	for i := range days {
		d := &days[i]
		if len(d.Readings) < minReadingsPerDate {
			continue
		}
		if d.Guests < minNightActivity && d.PeakOccupancy < minNightActivity {
			continue
		}
		// Dates are visited in order; ties keep the earlier date.
		if score := composite.Score(*d); best == nil || score > bestScore {
			best, bestScore = d, score
		}
	}
	if best == nil {
		return nil
	}

	artists, genres := detectMusic(best.Readings, detector)
	return &models.BestOccurrence{
		Date:            best.Date,
		DayOfWeek:       best.Weekday.String(),
		TotalGuests:     best.Guests,
		PeakOccupancy:   best.PeakOccupancy,
		AvgDwellMinutes: best.AvgDwell,
		AvgSoundDB:      averageFactor(best.Readings, models.FactorSound),
		AvgLightLux:     averageFactor(best.Readings, models.FactorLight),
		Artists:         artists,
		Genres:          genres,
		PeakHour:        findPeakHour(best.Readings),
		CompositeScore:  bestScore,
		ReadingCount:    len(best.Readings),
		Confidence:      min(100, len(best.Readings)*occurrenceConfidencePerReading),
	}
}

// findPeakHour returns the hour with the highest average occupancy along
// with that hour's average sound and light. Ties go to the earlier hour.
func findPeakHour(readings []models.Reading) models.PeakHour {
	byHour := make(map[int][]models.Reading)
	for _, r := range readings {
		byHour[r.Timestamp.Hour()] = append(byHour[r.Timestamp.Hour()], r)
	}

	hours := make([]int, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	peak := models.PeakHour{Hour: -1}
	for _, h := range hours {
		rs := byHour[h]
		var sum float64
		for _, r := range rs {
			sum += float64(r.Occupancy)
		}
		avg := sum / float64(len(rs))
		if peak.Hour < 0 || avg > peak.Occupancy {
			peak = models.PeakHour{
				Hour:      h,
				Occupancy: avg,
				SoundDB:   averageFactor(rs, models.FactorSound),
				LightLux:  averageFactor(rs, models.FactorLight),
			}
		}
	}
	if peak.Hour < 0 {
		peak.Hour = 0
	}
	return peak
}

// averageFactor averages a nullable factor, returning nil when no reading
// reported it.
func averageFactor(readings []models.Reading, f models.Factor) *float64 {
	var (
		sum float64
		n   int
	)
	for _, r := range readings {
		if v, ok := r.Value(f); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return models.Float(sum / float64(n))
}

// detectMusic collects distinct artists and detected genres for a date.
func detectMusic(readings []models.Reading, detector genre.Detector) ([]string, []string) {
	artistSet := make(map[string]struct{})
	genreSet := make(map[string]struct{})
	for _, r := range readings {
		artist := strings.TrimSpace(r.Artist)
		if artist != "" && !strings.EqualFold(artist, "unknown") {
			artistSet[artist] = struct{}{}
		}
		if detector == nil {
			continue
		}
		for _, g := range detector.Detect(genre.TrackText(r.Track, r.Artist)) {
			genreSet[g] = struct{}{}
		}
	}
	return sortedKeys(artistSet), sortedKeys(genreSet)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
