package learning

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rewired-gh/venuepulse/internal/models"
)

// BuildPatterns turns every learned range into a human-readable finding,
// ranked by confidence, then improvement, then ID.
func BuildPatterns(windows map[models.TimeWindow]models.WindowLearning) []models.DiscoveredPattern {
	patterns := []models.DiscoveredPattern{}
	for _, w := range models.AllWindows() {
		wl, ok := windows[w]
		if !ok {
			continue
		}
		for _, f := range models.LearnedFactors() {
			r := wl.Range(f)
			if r == nil {
				continue
			}
			patterns = append(patterns, models.DiscoveredPattern{
				ID:             string(w) + "/" + string(f),
				Window:         w,
				Factor:         f,
				Statement:      describeRange(w, f, r),
				ImprovementPct: r.ImprovementPct,
				Confidence:     r.Confidence,
			})
		}
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		a, b := patterns[i], patterns[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.ImprovementPct != b.ImprovementPct {
			return a.ImprovementPct > b.ImprovementPct
		}
		return a.ID < b.ID
	})
	return patterns
}

func describeRange(w models.TimeWindow, f models.Factor, r *models.LearnedRange) string {
	return fmt.Sprintf("Guests stay %.0f%% longer during %s when %s is %s-%s %s",
		r.ImprovementPct, w.Label(), f, formatValue(r.Min), formatValue(r.Max), f.Unit())
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BuildProfile summarizes a venue across all readings, which must already be
// in venue local time.
func BuildProfile(readings []models.Reading) models.VenueProfile {
	if len(readings) == 0 {
		return models.VenueProfile{}
	}

	var (
		daySum   [7]float64
		dayCount [7]int
		hourSum  [24]float64
		hourCnt  [24]int
	)
	for _, r := range readings {
		d, h := r.Timestamp.Weekday(), r.Timestamp.Hour()
		daySum[d] += float64(r.Occupancy)
		dayCount[d]++
		hourSum[h] += float64(r.Occupancy)
		hourCnt[h]++
	}

	peakDay := busiest(daySum[:], dayCount[:])
	peakHour := busiest(hourSum[:], hourCnt[:])

	profile := models.VenueProfile{
		PeakDay:         time.Weekday(peakDay).String(),
		PeakHour:        peakHour,
		AvgDwellMinutes: AverageDwell(readings),
	}
	for i, d := range groupByDate(readings) {
		if i == 0 || d.AvgDwell > profile.BestDwellMinutes {
			profile.BestDwellMinutes = d.AvgDwell
		}
		if i == 0 || d.AvgDwell < profile.WorstDwellMinutes {
			profile.WorstDwellMinutes = d.AvgDwell
		}
	}
	return profile
}

// busiest returns the index with the highest average, earliest on ties.
func busiest(sums []float64, counts []int) int {
	best, bestAvg := -1, 0.0
	for i := range sums {
		if counts[i] == 0 {
			continue
		}
		avg := sums[i] / float64(counts[i])
		if best < 0 || avg > bestAvg {
			best, bestAvg = i, avg
		}
	}
	return max(best, 0)
}
