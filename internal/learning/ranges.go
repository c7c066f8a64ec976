package learning

import (
	"math"

	"github.com/rewired-gh/venuepulse/internal/models"
)

const (
	// minBucketSupport is the minimum number of readings a bucket needs
	// before its average dwell is trusted.
	minBucketSupport = 5
	// minImprovementPct is how far above the window average a bucket's
	// average dwell must be before it counts as a preference.
	minImprovementPct = 5.0
	// confidenceSaturation is the supporting-point count at which range
	// confidence reaches 100.
	confidenceSaturation = 20
)

// bucket is a half-open value interval [Min, Max). The last bucket of each
// table also includes its upper bound.
type bucket struct {
	Min, Max float64
}

var bucketTables = map[models.Factor][]bucket{
	models.FactorSound: {
		{50, 60}, {60, 65}, {65, 70}, {70, 75}, {75, 80}, {80, 85}, {85, 95},
	},
	models.FactorLight: {
		{0, 100}, {100, 200}, {200, 300}, {300, 400}, {400, 500}, {500, 600},
	},
	models.FactorTemperature: {
		{60, 63}, {63, 66}, {66, 69}, {69, 72}, {72, 75}, {75, 78},
	},
}

// bucketIndex returns the bucket containing v, or -1 when v is out of range.
func bucketIndex(buckets []bucket, v float64) int {
	for i, b := range buckets {
		last := i == len(buckets)-1
		if v >= b.Min && (v < b.Max || (last && v <= b.Max)) {
			return i
		}
	}
	return -1
}

// LearnableBounds returns the value span covered by factor f's buckets.
// Values outside it never contribute to a learned range. ok is false for
// factors that are not learned.
func LearnableBounds(f models.Factor) (lo, hi float64, ok bool) {
	buckets, ok := bucketTables[f]
	if !ok || len(buckets) == 0 {
		return 0, 0, false
	}
	return buckets[0].Min, buckets[len(buckets)-1].Max, true
}

type bucketStats struct {
	dwellSum float64
	count    int
}

func (b bucketStats) avg() float64 {
	if b.count == 0 {
		return 0
	}
	return b.dwellSum / float64(b.count)
}

// AverageDwell returns the mean estimated dwell across readings.
func AverageDwell(readings []models.Reading) float64 {
	if len(readings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range readings {
		sum += EstimateDwell(r)
	}
	return sum / float64(len(readings))
}

// LearnRange finds the value range of factor f whose readings show the
// longest average estimated dwell, relative to the average across all of
// the given readings. Readings that did not report f only count toward the
// overall average.
//
// Returns nil when no bucket has enough support or when the best bucket
// does not beat the overall average by more than minImprovementPct.
// Ties on average dwell go to the bucket with more readings, then to the
// lower-valued bucket.
func LearnRange(readings []models.Reading, f models.Factor) *models.LearnedRange {
	buckets, ok := bucketTables[f]
	if !ok || len(readings) == 0 {
		return nil
	}

	overall := AverageDwell(readings)
	if overall <= 0 {
		return nil
	}

	stats := make([]bucketStats, len(buckets))
	for _, r := range readings {
		v, ok := r.Value(f)
		if !ok {
			continue
		}
		idx := bucketIndex(buckets, v)
		if idx < 0 {
			continue
		}
		stats[idx].dwellSum += EstimateDwell(r)
		stats[idx].count++
	}

	best := -1
	for i, s := range stats {
		if s.count < minBucketSupport {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		// Buckets are visited in ascending value order, so only a strictly
		// better bucket may replace the current best.
		cur, top := s.avg(), stats[best].avg()
		if cur > top || (cur == top && s.count > stats[best].count) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}

	avg := stats[best].avg()
	improvement := (avg - overall) / overall * 100
	if improvement <= minImprovementPct {
		return nil
	}

	return &models.LearnedRange{
		Min:              buckets[best].Min,
		Max:              buckets[best].Max,
		AvgDwellInRange:  avg,
		AvgDwellOverall:  overall,
		ImprovementPct:   improvement,
		SupportingPoints: stats[best].count,
		Confidence:       rangeConfidence(stats[best].count),
	}
}

func rangeConfidence(points int) int {
	c := int(math.Round(float64(points) / confidenceSaturation * 100))
	return min(c, 100)
}
