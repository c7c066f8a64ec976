package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadingValidate(t *testing.T) {
	now := time.Date(2025, 3, 7, 22, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		reading Reading
		wantErr bool
	}{
		{
			name:    "valid reading",
			reading: Reading{VenueID: "parlaylp", Timestamp: now, SoundDB: Float(72), Entries: 10, Exits: 2, Occupancy: 8},
			wantErr: false,
		},
		{
			name:    "partial factors are fine",
			reading: Reading{VenueID: "parlaylp", Timestamp: now},
			wantErr: false,
		},
		{
			name:    "empty venue",
			reading: Reading{Timestamp: now},
			wantErr: true,
		},
		{
			name:    "zero timestamp",
			reading: Reading{VenueID: "parlaylp"},
			wantErr: true,
		},
		{
			name:    "negative counter",
			reading: Reading{VenueID: "parlaylp", Timestamp: now, Exits: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reading.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReadingValue(t *testing.T) {
	r := Reading{SoundDB: Float(71.5), LightLux: nil, TemperatureF: Float(70)}

	v, ok := r.Value(FactorSound)
	assert.True(t, ok)
	assert.Equal(t, 71.5, v)

	_, ok = r.Value(FactorLight)
	assert.False(t, ok)

	_, ok = r.Value(FactorGenre)
	assert.False(t, ok)
}

func TestLearningStatusRank(t *testing.T) {
	assert.False(t, StatusInsufficientData.AtLeastConfident())
	assert.False(t, StatusLearning.AtLeastConfident())
	assert.True(t, StatusConfident.AtLeastConfident())
	assert.True(t, StatusHighlyConfident.AtLeastConfident())
	assert.Less(t, StatusLearning.Rank(), StatusConfident.Rank())
}

func fullSnapshot() *LearningSnapshot {
	oldest := time.Date(2025, 2, 7, 21, 0, 0, 0, time.UTC)
	newest := time.Date(2025, 3, 7, 23, 50, 0, 0, time.UTC)
	return &LearningSnapshot{
		VenueID:       "parlaylp",
		Progress:      37,
		TotalReadings: 72,
		OldestReading: &oldest,
		NewestReading: &newest,
		WeeksOfData:   4.0170634920634925,
		Windows: map[TimeWindow]WindowLearning{
			WindowFridayPeak: {
				Sound: &LearnedRange{
					Min: 70, Max: 75, AvgDwellInRange: 70, AvgDwellOverall: 59.99999999999999,
					ImprovementPct: 16.666666666666686, SupportingPoints: 54, Confidence: 100,
				},
				Weights:            Weights{Sound: 0.7499999999999999, Light: 0.1, Temperature: 0.05, Residual: 0.1},
				SupportingReadings: 72,
				WeeksOfData:        3.0119047619047619,
			},
		},
		BestOccurrences: map[TimeWindow]BestOccurrence{
			WindowFridayPeak: {
				Date: "2025-02-14", DayOfWeek: "Friday", TotalGuests: 170, PeakOccupancy: 95,
				AvgDwellMinutes: 70, AvgSoundDB: Float(72.1), AvgLightLux: Float(180.25),
				Artists: []string{"Zach Bryan"}, Genres: []string{"country"},
				PeakHour:       PeakHour{Hour: 23, Occupancy: 91.5, SoundDB: Float(72.3), LightLux: Float(175)},
				CompositeScore: 82.11111111111111, ReadingCount: 18, Confidence: 90,
			},
		},
		Patterns: []DiscoveredPattern{
			{ID: "friday_peak/sound", Window: WindowFridayPeak, Factor: FactorSound,
				Statement: "Guests stay 17% longer", ImprovementPct: 16.666666666666686, Confidence: 100},
		},
		Profile:      VenueProfile{PeakDay: "Friday", PeakHour: 23, AvgDwellMinutes: 60, BestDwellMinutes: 70, WorstDwellMinutes: 30},
		LastAnalyzed: time.Date(2025, 3, 8, 9, 15, 0, 123456789, time.UTC),
		Status:       StatusLearning,
	}
}

func TestLearningSnapshotRoundTrip(t *testing.T) {
	original := fullSnapshot()

	data, err := original.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	// A second pass must be byte-identical.
	again, err := decoded.Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestUnmarshalSnapshotRejectsCorruptData(t *testing.T) {
	_, err := UnmarshalSnapshot([]byte(`{"venue_id": "x", "progress": `))
	assert.Error(t, err)

	_, err = UnmarshalSnapshot([]byte(`{"venue_id": "x", "progress": 10, "status": "bogus", "last_analyzed": "2025-01-01T00:00:00Z"}`))
	assert.Error(t, err)

	_, err = UnmarshalSnapshot([]byte(`{"venue_id": "x", "status": "learning", "last_analyzed": "2025-01-01T00:00:00Z", "windows": {"tuesday_brunch": {}}}`))
	assert.Error(t, err)
}

func TestLearningSnapshotIsStale(t *testing.T) {
	s := fullSnapshot()
	assert.False(t, s.IsStale(30*time.Minute, s.LastAnalyzed.Add(29*time.Minute)))
	assert.True(t, s.IsStale(30*time.Minute, s.LastAnalyzed.Add(31*time.Minute)))
}

func TestWindowLabelsAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, w := range AllWindows() {
		assert.True(t, w.Valid())
		label := w.Label()
		assert.False(t, seen[label], "duplicate label %s", label)
		seen[label] = true
	}
	assert.False(t, TimeWindow("brunch").Valid())
}
