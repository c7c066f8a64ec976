package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rewired-gh/venuepulse/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "snapshots.db"), 0755)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSnapshot(venueID string, analyzed time.Time) *models.LearningSnapshot {
	oldest := analyzed.Add(-21 * 24 * time.Hour)
	return &models.LearningSnapshot{
		VenueID:       venueID,
		Progress:      42,
		TotalReadings: 310,
		OldestReading: &oldest,
		NewestReading: &analyzed,
		WeeksOfData:   3,
		Windows: map[models.TimeWindow]models.WindowLearning{
			models.WindowFridayPeak: {
				Sound: &models.LearnedRange{
					Min: 70, Max: 75, AvgDwellInRange: 66.1, AvgDwellOverall: 58.3,
					ImprovementPct: 13.379073756432247, SupportingPoints: 40, Confidence: 100,
				},
				Weights:            models.Weights{Sound: 0.75, Light: 0.1, Temperature: 0.05, Residual: 0.1},
				SupportingReadings: 120,
				WeeksOfData:        3,
			},
		},
		BestOccurrences: map[models.TimeWindow]models.BestOccurrence{
			models.WindowFridayPeak: {
				Date:            "2026-01-09",
				DayOfWeek:       "Friday",
				TotalGuests:     170,
				PeakOccupancy:   57,
				AvgDwellMinutes: 70,
				AvgSoundDB:      models.Float(72.1),
				Artists:         []string{"Luke Combs"},
				Genres:          []string{"country"},
				PeakHour:        models.PeakHour{Hour: 23, Occupancy: 54.5, SoundDB: models.Float(72.4)},
				CompositeScore:  82.11111111111111,
				ReadingCount:    18,
				Confidence:      90,
			},
		},
		Patterns: []models.DiscoveredPattern{
			{ID: "friday_peak/sound", Window: models.WindowFridayPeak, Factor: models.FactorSound,
				Statement: "Guests stay 13% longer during Friday peak when sound is 70-75 dB", ImprovementPct: 13.379073756432247, Confidence: 100},
		},
		Profile:      models.VenueProfile{PeakDay: "Friday", PeakHour: 23, AvgDwellMinutes: 60, BestDwellMinutes: 70, WorstDwellMinutes: 30},
		LastAnalyzed: analyzed,
		Status:       models.StatusLearning,
	}
}

func TestStore_PutAndGetSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	analyzed := time.Date(2026, time.January, 24, 12, 0, 0, 0, time.UTC)

	want := testSnapshot("venue-1", analyzed)
	if err := s.PutSnapshot(ctx, "venue-1", want); err != nil {
		t.Fatalf("PutSnapshot failed: %v", err)
	}

	got, err := s.GetSnapshot(ctx, "venue-1")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Round-tripped snapshot differs:\n got %+v\nwant %+v", got, want)
	}
}

func TestStore_GetSnapshotMiss(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetSnapshot(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Expected miss without error, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil snapshot, got %+v", got)
	}

	if _, err := s.Load(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_PutReplacesWholeSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first := time.Date(2026, time.January, 24, 12, 0, 0, 0, time.UTC)

	if err := s.PutSnapshot(ctx, "venue-1", testSnapshot("venue-1", first)); err != nil {
		t.Fatalf("PutSnapshot failed: %v", err)
	}

	replacement := &models.LearningSnapshot{
		VenueID:         "venue-1",
		Windows:         map[models.TimeWindow]models.WindowLearning{},
		BestOccurrences: map[models.TimeWindow]models.BestOccurrence{},
		Patterns:        []models.DiscoveredPattern{},
		LastAnalyzed:    first.Add(time.Hour),
		Status:          models.StatusInsufficientData,
	}
	if err := s.PutSnapshot(ctx, "venue-1", replacement); err != nil {
		t.Fatalf("PutSnapshot failed: %v", err)
	}

	got, err := s.GetSnapshot(ctx, "venue-1")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if len(got.Windows) != 0 || len(got.Patterns) != 0 {
		t.Errorf("Expected old windows and patterns to be gone, got %d windows, %d patterns", len(got.Windows), len(got.Patterns))
	}
	if !got.LastAnalyzed.Equal(replacement.LastAnalyzed) {
		t.Errorf("Expected LastAnalyzed %v, got %v", replacement.LastAnalyzed, got.LastAnalyzed)
	}

	venues, err := s.Venues(ctx)
	if err != nil {
		t.Fatalf("Venues failed: %v", err)
	}
	if len(venues) != 1 {
		t.Errorf("Expected 1 venue row, got %d", len(venues))
	}
}

func TestStore_CorruptRowIsMiss(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		data string
	}{
		{"truncated json", `{"venue_id": "venue-1", "windows": {`},
		{"unknown status", `{"venue_id": "venue-1", "status": "guessing", "last_analyzed": "2026-01-24T12:00:00Z"}`},
		{"wrong venue", `{"venue_id": "venue-2", "status": "learning", "last_analyzed": "2026-01-24T12:00:00Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.db.ExecContext(ctx, upsert, "venue-1", []byte(tt.data), "", ""); err != nil {
				t.Fatalf("Seeding corrupt row failed: %v", err)
			}

			got, err := s.GetSnapshot(ctx, "venue-1")
			if err != nil {
				t.Fatalf("Expected corrupt row to be a miss, got error %v", err)
			}
			if got != nil {
				t.Errorf("Expected nil snapshot, got %+v", got)
			}
			if _, err := s.Load(ctx, "venue-1"); !errors.Is(err, ErrCorrupt) {
				t.Errorf("Expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func TestStore_PutRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	analyzed := time.Date(2026, time.January, 24, 12, 0, 0, 0, time.UTC)

	if err := s.PutSnapshot(ctx, "venue-1", nil); err == nil {
		t.Error("Expected error for nil snapshot")
	}
	if err := s.PutSnapshot(ctx, "venue-2", testSnapshot("venue-1", analyzed)); err == nil {
		t.Error("Expected error for mismatched venue")
	}

	bad := testSnapshot("venue-1", analyzed)
	bad.Progress = 101
	if err := s.PutSnapshot(ctx, "venue-1", bad); err == nil {
		t.Error("Expected error for out-of-range progress")
	}
}

func TestStore_DeleteSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	analyzed := time.Date(2026, time.January, 24, 12, 0, 0, 0, time.UTC)

	if err := s.PutSnapshot(ctx, "venue-1", testSnapshot("venue-1", analyzed)); err != nil {
		t.Fatalf("PutSnapshot failed: %v", err)
	}
	if err := s.DeleteSnapshot(ctx, "venue-1"); err != nil {
		t.Fatalf("DeleteSnapshot failed: %v", err)
	}
	if err := s.DeleteSnapshot(ctx, "venue-1"); err != nil {
		t.Fatalf("Deleting a missing snapshot should succeed: %v", err)
	}
	if got, _ := s.GetSnapshot(ctx, "venue-1"); got != nil {
		t.Errorf("Expected snapshot to be deleted")
	}
}

func TestStore_ExportImport(t *testing.T) {
	src := newTestStore(t)
	ctx := context.Background()
	analyzed := time.Date(2026, time.January, 24, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"venue-a", "venue-b"} {
		if err := src.PutSnapshot(ctx, id, testSnapshot(id, analyzed)); err != nil {
			t.Fatalf("PutSnapshot failed: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "backup", "snapshots.json")
	n, err := src.Export(ctx, path, 0644, 0755)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 exported snapshots, got %d", n)
	}

	dst, err := Open(":memory:", 0755)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dst.Close()

	n, err = dst.Import(ctx, path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 imported snapshots, got %d", n)
	}

	got, err := dst.GetSnapshot(ctx, "venue-b")
	if err != nil || got == nil {
		t.Fatalf("Expected imported snapshot, got %v, %v", got, err)
	}
	if !reflect.DeepEqual(got, testSnapshot("venue-b", analyzed)) {
		t.Errorf("Imported snapshot differs from original")
	}
}
