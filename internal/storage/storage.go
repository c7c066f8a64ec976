// Package storage persists learning snapshots in a local SQLite database.
// Each venue owns exactly one row holding its latest snapshot as a JSON
// document; writing a snapshot replaces the whole row in one statement, so
// an interrupted analysis run can never leave a half-written record behind.
//
// A row that no longer decodes is reported as a miss rather than an error,
// which lets the caller recompute instead of failing.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/venuepulse/internal/logger"
	"github.com/rewired-gh/venuepulse/internal/models"
)

var (
	// ErrNotFound is returned by Load when a venue has no stored snapshot.
	ErrNotFound = errors.New("snapshot not found")
	// ErrCorrupt is returned by Load when a stored row cannot be decoded.
	ErrCorrupt = errors.New("snapshot corrupt")
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	venue_id      TEXT PRIMARY KEY,
	data          BLOB NOT NULL,
	last_analyzed TEXT NOT NULL,
	updated_at    TEXT NOT NULL
)`

const upsert = `
INSERT INTO snapshots (venue_id, data, last_analyzed, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(venue_id) DO UPDATE SET
	data = excluded.data,
	last_analyzed = excluded.last_analyzed,
	updated_at = excluded.updated_at`

// Store is a SQLite-backed snapshot store. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// ExportFile is the layout written by Export.
type ExportFile struct {
	Version   string                              `json:"version"`
	SavedAt   time.Time                           `json:"saved_at"`
	Snapshots map[string]*models.LearningSnapshot `json:"snapshots"`
}

// Open opens (creating if needed) the snapshot database at path.
// If path is empty, uses an OS-appropriate tmp directory. ":memory:" opens
// a private in-memory database.
func Open(path string, dirPermissions os.FileMode) (*Store, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), "venuepulse", "snapshots.db")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases from splitting across the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored snapshot for a venue. It returns ErrNotFound when
// nothing is stored and ErrCorrupt when the row cannot be decoded.
func (s *Store) Load(ctx context.Context, venueID string) (*models.LearningSnapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE venue_id = ?`, venueID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	snap, err := models.UnmarshalSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if snap.VenueID != venueID {
		return nil, fmt.Errorf("%w: belongs to venue %q", ErrCorrupt, snap.VenueID)
	}
	return snap, nil
}

// GetSnapshot returns the stored snapshot for a venue, or nil when there is
// none. Corrupt rows are logged and reported as a miss.
func (s *Store) GetSnapshot(ctx context.Context, venueID string) (*models.LearningSnapshot, error) {
	snap, err := s.Load(ctx, venueID)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, nil
	case errors.Is(err, ErrCorrupt):
		logger.Warn("Discarding unreadable snapshot for %s: %v", venueID, err)
		return nil, nil
	case err != nil:
		return nil, err
	}
	return snap, nil
}

// PutSnapshot replaces the stored snapshot for a venue.
func (s *Store) PutSnapshot(ctx context.Context, venueID string, snap *models.LearningSnapshot) error {
	if snap == nil {
		return errors.New("snapshot must not be nil")
	}
	if snap.VenueID != venueID {
		return fmt.Errorf("snapshot venue %q does not match %q", snap.VenueID, venueID)
	}
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}

	data, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, upsert,
		venueID, data, snap.LastAnalyzed.UTC().Format(time.RFC3339Nano), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// DeleteSnapshot removes a venue's snapshot. Deleting a missing snapshot is
// not an error.
func (s *Store) DeleteSnapshot(ctx context.Context, venueID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE venue_id = ?`, venueID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// Venues lists every venue with a stored snapshot, sorted.
func (s *Store) Venues(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT venue_id FROM snapshots ORDER BY venue_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list venues: %w", err)
	}
	defer rows.Close()

	var venues []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan venue: %w", err)
		}
		venues = append(venues, id)
	}
	return venues, rows.Err()
}

// Export writes every readable snapshot to a JSON file. The file is written
// to a temporary path first and renamed into place.
func (s *Store) Export(ctx context.Context, path string, filePermissions, dirPermissions os.FileMode) (int, error) {
	venues, err := s.Venues(ctx)
	if err != nil {
		return 0, err
	}

	out := ExportFile{
		Version:   "1.0",
		SavedAt:   time.Now().UTC(),
		Snapshots: make(map[string]*models.LearningSnapshot, len(venues)),
	}
	for _, id := range venues {
		snap, err := s.GetSnapshot(ctx, id)
		if err != nil {
			return 0, err
		}
		if snap != nil {
			out.Snapshots[id] = snap
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return 0, fmt.Errorf("failed to create export directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal export: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, filePermissions); err != nil {
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return 0, fmt.Errorf("failed to rename file: %w", err)
	}
	return len(out.Snapshots), nil
}

// Import loads snapshots from a file written by Export, replacing any
// stored snapshot for the same venue. Venues are imported in sorted order.
func (s *Store) Import(ctx context.Context, path string) (int, error) {
	jsonData, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	var in ExportFile
	if err := json.Unmarshal(jsonData, &in); err != nil {
		return 0, fmt.Errorf("failed to unmarshal export: %w", err)
	}

	ids := make([]string, 0, len(in.Snapshots))
	for id := range in.Snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := s.PutSnapshot(ctx, id, in.Snapshots[id]); err != nil {
			return 0, fmt.Errorf("failed to import %s: %w", id, err)
		}
	}
	return len(ids), nil
}
