// Package readings stores raw venue sensor readings in a relational
// database through GORM. It is both the sink that ingestion writes to and
// the source the analysis loop fetches history from.
//
// SQLite is the default; Postgres and MySQL are selectable by driver name
// for deployments that already run one.
package readings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rewired-gh/venuepulse/internal/models"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

const insertBatchSize = 500

// Record is the database row for one reading.
type Record struct {
	ID           string    `gorm:"primaryKey;size:64"`
	VenueID      string    `gorm:"size:128;not null;index:idx_readings_venue_ts,priority:1"`
	Timestamp    time.Time `gorm:"not null;index:idx_readings_venue_ts,priority:2"`
	SoundDB      *float64
	LightLux     *float64
	TemperatureF *float64
	Humidity     *float64
	Entries      int
	Exits        int
	Occupancy    int
	Track        string `gorm:"size:512"`
	Artist       string `gorm:"size:512"`
}

// TableName sets the table name.
func (Record) TableName() string {
	return "readings"
}

func toRecord(r models.Reading) Record {
	return Record{
		ID:           r.ID,
		VenueID:      r.VenueID,
		Timestamp:    r.Timestamp.UTC(),
		SoundDB:      r.SoundDB,
		LightLux:     r.LightLux,
		TemperatureF: r.TemperatureF,
		Humidity:     r.Humidity,
		Entries:      r.Entries,
		Exits:        r.Exits,
		Occupancy:    r.Occupancy,
		Track:        r.Track,
		Artist:       r.Artist,
	}
}

func (rec Record) toReading() models.Reading {
	return models.Reading{
		ID:           rec.ID,
		VenueID:      rec.VenueID,
		Timestamp:    rec.Timestamp.UTC(),
		SoundDB:      rec.SoundDB,
		LightLux:     rec.LightLux,
		TemperatureF: rec.TemperatureF,
		Humidity:     rec.Humidity,
		Entries:      rec.Entries,
		Exits:        rec.Exits,
		Occupancy:    rec.Occupancy,
		Track:        rec.Track,
		Artist:       rec.Artist,
	}
}

// Config selects and configures the database.
type Config struct {
	Driver string // sqlite, postgres or mysql
	DSN    string // file path for sqlite, connection string otherwise
	Debug  bool   // log every SQL statement
}

// Repository reads and writes readings.
type Repository struct {
	db *gorm.DB
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config) (*Repository, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "", DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = filepath.Join(os.TempDir(), "venuepulse", "readings.db")
		}
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case DriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported readings driver %q", cfg.Driver)
	}

	level := gormlogger.Silent
	if cfg.Debug {
		level = gormlogger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	return New(db)
}

// New wraps an open GORM handle and migrates the schema.
func New(db *gorm.DB) (*Repository, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate readings schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveReadings inserts readings. Invalid readings are rejected before
// anything is written; readings whose ID already exists are skipped, so
// redelivered messages are harmless.
func (r *Repository) SaveReadings(ctx context.Context, readings []models.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	records := make([]Record, 0, len(readings))
	for i := range readings {
		if err := readings[i].Validate(); err != nil {
			return fmt.Errorf("invalid reading %d: %w", i, err)
		}
		if readings[i].ID == "" {
			return fmt.Errorf("invalid reading %d: ID must not be empty", i)
		}
		records = append(records, toRecord(readings[i]))
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&records, insertBatchSize).Error
	if err != nil {
		return fmt.Errorf("failed to save readings: %w", err)
	}
	return nil
}

// FetchReadings returns up to limit readings for a venue with timestamps in
// [start, end). When more match, the most recent are kept. A zero start or
// end leaves that side open; limit <= 0 means no limit. Results are ordered
// oldest first.
func (r *Repository) FetchReadings(ctx context.Context, venueID string, start, end time.Time, limit int) ([]models.Reading, error) {
	if venueID == "" {
		return nil, errors.New("venue ID must not be empty")
	}

	q := r.db.WithContext(ctx).Where("venue_id = ?", venueID)
	if !start.IsZero() {
		q = q.Where("timestamp >= ?", start.UTC())
	}
	if !end.IsZero() {
		q = q.Where("timestamp < ?", end.UTC())
	}
	q = q.Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var records []Record
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch readings: %w", err)
	}

	out := make([]models.Reading, len(records))
	for i, rec := range records {
		out[len(records)-1-i] = rec.toReading()
	}
	return out, nil
}

// Count returns the number of stored readings for a venue.
func (r *Repository) Count(ctx context.Context, venueID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Record{}).Where("venue_id = ?", venueID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return n, nil
}

// Prune deletes readings older than cutoff and returns how many were removed.
func (r *Repository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("timestamp < ?", cutoff.UTC()).Delete(&Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune readings: %w", res.Error)
	}
	return res.RowsAffected, nil
}
