package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Timestamps are stored as Unix nanoseconds so that ordering by observed_at is
// exact. seq preserves insertion order for FindAll and tie-breaks.
const schema = `
CREATE TABLE IF NOT EXISTS location_records (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT    NOT NULL UNIQUE,
	device_id   TEXT    NOT NULL,
	latitude    REAL    NOT NULL,
	longitude   REAL    NOT NULL,
	observed_at INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_location_records_device ON location_records (device_id, observed_at);

CREATE TABLE IF NOT EXISTS devices (
	device_id    TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	api_key_hash BLOB NOT NULL,
	created_at   INTEGER NOT NULL
);
`

const selectColumns = `id, device_id, latitude, longitude, observed_at, created_at`

// recordRow is the on-disk shape of a models.PositionRecord.
type recordRow struct {
	ID         string  `db:"id"`
	DeviceID   string  `db:"device_id"`
	Latitude   float64 `db:"latitude"`
	Longitude  float64 `db:"longitude"`
	ObservedAt int64   `db:"observed_at"`
	CreatedAt  int64   `db:"created_at"`
}

func (r recordRow) record() models.PositionRecord {
	return models.PositionRecord{
		ID:         r.ID,
		DeviceID:   r.DeviceID,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		ObservedAt: time.Unix(0, r.ObservedAt).UTC(),
		CreatedAt:  time.Unix(0, r.CreatedAt).UTC(),
	}
}

// SQLiteStore is a PositionStore backed by a SQLite database file.
type SQLiteStore struct {
	db     *sqlx.DB
	path   string
	logger zerolog.Logger

	initMu      sync.Mutex
	initialized bool
}

// NewSQLiteStore opens (creating if needed) the database at path.
// Init must be called before the store is used.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// A single connection keeps every access strictly serialised.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger,
	}, nil
}

// Init creates the schema once per store.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.initialized {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.initialized = true
	s.logger.Info().Str("path", s.path).Msg("Position store initialized")
	return nil
}

// DB exposes the underlying handle for collaborators sharing the database file.
func (s *SQLiteStore) DB() *sqlx.DB {
	return s.db
}

// Insert stores record under a fresh id.
func (s *SQLiteStore) Insert(ctx context.Context, record models.PositionRecord) (models.PositionRecord, error) {
	if record.DeviceID == "" {
		return models.PositionRecord{}, fmt.Errorf("insert position: empty device id")
	}

	record.ID = uuid.New().String()
	record.ObservedAt = record.ObservedAt.UTC()
	record.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO location_records (id, device_id, latitude, longitude, observed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID, record.DeviceID, record.Latitude, record.Longitude,
		record.ObservedAt.UnixNano(), record.CreatedAt.UnixNano(),
	)
	if err != nil {
		return models.PositionRecord{}, fmt.Errorf("failed to insert position for %s: %w", record.DeviceID, err)
	}
	return record, nil
}

// FindAll returns every record in insertion order.
func (s *SQLiteStore) FindAll(ctx context.Context) ([]models.PositionRecord, error) {
	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT `+selectColumns+` FROM location_records ORDER BY seq ASC`); err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	records := make([]models.PositionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

// FindByDevice returns the device's current record.
func (s *SQLiteStore) FindByDevice(ctx context.Context, deviceID string) (models.PositionRecord, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+selectColumns+` FROM location_records
		 WHERE device_id = ?
		 ORDER BY observed_at DESC, seq ASC
		 LIMIT 1`, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PositionRecord{}, ErrNotFound
	}
	if err != nil {
		return models.PositionRecord{}, fmt.Errorf("failed to find position for %s: %w", deviceID, err)
	}
	return row.record(), nil
}

// UpdateByDevice overwrites the device's current record, creating one if needed.
func (s *SQLiteStore) UpdateByDevice(ctx context.Context, deviceID string, update models.PositionUpdate) (models.PositionRecord, error) {
	current, err := s.FindByDevice(ctx, deviceID)
	if errors.Is(err, ErrNotFound) {
		return s.Insert(ctx, models.PositionRecord{
			DeviceID:   deviceID,
			Latitude:   update.Latitude,
			Longitude:  update.Longitude,
			ObservedAt: update.ObservedAt,
		})
	}
	if err != nil {
		return models.PositionRecord{}, err
	}

	current.Latitude = update.Latitude
	current.Longitude = update.Longitude
	current.ObservedAt = update.ObservedAt.UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE location_records SET latitude = ?, longitude = ?, observed_at = ? WHERE id = ?`,
		current.Latitude, current.Longitude, current.ObservedAt.UnixNano(), current.ID,
	)
	if err != nil {
		return models.PositionRecord{}, fmt.Errorf("failed to update position for %s: %w", deviceID, err)
	}
	return current, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
