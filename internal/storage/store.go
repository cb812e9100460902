package storage

import (
	"context"
	"errors"

	"github.com/benmeehan/collar-sync/internal/models"
)

// ErrNotFound is returned when a device has no position record.
var ErrNotFound = errors.New("position record not found")

// PositionStore persists position records. Records are never deleted and a
// device may own several of them.
//
// FindByDevice and UpdateByDevice address a device's current row: the one with
// the greatest observed_at, ties going to the earliest inserted. That is the
// same row the latest-position reducer selects from FindAll.
type PositionStore interface {
	// Init prepares the backing storage. It is safe to call more than once.
	Init(ctx context.Context) error
	Insert(ctx context.Context, record models.PositionRecord) (models.PositionRecord, error)
	// FindAll returns every record in insertion order.
	FindAll(ctx context.Context) ([]models.PositionRecord, error)
	FindByDevice(ctx context.Context, deviceID string) (models.PositionRecord, error)
	// UpdateByDevice overwrites the current row, inserting one if the device has none.
	UpdateByDevice(ctx context.Context, deviceID string, update models.PositionUpdate) (models.PositionRecord, error)
	Close() error
}

// currentIndex returns the index of the device's current row within records,
// which must be in insertion order, or -1.
func currentIndex(records []models.PositionRecord, deviceID string) int {
	best := -1
	for i, record := range records {
		if record.DeviceID != deviceID {
			continue
		}
		if best == -1 || record.ObservedAt.After(records[best].ObservedAt) {
			best = i
		}
	}
	return best
}
