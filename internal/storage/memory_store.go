package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/google/uuid"
)

// MemoryStore keeps position records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records []models.PositionRecord
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Init is a no-op for the memory store.
func (m *MemoryStore) Init(ctx context.Context) error {
	return nil
}

// Insert stores a copy of record under a fresh id.
func (m *MemoryStore) Insert(ctx context.Context, record models.PositionRecord) (models.PositionRecord, error) {
	if record.DeviceID == "" {
		return models.PositionRecord{}, fmt.Errorf("insert position: empty device id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record.ID = uuid.New().String()
	record.ObservedAt = record.ObservedAt.UTC()
	record.CreatedAt = m.now().UTC()
	m.records = append(m.records, record)
	return record, nil
}

// FindAll returns a snapshot of every record in insertion order.
func (m *MemoryStore) FindAll(ctx context.Context) ([]models.PositionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.PositionRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

// FindByDevice returns the device's current record.
func (m *MemoryStore) FindByDevice(ctx context.Context, deviceID string) (models.PositionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := currentIndex(m.records, deviceID)
	if idx == -1 {
		return models.PositionRecord{}, ErrNotFound
	}
	return m.records[idx], nil
}

// UpdateByDevice overwrites the device's current record, creating one if needed.
func (m *MemoryStore) UpdateByDevice(ctx context.Context, deviceID string, update models.PositionUpdate) (models.PositionRecord, error) {
	m.mu.Lock()
	idx := currentIndex(m.records, deviceID)
	if idx != -1 {
		m.records[idx].Latitude = update.Latitude
		m.records[idx].Longitude = update.Longitude
		m.records[idx].ObservedAt = update.ObservedAt.UTC()
		record := m.records[idx]
		m.mu.Unlock()
		return record, nil
	}
	m.mu.Unlock()

	return m.Insert(ctx, models.PositionRecord{
		DeviceID:   deviceID,
		Latitude:   update.Latitude,
		Longitude:  update.Longitude,
		ObservedAt: update.ObservedAt,
	})
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
