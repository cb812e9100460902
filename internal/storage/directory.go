package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// DeviceDirectory authorizes devices by API key.
type DeviceDirectory interface {
	// Register creates the device or replaces its API key.
	Register(ctx context.Context, deviceID, name, apiKey string) error
	// Verify reports whether apiKey belongs to deviceID. Unknown devices verify false.
	Verify(ctx context.Context, deviceID, apiKey string) (bool, error)
}

func hashAPIKey(deviceID, apiKey string) ([]byte, error) {
	if deviceID == "" || apiKey == "" {
		return nil, errors.New("device id and api key are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash api key for %s: %w", deviceID, err)
	}
	return hash, nil
}

func matchAPIKey(hash []byte, apiKey string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(apiKey)) == nil
}

// MemoryDirectory keeps devices in process memory.
type MemoryDirectory struct {
	mu      sync.RWMutex
	devices map[string]models.Device
}

// NewMemoryDirectory creates an empty MemoryDirectory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{devices: make(map[string]models.Device)}
}

func (d *MemoryDirectory) Register(ctx context.Context, deviceID, name, apiKey string) error {
	hash, err := hashAPIKey(deviceID, apiKey)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.devices[deviceID] = models.Device{
		DeviceID:   deviceID,
		Name:       name,
		APIKeyHash: hash,
		CreatedAt:  time.Now().UTC(),
	}
	return nil
}

func (d *MemoryDirectory) Verify(ctx context.Context, deviceID, apiKey string) (bool, error) {
	d.mu.RLock()
	device, ok := d.devices[deviceID]
	d.mu.RUnlock()

	if !ok || apiKey == "" {
		return false, nil
	}
	return matchAPIKey(device.APIKeyHash, apiKey), nil
}

// SQLiteDirectory stores devices in the devices table created by SQLiteStore.Init.
type SQLiteDirectory struct {
	db *sqlx.DB
}

// NewSQLiteDirectory shares the store's database handle.
func NewSQLiteDirectory(store *SQLiteStore) *SQLiteDirectory {
	return &SQLiteDirectory{db: store.DB()}
}

func (d *SQLiteDirectory) Register(ctx context.Context, deviceID, name, apiKey string) error {
	hash, err := hashAPIKey(deviceID, apiKey)
	if err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO devices (device_id, name, api_key_hash, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET name = excluded.name, api_key_hash = excluded.api_key_hash`,
		deviceID, name, hash, time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to register device %s: %w", deviceID, err)
	}
	return nil
}

func (d *SQLiteDirectory) Verify(ctx context.Context, deviceID, apiKey string) (bool, error) {
	if apiKey == "" {
		return false, nil
	}

	var hash []byte
	err := d.db.GetContext(ctx, &hash, `SELECT api_key_hash FROM devices WHERE device_id = ?`, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up device %s: %w", deviceID, err)
	}
	return matchAPIKey(hash, apiKey), nil
}
