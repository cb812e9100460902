package models

import (
	"time"
)

// Position is a validated fix for one device. The reducer emits one per device
// as the device's latest known position.
type Position struct {
	DeviceID   string    `json:"device_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	ObservedAt time.Time `json:"observed_at"`
}

// PositionRecord is a stored position row. A device may own many records.
type PositionRecord struct {
	ID         string    `json:"id" db:"id"`
	DeviceID   string    `json:"device_id" db:"device_id"`
	Latitude   float64   `json:"latitude" db:"latitude"`
	Longitude  float64   `json:"longitude" db:"longitude"`
	ObservedAt time.Time `json:"observed_at" db:"observed_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// PositionUpdate carries the fields overwritten when a device already has a record.
type PositionUpdate struct {
	Latitude   float64
	Longitude  float64
	ObservedAt time.Time
}

// Position returns the record as a device position.
func (r PositionRecord) Position() Position {
	return Position{
		DeviceID:   r.DeviceID,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		ObservedAt: r.ObservedAt,
	}
}

// NewPositionRecord builds an unsaved record from a validated position.
func NewPositionRecord(p Position) PositionRecord {
	return PositionRecord{
		DeviceID:   p.DeviceID,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		ObservedAt: p.ObservedAt.UTC(),
	}
}

// Update returns the overwrite fields for this position.
func (p Position) Update() PositionUpdate {
	return PositionUpdate{
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		ObservedAt: p.ObservedAt.UTC(),
	}
}
