package models

import "time"

// Device is a collar known to the device directory. Only the bcrypt hash of
// its API key is kept.
type Device struct {
	DeviceID   string    `json:"device_id" db:"device_id"`
	Name       string    `json:"name" db:"name"`
	APIKeyHash []byte    `json:"-" db:"api_key_hash"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
