package location

import "time"

// Fix is a single position fix relayed for a collar.
type Fix struct {
	DeviceID  string
	Latitude  float64
	Longitude float64
	Timestamp time.Time
}
