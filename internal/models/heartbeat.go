package models

import "time"

// Heartbeat is the status message the sync node publishes over MQTT. Report is
// set when the message follows a finished cycle and nil on periodic beats.
type Heartbeat struct {
	NodeID    string              `json:"node_id"`
	Timestamp time.Time           `json:"timestamp"`
	Status    string              `json:"status"`
	State     string              `json:"state"`
	Stats     CycleStats          `json:"stats"`
	Report    *CycleReport        `json:"report,omitempty"`
	Host      map[string]*float64 `json:"host,omitempty"`
}
