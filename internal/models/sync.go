package models

import "time"

// SyncSummary is the outcome of reconciling one batch of observations.
type SyncSummary struct {
	TotalProcessed int      `json:"total_processed"`
	Created        int      `json:"created"`
	Updated        int      `json:"updated"`
	ErrorCount     int      `json:"errors"`
	ErrorMessages  []string `json:"error_messages"`
}

// AddError records a failed item.
func (s *SyncSummary) AddError(message string) {
	s.ErrorCount++
	s.ErrorMessages = append(s.ErrorMessages, message)
}

// PushSummary is the outcome of pushing latest positions downstream.
type PushSummary struct {
	TotalDevices  int      `json:"total_devices"`
	Sent          int      `json:"sent"`
	ErrorCount    int      `json:"errors"`
	ErrorMessages []string `json:"error_messages"`
}

// AddError records a failed device push.
func (s *PushSummary) AddError(message string) {
	s.ErrorCount++
	s.ErrorMessages = append(s.ErrorMessages, message)
}

// CycleReport describes one reconcile-then-push cycle. A phase summary is nil
// when that phase failed at the batch level; the matching error field says why.
type CycleReport struct {
	Cycle          int          `json:"cycle"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`
	Status         string       `json:"status"`
	Reconcile      *SyncSummary `json:"reconcile,omitempty"`
	Push           *PushSummary `json:"push,omitempty"`
	ReconcileError string       `json:"reconcile_error,omitempty"`
	PushError      string       `json:"push_error,omitempty"`
	CycleError     string       `json:"cycle_error,omitempty"`
}

// Duration is the wall time the cycle took.
func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// CycleStats accumulates cycle outcomes across the life of the orchestrator.
type CycleStats struct {
	Cycles      int       `json:"cycles"`
	Complete    int       `json:"complete"`
	Partial     int       `json:"partial"`
	Failed      int       `json:"failed"`
	LastStatus  string    `json:"last_status,omitempty"`
	LastCycleAt time.Time `json:"last_cycle_at,omitempty"`
}

// CycleState is what the state manager persists between runs.
type CycleState struct {
	Stats      CycleStats   `json:"stats"`
	LastReport *CycleReport `json:"last_report,omitempty"`
}
