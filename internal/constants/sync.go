package constants

import "time"

const (
	// DefaultSyncInterval is the start-to-start period between sync cycles.
	DefaultSyncInterval = 20 * time.Second

	// DefaultPhaseDelay separates the reconcile phase from the push phase.
	DefaultPhaseDelay = 2 * time.Second

	// DefaultRequestTimeout bounds every individual network call.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultHeartbeatInterval is the period of status heartbeats.
	DefaultHeartbeatInterval = 60 * time.Second
)

// Cycle statuses
const (
	// CycleStatusSuccess means neither phase failed at the batch level
	CycleStatusSuccess = "success"
	// CycleStatusPartial means exactly one phase failed at the batch level
	CycleStatusPartial = "partial_success"
	// CycleStatusFailed means both phases failed, or the cycle itself panicked
	CycleStatusFailed = "failed"
)

// Orchestrator states
const (
	StateIdle        = "idle"
	StateReconciling = "reconciling"
	StateWaiting     = "waiting"
	StatePushing     = "pushing"
)

// CycleStatus classifies a cycle from its phase-level failures.
func CycleStatus(reconcileFailed, pushFailed bool) string {
	switch {
	case reconcileFailed && pushFailed:
		return CycleStatusFailed
	case reconcileFailed || pushFailed:
		return CycleStatusPartial
	default:
		return CycleStatusSuccess
	}
}
