package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/collar-sync/internal/constants"
	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/benmeehan/collar-sync/internal/sources"
	"github.com/benmeehan/collar-sync/internal/storage"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"
)

// ErrCycleInProgress is returned when a cycle or manual phase is requested
// while another one is running.
var ErrCycleInProgress = errors.New("sync cycle already in progress")

// CycleObserver is notified after every completed cycle.
type CycleObserver interface {
	OnCycle(report models.CycleReport, stats models.CycleStats)
}

// SyncService runs the reconcile-then-push cycle on a fixed interval.
type SyncService struct {
	source     sources.Source
	store      storage.PositionStore
	reconciler *Reconciler
	pusher     *Pusher
	interval   time.Duration
	phaseDelay time.Duration
	clock      quartz.Clock
	logger     zerolog.Logger
	observers  []CycleObserver

	// cycleMu is held for the whole of a cycle or manual phase.
	cycleMu sync.Mutex

	mu         sync.Mutex
	stats      models.CycleStats
	state      string
	lastReport *models.CycleReport

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncService wires the orchestrator. interval is measured from the start of
// one cycle to the start of the next.
func NewSyncService(source sources.Source, store storage.PositionStore, reconciler *Reconciler, pusher *Pusher,
	interval, phaseDelay time.Duration, clock quartz.Clock, logger zerolog.Logger, observers ...CycleObserver) *SyncService {

	return &SyncService{
		source:     source,
		store:      store,
		reconciler: reconciler,
		pusher:     pusher,
		interval:   interval,
		phaseDelay: phaseDelay,
		clock:      clock,
		logger:     logger,
		observers:  observers,
		state:      constants.StateIdle,
	}
}

// AddObserver registers an observer. It must be called before Start.
func (s *SyncService) AddObserver(observer CycleObserver) {
	s.observers = append(s.observers, observer)
}

// Start launches the cycle loop in a separate goroutine.
func (s *SyncService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		s.logger.Warn().Msg("SyncService is already running")
		return errors.New("sync service is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	ctx := s.ctx

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx, 0)
	}()

	s.logger.Info().Dur("interval", s.interval).Dur("phase_delay", s.phaseDelay).Msg("SyncService started successfully")
	return nil
}

// Stop signals the loop and waits for the in-flight cycle to finish.
func (s *SyncService) Stop() error {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		s.logger.Warn().Msg("SyncService is not running")
		return errors.New("sync service is not running")
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	stats := s.stats
	s.mu.Unlock()

	s.logger.Info().
		Int("cycles", stats.Cycles).
		Int("complete", stats.Complete).
		Int("partial", stats.Partial).
		Int("failed", stats.Failed).
		Msg("SyncService stopped successfully")
	return nil
}

// Run executes cycles until ctx is cancelled or, when maxCycles is positive,
// until that many cycles have been attempted. Cancellation is only observed
// between cycles.
func (s *SyncService) Run(ctx context.Context, maxCycles int) models.CycleStats {
	for attempt := 1; maxCycles <= 0 || attempt <= maxCycles; attempt++ {
		if ctx.Err() != nil {
			break
		}

		started := s.clock.Now()
		s.runScheduled(ctx)

		if maxCycles > 0 && attempt == maxCycles {
			break
		}
		if !s.sleep(ctx, s.interval-s.clock.Since(started)) {
			break
		}
	}
	return s.Stats()
}

// RunCycle runs one full cycle. The returned error is only ever
// ErrCycleInProgress; phase failures are reported through the CycleReport.
func (s *SyncService) RunCycle(ctx context.Context) (models.CycleReport, error) {
	if !s.cycleMu.TryLock() {
		return models.CycleReport{}, ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()

	report := s.executeCycle(context.WithoutCancel(ctx))
	stats := s.record(report)

	event := s.logger.Info()
	if report.Status != constants.CycleStatusSuccess {
		event = s.logger.Warn()
	}
	event.Int("cycle", report.Cycle).
		Str("status", report.Status).
		Dur("duration", report.Duration()).
		Int("total_cycles", stats.Cycles).
		Msg("Sync cycle finished")

	for _, observer := range s.observers {
		s.notify(observer, report, stats)
	}
	return report, nil
}

// runScheduled runs one loop iteration. A panic that escapes the cycle is
// counted as a failed cycle unless the cycle was already recorded.
func (s *SyncService) runScheduled(ctx context.Context) {
	before := s.Stats().Cycles
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s.logger.Error().Interface("panic", r).Msg("Sync cycle panicked")
		s.setState(constants.StateIdle)
		if s.Stats().Cycles != before {
			return
		}
		now := s.clock.Now()
		s.record(models.CycleReport{
			Cycle:      before + 1,
			StartedAt:  now,
			FinishedAt: now,
			Status:     constants.CycleStatusFailed,
			CycleError: fmt.Sprintf("panic: %v", r),
		})
	}()

	if _, err := s.RunCycle(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Skipping scheduled cycle")
	}
}

func (s *SyncService) notify(observer CycleObserver, report models.CycleReport, stats models.CycleStats) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Int("cycle", report.Cycle).Interface("panic", r).Msg("Cycle observer panicked")
		}
	}()
	observer.OnCycle(report, stats)
}

// SyncExternal runs only the reconcile phase.
func (s *SyncService) SyncExternal(ctx context.Context) (models.SyncSummary, error) {
	if !s.cycleMu.TryLock() {
		return models.SyncSummary{}, ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()

	return s.reconcilePhase(ctx)
}

// SyncToCollar runs only the push phase.
func (s *SyncService) SyncToCollar(ctx context.Context) (models.PushSummary, error) {
	if !s.cycleMu.TryLock() {
		return models.PushSummary{}, ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()

	return s.pushPhase(ctx)
}

// LatestPositions reduces the current store contents.
func (s *SyncService) LatestPositions(ctx context.Context) ([]models.Position, error) {
	records, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return SortedLatest(ReduceToLatest(records)), nil
}

// Stats returns the counters accumulated so far.
func (s *SyncService) Stats() models.CycleStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// State returns the orchestrator's current state.
func (s *SyncService) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastReport returns the most recent cycle report, if any.
func (s *SyncService) LastReport() *models.CycleReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReport == nil {
		return nil
	}
	report := *s.lastReport
	return &report
}

// RestoreStats seeds the counters, typically from a persisted state file.
func (s *SyncService) RestoreStats(state models.CycleState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = state.Stats
	s.lastReport = state.LastReport
}

func (s *SyncService) executeCycle(ctx context.Context) (report models.CycleReport) {
	report.Cycle = s.Stats().Cycles + 1
	report.StartedAt = s.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			report.Status = constants.CycleStatusFailed
			report.CycleError = fmt.Sprintf("panic: %v", r)
			report.FinishedAt = s.clock.Now()
			s.logger.Error().Int("cycle", report.Cycle).Interface("panic", r).Msg("Sync cycle panicked")
		}
		s.setState(constants.StateIdle)
	}()

	s.setState(constants.StateReconciling)
	summary, err := s.reconcilePhase(ctx)
	reconcileFailed := err != nil
	if reconcileFailed {
		report.ReconcileError = err.Error()
	} else {
		report.Reconcile = &summary
	}

	s.setState(constants.StateWaiting)
	s.wait(s.phaseDelay)

	s.setState(constants.StatePushing)
	push, err := s.pushPhase(ctx)
	pushFailed := err != nil
	if pushFailed {
		report.PushError = err.Error()
	} else {
		report.Push = &push
	}

	report.Status = constants.CycleStatus(reconcileFailed, pushFailed)
	report.FinishedAt = s.clock.Now()
	return report
}

func (s *SyncService) reconcilePhase(ctx context.Context) (models.SyncSummary, error) {
	observations, err := s.source.Fetch(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Reconcile phase failed: could not fetch external observations")
		return models.SyncSummary{}, fmt.Errorf("fetch external observations: %w", err)
	}
	return s.reconciler.Reconcile(ctx, observations), nil
}

func (s *SyncService) pushPhase(ctx context.Context) (models.PushSummary, error) {
	records, err := s.store.FindAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Push phase failed: could not read position store")
		return models.PushSummary{}, fmt.Errorf("read position store: %w", err)
	}
	return s.pusher.PushAll(ctx, ReduceToLatest(records)), nil
}

func (s *SyncService) record(report models.CycleReport) models.CycleStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Cycles++
	switch report.Status {
	case constants.CycleStatusSuccess:
		s.stats.Complete++
	case constants.CycleStatusPartial:
		s.stats.Partial++
	default:
		s.stats.Failed++
	}
	s.stats.LastStatus = report.Status
	s.stats.LastCycleAt = report.FinishedAt
	s.lastReport = &report
	return s.stats
}

func (s *SyncService) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// wait blocks for the inter-phase delay. It cannot be interrupted.
func (s *SyncService) wait(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := s.clock.NewTimer(d, "sync", "phase_delay")
	<-timer.C
}

// sleep blocks until d has passed or ctx is done, reporting whether the loop
// should continue.
func (s *SyncService) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := s.clock.NewTimer(d, "sync", "interval")
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
