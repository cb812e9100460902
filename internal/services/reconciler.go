package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/benmeehan/collar-sync/internal/storage"
	"github.com/rs/zerolog"
)

// Reconciler applies external observations to the position store, creating a
// record for unknown devices and overwriting the current record otherwise.
type Reconciler struct {
	store  storage.PositionStore
	logger zerolog.Logger
}

// NewReconciler creates a Reconciler over store.
func NewReconciler(store storage.PositionStore, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger,
	}
}

// Reconcile processes observations one at a time in input order. A failing
// item is recorded in the summary and never stops the batch; items applied
// before it stay applied.
func (r *Reconciler) Reconcile(ctx context.Context, observations []models.Observation) models.SyncSummary {
	summary := models.SyncSummary{ErrorMessages: []string{}}

	for i, observation := range observations {
		summary.TotalProcessed++

		created, err := r.apply(ctx, observation)
		if err != nil {
			message := fmt.Sprintf("observation %d (%s): %v", i, label(observation), err)
			summary.AddError(message)
			r.logger.Warn().Err(err).Int("index", i).Str("device_id", observation.DeviceID()).Msg("Failed to reconcile observation")
			continue
		}
		if created {
			summary.Created++
		} else {
			summary.Updated++
		}
	}

	r.logger.Info().
		Int("total", summary.TotalProcessed).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("errors", summary.ErrorCount).
		Msg("Reconciled external observations")
	return summary
}

// apply reports whether a new record was created.
func (r *Reconciler) apply(ctx context.Context, observation models.Observation) (bool, error) {
	position, err := observation.Validate()
	if err != nil {
		return false, err
	}

	_, err = r.store.FindByDevice(ctx, position.DeviceID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if _, err := r.store.Insert(ctx, models.NewPositionRecord(position)); err != nil {
			return false, fmt.Errorf("insert failed: %w", err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("lookup failed: %w", err)
	}

	if _, err := r.store.UpdateByDevice(ctx, position.DeviceID, position.Update()); err != nil {
		return false, fmt.Errorf("update failed: %w", err)
	}
	return false, nil
}

func label(observation models.Observation) string {
	if id := observation.DeviceID(); id != "" {
		return id
	}
	return "unknown device"
}
