package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/benmeehan/collar-sync/internal/utils"
	"github.com/benmeehan/collar-sync/pkg/collar"
	http_utils "github.com/benmeehan/collar-sync/pkg/httpUtils"
	"github.com/rs/zerolog"
)

var successStatuses = utils.SliceToSet([]int{http.StatusOK, http.StatusCreated, http.StatusNoContent})

// Pusher sends latest positions to the collar-control API.
type Pusher struct {
	client  collar.ClientInterface
	timeout time.Duration
	logger  zerolog.Logger
}

// NewPusher creates a Pusher. timeout bounds each call; zero disables the bound.
func NewPusher(client collar.ClientInterface, timeout time.Duration, logger zerolog.Logger) *Pusher {
	return &Pusher{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// PushAll sends one update per device, in device id order. Failed devices are
// recorded and skipped; nothing is retried.
func (p *Pusher) PushAll(ctx context.Context, latest map[string]models.Position) models.PushSummary {
	summary := models.PushSummary{
		TotalDevices:  len(latest),
		ErrorMessages: []string{},
	}

	for _, position := range SortedLatest(latest) {
		if err := p.push(ctx, position); err != nil {
			summary.AddError(fmt.Sprintf("device %s: %v", position.DeviceID, err))
			p.logger.Warn().Err(err).Str("device_id", position.DeviceID).Msg("Failed to push position to collar API")
			continue
		}
		summary.Sent++
	}

	p.logger.Info().
		Int("devices", summary.TotalDevices).
		Int("sent", summary.Sent).
		Int("errors", summary.ErrorCount).
		Msg("Pushed latest positions")
	return summary
}

func (p *Pusher) push(ctx context.Context, position models.Position) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	result, err := p.client.UpdateLocation(ctx, collar.LocationUpdate{
		SerialNumber:  position.DeviceID,
		LastLatitude:  position.Latitude,
		LastLongitude: position.Longitude,
	})
	if err != nil {
		return err
	}
	if _, ok := successStatuses[result.StatusCode]; !ok {
		return fmt.Errorf("HTTP %d: %s", result.StatusCode, http_utils.Snippet(result.Body))
	}

	p.logger.Debug().Str("device_id", position.DeviceID).Int("status", result.StatusCode).Msg("Position pushed")
	return nil
}
