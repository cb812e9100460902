package sources

import (
	"context"
	"fmt"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/benmeehan/collar-sync/pkg/location"
	"github.com/rs/zerolog"
)

// NMEASource turns fixes relayed by a serial gateway into observations.
type NMEASource struct {
	provider location.Provider
	logger   zerolog.Logger
}

// NewNMEASource wraps provider.
func NewNMEASource(provider location.Provider, logger zerolog.Logger) *NMEASource {
	return &NMEASource{
		provider: provider,
		logger:   logger,
	}
}

// Fetch reads the fixes available on the link.
func (s *NMEASource) Fetch(ctx context.Context) ([]models.Observation, error) {
	fixes, err := s.provider.ReadFixes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read NMEA fixes: %w", err)
	}

	observations := make([]models.Observation, 0, len(fixes))
	for _, fix := range fixes {
		observations = append(observations, models.NewObservation(fix.DeviceID, fix.Latitude, fix.Longitude, fix.Timestamp))
	}
	return observations, nil
}

// Close releases the underlying link.
func (s *NMEASource) Close() error {
	return s.provider.Close()
}
