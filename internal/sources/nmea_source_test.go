package sources_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/collar-sync/internal/mocks"
	"github.com/benmeehan/collar-sync/internal/sources"
	"github.com/benmeehan/collar-sync/pkg/location"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNMEASource_Fetch(t *testing.T) {
	observedAt := time.Date(2024, 6, 13, 22, 5, 16, 0, time.UTC)
	provider := new(mocks.MockLocationProvider)
	provider.On("ReadFixes", mock.Anything).Return([]location.Fix{
		{DeviceID: "c1", Latitude: 51.5, Longitude: -0.7, Timestamp: observedAt},
	}, nil).Once()
	provider.On("ReadFixes", mock.Anything).Return(nil, errors.New("port gone")).Once()
	provider.On("Close").Return(nil)

	source := sources.NewNMEASource(provider, zerolog.Nop())

	observations, err := source.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, observations, 1)
	position, err := observations[0].Validate()
	require.NoError(t, err)
	assert.Equal(t, "c1", position.DeviceID)
	assert.True(t, observedAt.Equal(position.ObservedAt))

	_, err = source.Fetch(context.Background())
	assert.ErrorContains(t, err, "port gone")

	assert.NoError(t, source.Close())
	provider.AssertExpectations(t)
}
