package sources_test

import (
	"context"
	"testing"

	"github.com/benmeehan/collar-sync/internal/mocks"
	"github.com/benmeehan/collar-sync/internal/sources"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMQTTSource_BuffersAndDrains(t *testing.T) {
	mockClient := new(mocks.MockMQTTClient)
	var handler mqtt.MessageHandler
	mockClient.On("Subscribe", "collars/positions", byte(1), mock.Anything).
		Run(func(args mock.Arguments) { handler = args.Get(2).(mqtt.MessageHandler) }).
		Return(mocks.NewCompletedToken(nil))
	mockClient.On("Unsubscribe", []string{"collars/positions"}).Return(mocks.NewCompletedToken(nil))

	source := sources.NewMQTTSource("collars/positions", 1, mockClient, zerolog.Nop())
	require.NoError(t, source.Start())
	assert.Error(t, source.Start())
	require.NotNil(t, handler)

	handler(nil, mocks.NewMockMessage("collars/positions", []byte(`{"device_id":"b","latitude":1,"longitude":2,"timestamp":"2024-01-01T00:00:00Z"}`)))
	handler(nil, mocks.NewMockMessage("collars/positions", []byte(`{"device_id":"a","latitude":3,"longitude":4,"timestamp":"2024-01-01T00:00:00Z"}`)))
	handler(nil, mocks.NewMockMessage("collars/positions", []byte(`{"device_id":"b","latitude":5,"longitude":6,"timestamp":"2024-01-01T00:01:00Z"}`)))

	observations, err := source.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, observations, 3)
	assert.Equal(t, "a", observations[0].DeviceID())
	assert.Equal(t, "b", observations[1].DeviceID())

	second, err := observations[2].Validate()
	require.NoError(t, err)
	assert.Equal(t, 5.0, second.Latitude)

	observations, err = source.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, observations)

	require.NoError(t, source.Stop())
	_, err = source.Fetch(context.Background())
	assert.Error(t, err)
	mockClient.AssertExpectations(t)
}

func TestMQTTSource_FetchBeforeStart(t *testing.T) {
	source := sources.NewMQTTSource("collars/positions", 0, new(mocks.MockMQTTClient), zerolog.Nop())
	_, err := source.Fetch(context.Background())
	assert.Error(t, err)
	assert.Error(t, source.Stop())
}
