package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/collar-sync/internal/constants"
	metrics_collectors "github.com/benmeehan/collar-sync/internal/metrics_collectors"
	"github.com/benmeehan/collar-sync/internal/mocks"
	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/benmeehan/collar-sync/internal/services"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	stats models.CycleStats
	state string
}

func (p staticProvider) Stats() models.CycleStats { return p.stats }
func (p staticProvider) State() string            { return p.state }

func decodeHeartbeat(t *testing.T, payload interface{}) models.Heartbeat {
	t.Helper()
	var heartbeat models.Heartbeat
	require.NoError(t, json.Unmarshal(payload.([]byte), &heartbeat))
	return heartbeat
}

func TestStatusService_PeriodicHeartbeat(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	published := make(chan interface{}, 4)
	mqttClient := new(mocks.MockMQTTClient)
	mqttClient.On("Publish", "collarsync/status", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) { published <- args.Get(3) }).
		Return(mocks.NewCompletedToken(nil))

	provider := staticProvider{stats: models.CycleStats{Cycles: 3, Complete: 3}, state: constants.StateWaiting}
	metrics := metrics_collectors.NewHostMetricsRegistry(models.HostMetricsConfig{MonitorGoroutines: true}, zerolog.Nop())
	svc := services.NewStatusService("collarsync/status", time.Minute, 1, "node-1", mqttClient, provider, metrics, mClock, zerolog.Nop())

	require.NoError(t, svc.Start())
	assert.Error(t, svc.Start())

	mClock.Advance(time.Minute).MustWait(ctx)

	heartbeat := decodeHeartbeat(t, <-published)
	assert.Equal(t, "node-1", heartbeat.NodeID)
	assert.Equal(t, constants.HeartbeatStatusAlive, heartbeat.Status)
	assert.Equal(t, constants.StateWaiting, heartbeat.State)
	assert.Equal(t, 3, heartbeat.Stats.Cycles)
	assert.Nil(t, heartbeat.Report)
	require.Contains(t, heartbeat.Host, "goroutines")

	require.NoError(t, svc.Stop())
	assert.Error(t, svc.Stop())
}

func TestStatusService_OnCyclePublishesReport(t *testing.T) {
	var payload interface{}
	mqttClient := new(mocks.MockMQTTClient)
	mqttClient.On("Publish", "status", byte(0), false, mock.Anything).
		Run(func(args mock.Arguments) { payload = args.Get(3) }).
		Return(mocks.NewCompletedToken(nil)).Once()

	svc := services.NewStatusService("status", time.Minute, 0, "node-1", mqttClient, nil, nil, quartz.NewMock(t), zerolog.Nop())
	svc.OnCycle(models.CycleReport{Cycle: 9, Status: constants.CycleStatusFailed}, models.CycleStats{Cycles: 9, Failed: 1})

	heartbeat := decodeHeartbeat(t, payload)
	require.NotNil(t, heartbeat.Report)
	assert.Equal(t, 9, heartbeat.Report.Cycle)
	assert.Equal(t, 1, heartbeat.Stats.Failed)
	assert.Nil(t, heartbeat.Host)
	mqttClient.AssertExpectations(t)
}

func TestStatusService_PublishFailureIsLogged(t *testing.T) {
	mqttClient := new(mocks.MockMQTTClient)
	mqttClient.On("Publish", "status", byte(0), false, mock.Anything).Return(mocks.NewCompletedToken(errors.New("not connected")))

	svc := services.NewStatusService("status", time.Minute, 0, "node-1", mqttClient, nil, nil, quartz.NewMock(t), zerolog.Nop())
	assert.NotPanics(t, func() {
		svc.OnCycle(models.CycleReport{Cycle: 1}, models.CycleStats{Cycles: 1})
	})
	mqttClient.AssertNumberOfCalls(t, "Publish", 1)
}
