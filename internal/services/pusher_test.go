package services_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/benmeehan/collar-sync/internal/mocks"
	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/benmeehan/collar-sync/internal/services"
	"github.com/benmeehan/collar-sync/pkg/collar"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func forDevice(id string) interface{} {
	return mock.MatchedBy(func(u collar.LocationUpdate) bool { return u.SerialNumber == id })
}

func TestPusher_PartialFailuresDoNotAbort(t *testing.T) {
	client := new(mocks.MockCollarClient)
	client.On("UpdateLocation", mock.Anything, forDevice("a")).Return(collar.Result{StatusCode: http.StatusOK}, nil)
	client.On("UpdateLocation", mock.Anything, forDevice("b")).Return(collar.Result{StatusCode: http.StatusInternalServerError, Body: []byte("oops")}, nil)
	client.On("UpdateLocation", mock.Anything, forDevice("c")).Return(collar.Result{}, errors.New("connection refused"))
	client.On("UpdateLocation", mock.Anything, forDevice("d")).Return(collar.Result{StatusCode: http.StatusCreated}, nil)
	client.On("UpdateLocation", mock.Anything, forDevice("e")).Return(collar.Result{StatusCode: http.StatusNoContent}, nil)

	latest := map[string]models.Position{}
	for _, id := range []string{"e", "d", "c", "b", "a"} {
		latest[id] = models.Position{DeviceID: id, Latitude: 1, Longitude: 2}
	}

	pusher := services.NewPusher(client, time.Second, zerolog.Nop())
	summary := pusher.PushAll(context.Background(), latest)

	assert.Equal(t, 5, summary.TotalDevices)
	assert.Equal(t, 3, summary.Sent)
	assert.Equal(t, 2, summary.ErrorCount)
	require.Len(t, summary.ErrorMessages, 2)
	assert.Equal(t, "device b: HTTP 500: oops", summary.ErrorMessages[0])
	assert.Contains(t, summary.ErrorMessages[1], "connection refused")
	client.AssertNumberOfCalls(t, "UpdateLocation", 5)
}

func TestPusher_SendsPositionBody(t *testing.T) {
	client := new(mocks.MockCollarClient)
	client.On("UpdateLocation", mock.Anything, collar.LocationUpdate{SerialNumber: "d1", LastLatitude: 3, LastLongitude: 4}).
		Return(collar.Result{StatusCode: http.StatusOK}, nil)

	pusher := services.NewPusher(client, 0, zerolog.Nop())
	summary := pusher.PushAll(context.Background(), map[string]models.Position{
		"d1": {DeviceID: "d1", Latitude: 3, Longitude: 4},
	})

	assert.Equal(t, 1, summary.Sent)
	client.AssertExpectations(t)
}

func TestPusher_PerCallTimeout(t *testing.T) {
	client := new(mocks.MockCollarClient)
	client.On("UpdateLocation", mock.Anything, mock.Anything).
		Return(collar.Result{}, context.DeadlineExceeded).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(10*time.Second), deadline, 2*time.Second)
		})

	pusher := services.NewPusher(client, 10*time.Second, zerolog.Nop())
	summary := pusher.PushAll(context.Background(), map[string]models.Position{
		"slow":  {DeviceID: "slow"},
		"slow2": {DeviceID: "slow2"},
	})

	assert.Equal(t, 0, summary.Sent)
	assert.Equal(t, 2, summary.ErrorCount)
	client.AssertNumberOfCalls(t, "UpdateLocation", 2)
}
