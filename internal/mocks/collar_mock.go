package mocks

import (
	"context"

	"github.com/benmeehan/collar-sync/pkg/collar"
	"github.com/stretchr/testify/mock"
)

// MockCollarClient is a mock implementation of the collar ClientInterface
type MockCollarClient struct {
	mock.Mock
}

func (m *MockCollarClient) UpdateLocation(ctx context.Context, update collar.LocationUpdate) (collar.Result, error) {
	args := m.Called(ctx, update)
	return args.Get(0).(collar.Result), args.Error(1)
}
