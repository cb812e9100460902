package mocks

import (
	"context"

	"github.com/benmeehan/collar-sync/pkg/location"
	"github.com/stretchr/testify/mock"
)

// MockLocationProvider is a mock implementation of the location Provider interface
type MockLocationProvider struct {
	mock.Mock
}

func (m *MockLocationProvider) ReadFixes(ctx context.Context) ([]location.Fix, error) {
	args := m.Called(ctx)
	fixes, _ := args.Get(0).([]location.Fix)
	return fixes, args.Error(1)
}

func (m *MockLocationProvider) Close() error {
	args := m.Called()
	return args.Error(0)
}
