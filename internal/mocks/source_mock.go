package mocks

import (
	"context"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockSource is a mock implementation of the Source interface
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Fetch(ctx context.Context) ([]models.Observation, error) {
	args := m.Called(ctx)
	observations, _ := args.Get(0).([]models.Observation)
	return observations, args.Error(1)
}
