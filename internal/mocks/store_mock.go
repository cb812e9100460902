package mocks

import (
	"context"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockPositionStore is a mock implementation of the PositionStore interface
type MockPositionStore struct {
	mock.Mock
}

func (m *MockPositionStore) Init(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPositionStore) Insert(ctx context.Context, record models.PositionRecord) (models.PositionRecord, error) {
	args := m.Called(ctx, record)
	return args.Get(0).(models.PositionRecord), args.Error(1)
}

func (m *MockPositionStore) FindAll(ctx context.Context) ([]models.PositionRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]models.PositionRecord)
	return records, args.Error(1)
}

func (m *MockPositionStore) FindByDevice(ctx context.Context, deviceID string) (models.PositionRecord, error) {
	args := m.Called(ctx, deviceID)
	return args.Get(0).(models.PositionRecord), args.Error(1)
}

func (m *MockPositionStore) UpdateByDevice(ctx context.Context, deviceID string, update models.PositionUpdate) (models.PositionRecord, error) {
	args := m.Called(ctx, deviceID, update)
	return args.Get(0).(models.PositionRecord), args.Error(1)
}

func (m *MockPositionStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
