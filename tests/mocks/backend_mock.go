package mocks

import (
	"context"

	"github.com/benmeehan/field-agent/pkg/backend"
	"github.com/stretchr/testify/mock"
)

// MockBackendClient is a mock implementation of the backend.ClientInterface
type MockBackendClient struct {
	mock.Mock
}

func (m *MockBackendClient) Login(ctx context.Context, code string) (backend.LoginResult, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(backend.LoginResult), args.Error(1)
}

func (m *MockBackendClient) Punch(ctx context.Context, punch backend.AttendancePunch) error {
	args := m.Called(ctx, punch)
	return args.Error(0)
}

func (m *MockBackendClient) Deliveries(ctx context.Context, userID string) ([]map[string]any, error) {
	args := m.Called(ctx, userID)
	records, _ := args.Get(0).([]map[string]any)
	return records, args.Error(1)
}

func (m *MockBackendClient) CancelDelivery(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockBackendClient) SignDelivery(ctx context.Context, req backend.DeliverySignature) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockBackendClient) SignCoordinate(ctx context.Context, req backend.SignCoordinate) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockBackendClient) ReportLocation(ctx context.Context, req backend.LocationReport) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}
