package mocks

import (
	"context"

	"github.com/benmeehan/field-agent/internal/models"
	"github.com/benmeehan/field-agent/pkg/session"
	"github.com/stretchr/testify/mock"
)

// MockAttendance is a mock implementation of the web.Attendance interface
type MockAttendance struct {
	mock.Mock
}

func (m *MockAttendance) Login(ctx context.Context, code string) (session.User, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(session.User), args.Error(1)
}

func (m *MockAttendance) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAttendance) Current() (session.User, bool) {
	args := m.Called()
	return args.Get(0).(session.User), args.Bool(1)
}

// MockDeliveries is a mock implementation of the web.Deliveries interface
type MockDeliveries struct {
	mock.Mock
}

func (m *MockDeliveries) List(ctx context.Context) ([]models.Delivery, error) {
	args := m.Called(ctx)
	deliveries, _ := args.Get(0).([]models.Delivery)
	return deliveries, args.Error(1)
}

func (m *MockDeliveries) Cancel(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDeliveries) Sign(ctx context.Context, proof models.DeliveryProof) error {
	args := m.Called(ctx, proof)
	return args.Error(0)
}
