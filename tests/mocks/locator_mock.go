package mocks

import (
	"context"

	"github.com/benmeehan/field-agent/pkg/location"
	"github.com/stretchr/testify/mock"
)

// MockLocator is a mock implementation of the services.LocationSource interface
type MockLocator struct {
	mock.Mock
}

func (m *MockLocator) Locate(ctx context.Context, req location.Request) (location.Position, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(location.Position), args.Error(1)
}

func (m *MockLocator) Cached() (location.Position, bool) {
	args := m.Called()
	return args.Get(0).(location.Position), args.Bool(1)
}

func (m *MockLocator) Reset() {
	m.Called()
}
