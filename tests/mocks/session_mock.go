package mocks

import (
	"github.com/benmeehan/field-agent/pkg/session"
	"github.com/stretchr/testify/mock"
)

// MockSession is a mock implementation of the session.SessionInterface
type MockSession struct {
	mock.Mock
}

func (m *MockSession) Current() (session.User, bool) {
	args := m.Called()
	return args.Get(0).(session.User), args.Bool(1)
}

func (m *MockSession) UserID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockSession) Save(user session.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockSession) Clear() error {
	args := m.Called()
	return args.Error(0)
}
