package services

import (
	"github.com/stretchr/testify/mock"
)

// MockSessionCounter is a mock for the SessionCounter interface
type MockSessionCounter struct {
	mock.Mock
}

func (m *MockSessionCounter) Len() int {
	args := m.Called()
	return args.Int(0)
}
