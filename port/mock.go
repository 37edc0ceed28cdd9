package port

import (
	"github.com/stretchr/testify/mock"

	"github.com/fluidlab/go-nesp/nesp"
)

// MockPort is a testify mock implementation of nesp.Port.
type MockPort struct {
	mock.Mock
}

var _ nesp.Port = (*MockPort)(nil)

func NewMockPort() *MockPort {
	return &MockPort{}
}

func (m *MockPort) Send(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockPort) Receive(n int) ([]byte, error) {
	args := m.Called(n)
	if data := args.Get(0); data != nil {
		return data.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPort) Pending() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}
