package push

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockProvider testify mock，供服务层测试使用
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Send(ctx context.Context, endpoint string, msg Message) error {
	args := m.Called(ctx, endpoint, msg)
	return args.Error(0)
}
