package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStorage testify mock，供服务层测试使用
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Upload(ctx context.Context, file File) (UploadedFile, error) {
	args := m.Called(ctx, file)
	return args.Get(0).(UploadedFile), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}
