package mocks

import (
	"context"

	"arkstore/internal/gateway"
	"arkstore/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, data []byte, tagList []model.Tag) (gateway.Receipt, error) {
	args := m.Called(ctx, data, tagList)
	if f, ok := args.Get(0).(func(context.Context, []byte, []model.Tag) gateway.Receipt); ok {
		return f(ctx, data, tagList), args.Error(1)
	}
	return args.Get(0).(gateway.Receipt), args.Error(1)
}
