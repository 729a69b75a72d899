package mocks

import (
	"context"

	"arkstore/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) Upload(ctx context.Context, req service.Request) (*service.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Result), args.Error(1)
}

type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) CreateTokenAssets(ctx context.Context, params service.TokenParams, identity, sourceAddr string) (*service.TokenAssetResult, error) {
	args := m.Called(ctx, params, identity, sourceAddr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TokenAssetResult), args.Error(1)
}
