package mocks

import (
	"context"
	"time"

	"arkstore/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) UpsertIdentity(ctx context.Context, identity string) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockLedger) RecordUpload(ctx context.Context, up *model.Upload) error {
	args := m.Called(ctx, up)
	return args.Error(0)
}

func (m *MockLedger) RecordTokenAsset(ctx context.Context, asset *model.TokenAsset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

func (m *MockLedger) GetUpload(ctx context.Context, txID string) (*model.Upload, error) {
	args := m.Called(ctx, txID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Upload), args.Error(1)
}

func (m *MockLedger) Dashboard(ctx context.Context, identity string, recent int) (*model.Dashboard, error) {
	args := m.Called(ctx, identity, recent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Dashboard), args.Error(1)
}

func (m *MockLedger) Admit(ctx context.Context, identity, sourceAddr string, since, ts time.Time, ceiling int) (int, bool, error) {
	args := m.Called(ctx, identity, sourceAddr, since, ts, ceiling)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockLedger) CountSince(ctx context.Context, identity string, since time.Time) (int, error) {
	args := m.Called(ctx, identity, since)
	return args.Int(0), args.Error(1)
}

func (m *MockLedger) PruneBefore(ctx context.Context, before time.Time) error {
	args := m.Called(ctx, before)
	return args.Error(0)
}
