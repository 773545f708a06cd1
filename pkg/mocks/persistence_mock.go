package mocks

import (
	"context"

	"github.com/dukex/runnr/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockSlot is a mock implementation of persistence.Slot interface.
type MockSlot struct {
	mock.Mock
}

func (m *MockSlot) Load(ctx context.Context) (*models.Workflow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockSlot) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockSlot) Clear(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockSlot) Exists(ctx context.Context) (bool, error) {
	args := m.Called(ctx)

	return args.Bool(0), args.Error(1)
}

func (m *MockSlot) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockSlot) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
