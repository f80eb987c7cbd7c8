package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/panjo/njtree/internal/repository"
)

// MockRunRepository is a mock implementation of the repository.RunRepository interface.
type MockRunRepository struct {
	mock.Mock
}

// Save mocks the Save method.
func (m *MockRunRepository) Save(ctx context.Context, run *repository.RunRecord) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// GetByUUID mocks the GetByUUID method.
func (m *MockRunRepository) GetByUUID(ctx context.Context, uuid string) (*repository.RunRecord, error) {
	args := m.Called(ctx, uuid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.RunRecord), args.Error(1)
}

// ListRecent mocks the ListRecent method.
func (m *MockRunRepository) ListRecent(ctx context.Context, limit int) ([]*repository.RunRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.RunRecord), args.Error(1)
}

// ExpectSave sets up an expectation for Save.
func (m *MockRunRepository) ExpectSave(err error) *mock.Call {
	return m.On("Save", mock.Anything, mock.Anything).Return(err)
}

// ExpectGetByUUID sets up an expectation for GetByUUID.
func (m *MockRunRepository) ExpectGetByUUID(uuid string, run *repository.RunRecord, err error) *mock.Call {
	return m.On("GetByUUID", mock.Anything, uuid).Return(run, err)
}
