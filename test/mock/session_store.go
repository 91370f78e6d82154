// test/mock/session_store.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/clinicore/authcore/model"
)

// MockSessionStore is a mock implementation of cache.SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) SaveEntries(ctx context.Context, entries []model.CacheEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockSessionStore) LoadEntries(ctx context.Context) ([]model.CacheEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CacheEntry), args.Error(1)
}

func (m *MockSessionStore) ClearEntries(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
