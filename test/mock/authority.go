// test/mock/authority.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockAuthority is a mock implementation of authority.Checker
type MockAuthority struct {
	mock.Mock
}

func (m *MockAuthority) CheckPermission(ctx context.Context, identityID string, code string) (bool, error) {
	args := m.Called(ctx, identityID, code)
	return args.Bool(0), args.Error(1)
}
