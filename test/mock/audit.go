// test/mock/audit.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/clinicore/authcore/audit"
)

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) WriteRecord(ctx context.Context, record audit.Record) (string, error) {
	args := m.Called(ctx, record)
	return args.String(0), args.Error(1)
}

func (m *MockAuditService) QueryRecords(ctx context.Context, from, to time.Time, actorID, resourceID string) ([]audit.Record, error) {
	args := m.Called(ctx, from, to, actorID, resourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]audit.Record), args.Error(1)
}
