// audit/service.go
package audit

import (
	"context"
	"time"
)

// Service writes and queries the durable audit trail. WriteRecord returns
// the stored record's identifier; a caller that requires the trail (the
// emergency workflow does) must treat a write failure as a hard rejection.
type Service interface {
	WriteRecord(ctx context.Context, record Record) (string, error)
	QueryRecords(ctx context.Context, from, to time.Time, actorID, resourceID string) ([]Record, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) WriteRecord(ctx context.Context, record Record) (string, error) {
	return s.repo.WriteRecord(ctx, record)
}

func (s *service) QueryRecords(ctx context.Context, from, to time.Time, actorID, resourceID string) ([]Record, error) {
	return s.repo.QueryRecords(ctx, from, to, actorID, resourceID)
}
