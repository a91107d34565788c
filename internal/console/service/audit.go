package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/trustgate/internal/audit"
)

// AuditLogProvider описывает контракт для чтения журнала ревью.
type AuditLogProvider interface {
	FetchReviewEvents(ctx context.Context, f audit.Filter) ([]audit.ReviewEvent, error)
}

type AuditService struct {
	repo AuditLogProvider
}

func NewAuditService(repo AuditLogProvider) *AuditService {
	return &AuditService{repo: repo}
}

// FetchLogs запрашивает журнал с фильтрацией; сами фильтры собирает репозиторий.
func (s *AuditService) FetchLogs(ctx context.Context, f audit.Filter) ([]audit.ReviewEvent, error) {
	logs, err := s.repo.FetchReviewEvents(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("audit_service: failed to fetch logs: %w", err)
	}
	return logs, nil
}
