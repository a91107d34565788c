package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/trustgate/internal/domain"
	"github.com/xela07ax/trustgate/internal/infra"
	"go.uber.org/zap"
)

// Publisher — подмножество *redis.Client для сигналов.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// ApprovalRepository описывает требования к хранилищу заявок HITL
type ApprovalRepository interface {
	GetApprovalByID(ctx context.Context, id string) (*domain.ApprovalRequest, error)
	FindApprovals(ctx context.Context, status domain.ApprovalStatus) ([]*domain.ApprovalRequest, error)
	UpdateApprovalStatus(ctx context.Context, id string, status domain.ApprovalStatus, reviewerID, comment string) (string, error)
}

type ApprovalService struct {
	repo   ApprovalRepository
	bus    Publisher
	logger *zap.Logger
}

func NewApprovalService(repo ApprovalRepository, bus Publisher, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{
		repo:   repo,
		bus:    bus,
		logger: logger.Named("approval-service"),
	}
}

// DecideApproval фиксирует решение оператора по отложенному ревью.
// reviewerID передается для подотчетности (Accountability).
func (s *ApprovalService) DecideApproval(ctx context.Context, approvalID string, approved bool, reviewerID, comment string) error {
	// 1. Определяем финальный статус на основе решения
	status := domain.StatusRejected
	if approved {
		status = domain.StatusApproved
	}

	// 2. Атомарно обновляем БД; повторное решение вернет ErrAlreadyProcessed
	reviewID, err := s.repo.UpdateApprovalStatus(ctx, approvalID, status, reviewerID, comment)
	if err != nil {
		s.logger.Warn("approval decision not persisted",
			zap.String("approval_id", approvalID),
			zap.String("reviewer_id", reviewerID),
			zap.Error(err))
		return err
	}

	// 3. Сигнал всем, кто ждет решения по этому ревью: trustgate:approvals:review:{reviewID}
	chanName := infra.ApprovalDecisionChannel(reviewID)
	if err := s.bus.Publish(ctx, chanName, string(status)).Err(); err != nil {
		// Решение уже в БД и остается источником правды
		s.logger.Error("decision saved but signal not delivered",
			zap.String("review_id", reviewID),
			zap.String("channel", chanName),
			zap.Error(err))
		return nil
	}

	s.logger.Info("HITL decision processed",
		zap.String("review_id", reviewID),
		zap.String("reviewer", reviewerID),
		zap.String("result", string(status)))
	return nil
}

func (s *ApprovalService) GetApproval(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	return s.repo.GetApprovalByID(ctx, id)
}

// GetApprovals: статус без учета регистра, пустой — все заявки.
func (s *ApprovalService) GetApprovals(ctx context.Context, status string) ([]*domain.ApprovalRequest, error) {
	st, err := domain.ParseApprovalStatus(strings.ToUpper(strings.TrimSpace(status)))
	if err != nil {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, status)
	}
	list, err := s.repo.FindApprovals(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("approval_service: %w", err)
	}
	if list == nil {
		return []*domain.ApprovalRequest{}, nil
	}
	return list, nil
}
