package service

import (
	"context"

	"github.com/xela07ax/trustgate/internal/domain"
	"go.uber.org/zap"
)

// ReviewProcessor — то, что консоли нужно от ReviewCore.
type ReviewProcessor interface {
	ProcessReview(ctx context.Context, req domain.ReviewRequest) (*domain.ReviewResult, error)
	RunReview(ctx context.Context, subject domain.Subject) (*domain.ReviewResult, error)
}

type ReviewService struct {
	core   ReviewProcessor
	logger *zap.Logger
}

func NewReviewService(core ReviewProcessor, logger *zap.Logger) *ReviewService {
	return &ReviewService{core: core, logger: logger.Named("review-service")}
}

// Submit прогоняет результаты экспертов через шлюз. submittedBy попадает только в лог.
func (s *ReviewService) Submit(ctx context.Context, req domain.ReviewRequest, submittedBy string) (*domain.ReviewResult, error) {
	res, err := s.core.ProcessReview(ctx, req)
	if err != nil {
		s.logger.Info("review request rejected",
			zap.String("submitted_by", submittedBy),
			zap.Error(err))
		return nil, err
	}

	s.logger.Debug("review processed",
		zap.String("review_id", res.ReviewID),
		zap.String("submitted_by", submittedBy),
		zap.String("recommendation", string(res.Recommendation)))
	return res, nil
}

// Run опрашивает зарегистрированных экспертов по Subject и прогоняет их ответы через шлюз.
func (s *ReviewService) Run(ctx context.Context, subject domain.Subject, submittedBy string) (*domain.ReviewResult, error) {
	res, err := s.core.RunReview(ctx, subject)
	if err != nil {
		s.logger.Warn("review run failed",
			zap.String("repository", subject.Repository),
			zap.String("submitted_by", submittedBy),
			zap.Error(err))
		return nil, err
	}
	return res, nil
}
