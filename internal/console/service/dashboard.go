package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/trustgate/internal/domain"
)

type StatsProvider interface {
	GetReviewStats(ctx context.Context) (*domain.ReviewStats, error)
}

type DashboardService struct {
	repo StatsProvider
}

func NewDashboardService(repo StatsProvider) *DashboardService {
	return &DashboardService{repo: repo}
}

func (s *DashboardService) GetStats(ctx context.Context) (*domain.ReviewStats, error) {
	stats, err := s.repo.GetReviewStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard_service: %w", err)
	}
	return stats, nil
}
