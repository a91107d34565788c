package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/trustgate/internal/domain"
	"github.com/xela07ax/trustgate/internal/infra"
	"go.uber.org/zap"
)

// SetBus — Pub/Sub плюс множество заблокированных экспертов.
type SetBus interface {
	Publisher
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// ExpertControlService — Kill-Switch экспертов для оператора.
type ExpertControlService struct {
	bus    SetBus
	logger *zap.Logger
}

func NewExpertControlService(bus SetBus, logger *zap.Logger) *ExpertControlService {
	return &ExpertControlService{bus: bus, logger: logger.Named("expert-control")}
}

func (s *ExpertControlService) Block(ctx context.Context, t domain.AgentType) error {
	return s.switchExpert(ctx, t, true)
}

func (s *ExpertControlService) Unblock(ctx context.Context, t domain.AgentType) error {
	return s.switchExpert(ctx, t, false)
}

// switchExpert: сначала множество в Redis (его перечитывают при реконнекте), потом сигнал.
func (s *ExpertControlService) switchExpert(ctx context.Context, t domain.AgentType, blocked bool) error {
	if strings.TrimSpace(string(t)) == "" || strings.Contains(string(t), ":") {
		return fmt.Errorf("%w: bad agent type %q", domain.ErrInvalidRequest, t)
	}

	var err error
	signal := "off"
	if blocked {
		signal = "on"
		err = s.bus.SAdd(ctx, infra.RedisKeyBlockedExperts, string(t)).Err()
	} else {
		err = s.bus.SRem(ctx, infra.RedisKeyBlockedExperts, string(t)).Err()
	}
	if err != nil {
		s.logger.Error("failed to update blocked set", zap.String("agent_type", string(t)), zap.Error(err))
		return fmt.Errorf("expert_control: %w", err)
	}

	payload := fmt.Sprintf("%s:%s", t, signal)
	if err := s.bus.Publish(ctx, infra.RedisChanExpertKillSwitch, payload).Err(); err != nil {
		s.logger.Warn("kill-switch signal not delivered",
			zap.String("channel", infra.RedisChanExpertKillSwitch),
			zap.Error(err))
	} else {
		s.logger.Info("expert state updated",
			zap.String("agent_type", string(t)),
			zap.Bool("blocked", blocked))
	}
	return nil
}

// Blocked читает множество из Redis, отсортированное для стабильного ответа.
func (s *ExpertControlService) Blocked(ctx context.Context) ([]string, error) {
	members, err := s.bus.SMembers(ctx, infra.RedisKeyBlockedExperts).Result()
	if err != nil {
		return nil, fmt.Errorf("expert_control: %w", err)
	}
	if members == nil {
		members = []string{}
	}
	sort.Strings(members)
	return members, nil
}
