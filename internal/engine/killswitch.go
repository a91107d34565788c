package engine

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/trustgate/internal/domain"
	"github.com/xela07ax/trustgate/internal/infra"
	"go.uber.org/zap"
)

// KillSwitchManager — L1 кэш отключенных оператором экспертов. Источник правды — Redis set.
type KillSwitchManager struct {
	mu      sync.RWMutex
	blocked map[domain.AgentType]struct{}
	rdb     *redis.Client
	logger  *zap.Logger
}

func NewKillSwitchManager(rdb *redis.Client, logger *zap.Logger) *KillSwitchManager {
	return &KillSwitchManager{
		blocked: make(map[domain.AgentType]struct{}),
		rdb:     rdb,
		logger:  logger.Named("kill-switch"),
	}
}

// Init загружает текущее состояние блокировок (при старте и после переподключения).
func (m *KillSwitchManager) Init(ctx context.Context) error {
	members, err := m.rdb.SMembers(ctx, infra.RedisKeyBlockedExperts).Result()
	if err != nil {
		return err
	}

	next := make(map[domain.AgentType]struct{}, len(members))
	for _, t := range members {
		next[domain.AgentType(t)] = struct{}{}
	}

	m.mu.Lock()
	m.blocked = next
	m.mu.Unlock()
	return nil
}

// StartListener блокируется до отмены ctx.
func (m *KillSwitchManager) StartListener(ctx context.Context) {
	m.logger.Info("kill-switch listener started", zap.String("chan", infra.RedisChanExpertKillSwitch))
	ListenSignalsResilient(ctx, m.rdb, m.logger, infra.RedisChanExpertKillSwitch,
		func() error { return m.Init(ctx) },
		m.processSignal,
	)
}

// processSignal разбирает "agent_type:on" / "agent_type:off".
func (m *KillSwitchManager) processSignal(payload string) {
	idx := strings.LastIndex(payload, ":")
	if idx <= 0 {
		m.logger.Error("invalid signal format", zap.String("payload", payload))
		return
	}

	t := domain.AgentType(payload[:idx])
	switch payload[idx+1:] {
	case "on", "true":
		m.SetBlocked(t, true)
	case "off", "false":
		m.SetBlocked(t, false)
	default:
		m.logger.Error("invalid signal value", zap.String("payload", payload))
		return
	}
	m.logger.Info("expert kill-switch updated", zap.String("payload", payload))
}

func (m *KillSwitchManager) SetBlocked(t domain.AgentType, blocked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if blocked {
		m.blocked[t] = struct{}{}
	} else {
		delete(m.blocked, t)
	}
}

func (m *KillSwitchManager) IsBlocked(t domain.AgentType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, blocked := m.blocked[t]
	return blocked
}

// Blocked возвращает отсортированный список отключенных экспертов.
func (m *KillSwitchManager) Blocked() []domain.AgentType {
	m.mu.RLock()
	res := make([]domain.AgentType, 0, len(m.blocked))
	for t := range m.blocked {
		res = append(res, t)
	}
	m.mu.RUnlock()
	slices.Sort(res)
	return res
}
