package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/trustgate/internal/domain"
	"github.com/xela07ax/trustgate/internal/infra"
	"go.uber.org/zap"
)

// ReliabilityHolder хранит текущий движок. Веса меняются только подменой движка целиком.
type ReliabilityHolder struct {
	mu      sync.RWMutex
	current *ReliabilityEngine
}

func NewReliabilityHolder(e *ReliabilityEngine) *ReliabilityHolder {
	return &ReliabilityHolder{current: e}
}

// Current возвращает движок, которым нужно пользоваться до конца одного ревью.
func (h *ReliabilityHolder) Current() *ReliabilityEngine {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

func (h *ReliabilityHolder) ReplaceWeights(weights map[domain.AgentType]float64) error {
	h.mu.Lock()
	next, err := h.current.WithWeights(weights)
	if err == nil {
		h.current = next
	}
	h.mu.Unlock()

	if err != nil {
		return err
	}
	next.logger.Info("reliability weights replaced", zap.Int("count", len(weights)))
	return nil
}

type WeightsRepository interface {
	GetAgentWeights(ctx context.Context) (map[domain.AgentType]float64, error)
}

// WeightsSync держит веса движка в актуальном состоянии: БД — источник правды, Redis — сигнал.
type WeightsSync struct {
	holder *ReliabilityHolder
	repo   WeightsRepository
	rdb    *redis.Client
	logger *zap.Logger
}

func NewWeightsSync(holder *ReliabilityHolder, repo WeightsRepository, rdb *redis.Client, logger *zap.Logger) *WeightsSync {
	return &WeightsSync{
		holder: holder,
		repo:   repo,
		rdb:    rdb,
		logger: logger.Named("weights-sync"),
	}
}

// Refresh перечитывает таблицу весов. Пустая таблица не трогает текущие веса.
func (s *WeightsSync) Refresh(ctx context.Context) error {
	weights, err := s.repo.GetAgentWeights(ctx)
	if err != nil {
		return fmt.Errorf("weights: load: %w", err)
	}
	if len(weights) == 0 {
		s.logger.Debug("weights table is empty, keeping current weights")
		return nil
	}
	return s.holder.ReplaceWeights(weights)
}

// StartListener блокируется до отмены ctx; запускать в отдельной горутине.
func (s *WeightsSync) StartListener(ctx context.Context) {
	s.logger.Info("weights listener started", zap.String("chan", infra.RedisChanWeightsUpdate))
	ListenSignalsResilient(ctx, s.rdb, s.logger, infra.RedisChanWeightsUpdate,
		func() error { return s.Refresh(ctx) },
		func(payload string) {
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("weights refresh failed", zap.String("signal", payload), zap.Error(err))
			}
		},
	)
}
