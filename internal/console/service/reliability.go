package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/trustgate/internal/domain"
	"github.com/xela07ax/trustgate/internal/engine"
	"github.com/xela07ax/trustgate/internal/infra"
	"go.uber.org/zap"
)

// ReliabilityService управляет таблицей весов: PostgreSQL хранит, Redis рассылает сигнал.
type ReliabilityService struct {
	holder *engine.ReliabilityHolder
	store  engine.WeightsStore
	bus    Publisher
	logger *zap.Logger
}

func NewReliabilityService(holder *engine.ReliabilityHolder, store engine.WeightsStore, bus Publisher, logger *zap.Logger) *ReliabilityService {
	return &ReliabilityService{
		holder: holder,
		store:  store,
		bus:    bus,
		logger: logger.Named("reliability-service"),
	}
}

// GetWeights возвращает веса, которыми этот инстанс пользуется прямо сейчас.
func (s *ReliabilityService) GetWeights() map[domain.AgentType]float64 {
	return s.holder.Current().Weights()
}

// UpdateWeights заменяет таблицу целиком. Невалидная таблица отклоняется до записи в БД.
func (s *ReliabilityService) UpdateWeights(ctx context.Context, weights map[domain.AgentType]float64) error {
	if _, err := s.holder.Current().WithWeights(weights); err != nil {
		return err
	}

	if err := s.store.SaveAgentWeights(ctx, weights); err != nil {
		s.logger.Error("failed to persist weights", zap.Error(err))
		return fmt.Errorf("reliability_service: %w", err)
	}

	// Локально применяем сразу, остальные инстансы перечитают таблицу по сигналу
	if err := s.holder.ReplaceWeights(weights); err != nil {
		return err
	}
	if err := s.bus.Publish(ctx, infra.RedisChanWeightsUpdate, "refresh").Err(); err != nil {
		s.logger.Warn("weights refresh signal not delivered",
			zap.String("channel", infra.RedisChanWeightsUpdate),
			zap.Error(err))
	}
	return nil
}
