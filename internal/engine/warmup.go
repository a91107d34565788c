package engine

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/trustgate/internal/domain"
	"github.com/xela07ax/trustgate/internal/infra"
	"go.uber.org/zap"
)

type WeightsStore interface {
	WeightsRepository
	SaveAgentWeights(ctx context.Context, weights map[domain.AgentType]float64) error
}

// SeedWeights заливает веса из конфига в пустую таблицу agent_reliability.
// Распределенная блокировка (SetNX) гарантирует, что это делает только один инстанс.
func SeedWeights(
	ctx context.Context,
	rdb *redis.Client,
	store WeightsStore,
	weights map[domain.AgentType]float64,
	logger *zap.Logger,
) error {
	if len(weights) == 0 {
		return nil
	}

	ok, err := rdb.SetNX(ctx, infra.RedisKeyLockSeedWeights, "processing", 30*time.Second).Result()
	if err != nil || !ok {
		return nil // Либо ошибка сети, либо другой уже заливает
	}

	return seedIfEmpty(ctx, store, weights, logger)
}

func seedIfEmpty(ctx context.Context, store WeightsStore, weights map[domain.AgentType]float64, logger *zap.Logger) error {
	existing, err := store.GetAgentWeights(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	logger.Info("weights table is empty, seeding from config", zap.Int("count", len(weights)))
	return store.SaveAgentWeights(ctx, weights)
}
