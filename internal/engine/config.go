package engine

import (
	"github.com/xela07ax/trustgate/internal/domain"
	"github.com/xela07ax/trustgate/internal/infra"
)

// ReliabilityConfigFrom переводит секцию engine конфига в настройки движка.
// Пустая таблица весов означает вес 1.0 для всех известных экспертов.
func ReliabilityConfigFrom(cfg infra.EngineConfig) ReliabilityConfig {
	rc := DefaultReliabilityConfig()
	if cfg.MinConfidence > 0 {
		rc.MinConfidence = cfg.MinConfidence
	}
	if len(cfg.CriticalAgents) > 0 {
		rc.CriticalAgents = make([]domain.AgentType, 0, len(cfg.CriticalAgents))
		for _, t := range cfg.CriticalAgents {
			rc.CriticalAgents = append(rc.CriticalAgents, domain.AgentType(t))
		}
	}
	if len(cfg.AgentReliability) > 0 {
		rc.Weights = make(map[domain.AgentType]float64, len(cfg.AgentReliability))
		for t, w := range cfg.AgentReliability {
			rc.Weights[domain.AgentType(t)] = w
		}
	}
	return rc
}

func RunnerConfigFrom(cfg infra.EngineConfig) RunnerConfig {
	return RunnerConfig{
		CallTimeout:           cfg.ExpertTimeout,
		RetryAttempts:         cfg.RetryAttempts,
		RateLimit:             cfg.RateLimit,
		RateBurst:             cfg.RateBurst,
		CBMaxRequests:         cfg.CBMaxRequests,
		CBInterval:            cfg.CBInterval,
		CBTimeout:             cfg.CBTimeout,
		CBConsecutiveFailures: cfg.CBConsecutiveFailures,
	}
}
