package engine

/*
Файл reliability.go реализует ReliabilityEngine — учет надежности агентов и шлюз безопасности.

- Агрегация уверенности: взвешенное по надежности среднее только по успешным агентам.
- Учет отказов: упавшие агенты и критичные агенты без успешного результата.
- Safety Gate: упорядоченная цепочка правил, первое сработавшее правило определяет причину defer.
- Движок неизменяем после конструктора. Перечитывание весов на лету строит новый движок
  (WithWeights) и подменяет его целиком в ReliabilityHolder.
*/

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xela07ax/trustgate/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultMinConfidence — порог общей уверенности, ниже которого решение откладывается.
	DefaultMinConfidence = 0.7
	// DefaultReliability применяется к агентам, которых нет в таблице весов.
	DefaultReliability = 1.0
	// HealthyConfidence — минимальная средняя уверенность для статуса healthy.
	HealthyConfidence = 0.7
)

type ReliabilityConfig struct {
	Weights        map[domain.AgentType]float64
	CriticalAgents []domain.AgentType
	MinConfidence  float64
}

// DefaultReliabilityConfig: все известные эксперты с весом 1.0, критичен только security.
func DefaultReliabilityConfig() ReliabilityConfig {
	weights := make(map[domain.AgentType]float64)
	for _, t := range domain.ExpertAgentTypes() {
		weights[t] = DefaultReliability
	}
	return ReliabilityConfig{
		Weights:        weights,
		CriticalAgents: []domain.AgentType{domain.AgentSecurityAnalysis},
		MinConfidence:  DefaultMinConfidence,
	}
}

// ReliabilityEngine не меняется после создания и безопасен для конкурентного использования.
type ReliabilityEngine struct {
	weights       map[domain.AgentType]float64
	critical      []domain.AgentType
	minConfidence float64

	logger *zap.Logger
}

func NewReliabilityEngine(cfg ReliabilityConfig, logger *zap.Logger) (*ReliabilityEngine, error) {
	weights, err := copyWeights(cfg.Weights)
	if err != nil {
		return nil, err
	}

	minConf := cfg.MinConfidence
	if minConf <= 0 {
		minConf = DefaultMinConfidence
	}

	critical := make([]domain.AgentType, 0, len(cfg.CriticalAgents))
	seen := make(map[domain.AgentType]struct{}, len(cfg.CriticalAgents))
	for _, t := range cfg.CriticalAgents {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		critical = append(critical, t)
	}

	return &ReliabilityEngine{
		weights:       weights,
		critical:      critical,
		minConfidence: minConf,
		logger:        logger.Named("reliability"),
	}, nil
}

// AggregateConfidence — reliability-weighted mean по успешным результатам. Без успешных — ровно 0.0.
func (e *ReliabilityEngine) AggregateConfidence(outputs []domain.AgentOutput) float64 {
	var sumWeighted, sumReliability float64
	var successful int
	for _, o := range outputs {
		if !o.Success {
			continue
		}
		successful++
		reliability := e.reliabilityOf(o.AgentType)
		sumWeighted += o.Confidence * reliability
		sumReliability += reliability
	}

	if successful == 0 || sumReliability == 0 {
		return 0.0
	}
	return sumWeighted / sumReliability
}

// GetFailures возвращает упавших агентов (в порядке входа, с дублями) и критичных агентов
// без единого успешного результата. «Не запускался» и «упал» здесь неразличимы.
func (e *ReliabilityEngine) GetFailures(outputs []domain.AgentOutput) domain.Failures {
	failed := make([]domain.AgentType, 0)
	succeeded := make(map[domain.AgentType]struct{}, len(outputs))
	for _, o := range outputs {
		if o.Success {
			succeeded[o.AgentType] = struct{}{}
		} else {
			failed = append(failed, o.AgentType)
		}
	}

	missing := make([]domain.AgentType, 0)
	for _, t := range e.critical {
		if _, ok := succeeded[t]; !ok {
			missing = append(missing, t)
		}
	}

	return domain.Failures{
		FailedAgents:          failed,
		MissingCriticalAgents: missing,
	}
}

// Evaluate — Safety Gate. Правила проверяются строго по порядку, возвращается первое сработавшее.
// Порядок — часть контракта: причина должна соответствовать первому нарушенному правилу.
func (e *ReliabilityEngine) Evaluate(overall float64, conflicts []domain.Conflict, failures domain.Failures, threshold float64) domain.DeferVerdict {
	// 1. Нет ни одного успешного агента
	if overall <= 0.0 {
		return domain.DeferVerdict{Defer: true, Rule: domain.RuleNoSuccessfulOutputs, Reason: "No successful agent outputs received"}
	}

	// 2. Общая уверенность ниже порога
	if overall < threshold {
		return domain.DeferVerdict{
			Defer:  true,
			Rule:   domain.RuleLowConfidence,
			Reason: fmt.Sprintf("Overall confidence %.2f below threshold %s", overall, strconv.FormatFloat(threshold, 'f', -1, 64)),
		}
	}

	// 3. Любой неразрешенный конфликт — только человек
	if len(conflicts) > 0 {
		return domain.DeferVerdict{
			Defer:  true,
			Rule:   domain.RuleUnresolvedConflicts,
			Reason: fmt.Sprintf("%d unresolved conflicts between agents", len(conflicts)),
		}
	}

	// 4. Критичный агент (например, Security) не дал результата
	if len(failures.MissingCriticalAgents) > 0 {
		names := make([]string, 0, len(failures.MissingCriticalAgents))
		for _, t := range failures.MissingCriticalAgents {
			names = append(names, string(t))
		}
		return domain.DeferVerdict{
			Defer:  true,
			Rule:   domain.RuleMissingCriticalAgents,
			Reason: "Missing critical agent analysis: " + strings.Join(names, ", "),
		}
	}

	return domain.DeferVerdict{}
}

// ShouldDefer применяет шлюз с порогом из конфигурации движка (по умолчанию 0.7).
func (e *ReliabilityEngine) ShouldDefer(overall float64, conflicts []domain.Conflict, failures domain.Failures) (bool, string) {
	return e.ShouldDeferWithThreshold(overall, conflicts, failures, e.minConfidence)
}

func (e *ReliabilityEngine) ShouldDeferWithThreshold(overall float64, conflicts []domain.Conflict, failures domain.Failures, threshold float64) (bool, string) {
	v := e.Evaluate(overall, conflicts, failures, threshold)
	return v.Defer, v.Reason
}

// CalculateSystemHealth — сводка здоровья агентов для метаданных ответа.
func (e *ReliabilityEngine) CalculateSystemHealth(outputs []domain.AgentOutput) domain.SystemHealth {
	total := len(outputs)
	successful := len(domain.Successful(outputs))
	avg := e.AggregateConfidence(outputs)

	status := domain.HealthDegraded
	if successful == total && avg >= HealthyConfidence {
		status = domain.HealthHealthy
	}

	return domain.SystemHealth{
		TotalAgents:       total,
		SuccessfulAgents:  successful,
		FailedAgents:      total - successful,
		AverageConfidence: avg,
		HealthStatus:      status,
	}
}

// WithWeights строит новый движок с другой таблицей весов и той же конфигурацией шлюза.
// Некорректная таблица отклоняется целиком.
func (e *ReliabilityEngine) WithWeights(weights map[domain.AgentType]float64) (*ReliabilityEngine, error) {
	next, err := copyWeights(weights)
	if err != nil {
		return nil, err
	}
	return &ReliabilityEngine{
		weights:       next,
		critical:      e.critical,
		minConfidence: e.minConfidence,
		logger:        e.logger,
	}, nil
}

// Weights возвращает копию таблицы весов.
func (e *ReliabilityEngine) Weights() map[domain.AgentType]float64 {
	res := make(map[domain.AgentType]float64, len(e.weights))
	for k, v := range e.weights {
		res[k] = v
	}
	return res
}

func (e *ReliabilityEngine) CriticalAgents() []domain.AgentType {
	return append([]domain.AgentType(nil), e.critical...)
}

func (e *ReliabilityEngine) MinConfidence() float64 {
	return e.minConfidence
}

func (e *ReliabilityEngine) reliabilityOf(t domain.AgentType) float64 {
	if w, ok := e.weights[t]; ok {
		return w
	}
	return DefaultReliability
}

func copyWeights(src map[domain.AgentType]float64) (map[domain.AgentType]float64, error) {
	dst := make(map[domain.AgentType]float64, len(src))
	for t, w := range src {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, fmt.Errorf("%w: %s=%v", domain.ErrInvalidWeight, t, w)
		}
		dst[t] = w
	}
	return dst, nil
}
