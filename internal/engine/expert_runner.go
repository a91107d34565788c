package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/trustgate/internal/connectors"
	"github.com/xela07ax/trustgate/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Expert — общий контракт экспертных агентов. DecisionAgent его не реализует:
// он не анализирует Subject, а синтезирует чужие результаты.
type Expert interface {
	Type() domain.AgentType
	Analyze(ctx context.Context, subject domain.Subject) (domain.AgentOutput, error)
}

// BlockList сообщает, отключен ли эксперт оператором.
type BlockList interface {
	IsBlocked(t domain.AgentType) bool
}

type RunnerConfig struct {
	CallTimeout   time.Duration
	RetryAttempts uint
	// RateLimit <= 0 снимает ограничение
	RateLimit float64
	RateBurst int

	CBMaxRequests         uint32
	CBInterval            time.Duration
	CBTimeout             time.Duration
	CBConsecutiveFailures uint32
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		CallTimeout:           10 * time.Second,
		RetryAttempts:         3,
		RateLimit:             100,
		RateBurst:             20,
		CBMaxRequests:         3,
		CBInterval:            5 * time.Second,
		CBTimeout:             30 * time.Second,
		CBConsecutiveFailures: 5,
	}
}

// ExpertRunner опрашивает всех экспертов параллельно. Каждый вызов идет через
// rate limiter -> Circuit Breaker своего типа -> retry с таймаутом на попытку.
// Любой отказ превращается в AgentOutput{Success: false}, до вызывающего ошибка не доходит.
type ExpertRunner struct {
	experts  []Expert
	breakers map[domain.AgentType]*gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	blocked  BlockList
	cfg      RunnerConfig
	metrics  *Metrics
	logger   *zap.Logger
}

func NewExpertRunner(cfg RunnerConfig, blocked BlockList, metrics *Metrics, logger *zap.Logger, experts ...Expert) *ExpertRunner {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	def := DefaultRunnerConfig()
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	// В retry-go 0 попыток означает "бесконечно"
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.CBConsecutiveFailures == 0 {
		cfg.CBConsecutiveFailures = def.CBConsecutiveFailures
	}

	r := &ExpertRunner{
		experts:  experts,
		breakers: make(map[domain.AgentType]*gobreaker.CircuitBreaker, len(experts)),
		blocked:  blocked,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger.Named("expert-runner"),
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	r.limiter = rate.NewLimiter(limit, max(cfg.RateBurst, 1))

	for _, ex := range experts {
		t := ex.Type()
		if _, exists := r.breakers[t]; exists {
			continue
		}
		r.breakers[t] = r.newBreaker(t)
		metrics.ExpertBreakerState.WithLabelValues(string(t)).Set(float64(gobreaker.StateClosed))
	}
	return r
}

func (r *ExpertRunner) newBreaker(t domain.AgentType) *gobreaker.CircuitBreaker {
	threshold := r.cfg.CBConsecutiveFailures
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "expert-" + string(t),
		MaxRequests: r.cfg.CBMaxRequests,
		Interval:    r.cfg.CBInterval,
		Timeout:     r.cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.metrics.ExpertBreakerState.WithLabelValues(string(t)).Set(float64(to))
			r.logger.Warn("expert breaker state changed",
				zap.String("agent_type", string(t)),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// Types возвращает типы зарегистрированных экспертов в порядке регистрации.
func (r *ExpertRunner) Types() []domain.AgentType {
	res := make([]domain.AgentType, 0, len(r.experts))
	for _, ex := range r.experts {
		res = append(res, ex.Type())
	}
	return res
}

// Run возвращает результаты в порядке регистрации экспертов.
func (r *ExpertRunner) Run(ctx context.Context, subject domain.Subject) []domain.AgentOutput {
	outputs := make([]domain.AgentOutput, len(r.experts))

	var wg sync.WaitGroup
	for i, ex := range r.experts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outputs[i] = r.call(ctx, ex, subject)
		}()
	}
	wg.Wait()

	for _, o := range outputs {
		if !o.Success {
			r.logger.Warn("expert failed",
				zap.String("agent_type", string(o.AgentType)),
				zap.String("error", o.ErrorMessage))
		}
	}
	return outputs
}

func (r *ExpertRunner) call(ctx context.Context, ex Expert, subject domain.Subject) (out domain.AgentOutput) {
	t := ex.Type()

	defer func() {
		if p := recover(); p != nil {
			out = domain.FailedOutput(t, fmt.Errorf("expert panicked: %v", p))
		}
	}()

	if r.blocked != nil && r.blocked.IsBlocked(t) {
		return domain.FailedOutput(t, fmt.Errorf("expert %s disabled by operator", t))
	}

	// 1. Rate Limiter
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.FailedOutput(t, fmt.Errorf("rate limit exceeded: %w", err))
	}

	// 2. Circuit Breaker
	res, err := r.breakers[t].Execute(func() (interface{}, error) {
		var result domain.AgentOutput

		rt := retry.New(
			retry.Context(ctx),
			retry.Attempts(r.cfg.RetryAttempts),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Эксперт сам сказал, когда повторить (Retry-After)
				var tErr *connectors.ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := rt.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
			defer cancel()

			o, callErr := ex.Analyze(tCtx, subject)
			if callErr != nil {
				return callErr
			}
			result = o
			return nil
		})

		return result, retryErr
	})
	if err != nil {
		return domain.FailedOutput(t, err)
	}

	out = res.(domain.AgentOutput)
	// Тип результата определяет реестр, а не ответ эксперта
	out.AgentType = t
	if out.Findings == nil {
		out.Findings = []domain.Finding{}
	}
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	return out
}
