package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/trustgate/internal/audit"
	"github.com/xela07ax/trustgate/internal/domain"
	"github.com/xela07ax/trustgate/internal/infra"
	"github.com/xela07ax/trustgate/internal/risk"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// ApprovalStore — очередь заявок Human-in-the-loop.
type ApprovalStore interface {
	CreateApproval(ctx context.Context, a *domain.ApprovalRequest) error
}

// Publisher — подмножество *redis.Client для уведомлений.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// ReviewCoreDeps — зависимости пайплайна. Обязательны Reliability и Decider,
// остальное можно не передавать (шаг просто пропускается).
type ReviewCoreDeps struct {
	Reliability *ReliabilityHolder
	Decider     *risk.DecisionAgent
	Detector    *risk.ConflictDetector
	Runner      *ExpertRunner
	Approvals   ApprovalStore
	Publisher   Publisher
	Auditor     audit.Auditor
	Metrics     *Metrics
	Tracer      trace.Tracer
}

// ReviewCore — один цикл ревью: шлюз безопасности, синтез решения, эскалация, аудит.
type ReviewCore struct {
	reliability *ReliabilityHolder
	decider     *risk.DecisionAgent
	detector    *risk.ConflictDetector
	runner      *ExpertRunner
	approvals   ApprovalStore
	publisher   Publisher
	auditor     audit.Auditor
	metrics     *Metrics
	tracer      trace.Tracer
	logger      *zap.Logger
}

func NewReviewCore(deps ReviewCoreDeps, logger *zap.Logger) *ReviewCore {
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("trustgate/engine")
	}
	return &ReviewCore{
		reliability: deps.Reliability,
		decider:     deps.Decider,
		detector:    deps.Detector,
		runner:      deps.Runner,
		approvals:   deps.Approvals,
		publisher:   deps.Publisher,
		auditor:     deps.Auditor,
		metrics:     deps.Metrics,
		tracer:      deps.Tracer,
		logger:      logger.Named("review-core"),
	}
}

// Reliability — текущий движок (для консоли и health-эндпоинтов).
func (c *ReviewCore) Reliability() *ReliabilityEngine {
	return c.reliability.Current()
}

// ProcessReview прогоняет готовые результаты экспертов через шлюз и DecisionAgent.
// Ошибка возвращается только для невалидного запроса: условия безопасности — это defer, а не ошибка.
func (c *ReviewCore) ProcessReview(ctx context.Context, req domain.ReviewRequest) (*domain.ReviewResult, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "ReviewCore.ProcessReview")
	defer span.End()

	// Один движок на весь цикл: подмена весов посреди ревью не видна
	rel := c.reliability.Current()

	reviewID := req.ID
	if reviewID == "" {
		reviewID = uuid.New().String()
	}
	traceID := extractTraceID(ctx)
	logger := c.logger.With(zap.String("review_id", reviewID), zap.String("trace_id", traceID))

	conflicts := c.collectConflicts(req, logger)

	overall := rel.AggregateConfidence(req.Outputs)
	failures := rel.GetFailures(req.Outputs)
	gate := rel.Evaluate(overall, conflicts, failures, rel.MinConfidence())
	decision := c.decider.RecommendAction(req.Outputs, overall, conflicts)
	health := rel.CalculateSystemHealth(req.Outputs)

	res := &domain.ReviewResult{
		ReviewID:            reviewID,
		TraceID:             traceID,
		Subject:             req.Subject,
		AggregateConfidence: overall,
		DecisionConfidence:  decision.Confidence,
		Failures:            failures,
		Health:              health,
		Gate:                gate,
		Conflicts:           conflicts,
		Decision:            decision,
		MaxRisk:             decision.RiskLevel,
		Recommendation:      risk.Recommendation(decision),
		CreatedAt:           start.UTC(),
	}

	if esc := escalationFor(gate, decision); esc != nil {
		res.Escalated = true
		res.Escalation = esc
		res.Recommendation = domain.ActionDefer
		c.metrics.DefersTotal.WithLabelValues(string(esc.Rule)).Inc()
		logger.Warn("review deferred to human",
			zap.String("rule", string(esc.Rule)),
			zap.String("reason", esc.Reason),
			zap.Float64("confidence", overall))
		c.escalate(ctx, res, logger)
	}

	c.record(res, time.Since(start))

	span.SetAttributes(
		attribute.String("review.id", reviewID),
		attribute.Float64("review.aggregate_confidence", overall),
		attribute.Float64("review.decision_confidence", decision.Confidence),
		attribute.Bool("review.deferred", res.Escalated),
		attribute.String("review.recommendation", string(res.Recommendation)),
	)
	if !decision.Success {
		span.SetStatus(codes.Error, decision.ErrorMessage)
	}

	return res, nil
}

// RunReview сначала опрашивает зарегистрированных экспертов, потом ProcessReview.
func (c *ReviewCore) RunReview(ctx context.Context, subject domain.Subject) (*domain.ReviewResult, error) {
	if c.runner == nil || len(c.runner.experts) == 0 {
		return nil, domain.ErrNoExperts
	}

	ctx, span := c.tracer.Start(ctx, "ReviewCore.RunReview")
	defer span.End()

	outputs := c.runner.Run(ctx, subject)
	for i, o := range outputs {
		// Невалидный ответ эксперта — его отказ, а не отказ всего ревью
		if err := o.Validate(); err != nil {
			outputs[i] = domain.FailedOutput(o.AgentType, err)
		}
	}
	span.SetAttributes(attribute.Int("review.experts", len(outputs)))

	return c.ProcessReview(ctx, domain.ReviewRequest{Subject: subject, Outputs: outputs})
}

// collectConflicts: конфликты из запроса сохраняются, найденные детектором добавляются в конец.
func (c *ReviewCore) collectConflicts(req domain.ReviewRequest, logger *zap.Logger) []domain.Conflict {
	conflicts := make([]domain.Conflict, 0, len(req.Conflicts))
	for _, cf := range req.Conflicts {
		if !cf.HasDisagreementLevel() {
			logger.Warn("conflict without disagreement level, assuming full disagreement",
				zap.String("description", cf.Description))
		}
		conflicts = append(conflicts, cf)
	}
	if c.detector != nil {
		conflicts = append(conflicts, c.detector.Detect(req.Outputs)...)
	}
	return conflicts
}

// escalationFor: первым проверяется шлюз, затем деградация синтеза, затем собственный defer DecisionAgent.
func escalationFor(gate domain.DeferVerdict, decision domain.AgentOutput) *domain.DeferVerdict {
	if gate.Defer {
		v := gate
		return &v
	}
	if !decision.Success {
		return &domain.DeferVerdict{
			Defer:  true,
			Rule:   domain.RuleDecisionDegraded,
			Reason: "Decision synthesis failed: " + decision.ErrorMessage,
		}
	}
	if risk.Recommendation(decision) == domain.ActionDefer {
		var reason string
		if len(decision.Findings) > 0 {
			reason, _ = decision.Findings[0][domain.FindingReasoning].(string)
		}
		return &domain.DeferVerdict{Defer: true, Rule: domain.RuleCriticalRisk, Reason: reason}
	}
	return nil
}

// escalate создает заявку для оператора. Сбой хранилища не отменяет решение: defer уже в ответе.
func (c *ReviewCore) escalate(ctx context.Context, res *domain.ReviewResult, logger *zap.Logger) {
	now := time.Now().UTC()
	payload, err := json.Marshal(res)
	if err != nil {
		logger.Error("failed to encode review for approval", zap.Error(err))
	}

	approval := &domain.ApprovalRequest{
		ID:                 uuid.New().String(),
		ReviewID:           res.ReviewID,
		Subject:            res.Subject,
		Reason:             res.Escalation.Reason,
		Recommendation:     risk.Recommendation(res.Decision),
		MaxRisk:            res.MaxRisk,
		DecisionConfidence: res.DecisionConfidence,
		Payload:            string(payload),
		Status:             domain.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if c.approvals != nil {
		if err := c.approvals.CreateApproval(ctx, approval); err != nil {
			logger.Error("failed to create approval request", zap.Error(err))
		} else {
			res.ApprovalID = approval.ID
		}
	}

	if c.publisher == nil {
		return
	}
	msg, _ := json.Marshal(deferNotice{
		ReviewID:   res.ReviewID,
		ApprovalID: res.ApprovalID,
		Rule:       res.Escalation.Rule,
		Reason:     res.Escalation.Reason,
	})
	if err := c.publisher.Publish(ctx, infra.RedisChanReviewDeferred, string(msg)).Err(); err != nil {
		logger.Warn("defer notification not delivered",
			zap.String("channel", infra.RedisChanReviewDeferred),
			zap.Error(err))
	}
}

type deferNotice struct {
	ReviewID   string           `json:"review_id"`
	ApprovalID string           `json:"approval_id,omitempty"`
	Rule       domain.DeferRule `json:"rule"`
	Reason     string           `json:"reason"`
}

// record пишет метрики и асинхронный аудит.
func (c *ReviewCore) record(res *domain.ReviewResult, elapsed time.Duration) {
	status := "decided"
	if res.Escalated {
		status = "escalated"
	}
	c.metrics.ReviewDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	c.metrics.ReviewsTotal.WithLabelValues(string(res.Recommendation)).Inc()
	c.metrics.AggregateConfidence.Observe(res.AggregateConfidence)
	for _, t := range res.Failures.FailedAgents {
		c.metrics.AgentFailures.WithLabelValues(string(t)).Inc()
	}

	if c.auditor == nil {
		return
	}
	c.auditor.Log(newReviewEvent(res, elapsed))
	if p, ok := c.auditor.(interface{ Pending() int }); ok {
		c.metrics.AuditBufferFill.Set(float64(p.Pending()))
	}
}

func newReviewEvent(res *domain.ReviewResult, elapsed time.Duration) audit.ReviewEvent {
	event := audit.ReviewEvent{
		ID:                  uuid.New().String(),
		ReviewID:            res.ReviewID,
		TraceID:             res.TraceID,
		Repository:          res.Subject.Repository,
		Revision:            res.Subject.Revision,
		AggregateConfidence: res.AggregateConfidence,
		DecisionConfidence:  res.DecisionConfidence,
		MaxRisk:             res.MaxRisk.String(),
		Recommendation:      string(res.Recommendation),
		Deferred:            res.Escalated,
		FailedAgents:        agentNames(res.Failures.FailedAgents),
		MissingAgents:       agentNames(res.Failures.MissingCriticalAgents),
		ConflictsCount:      len(res.Conflicts),
		HealthStatus:        res.Health.HealthStatus,
		ApprovalID:          res.ApprovalID,
		Timestamp:           res.CreatedAt,
		DurationMs:          elapsed.Milliseconds(),
		Error:               res.Decision.ErrorMessage,
	}
	if res.Escalation != nil {
		event.DeferRule = string(res.Escalation.Rule)
		event.Reason = res.Escalation.Reason
	}

	if raw, err := json.Marshal(res); err == nil {
		_ = json.Unmarshal(raw, &event.Payload)
	}
	return event
}

func agentNames(types []domain.AgentType) []string {
	res := make([]string, 0, len(types))
	for _, t := range types {
		res = append(res, string(t))
	}
	return res
}
