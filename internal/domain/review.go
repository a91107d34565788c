package domain

import "time"

// Failures — итог учета отказов по одному циклу ревью.
type Failures struct {
	FailedAgents          []AgentType `json:"failed_agents"`
	MissingCriticalAgents []AgentType `json:"missing_critical_agents"`
}

const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

type SystemHealth struct {
	TotalAgents       int     `json:"total_agents"`
	SuccessfulAgents  int     `json:"successful_agents"`
	FailedAgents      int     `json:"failed_agents"`
	AverageConfidence float64 `json:"average_confidence"`
	HealthStatus      string  `json:"health_status"`
}

// DeferRule — какое из правил шлюза безопасности сработало первым.
type DeferRule string

const (
	RuleNone                  DeferRule = ""
	RuleNoSuccessfulOutputs   DeferRule = "no_successful_outputs"
	RuleLowConfidence         DeferRule = "low_confidence"
	RuleUnresolvedConflicts   DeferRule = "unresolved_conflicts"
	RuleMissingCriticalAgents DeferRule = "missing_critical_agents"
	RuleCriticalRisk          DeferRule = "critical_risk_low_confidence" // Отдельная проверка DecisionAgent
	RuleDecisionDegraded      DeferRule = "decision_degraded"
)

type DeferVerdict struct {
	Defer  bool      `json:"defer"`
	Rule   DeferRule `json:"rule,omitempty"`
	Reason string    `json:"reason"`
}

// Ключи метаданных результата DecisionAgent.
const (
	MetaAnalysisConfidence  = "analysis_confidence"
	MetaDecisionConfidence  = "decision_confidence"
	MetaRecommendation      = "recommendation"
	MetaConfidenceReasoning = "confidence_reasoning"
	MetaConflictsCount      = "conflicts_count"
)

// Ключи единственной записи findings результата DecisionAgent.
const (
	FindingRecommendation = "recommendation"
	FindingReasoning      = "reasoning"
	FindingMaxRisk        = "max_risk"
)

// Subject — что именно проверяют эксперты (репозиторий, ревизия, произвольные атрибуты).
type Subject struct {
	Repository string            `json:"repository" validate:"max=512"`
	Revision   string            `json:"revision,omitempty" validate:"max=128"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ReviewRequest — вход пайплайна: результаты экспертов и конфликты от детектора.
type ReviewRequest struct {
	ID        string        `json:"id,omitempty" validate:"omitempty,max=64"`
	Subject   Subject       `json:"subject"`
	Outputs   []AgentOutput `json:"outputs" validate:"dive"`
	Conflicts []Conflict    `json:"conflicts" validate:"dive"`
}

// ReviewResult — то, что получает оркестратор/оператор по итогам цикла.
type ReviewResult struct {
	ReviewID            string       `json:"review_id"`
	TraceID             string       `json:"trace_id,omitempty"`
	Subject             Subject      `json:"subject"`
	AggregateConfidence float64      `json:"aggregate_confidence"`
	DecisionConfidence  float64      `json:"decision_confidence"`
	Failures            Failures     `json:"failures"`
	Health              SystemHealth `json:"health"`
	Gate                DeferVerdict `json:"gate"`
	Conflicts           []Conflict   `json:"conflicts"`
	Decision            AgentOutput  `json:"decision"`
	MaxRisk             RiskLevel    `json:"max_risk"`
	Recommendation      Action       `json:"recommendation"`
	Escalated           bool         `json:"escalated"`
	// Escalation — правило, из-за которого ревью ушло человеку (шлюз или сам DecisionAgent)
	Escalation *DeferVerdict `json:"escalation,omitempty"`
	ApprovalID string        `json:"approval_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}
