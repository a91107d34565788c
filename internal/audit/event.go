package audit

import "time"

// ReviewEvent — след одного ревью в review_audit.
type ReviewEvent struct {
	ID       string `json:"id"`        // UUID события
	ReviewID string `json:"review_id"` // ID ревью
	TraceID  string `json:"trace_id"`  // Сквозной ID запроса

	Repository string `json:"repository"`
	Revision   string `json:"revision"`

	// Решение
	AggregateConfidence float64 `json:"aggregate_confidence"`
	DecisionConfidence  float64 `json:"decision_confidence"`
	MaxRisk             string  `json:"max_risk"`
	Recommendation      string  `json:"recommendation"`
	Deferred            bool    `json:"deferred"`
	DeferRule           string  `json:"defer_rule,omitempty"`
	Reason              string  `json:"reason,omitempty"`

	// Состояние агентов
	FailedAgents   []string `json:"failed_agents"`
	MissingAgents  []string `json:"missing_critical_agents"`
	ConflictsCount int      `json:"conflicts_count"`
	HealthStatus   string   `json:"health_status"`

	// Результат целиком (JSON ReviewResult) для разбора инцидентов
	Payload map[string]interface{} `json:"payload"`

	ApprovalID string    `json:"approval_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"` // Время обработки
	Error      string    `json:"error,omitempty"`
}

// Filter — фильтры чтения журнала; пустые поля не фильтруют.
type Filter struct {
	ReviewID     string
	Repository   string
	DeferredOnly bool
	Limit        int
}
