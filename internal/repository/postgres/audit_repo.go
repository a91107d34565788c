package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xela07ax/trustgate/internal/audit"
)

// Количество колонок в таблице review_audit
const auditColumns = 21

// WriteBatch реализует audit.StorageInterface: одна пачка — один multi-row INSERT.
func (s *Store) WriteBatch(ctx context.Context, events []audit.ReviewEvent) error {
	if len(events) == 0 {
		return nil
	}

	query, vals, err := buildAuditInsert(events)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, query, vals...); err != nil {
		return fmt.Errorf("postgres: failed to write audit batch: %w", err)
	}
	return nil
}

// buildAuditInsert динамически строит запрос для пакетной вставки
func buildAuditInsert(events []audit.ReviewEvent) (string, []interface{}, error) {
	var sb strings.Builder
	vals := make([]interface{}, 0, len(events)*auditColumns)

	for i, e := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := 1; c <= auditColumns; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*auditColumns+c)
		}
		sb.WriteString(")")

		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return "", nil, fmt.Errorf("postgres: failed to encode audit payload %s: %w", e.ID, err)
		}

		vals = append(vals,
			e.ID, e.ReviewID, e.TraceID, e.Repository, e.Revision,
			e.AggregateConfidence, e.DecisionConfidence, e.MaxRisk, e.Recommendation,
			e.Deferred, e.DeferRule, e.Reason, nonNil(e.FailedAgents), nonNil(e.MissingAgents),
			e.ConflictsCount, e.HealthStatus, payload, e.ApprovalID, e.DurationMs, e.Error, e.Timestamp,
		)
	}

	query := "INSERT INTO review_audit (id, review_id, trace_id, repository, revision, " +
		"aggregate_confidence, decision_confidence, max_risk, recommendation, deferred, defer_rule, reason, " +
		"failed_agents, missing_agents, conflicts_count, health_status, payload, approval_id, duration_ms, error, timestamp) " +
		"VALUES " + sb.String()
	return query, vals, nil
}

// FetchReviewEvents читает журнал ревью, новые сверху.
func (s *Store) FetchReviewEvents(ctx context.Context, f audit.Filter) ([]audit.ReviewEvent, error) {
	query := `SELECT id, review_id, trace_id, repository, revision, aggregate_confidence, decision_confidence,
	                 max_risk, recommendation, deferred, defer_rule, reason, failed_agents, missing_agents,
	                 conflicts_count, health_status, approval_id, duration_ms, error, timestamp
	          FROM review_audit`

	var conds []string
	var args []interface{}
	if f.ReviewID != "" {
		args = append(args, f.ReviewID)
		conds = append(conds, fmt.Sprintf("review_id = $%d", len(args)))
	}
	if f.Repository != "" {
		args = append(args, f.Repository)
		conds = append(conds, fmt.Sprintf("repository = $%d", len(args)))
	}
	if f.DeferredOnly {
		conds = append(conds, "deferred")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query audit: %w", err)
	}
	defer rows.Close()

	// Пустой слайс, чтобы в JSON был [] вместо null
	events := make([]audit.ReviewEvent, 0)
	for rows.Next() {
		var e audit.ReviewEvent
		if err := rows.Scan(
			&e.ID, &e.ReviewID, &e.TraceID, &e.Repository, &e.Revision, &e.AggregateConfidence, &e.DecisionConfidence,
			&e.MaxRisk, &e.Recommendation, &e.Deferred, &e.DeferRule, &e.Reason, &e.FailedAgents, &e.MissingAgents,
			&e.ConflictsCount, &e.HealthStatus, &e.ApprovalID, &e.DurationMs, &e.Error, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return events, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
