package postgres

/*
Файл approval_repo.go — очередь заявок Human-in-the-loop (HITL, «человек в контуре»)
для ревью, которые шлюз безопасности не доверил автоматике.
*/

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/trustgate/internal/domain"
)

const approvalColumns = `id, review_id, repository, revision, reason, recommendation, max_risk,
	decision_confidence, COALESCE(payload::text, ''), status, reviewer_id, comment, created_at, updated_at`

func scanApproval(row pgx.Row) (*domain.ApprovalRequest, error) {
	var app domain.ApprovalRequest
	var maxRisk string
	err := row.Scan(
		&app.ID, &app.ReviewID, &app.Subject.Repository, &app.Subject.Revision,
		&app.Reason, &app.Recommendation, &maxRisk, &app.DecisionConfidence,
		&app.Payload, &app.Status, &app.ReviewerID, &app.Comment,
		&app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if app.MaxRisk, err = domain.ParseRiskLevel(maxRisk); err != nil {
		return nil, err
	}
	return &app, nil
}

// CreateApproval создает заявку. Оператор увидит ее в очереди консоли.
func (s *Store) CreateApproval(ctx context.Context, app *domain.ApprovalRequest) error {
	query := `INSERT INTO approvals (id, review_id, repository, revision, reason, recommendation, max_risk,
	                                 decision_confidence, payload, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::jsonb, $10, $11, $12)`
	_, err := s.pool.Exec(ctx, query,
		app.ID, app.ReviewID, app.Subject.Repository, app.Subject.Revision, app.Reason,
		app.Recommendation, app.MaxRisk.String(), app.DecisionConfidence, app.Payload, app.Status,
		app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to create approval request: %w", err)
	}
	return nil
}

// GetApprovalByID получение деталей заявки для анализа.
func (s *Store) GetApprovalByID(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	// Колонка id типа UUID: мусорный id — это "не найдено", а не ошибка базы
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrApprovalNotFound
	}
	app, err := scanApproval(s.pool.QueryRow(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrApprovalNotFound
		}
		return nil, fmt.Errorf("postgres: failed to get approval: %w", err)
	}
	return app, nil
}

// FindApprovals фильтрация и выборка списка заявок (Decision Queue).
func (s *Store) FindApprovals(ctx context.Context, status domain.ApprovalStatus) ([]*domain.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals`

	var args []interface{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT 100"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query approvals: %w", err)
	}
	defer rows.Close()

	// Инициализируем пустой слайс, чтобы в JSON был [] вместо null
	results := make([]*domain.ApprovalRequest, 0)
	for rows.Next() {
		app, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan approval: %w", err)
		}
		results = append(results, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return results, nil
}

// UpdateApprovalStatus атомарно фиксирует решение оператора.
// Условие WHERE status = 'PENDING' исключает Double Decision. Возвращает review_id для Redis-сигнала.
func (s *Store) UpdateApprovalStatus(ctx context.Context, id string, status domain.ApprovalStatus, reviewerID, comment string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", domain.ErrApprovalNotFound
	}
	var reviewID string
	// RETURNING вместо предварительного SELECT: один проход и никакого Race Condition
	query := `
		UPDATE approvals
		SET status = $1,
		    reviewer_id = $2,
		    comment = $3,
		    updated_at = NOW()
		WHERE id = $4 AND status = 'PENDING'
		RETURNING review_id`

	err := s.pool.QueryRow(ctx, query, status, reviewerID, comment, id).Scan(&reviewID)
	if err == nil {
		return reviewID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("postgres: failed to update approval status: %w", err)
	}

	// Строк нет: либо ID неверный, либо решение уже принято
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM approvals WHERE id = $1)`, id).Scan(&exists); err != nil {
		return "", fmt.Errorf("postgres: failed to check approval: %w", err)
	}
	if exists {
		return "", domain.ErrAlreadyProcessed
	}
	return "", domain.ErrApprovalNotFound
}

// CountPendingApprovals — размер очереди для дашборда.
func (s *Store) CountPendingApprovals(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM approvals WHERE status = 'PENDING'`).Scan(&n)
	return n, err
}
