package postgres

import (
	"context"
	"fmt"

	"github.com/xela07ax/trustgate/internal/domain"
)

// GetReviewStats собирает сводку дашборда из review_audit за последние 60 минут.
func (s *Store) GetReviewStats(ctx context.Context) (*domain.ReviewStats, error) {
	st := &domain.ReviewStats{
		Recommendations: make(map[string]int64),
		HourlyActivity:  make([]domain.ActivityPoint, 0),
	}

	// 1. Объем и доля defer
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE deferred),
			COALESCE(AVG(decision_confidence), 0)
		FROM review_audit
		WHERE timestamp > NOW() - INTERVAL '60 minutes'`).Scan(
		&st.TotalReviews,
		&st.DeferredReviews,
		&st.AvgDecisionConfidence,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to aggregate reviews: %w", err)
	}
	if st.TotalReviews > 0 {
		st.DeferRatio = float64(st.DeferredReviews) / float64(st.TotalReviews)
	}

	// 2. Разбивка по рекомендациям
	rows, err := s.pool.Query(ctx, `
		SELECT recommendation, COUNT(*)
		FROM review_audit
		WHERE timestamp > NOW() - INTERVAL '60 minutes'
		GROUP BY recommendation`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to group recommendations: %w", err)
	}
	for rows.Next() {
		var rec string
		var n int64
		if err := rows.Scan(&rec, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: failed to scan recommendation: %w", err)
		}
		st.Recommendations[rec] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}

	// 3. Активность по часам за сутки
	rows, err = s.pool.Query(ctx, `
		SELECT to_char(date_trunc('hour', timestamp), 'YYYY-MM-DD"T"HH24:00'), COUNT(*)
		FROM review_audit
		WHERE timestamp > NOW() - INTERVAL '24 hours'
		GROUP BY 1
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query activity: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.ActivityPoint
		if err := rows.Scan(&p.Hour, &p.Count); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan activity: %w", err)
		}
		st.HourlyActivity = append(st.HourlyActivity, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}

	// 4. Очередь оператора
	if st.PendingApprovals, err = s.CountPendingApprovals(ctx); err != nil {
		return nil, fmt.Errorf("postgres: failed to count approvals: %w", err)
	}
	return st, nil
}
