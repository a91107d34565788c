package postgres

/*
Файл weights_repo.go хранит таблицу надежности агентов (agent_reliability).
Долговременное хранение в PostgreSQL отделено от расчетов в памяти: движок получает
таблицу целиком при старте и по сигналу weights-update.
*/

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/trustgate/internal/domain"
)

// GetAgentWeights выполняет "холодную загрузку" всей таблицы весов.
func (s *Store) GetAgentWeights(ctx context.Context) (map[domain.AgentType]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT agent_type, weight FROM agent_reliability`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query weights: %w", err)
	}
	defer rows.Close()

	weights := make(map[domain.AgentType]float64)
	for rows.Next() {
		var t string
		var w float64
		if err := rows.Scan(&t, &w); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan weight: %w", err)
		}
		weights[domain.AgentType(t)] = w
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows iteration error: %w", err)
	}
	return weights, nil
}

// SaveAgentWeights заменяет таблицу целиком в одной транзакции: агенты, которых нет в weights, удаляются.
func (s *Store) SaveAgentWeights(ctx context.Context, weights map[domain.AgentType]float64) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM agent_reliability`); err != nil {
			return fmt.Errorf("postgres: failed to clear weights: %w", err)
		}

		batch := &pgx.Batch{}
		for t, w := range weights {
			batch.Queue(`INSERT INTO agent_reliability (agent_type, weight, updated_at) VALUES ($1, $2, NOW())`, string(t), w)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres: failed to save weights: %w", err)
		}
		return nil
	})
}
