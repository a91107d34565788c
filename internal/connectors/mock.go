package connectors

import (
	"context"
	"fmt"
	"math/rand/v2" // Используем v2 для Go 1.25
	"time"

	"github.com/xela07ax/trustgate/internal/domain"
)

// MockExpert — детерминированный эксперт для локального запуска и тестов.
type MockExpert struct {
	AgentType  domain.AgentType
	Confidence float64
	Risk       domain.RiskLevel
	Findings   []domain.Finding
	// Latency + случайный Jitter имитируют сетевую задержку
	Latency time.Duration
	Jitter  time.Duration
	// Err возвращается вместо результата
	Err error
}

func (m *MockExpert) Type() domain.AgentType {
	return m.AgentType
}

func (m *MockExpert) Analyze(ctx context.Context, subject domain.Subject) (domain.AgentOutput, error) {
	latency := m.Latency
	if m.Jitter > 0 {
		// В v2 используется rand.N для time.Duration
		latency += rand.N(m.Jitter)
	}

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return domain.AgentOutput{}, ctx.Err()
		}
	}

	if m.Err != nil {
		return domain.AgentOutput{}, m.Err
	}

	findings := m.Findings
	if findings == nil {
		findings = []domain.Finding{{
			"summary": fmt.Sprintf("%s review of %s@%s", m.AgentType, subject.Repository, subject.Revision),
		}}
	}

	return domain.AgentOutput{
		AgentType:  m.AgentType,
		Success:    true,
		Confidence: m.Confidence,
		RiskLevel:  m.Risk,
		Findings:   findings,
		Metadata:   map[string]any{"mock": true},
	}, nil
}
