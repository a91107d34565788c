package risk

import (
	"fmt"

	"github.com/xela07ax/trustgate/internal/domain"
	"go.uber.org/zap"
)

// DefaultMinRiskGap — с какого расхождения уровней риска (в рангах) два агента считаются в конфликте.
const DefaultMinRiskGap = 2

// ConflictDetector — встроенный детектор расхождений между экспертами.
type ConflictDetector struct {
	minGap int
	logger *zap.Logger
}

func NewConflictDetector(minGap int, logger *zap.Logger) *ConflictDetector {
	if minGap <= 0 {
		minGap = DefaultMinRiskGap
	}
	return &ConflictDetector{minGap: minGap, logger: logger.Named("conflicts")}
}

// Detect попарно сравнивает успешные результаты. Уровень расхождения = разрыв в рангах / 4.
func (d *ConflictDetector) Detect(outputs []domain.AgentOutput) []domain.Conflict {
	success := domain.Successful(outputs)
	conflicts := make([]domain.Conflict, 0)

	for i := 0; i < len(success); i++ {
		for j := i + 1; j < len(success); j++ {
			a, b := success[i], success[j]
			gap := int(a.RiskLevel) - int(b.RiskLevel)
			if gap < 0 {
				gap = -gap
			}
			if gap < d.minGap {
				continue
			}

			level := float64(gap) / float64(domain.RiskCritical)
			conflicts = append(conflicts, domain.NewConflict(level,
				fmt.Sprintf("%s reports %s risk while %s reports %s", a.AgentType, a.RiskLevel, b.AgentType, b.RiskLevel),
				a.AgentType, b.AgentType))

			d.logger.Warn("agent disagreement detected",
				zap.String("agent_a", string(a.AgentType)),
				zap.String("agent_b", string(b.AgentType)),
				zap.Int("risk_gap", gap),
				zap.Float64("disagreement", level),
			)
		}
	}

	return conflicts
}
