package risk

/*
Файл decision.go содержит DecisionAgent — синтез финальной рекомендации по результатам экспертов.

DecisionAgent сознательно не реализует общий интерфейс экспертов (engine.Expert): у него нет
собственного анализа, его единственная операция — RecommendAction.
*/

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xela07ax/trustgate/internal/domain"
	"go.uber.org/zap"
)

const (
	// CriticalConfidenceThreshold — строже общего порога шлюза: при CRITICAL риске ниже него решение откладывается.
	CriticalConfidenceThreshold = 0.80
	// ConflictPenaltyFactor — штраф за каждый конфликт, умножается на уровень расхождения.
	ConflictPenaltyFactor = 0.2
	// MaxConflictPenalty — потолок суммарного штрафа.
	MaxConflictPenalty = 0.5
	// ModerateConfidenceThreshold — ниже него в пояснение добавляется «moderate analytic confidence».
	ModerateConfidenceThreshold = 0.85

	FullConsensusReasoning = "High trust integration with full agent consensus."
)

type DecisionAgent struct {
	logger *zap.Logger
}

func NewDecisionAgent(logger *zap.Logger) *DecisionAgent {
	return &DecisionAgent{logger: logger.Named("decision")}
}

// Type возвращает тип агента для результатов синтеза.
func (a *DecisionAgent) Type() domain.AgentType {
	return domain.AgentDecision
}

// RecommendAction синтезирует рекомендацию и уверенность решения.
// Никогда не паникует наружу: любой внутренний сбой превращается в неуспешный DECISION-результат
// с нулевой уверенностью и риском NONE.
func (a *DecisionAgent) RecommendAction(outputs []domain.AgentOutput, overall float64, conflicts []domain.Conflict) (out domain.AgentOutput) {
	defer func() {
		if r := recover(); r != nil {
			out = a.degraded(fmt.Errorf("decision synthesis panic: %v", r))
		}
	}()

	res, err := a.synthesize(outputs, overall, conflicts)
	if err != nil {
		return a.degraded(err)
	}
	return res
}

func (a *DecisionAgent) synthesize(outputs []domain.AgentOutput, overall float64, conflicts []domain.Conflict) (domain.AgentOutput, error) {
	success := domain.Successful(outputs)

	// 1. Наивысший риск среди успешных
	maxRisk := domain.RiskNone
	for _, o := range success {
		if !o.RiskLevel.Valid() {
			return domain.AgentOutput{}, fmt.Errorf("%w from %s", domain.ErrUnknownRiskLevel, o.AgentType)
		}
		maxRisk = domain.MaxRisk(maxRisk, o.RiskLevel)
	}

	// 2. Риск -> действие
	recommendation := domain.ActionForRisk(maxRisk)
	reasoning := fmt.Sprintf("Highest detected risk: %s", maxRisk)

	// 3. CRITICAL при недостаточной уверенности — только человек, даже если шлюз пропустил
	if maxRisk == domain.RiskCritical && overall < CriticalConfidenceThreshold {
		recommendation = domain.ActionDefer
		reasoning = fmt.Sprintf("Critical risk detected but overall confidence (%.2f) is below 0.80 safety threshold.", overall)
	}

	// 4. Штраф за конфликты
	decisionConfidence, err := DecisionConfidence(overall, conflicts)
	if err != nil {
		return domain.AgentOutput{}, err
	}

	// 5. Пояснение для человека
	confidenceReasoning := ConfidenceReasoning(len(outputs)-len(success), len(conflicts), overall)

	a.logger.Debug("decision synthesized",
		zap.String("recommendation", string(recommendation)),
		zap.String("max_risk", maxRisk.String()),
		zap.Float64("analysis_confidence", overall),
		zap.Float64("decision_confidence", decisionConfidence))

	return domain.AgentOutput{
		AgentType:  domain.AgentDecision,
		Success:    true,
		Confidence: decisionConfidence,
		RiskLevel:  maxRisk,
		Findings: []domain.Finding{{
			domain.FindingRecommendation: string(recommendation),
			domain.FindingReasoning:      reasoning,
			domain.FindingMaxRisk:        maxRisk.String(),
		}},
		Metadata: map[string]any{
			domain.MetaAnalysisConfidence:  overall,
			domain.MetaDecisionConfidence:  decisionConfidence,
			domain.MetaRecommendation:      string(recommendation),
			domain.MetaConfidenceReasoning: confidenceReasoning,
			domain.MetaConflictsCount:      len(conflicts),
		},
	}, nil
}

func (a *DecisionAgent) degraded(err error) domain.AgentOutput {
	a.logger.Warn("decision synthesis degraded", zap.Error(err))
	out := domain.FailedOutput(domain.AgentDecision, err)
	out.Confidence = 0.0
	return out
}

// DecisionConfidence вычитает из общей уверенности штраф 0.2*disagreement за каждый конфликт
// (суммарно не более 0.5). Результат в [0, overall].
func DecisionConfidence(overall float64, conflicts []domain.Conflict) (float64, error) {
	penalty := 0.0
	for i, c := range conflicts {
		d := c.Disagreement()
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return 0, fmt.Errorf("%w: conflict #%d has disagreement level %v", domain.ErrMalformedConflict, i, d)
		}
		penalty += ConflictPenaltyFactor * d
	}

	penalty = math.Min(penalty, MaxConflictPenalty)
	confidence := math.Max(0.0, overall-penalty)
	return math.Min(confidence, overall), nil
}

// ConfidenceReasoning собирает пояснение из применимых пунктов.
func ConfidenceReasoning(failedCount, conflictCount int, analyticConfidence float64) string {
	var points []string
	if failedCount > 0 {
		points = append(points, fmt.Sprintf("%d agent(s) failed", failedCount))
	}
	if conflictCount > 0 {
		points = append(points, fmt.Sprintf("%d conflict(s) reduced certainty", conflictCount))
	}
	if analyticConfidence < ModerateConfidenceThreshold {
		points = append(points, "moderate analytic confidence")
	}

	if len(points) == 0 {
		return FullConsensusReasoning
	}
	return capitalize(strings.Join(points, " ")) + "."
}

// capitalize: первая буква заглавная, остальные строчные.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// Recommendation достает рекомендацию из результата DecisionAgent.
func Recommendation(out domain.AgentOutput) domain.Action {
	if rec, ok := out.Metadata[domain.MetaRecommendation].(string); ok {
		return domain.Action(rec)
	}
	return domain.ActionUnknown
}
