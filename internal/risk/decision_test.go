package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/trustgate/internal/domain"
	"go.uber.org/zap"
)

func newTestAgent() *DecisionAgent {
	return NewDecisionAgent(zap.NewNop())
}

func out(t domain.AgentType, success bool, r domain.RiskLevel) domain.AgentOutput {
	return domain.AgentOutput{AgentType: t, Success: success, Confidence: 0.9, RiskLevel: r}
}

func finding(t *testing.T, o domain.AgentOutput) domain.Finding {
	t.Helper()
	require.Len(t, o.Findings, 1)
	return o.Findings[0]
}

func TestRecommendAction_CriticalOverrideBelowThreshold(t *testing.T) {
	a := newTestAgent()
	res := a.RecommendAction([]domain.AgentOutput{out(domain.AgentSecurityAnalysis, true, domain.RiskCritical)}, 0.79, nil)

	require.True(t, res.Success)
	assert.Equal(t, domain.AgentDecision, res.AgentType)
	assert.Equal(t, domain.RiskCritical, res.RiskLevel)
	assert.Equal(t, string(domain.ActionDefer), res.Metadata[domain.MetaRecommendation])

	f := finding(t, res)
	assert.Equal(t, "defer", f[domain.FindingRecommendation])
	assert.Contains(t, f[domain.FindingReasoning], "0.80")
	assert.Contains(t, f[domain.FindingReasoning], "0.79")
	assert.Equal(t, "critical", f[domain.FindingMaxRisk])
}

func TestRecommendAction_CriticalOverrideBoundaryIsStrict(t *testing.T) {
	a := newTestAgent()
	res := a.RecommendAction([]domain.AgentOutput{out(domain.AgentSecurityAnalysis, true, domain.RiskCritical)}, 0.80, nil)

	assert.Equal(t, domain.ActionManualReviewRequired, Recommendation(res))
	assert.Equal(t, "Highest detected risk: critical", finding(t, res)[domain.FindingReasoning])
}

func TestRecommendAction_IgnoresFailedRisk(t *testing.T) {
	a := newTestAgent()
	res := a.RecommendAction([]domain.AgentOutput{
		out(domain.AgentSecurityAnalysis, false, domain.RiskCritical),
		out(domain.AgentLogicAnalysis, true, domain.RiskMedium),
	}, 0.9, nil)

	assert.Equal(t, domain.RiskMedium, res.RiskLevel)
	assert.Equal(t, domain.ActionProceedWithCaution, Recommendation(res))
	assert.Equal(t, "1 agent(s) failed.", res.Metadata[domain.MetaConfidenceReasoning])
}

func TestRecommendAction_NoSuccessfulOutputs(t *testing.T) {
	a := newTestAgent()
	res := a.RecommendAction([]domain.AgentOutput{out(domain.AgentSecurityAnalysis, false, domain.RiskHigh)}, 0.0, nil)

	assert.True(t, res.Success)
	assert.Equal(t, domain.RiskNone, res.RiskLevel)
	assert.Equal(t, domain.ActionAcceptable, Recommendation(res))
	assert.Equal(t, "1 agent(s) failed moderate analytic confidence.", res.Metadata[domain.MetaConfidenceReasoning])
}

func TestRecommendAction_MetadataShape(t *testing.T) {
	a := newTestAgent()
	conflicts := []domain.Conflict{domain.NewConflict(0.5, "a"), domain.NewConflict(1.0, "b")}
	res := a.RecommendAction([]domain.AgentOutput{out(domain.AgentSecurityAnalysis, true, domain.RiskHigh)}, 0.9, conflicts)

	assert.Equal(t, 0.9, res.Metadata[domain.MetaAnalysisConfidence])
	assert.InDelta(t, 0.6, res.Metadata[domain.MetaDecisionConfidence].(float64), 1e-9)
	assert.InDelta(t, 0.6, res.Confidence, 1e-9)
	assert.Equal(t, "review_required", res.Metadata[domain.MetaRecommendation])
	assert.Equal(t, 2, res.Metadata[domain.MetaConflictsCount])
	assert.Equal(t, "2 conflict(s) reduced certainty.", res.Metadata[domain.MetaConfidenceReasoning])
	assert.Len(t, res.Metadata, 5)
}

func TestRecommendAction_FullConsensus(t *testing.T) {
	a := newTestAgent()
	res := a.RecommendAction([]domain.AgentOutput{out(domain.AgentSecurityAnalysis, true, domain.RiskLow)}, 0.95, nil)
	assert.Equal(t, FullConsensusReasoning, res.Metadata[domain.MetaConfidenceReasoning])
	assert.Equal(t, 0.95, res.Confidence)
}

func TestRecommendAction_MalformedConflictDegrades(t *testing.T) {
	a := newTestAgent()
	nan := math.NaN()
	res := a.RecommendAction(
		[]domain.AgentOutput{out(domain.AgentSecurityAnalysis, true, domain.RiskHigh)},
		0.9,
		[]domain.Conflict{{DisagreementLevel: &nan}},
	)

	assert.False(t, res.Success)
	assert.Equal(t, domain.AgentDecision, res.AgentType)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, domain.RiskNone, res.RiskLevel)
	assert.Empty(t, res.Findings)
	assert.Contains(t, res.ErrorMessage, "malformed conflict")
}

func TestRecommendAction_UnknownRiskDegrades(t *testing.T) {
	a := newTestAgent()
	res := a.RecommendAction([]domain.AgentOutput{out(domain.AgentSecurityAnalysis, true, domain.RiskLevel(9))}, 0.9, nil)

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "unknown risk level")
}

func TestDecisionConfidence_Penalty(t *testing.T) {
	c, err := DecisionConfidence(0.9, []domain.Conflict{domain.NewConflict(0.5, ""), domain.NewConflict(1.0, "")})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, c, 1e-9)
}

func TestDecisionConfidence_MissingLevelIsMaximal(t *testing.T) {
	c, err := DecisionConfidence(0.9, []domain.Conflict{{}})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, c, 1e-9)
}

func TestDecisionConfidence_Cap(t *testing.T) {
	conflicts := make([]domain.Conflict, 5)
	for i := range conflicts {
		conflicts[i] = domain.NewConflict(1.0, "")
	}

	c, err := DecisionConfidence(0.9, conflicts)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, c, 1e-9)

	c, err = DecisionConfidence(0.3, conflicts)
	require.NoError(t, err)
	assert.Equal(t, 0.0, c)
}

func TestDecisionConfidence_NoConflictsIsExact(t *testing.T) {
	for _, overall := range []float64{0, 0.123456789, 0.7, 1} {
		c, err := DecisionConfidence(overall, nil)
		require.NoError(t, err)
		assert.Equal(t, overall, c)
	}
}

func TestDecisionConfidence_NeverExceedsOverall(t *testing.T) {
	for _, overall := range []float64{0, 0.1, 0.5, 0.99, 1} {
		for _, lvl := range []float64{0, 0.25, 1} {
			c, err := DecisionConfidence(overall, []domain.Conflict{domain.NewConflict(lvl, ""), {}})
			require.NoError(t, err)
			assert.LessOrEqual(t, c, overall)
			assert.GreaterOrEqual(t, c, 0.0)
		}
	}
}

func TestConfidenceReasoning(t *testing.T) {
	assert.Equal(t, FullConsensusReasoning, ConfidenceReasoning(0, 0, 0.95))
	assert.Equal(t, FullConsensusReasoning, ConfidenceReasoning(0, 0, 0.85))
	assert.Equal(t, "Moderate analytic confidence.", ConfidenceReasoning(0, 0, 0.84))
	assert.Equal(t, "2 agent(s) failed 1 conflict(s) reduced certainty moderate analytic confidence.", ConfidenceReasoning(2, 1, 0.5))
}

func TestActionForRisk_Total(t *testing.T) {
	expected := map[domain.RiskLevel]domain.Action{
		domain.RiskCritical: domain.ActionManualReviewRequired,
		domain.RiskHigh:     domain.ActionReviewRequired,
		domain.RiskMedium:   domain.ActionProceedWithCaution,
		domain.RiskLow:      domain.ActionAcceptable,
		domain.RiskNone:     domain.ActionAcceptable,
	}
	for lvl := domain.RiskNone; lvl <= domain.RiskCritical; lvl++ {
		assert.Equal(t, expected[lvl], domain.ActionForRisk(lvl), lvl.String())
	}
}
