package domain

// AgentType идентифицирует экспертного агента (или компонент), выпустившего AgentOutput.
type AgentType string

const (
	AgentSecurityAnalysis  AgentType = "security_analysis"
	AgentLogicAnalysis     AgentType = "logic_analysis"
	AgentCodeQuality       AgentType = "code_quality"
	AgentFeatureExtraction AgentType = "feature_extraction"
	AgentDecision          AgentType = "decision" // Синтез решения, не эксперт
)

// ExpertAgentTypes — все известные экспертные агенты в порядке их регистрации.
func ExpertAgentTypes() []AgentType {
	return []AgentType{
		AgentSecurityAnalysis,
		AgentLogicAnalysis,
		AgentCodeQuality,
		AgentFeatureExtraction,
	}
}

// Finding — структурированная запись агента. Для ядра непрозрачна и передается как есть.
type Finding map[string]any

// AgentOutput — единая форма результата любого агента.
// Confidence и RiskLevel неуспешного результата не участвуют ни в агрегации, ни в расчете max-риска.
type AgentOutput struct {
	AgentType    AgentType      `json:"agent_type" validate:"required,max=64"`
	Success      bool           `json:"success"`
	Confidence   float64        `json:"confidence"`
	RiskLevel    RiskLevel      `json:"risk_level" validate:"gte=0,lte=4"`
	Findings     []Finding      `json:"findings"`
	Metadata     map[string]any `json:"metadata"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// FailedOutput собирает результат для агента, который не смог завершить анализ.
func FailedOutput(agentType AgentType, err error) AgentOutput {
	out := AgentOutput{
		AgentType: agentType,
		RiskLevel: RiskNone,
		Findings:  []Finding{},
		Metadata:  map[string]any{},
	}
	if err != nil {
		out.ErrorMessage = err.Error()
	}
	return out
}

// Successful оставляет только успешные результаты, сохраняя исходный порядок.
func Successful(outputs []AgentOutput) []AgentOutput {
	res := make([]AgentOutput, 0, len(outputs))
	for _, o := range outputs {
		if o.Success {
			res = append(res, o)
		}
	}
	return res
}
