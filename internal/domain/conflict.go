package domain

// DefaultDisagreementLevel применяется к конфликту без явной оценки: неразмеченный конфликт считается максимальным.
const DefaultDisagreementLevel = 1.0

// Conflict — обнаруженное расхождение между агентами.
type Conflict struct {
	Agents      []AgentType `json:"agents,omitempty"`
	Description string      `json:"description,omitempty"`
	// nil означает, что детектор не проставил оценку
	DisagreementLevel *float64 `json:"disagreement_level,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// Disagreement возвращает уровень расхождения с учетом значения по умолчанию.
func (c Conflict) Disagreement() float64 {
	if c.DisagreementLevel == nil {
		return DefaultDisagreementLevel
	}
	return *c.DisagreementLevel
}

// HasDisagreementLevel — false сигнализирует о вероятной ошибке в детекторе конфликтов.
func (c Conflict) HasDisagreementLevel() bool {
	return c.DisagreementLevel != nil
}

// NewConflict создает конфликт с проставленной оценкой.
func NewConflict(level float64, description string, agents ...AgentType) Conflict {
	return Conflict{
		Agents:            agents,
		Description:       description,
		DisagreementLevel: &level,
	}
}
