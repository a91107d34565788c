package domain

import (
	"fmt"
	"strings"
)

// RiskLevel — упорядоченный уровень риска. Числовой ранг дает нативный порядок для max().
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskNames = [...]string{"none", "low", "medium", "high", "critical"}

func (r RiskLevel) String() string {
	if r.Valid() {
		return riskNames[r]
	}
	return fmt.Sprintf("risk(%d)", int(r))
}

// Valid сообщает, входит ли значение в перечисление.
func (r RiskLevel) Valid() bool {
	return r >= RiskNone && r <= RiskCritical
}

// ParseRiskLevel принимает имя уровня без учета регистра.
func ParseRiskLevel(s string) (RiskLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range riskNames {
		if n == name {
			return RiskLevel(i), nil
		}
	}
	return RiskNone, fmt.Errorf("%w: %q", ErrUnknownRiskLevel, s)
}

func (r RiskLevel) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRiskLevel, int(r))
	}
	return []byte(r.String()), nil
}

func (r *RiskLevel) UnmarshalText(text []byte) error {
	lvl, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*r = lvl
	return nil
}

// MaxRisk возвращает наибольший из уровней.
func MaxRisk(levels ...RiskLevel) RiskLevel {
	top := RiskNone
	for _, l := range levels {
		if l > top {
			top = l
		}
	}
	return top
}

// Action — рекомендованное действие по итогам синтеза.
type Action string

const (
	ActionManualReviewRequired Action = "manual_review_required"
	ActionReviewRequired       Action = "review_required"
	ActionProceedWithCaution   Action = "proceed_with_caution"
	ActionAcceptable           Action = "acceptable"
	ActionDefer                Action = "defer"   // Решение за человеком
	ActionUnknown              Action = "unknown" // Уровень риска вне перечисления
)

// ActionForRisk — фиксированная таблица риск -> действие. Полная функция над всеми пятью уровнями.
func ActionForRisk(r RiskLevel) Action {
	switch r {
	case RiskCritical:
		return ActionManualReviewRequired
	case RiskHigh:
		return ActionReviewRequired
	case RiskMedium:
		return ActionProceedWithCaution
	case RiskLow, RiskNone:
		return ActionAcceptable
	default:
		return ActionUnknown
	}
}
