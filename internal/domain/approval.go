package domain

import (
	"errors"
	"time"
)

// Статусы State Machine
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "PENDING"
	StatusApproved ApprovalStatus = "APPROVED"
	StatusRejected ApprovalStatus = "REJECTED"
)

var (
	ErrInvalidTransition = errors.New("invalid approval status transition")
	ErrAlreadyProcessed  = errors.New("approval request already processed")
)

// ApprovalRequest — заявка Human-in-the-loop, созданная для отложенного (defer) ревью.
type ApprovalRequest struct {
	ID                 string         `json:"id"`
	ReviewID           string         `json:"review_id"` // Ссылка на цикл ревью, который ждет оператора
	Subject            Subject        `json:"subject"`
	Reason             string         `json:"reason"`
	Recommendation     Action         `json:"recommendation"`
	MaxRisk            RiskLevel      `json:"max_risk"`
	DecisionConfidence float64        `json:"decision_confidence"`
	Payload            string         `json:"payload"` // Полный ReviewResult в JSON для анализа оператором
	Status             ApprovalStatus `json:"status"`

	ReviewerID *string `json:"reviewer_id,omitempty"`
	Comment    *string `json:"comment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanTransitionTo проверяет правила конечного автомата
func (a *ApprovalRequest) CanTransitionTo(next ApprovalStatus) error {
	if a.Status != StatusPending {
		return ErrAlreadyProcessed
	}
	if next != StatusApproved && next != StatusRejected {
		return ErrInvalidTransition
	}
	return nil
}

// ParseApprovalStatus нормализует статус из query-параметра; пустая строка означает «все».
func ParseApprovalStatus(s string) (ApprovalStatus, error) {
	switch st := ApprovalStatus(s); st {
	case "", StatusPending, StatusApproved, StatusRejected:
		return st, nil
	default:
		return "", ErrInvalidTransition
	}
}
