package domain

import "errors"

var (
	ErrUnknownRiskLevel  = errors.New("unknown risk level")
	ErrMalformedConflict = errors.New("malformed conflict")
	ErrInvalidWeight     = errors.New("invalid reliability weight")
	ErrInvalidRequest    = errors.New("invalid review request")
	ErrInvalidOutput     = errors.New("invalid agent output")
	ErrNoExperts         = errors.New("no expert agents registered")
	ErrApprovalNotFound  = errors.New("approval request not found")
)
