package domain

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(agentOutputLevel, AgentOutput{})
	return v
}

// agentOutputLevel: уверенность проверяем только у успешных результатов, у неуспешных она игнорируется.
func agentOutputLevel(sl validator.StructLevel) {
	o := sl.Current().Interface().(AgentOutput)
	if !o.Success {
		return
	}
	if math.IsNaN(o.Confidence) || o.Confidence < 0 || o.Confidence > 1 {
		sl.ReportError(o.Confidence, "Confidence", "confidence", "confidence_range", "")
	}
}

// Validate проверяет запрос на границе системы (HTTP/gRPC/CLI).
func (r ReviewRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Validate проверяет один результат агента (ответ удаленного эксперта).
func (o AgentOutput) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return nil
}
