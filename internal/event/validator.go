package event

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator checks inbound events at the ingestion boundary. Events that
// fail validation never reach the windows or the event store.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new event validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate validates a single inbound event.
// Returns an error if a required field is missing or out of range.
func (v *Validator) Validate(e *Event) error {
	if e == nil {
		return fmt.Errorf("nil event")
	}

	if err := v.validate.Struct(e); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	// TsMs is optional (server time is used when absent) but must not be
	// negative when supplied.
	if e.TsMs < 0 {
		return fmt.Errorf("invalid event: negative timestamp %d", e.TsMs)
	}

	return nil
}
