package planner

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("invalid plan parameters")
	// ErrNumericRange matches every *NumericRangeError via errors.Is.
	ErrNumericRange = errors.New("numeric range exceeded")
)

// ValidationError reports malformed input. No rows are produced when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NumericRangeError reports a step whose quantity or price left the representable range.
type NumericRangeError struct {
	Step  int
	What  string
	Value string
}

func (e *NumericRangeError) Error() string {
	return fmt.Sprintf("numeric range: step %d %s %s out of range", e.Step, e.What, e.Value)
}

func (e *NumericRangeError) Is(target error) bool { return target == ErrNumericRange }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
