package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the design engine
var (
	// ErrInvalidParameter covers malformed spending parameters, out-of-range
	// fractions, non-increasing timing and non-positive durations or rates.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInfeasibleDesign means a sample size or duration solve has no
	// finite positive solution under the given constraints.
	ErrInfeasibleDesign = errors.New("infeasible design")

	// ErrNonConvergent means root finding or integration did not reach
	// tolerance within its iteration bound.
	ErrNonConvergent = errors.New("non-convergent computation")

	// ErrInconsistentSchedule means observed event counts cannot be
	// reconciled with the planned analysis schedule.
	ErrInconsistentSchedule = errors.New("inconsistent schedule")

	// Storage
	ErrNotFound       = errors.New("resource not found")
	ErrDesignNotFound = fmt.Errorf("%w: design", ErrNotFound)
)

// DesignError identifies the kind of failure and the input implicated.
type DesignError struct {
	Kind    error
	Field   string
	Value   interface{}
	Message string
}

func (e *DesignError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%v: %s=%v: %s", e.Kind, e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Field, e.Message)
}

// Unwrap lets errors.Is match the kind sentinel.
func (e *DesignError) Unwrap() error {
	return e.Kind
}

// InvalidParameter reports a bad input field.
func InvalidParameter(field string, value interface{}, format string, args ...interface{}) error {
	return &DesignError{Kind: ErrInvalidParameter, Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
}

// Infeasible reports a solve without a finite positive solution.
func Infeasible(field string, value interface{}, format string, args ...interface{}) error {
	return &DesignError{Kind: ErrInfeasibleDesign, Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
}

// NonConvergent reports a numerical failure.
func NonConvergent(field string, value interface{}, format string, args ...interface{}) error {
	return &DesignError{Kind: ErrNonConvergent, Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
}

// InconsistentSchedule reports observed counts that break the schedule.
func InconsistentSchedule(field string, value interface{}, format string, args ...interface{}) error {
	return &DesignError{Kind: ErrInconsistentSchedule, Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
}

// FieldOf returns the implicated field of a DesignError, or "".
func FieldOf(err error) string {
	var de *DesignError
	if errors.As(err, &de) {
		return de.Field
	}
	return ""
}
