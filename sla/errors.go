package sla

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEntitlement is returned when Calculate is called without an
	// entitlement. The caller owns the fallback policy.
	ErrNoEntitlement = errors.New("no entitlement for record")

	// ErrConfiguration marks an unusable scheduler configuration (e.g. a
	// business-hours calendar with no open days). Fatal.
	ErrConfiguration = errors.New("scheduler configuration error")

	// ErrCalculation marks an internal fault during date math. Calculate
	// recovers it via the error fallback; it never reaches the caller.
	ErrCalculation = errors.New("service date calculation failed")

	// ErrLocationNotFound is returned by LocationSource implementations.
	ErrLocationNotFound = errors.New("location not found")
)

// CalculationError says which step of the date math failed.
type CalculationError struct {
	Step   string
	Reason string
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Step, e.Reason)
}

func (e *CalculationError) Unwrap() error { return ErrCalculation }

func calcErr(step, format string, args ...any) error {
	return &CalculationError{Step: step, Reason: fmt.Sprintf(format, args...)}
}
