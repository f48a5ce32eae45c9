package entitlement

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfiguration marks a missing or malformed field-mapping
	// configuration. It is fatal for the whole batch.
	ErrConfiguration = errors.New("entitlement configuration error")

	// ErrRecordNotFound is returned by lookups of a single record. Batch
	// operations never return it; unknown ids are simply absent.
	ErrRecordNotFound = errors.New("record not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ConfigurationError describes which mapping entry was rejected.
type ConfigurationError struct {
	Mapping string // label of the offending mapping, empty for the whole set
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := "field mapping"
	if e.Mapping != "" {
		msg += " " + fmt.Sprintf("%q", e.Mapping)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

// IsConfiguration returns true for configuration failures.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
