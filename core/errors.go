package core

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every *ConfigurationError through errors.Is.
	ErrConfiguration = errors.New("configuration error")
	// ErrDomain matches every *DomainError through errors.Is.
	ErrDomain = errors.New("domain error")
)

// ConfigurationError reports a constellation or satellite parameter that
// cannot produce a well-defined orbit.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// DomainError reports an operation whose inputs lie outside the domain the
// orbit model is defined on (non-finite numbers, time running backwards).
type DomainError struct {
	Op     string
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *DomainError) Is(target error) bool { return target == ErrDomain }

func configErr(field string, value any, reason string) error {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}
