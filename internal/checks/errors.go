package checks

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateID      = errors.New("duplicate check id")
	ErrInvalidMetadata  = errors.New("invalid check metadata")
	ErrRegistrySealed   = errors.New("registry is sealed")
	ErrEmptyRegistry    = errors.New("no checks registered")
	ErrUnknownCheck     = errors.New("unknown check")
	ErrMissingWeight    = errors.New("missing severity weight")
	ErrInvalidWeight    = errors.New("invalid severity weight")
	ErrInvalidThreshold = errors.New("passing threshold out of range")
	ErrInvalidFinding   = errors.New("invalid finding")
)

// RegistrationError is returned when a check cannot be added to a registry
type RegistrationError struct {
	ID  string
	Err error
}

func (e *RegistrationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("register check: %v", e.Err)
	}
	return fmt.Sprintf("register check %s: %v", e.ID, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// ConfigurationError reports a missing or invalid scoring configuration
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ErrorKind tags ERROR findings so reports can tell probe failures from timeouts
type ErrorKind string

const (
	ErrorKindNone      ErrorKind = ""
	ErrorKindProbe     ErrorKind = "probe"
	ErrorKindTimeout   ErrorKind = "timeout"
	ErrorKindCancelled ErrorKind = "cancelled"
)

// ProbeError wraps a failure raised by a check while evaluating
type ProbeError struct {
	CheckID string
	Err     error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("check %s: %v", e.CheckID, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }
