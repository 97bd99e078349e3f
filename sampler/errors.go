package sampler

import (
	"errors"
	"fmt"
)

// ConfigError is returned for malformed or inconsistent configuration
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Message)
}

// ErrInvalidConfig creates an error for invalid configuration
func ErrInvalidConfig(msg string) error {
	return ConfigError{Message: msg}
}

var (
	ErrUnknownCryptoMode  = errors.New("unknown crypto mode")
	ErrUnknownLoadProfile = errors.New("unknown load profile")
)

// LookupError reports a crypto mode or load profile name that is not present
// in the configuration. It matches ErrUnknownCryptoMode or
// ErrUnknownLoadProfile with errors.Is.
type LookupError struct {
	Kind error
	Key  string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%v: %q", e.Kind, e.Key)
}

func (e *LookupError) Unwrap() error {
	return e.Kind
}
