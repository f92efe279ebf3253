package raster

import (
	"errors"
	"fmt"
)

var (
	// ErrSizeMismatch is wrapped when a payload length disagrees with its metadata
	ErrSizeMismatch = errors.New("buffer size mismatch")
	// ErrUnsupportedDType is wrapped when a descriptor names an unknown element type
	ErrUnsupportedDType = errors.New("unsupported dtype")
)

// ConfigurationError reports malformed metadata or a payload that does not
// match it. It is only ever returned from construction.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("raster: invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("raster: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configErr(field, reason string, err error) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason, Err: err}
}
