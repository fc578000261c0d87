package serde

import (
	"errors"
	"fmt"
)

// SerdeError wraps errors that occur during key/value deserialization.
type SerdeError struct {
	Target string
	Serde  string
	Cause  error
}

func (e *SerdeError) Error() string {
	return fmt.Sprintf("%s deserialisation with %s failed: %v", e.Target, e.Serde, e.Cause)
}

func (e *SerdeError) Unwrap() error {
	return e.Cause
}

func NewSerdeError(target, serde string, cause error) error {
	return &SerdeError{Target: target, Serde: serde, Cause: cause}
}

func AsSerdeError(err error) (*SerdeError, bool) {
	var se *SerdeError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
