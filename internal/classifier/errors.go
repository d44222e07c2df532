package classifier

import (
	"errors"
	"fmt"
)

// ErrModelNotReady is returned when classification is requested before the
// model and labels are loaded.
var ErrModelNotReady = errors.New("classifier: model not ready")

// DecodeError reports image bytes that could not be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// InferenceError reports a failure while running or interpreting the model.
type InferenceError struct {
	Operation string
	Err       error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference error in %s: %v", e.Operation, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
