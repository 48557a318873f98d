package utils

import "fmt"

// H5Error attaches the failing read step to a lower level error.
type H5Error struct {
	Context string
	Cause   error
}

func (e *H5Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *H5Error) Unwrap() error {
	return e.Cause
}

// WrapError returns nil for a nil cause so it can wrap call results directly.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &H5Error{Context: context, Cause: cause}
}

// WrapErrorf is WrapError with a formatted context.
func WrapErrorf(cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &H5Error{Context: fmt.Sprintf(format, args...), Cause: cause}
}
