package mat73

import (
	"errors"
	"fmt"
)

// Resolution errors. Failures returned by GetStruct and Resolve wrap one of
// these in a *ResolveError.
var (
	// ErrLookup means a requested name is not present.
	ErrLookup = errors.New("name not found")
	// ErrUnsupportedNode means a node is neither a group nor a dataset.
	ErrUnsupportedNode = errors.New("unsupported node")
	// ErrDanglingReference means a reference does not point at an object.
	ErrDanglingReference = errors.New("dangling reference")
	// ErrEncoding means character data cannot be turned into a string.
	ErrEncoding = errors.New("invalid character data")
)

// File level errors.
var (
	ErrNotHDF5             = errors.New("not an HDF5 file")
	ErrNoHeader            = errors.New("no MATLAB header")
	ErrClosed              = errors.New("file is closed")
	ErrUnsupportedDatatype = errors.New("unsupported datatype")
	ErrDuplicateName       = errors.New("duplicate name")
)

// ResolveError records where in the hierarchy resolution failed.
type ResolveError struct {
	Path string
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Path, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

func resolveErr(path string, sentinel error, format string, args ...any) error {
	if format == "" {
		return &ResolveError{Path: path, Err: sentinel}
	}
	return &ResolveError{Path: path, Err: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))}
}
