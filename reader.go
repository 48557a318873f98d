package mat73

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Reader owns an open MAT-file and resolves variables from it.
type Reader struct {
	file *File
	path string
	log  *zap.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(log *zap.Logger) Option {
	return func(r *Reader) {
		if log != nil {
			r.log = log
		}
	}
}

// NewReader opens path.
func NewReader(path string, opts ...Option) (*Reader, error) {
	r := &Reader{log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.open(path); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) open(path string) error {
	f, err := Open(path)
	if err != nil {
		return fmt.Errorf("unable to open '%s': %w", path, err)
	}
	r.file, r.path = f, path
	r.log.Debug("File opened", zap.String("file", path),
		zap.Int64("user block", f.UserBlockSize()), zap.Uint8("superblock", f.SuperblockVersion()))
	return nil
}

// File returns the open file, nil after Close.
func (r *Reader) File() *File {
	return r.file
}

// Path returns the name of the open file.
func (r *Reader) Path() string {
	return r.path
}

// Close closes the file. Closing twice is not an error.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.log.Info("File closed", zap.String("file", r.path))
	return err
}

// ChangeFile closes the current file and opens path instead.
func (r *Reader) ChangeFile(path string) error {
	err := r.Close()
	if er := r.open(path); er != nil {
		return multierr.Append(err, er)
	}
	r.log.Info("File changed", zap.String("file", path))
	return err
}

// GetStruct resolves one variable.
func (r *Reader) GetStruct(name string, mode OutputMode) (*Struct, error) {
	if r.file == nil {
		return nil, ErrClosed
	}
	return GetStruct(r.file, name, mode)
}

// Variables lists the top-level variable names in storage order, leaving
// out the groups MATLAB keeps for its own use.
func (r *Reader) Variables() ([]string, error) {
	if r.file == nil {
		return nil, ErrClosed
	}
	var names []string
	for _, c := range r.file.Root().Children() {
		if IsInternal(c.Name()) {
			continue
		}
		names = append(names, c.Name())
	}
	return names, nil
}

// IsInternal reports whether a top-level name belongs to MATLAB itself
// ("#refs#", "#subsystem#").
func IsInternal(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, "#") && strings.HasSuffix(name, "#")
}

// GetStructs resolves every name separately and merges the results. A
// failing name does not stop the others; all failures are returned
// together with whatever resolved. Names ending in the same element
// ("A/x", "B/x") collide and only the first is kept.
func (r *Reader) GetStructs(names []string, mode OutputMode) (*Struct, error) {
	if r.file == nil {
		return nil, ErrClosed
	}
	out := NewStruct()
	var errs error
	for _, name := range names {
		s, err := GetStruct(r.file, name, mode)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := out.Merge(s); err != nil {
			errs = multierr.Append(errs, &ResolveError{Path: name, Err: err})
		}
	}
	return out, errs
}
