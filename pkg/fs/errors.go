// pkg/fs/errors.go
package fs

import (
	"errors"
	"fmt"
	"syscall"
)

// Filesystem errors that map to file service status codes.
var (
	ErrNotExist      = errors.New("no such file or directory")
	ErrNotDir        = errors.New("not a directory")
	ErrIsDir         = errors.New("is a directory")
	ErrIO            = errors.New("input/output error")
	ErrNotEmpty      = errors.New("directory not empty")
	ErrInvalidHandle = errors.New("invalid file handle")
	ErrInvalidName   = errors.New("invalid name")
	ErrNotSupported  = errors.New("operation not supported")

	// ErrServerFault covers every OS error the backend has no
	// classification for.
	ErrServerFault = errors.New("server fault")
)

// FSError represents a filesystem error with additional context.
type FSError struct {
	Op   string
	Name string

	// Errno is the raw OS error code, zero when the error did not
	// originate from a system call.
	Errno syscall.Errno

	Err error
}

// Error implements the error interface.
func (e *FSError) Error() string {
	msg := e.Err.Error()
	switch {
	case e.Errno == 0:
	case e.Errno.Error() == msg:
		msg = fmt.Sprintf("%s (errno %d)", msg, int(e.Errno))
	default:
		msg = fmt.Sprintf("%s: %s (errno %d)", msg, e.Errno.Error(), int(e.Errno))
	}
	if e.Name == "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return fmt.Sprintf("%s %q: %s", e.Op, e.Name, msg)
}

// Unwrap returns the underlying error.
func (e *FSError) Unwrap() error {
	return e.Err
}

// NewError creates a new FSError.
func NewError(op, name string, err error) error {
	return &FSError{
		Op:   op,
		Name: name,
		Err:  err,
	}
}

// NotSupported returns the error every unimplemented operation fails with.
func NotSupported(op string) error {
	return NewError(op, "", ErrNotSupported)
}
