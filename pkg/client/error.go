package client

import (
	"errors"
	"fmt"

	"github.com/example/handlefs/pkg/api"
	"github.com/example/handlefs/pkg/fs"
)

// Errors without a filesystem counterpart. Everything else a status maps
// to is one of the fs sentinels, so callers can test with errors.Is
// against the same values the server side uses.
var (
	ErrPermission  = errors.New("permission denied")
	ErrExist       = errors.New("file exists")
	ErrBadCookie   = errors.New("directory cookie is stale")
	ErrInvalidPath = errors.New("invalid path")
)

// NFSError represents an error in a file service operation
type NFSError struct {
	// Operation that failed
	Op string

	// Status returned by the server
	Status api.Status

	// Error message
	Message string

	// Underlying error
	Err error
}

// Error implements the error interface
func (e *NFSError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s (%s): %v", e.Op, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s (%s)", e.Op, e.Status, e.Message)
}

// Unwrap returns the underlying error
func (e *NFSError) Unwrap() error {
	return e.Err
}

// NewNFSError creates a new NFS error
func NewNFSError(op string, status api.Status, message string, err error) *NFSError {
	return &NFSError{
		Op:      op,
		Status:  status,
		Message: message,
		Err:     err,
	}
}

var statusErrors = map[api.Status]struct {
	message string
	err     error
}{
	api.Status_ERR_PERM:        {"not owner", ErrPermission},
	api.Status_ERR_NOENT:       {"no such file or directory", fs.ErrNotExist},
	api.Status_ERR_IO:          {"I/O error", fs.ErrIO},
	api.Status_ERR_ACCES:       {"permission denied", ErrPermission},
	api.Status_ERR_EXIST:       {"file exists", ErrExist},
	api.Status_ERR_NOTDIR:      {"not a directory", fs.ErrNotDir},
	api.Status_ERR_ISDIR:       {"is a directory", fs.ErrIsDir},
	api.Status_ERR_INVAL:       {"invalid argument", fs.ErrInvalidName},
	api.Status_ERR_NAMETOOLONG: {"filename too long", fs.ErrInvalidName},
	api.Status_ERR_NOTEMPTY:    {"directory not empty", fs.ErrNotEmpty},
	api.Status_ERR_STALE:       {"stale file handle", fs.ErrInvalidHandle},
	api.Status_ERR_BADHANDLE:   {"illegal file handle", fs.ErrInvalidHandle},
	api.Status_ERR_BAD_COOKIE:  {"readdir cookie is stale", ErrBadCookie},
	api.Status_ERR_NOTSUPP:     {"operation not supported", fs.ErrNotSupported},
	api.Status_ERR_SERVERFAULT: {"server fault", fs.ErrServerFault},
}

// StatusToError converts a response status to an error, nil for OK.
func StatusToError(op string, status api.Status) error {
	if status == api.Status_OK {
		return nil
	}
	if e, ok := statusErrors[status]; ok {
		return NewNFSError(op, status, e.message, e.err)
	}
	return NewNFSError(op, status, "unknown error", nil)
}
