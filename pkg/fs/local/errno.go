package local

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/containerd/log"

	"github.com/example/handlefs/pkg/fs"
)

// errnoKinds is the fixed errno classification. Anything missing here is a
// server fault.
var errnoKinds = map[syscall.Errno]error{
	syscall.ENOENT:    fs.ErrNotExist,
	syscall.ENOTDIR:   fs.ErrNotDir,
	syscall.EISDIR:    fs.ErrIsDir,
	syscall.EIO:       fs.ErrIO,
	syscall.ENOTEMPTY: fs.ErrNotEmpty,
}

// classifyErrno returns the fs sentinel error for an OS error code.
func classifyErrno(errno syscall.Errno) error {
	if kind, ok := errnoKinds[errno]; ok {
		return kind
	}
	return fs.ErrServerFault
}

// checkError translates the failure of a native call. err is nil when the
// call succeeded.
func checkError(ctx context.Context, op, name string, err error) error {
	if err == nil {
		return nil
	}

	var fsErr *fs.FSError
	if errors.As(err, &fsErr) {
		return err
	}

	var errno syscall.Errno
	if !errors.As(err, &errno) {
		e := &fs.FSError{Op: op, Name: name, Err: fmt.Errorf("%w: %v", fs.ErrServerFault, err)}
		log.G(ctx).WithError(e).Error("unclassified error")
		return e
	}

	e := &fs.FSError{
		Op:    op,
		Name:  name,
		Errno: errno,
		Err:   classifyErrno(errno),
	}
	if e.Err == fs.ErrServerFault {
		log.G(ctx).WithError(e).WithField("errno", int(errno)).Error("unclassified errno")
	} else {
		log.G(ctx).WithError(e).Debug("last error")
	}
	return e
}
