package local

import (
	"context"

	"github.com/containerd/log"

	"github.com/example/handlefs/pkg/fs"
)

// rawFD is a descriptor owned by a single call. Acquire it with openInode
// and release it with a deferred release; it is never cached or shared.
type rawFD struct {
	ctx      context.Context
	sys      Syscalls
	fd       int
	released bool
}

// openInode reopens inode by handle relative to the root mount.
func (l *LocalFS) openInode(ctx context.Context, op string, inode fs.Inode, flags OpenFlags) (*rawFD, error) {
	fh, err := l.toKernelHandle(inode)
	if err != nil {
		return nil, err
	}
	fd, err := l.sys.OpenByHandleAt(l.rootFd, fh, flags)
	if err != nil {
		return nil, checkError(ctx, op, "", err)
	}
	return &rawFD{ctx: ctx, sys: l.sys, fd: fd}, nil
}

// release closes the descriptor. Calling it more than once is a no-op.
func (f *rawFD) release() {
	if f.released {
		return
	}
	f.released = true
	if err := f.sys.Close(f.fd); err != nil {
		log.G(f.ctx).WithError(err).WithField("fd", f.fd).Warn("failed to close descriptor")
	}
}
