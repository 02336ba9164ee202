package local

import (
	"time"

	"github.com/example/handlefs/pkg/fs"
)

// OpenFlags selects how a descriptor is opened. Implementations map the
// bits onto their native open flags.
type OpenFlags int

const (
	// OpenPath yields a descriptor usable for metadata and *at calls only.
	// The object's content is never opened, so special files have no side
	// effects.
	OpenPath OpenFlags = 1 << iota

	// OpenDirectory fails with ENOTDIR unless the object is a directory.
	OpenDirectory

	// OpenNoFollow refuses to follow a trailing symbolic link.
	OpenNoFollow
)

// HandleFlags tunes name-to-handle resolution.
type HandleFlags int

const (
	// HandleEmptyPath resolves the directory descriptor itself when the
	// name is empty.
	HandleEmptyPath HandleFlags = 1 << iota

	// HandleFollow follows a trailing symbolic link.
	HandleFollow
)

// RawStat is the OS metadata of an object, as returned by fstat(2).
type RawStat struct {
	Dev   uint64
	Ino   uint64
	Mode  uint32
	Nlink uint64
	Uid   uint32
	Gid   uint32
	Rdev  uint64
	Size  int64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// DirStream iterates the raw entries of an open directory.
type DirStream interface {
	// Next returns the next entry name, or io.EOF once the stream is
	// exhausted.
	Next() (string, error)

	// Close releases the stream. It does not close the directory
	// descriptor the stream was opened on.
	Close() error
}

// Syscalls is the set of native primitives LocalFS is built on. It is the
// only place that touches OS-specific behavior. Every method reports
// failure with a syscall.Errno.
type Syscalls interface {
	Open(path string, flags OpenFlags, mode uint32) (int, error)

	// NameToHandleAt resolves name inside dirfd into a persistent handle
	// and returns it with the id of the mount it lives on.
	NameToHandleAt(dirfd int, name string, flags HandleFlags) (fs.KernelHandle, int, error)

	// OpenByHandleAt reopens a handle as a descriptor without any path
	// lookup. mountfd is any descriptor on the handle's mount.
	OpenByHandleAt(mountfd int, h fs.KernelHandle, flags OpenFlags) (int, error)

	Fstat(fd int) (RawStat, error)
	Mkdirat(dirfd int, name string, mode uint32) error
	Unlinkat(dirfd int, name string, removeDir bool) error

	// Readlinkat reads a link target into buf and returns the number of
	// bytes stored. The result is truncated to len(buf).
	Readlinkat(dirfd int, name string, buf []byte) (int, error)

	Fchown(fd int, uid, gid int) error
	OpenDir(fd int) (DirStream, error)
	Close(fd int) error
}
