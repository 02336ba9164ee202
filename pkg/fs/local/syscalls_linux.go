//go:build linux

package local

import (
	"io"
	"time"

	"golang.org/x/sys/unix"

	"github.com/example/handlefs/pkg/fs"
)

// direntBufSize is the getdents(2) buffer size of a directory stream.
const direntBufSize = 8192

type hostSyscalls struct{}

// HostSyscalls returns the Syscalls of the running kernel.
func HostSyscalls() (Syscalls, error) {
	return hostSyscalls{}, nil
}

func openFlags(f OpenFlags) int {
	flags := unix.O_RDONLY | unix.O_CLOEXEC
	if f&OpenPath != 0 {
		flags |= unix.O_PATH
	}
	if f&OpenDirectory != 0 {
		flags |= unix.O_DIRECTORY
	}
	if f&OpenNoFollow != 0 {
		flags |= unix.O_NOFOLLOW
	}
	return flags
}

func handleFlags(f HandleFlags) int {
	var flags int
	if f&HandleEmptyPath != 0 {
		flags |= unix.AT_EMPTY_PATH
	}
	if f&HandleFollow != 0 {
		flags |= unix.AT_SYMLINK_FOLLOW
	}
	return flags
}

func (hostSyscalls) Open(path string, flags OpenFlags, mode uint32) (int, error) {
	fd, err := unix.Open(path, openFlags(flags), mode)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

func (hostSyscalls) NameToHandleAt(dirfd int, name string, flags HandleFlags) (fs.KernelHandle, int, error) {
	fh, mountID, err := unix.NameToHandleAt(dirfd, name, handleFlags(flags))
	if err != nil {
		return fs.KernelHandle{}, 0, err
	}
	h, err := fs.NewKernelHandle(fh.Type(), fh.Bytes())
	if err != nil {
		return fs.KernelHandle{}, 0, unix.EOVERFLOW
	}
	return h, mountID, nil
}

func (hostSyscalls) OpenByHandleAt(mountfd int, h fs.KernelHandle, flags OpenFlags) (int, error) {
	fh := unix.NewFileHandle(h.Type, h.FileID())
	fd, err := unix.OpenByHandleAt(mountfd, fh, openFlags(flags))
	if err != nil {
		return -1, err
	}
	return fd, nil
}

func (hostSyscalls) Fstat(fd int) (RawStat, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return RawStat{}, err
	}
	return RawStat{
		Dev:   uint64(st.Dev),
		Ino:   st.Ino,
		Mode:  st.Mode,
		Nlink: uint64(st.Nlink),
		Uid:   st.Uid,
		Gid:   st.Gid,
		Rdev:  uint64(st.Rdev),
		Size:  st.Size,
		Atime: time.Unix(st.Atim.Unix()),
		Mtime: time.Unix(st.Mtim.Unix()),
		Ctime: time.Unix(st.Ctim.Unix()),
	}, nil
}

func (hostSyscalls) Mkdirat(dirfd int, name string, mode uint32) error {
	return unix.Mkdirat(dirfd, name, mode)
}

func (hostSyscalls) Unlinkat(dirfd int, name string, removeDir bool) error {
	var flags int
	if removeDir {
		flags = unix.AT_REMOVEDIR
	}
	return unix.Unlinkat(dirfd, name, flags)
}

func (hostSyscalls) Readlinkat(dirfd int, name string, buf []byte) (int, error) {
	n, err := unix.Readlinkat(dirfd, name, buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (hostSyscalls) Fchown(fd int, uid, gid int) error {
	return unix.Fchown(fd, uid, gid)
}

func (hostSyscalls) OpenDir(fd int) (DirStream, error) {
	return &direntStream{fd: fd, buf: make([]byte, direntBufSize)}, nil
}

func (hostSyscalls) Close(fd int) error {
	return unix.Close(fd)
}

// direntStream reads getdents(2) records straight off a directory
// descriptor it does not own. ParseDirent drops "." and "..".
type direntStream struct {
	fd    int
	buf   []byte
	pos   int
	end   int
	names []string
}

func (d *direntStream) Next() (string, error) {
	for len(d.names) == 0 {
		if d.pos >= d.end {
			n, err := unix.ReadDirent(d.fd, d.buf)
			if err != nil {
				return "", err
			}
			if n <= 0 {
				return "", io.EOF
			}
			d.pos, d.end = 0, n
		}
		consumed, _, names := unix.ParseDirent(d.buf[d.pos:d.end], -1, nil)
		d.pos += consumed
		d.names = names
	}
	name := d.names[0]
	d.names = d.names[1:]
	return name, nil
}

func (d *direntStream) Close() error {
	d.buf = nil
	d.names = nil
	return nil
}
