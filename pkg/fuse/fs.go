// Package fuse exposes a remote export as a FUSE filesystem.
package fuse

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/containerd/log"
	"golang.org/x/sys/unix"

	"github.com/example/handlefs/pkg/api"
	"github.com/example/handlefs/pkg/client"
	handlefs "github.com/example/handlefs/pkg/fs"
	"github.com/example/handlefs/pkg/nfs"
)

// RemoteFS is the part of the file service client the nodes use.
// *client.Client implements it.
type RemoteFS interface {
	GetAttr(ctx context.Context, fileHandle []byte) (*api.FileAttributes, error)
	Lookup(ctx context.Context, dirHandle []byte, name string) ([]byte, *api.FileAttributes, error)
	ReadDir(ctx context.Context, dirHandle []byte) ([]*api.DirEntry, error)
	Readlink(ctx context.Context, fileHandle []byte) (string, error)
	Mkdir(ctx context.Context, dirHandle []byte, name string, attrs *api.FileAttributes) ([]byte, *api.FileAttributes, error)
	Remove(ctx context.Context, dirHandle []byte, name string) error
	Access(ctx context.Context, fileHandle []byte, access uint32) (uint32, error)
}

// NFSFS implements the FUSE filesystem interface
type NFSFS struct {
	remote RemoteFS
	root   []byte

	// attrValid is how long the kernel may cache attributes and entries
	attrValid time.Duration
}

var _ fs.FS = (*NFSFS)(nil)

// NewNFSFS creates a filesystem serving the tree below rootHandle.
func NewNFSFS(remote RemoteFS, rootHandle []byte, attrValid time.Duration) *NFSFS {
	return &NFSFS{
		remote:    remote,
		root:      rootHandle,
		attrValid: attrValid,
	}
}

// Root returns the root directory of the filesystem
func (f *NFSFS) Root() (fs.Node, error) {
	return &Dir{node{fs: f, handle: f.root, path: "/"}}, nil
}

// node is the state shared by every node type.
type node struct {
	fs     *NFSFS
	handle []byte
	path   string
}

func (n *node) Attr(ctx context.Context, a *fuse.Attr) error {
	attrs, err := n.fs.remote.GetAttr(ctx, n.handle)
	if err != nil {
		return toErrno(ctx, "getattr", n.path, err)
	}
	n.fs.fillAttr(a, attrs)
	return nil
}

// Access forwards access(2) checks. The mask uses R_OK/W_OK/X_OK.
func (n *node) Access(ctx context.Context, req *fuse.AccessRequest) error {
	var want uint32
	if req.Mask&unix.R_OK != 0 {
		want |= api.AccessRead
	}
	if req.Mask&unix.W_OK != 0 {
		want |= api.AccessModify | api.AccessExtend
	}
	if req.Mask&unix.X_OK != 0 {
		want |= api.AccessExecute | api.AccessLookup
	}
	if want == 0 {
		return nil
	}

	granted, err := n.fs.remote.Access(withCaller(ctx, req.Header), n.handle, want)
	if err != nil {
		return toErrno(ctx, "access", n.path, err)
	}
	if granted&want != want {
		return fuse.Errno(syscall.EACCES)
	}
	return nil
}

// newNode wraps a handle in the node type matching attrs.
func (f *NFSFS) newNode(handle []byte, attrs *api.FileAttributes, path string) fs.Node {
	n := node{fs: f, handle: handle, path: path}
	if attrs == nil {
		return &File{n}
	}
	switch attrs.Type {
	case api.FileType_DIRECTORY:
		return &Dir{n}
	case api.FileType_SYMLINK:
		return &Symlink{n}
	default:
		return &File{n}
	}
}

func (f *NFSFS) fillAttr(a *fuse.Attr, attrs *api.FileAttributes) {
	a.Valid = f.attrValid
	a.Inode = attrs.Fileid
	a.Size = attrs.Size
	a.Blocks = (attrs.Size + 511) / 512
	a.Mode = fileMode(attrs)
	a.Nlink = attrs.Nlink
	a.Uid = attrs.Uid
	a.Gid = attrs.Gid
	a.Rdev = uint32(unix.Mkdev(attrs.RdevMajor, attrs.RdevMinor))
	a.Atime = fileTime(attrs.Atime)
	a.Mtime = fileTime(attrs.Mtime)
	a.Ctime = fileTime(attrs.Ctime)
}

func fileTime(t *api.FileTime) time.Time {
	if t == nil {
		return time.Time{}
	}
	return time.Unix(t.Seconds, int64(t.Nano))
}

var typeModes = map[api.FileType]os.FileMode{
	api.FileType_DIRECTORY: os.ModeDir,
	api.FileType_SYMLINK:   os.ModeSymlink,
	api.FileType_BLOCK:     os.ModeDevice,
	api.FileType_CHAR:      os.ModeDevice | os.ModeCharDevice,
	api.FileType_SOCKET:    os.ModeSocket,
	api.FileType_FIFO:      os.ModeNamedPipe,
}

func fileMode(attrs *api.FileAttributes) os.FileMode {
	mode := os.FileMode(attrs.Mode&0o777) | typeModes[attrs.Type]
	if attrs.Mode&unix.S_ISUID != 0 {
		mode |= os.ModeSetuid
	}
	if attrs.Mode&unix.S_ISGID != 0 {
		mode |= os.ModeSetgid
	}
	if attrs.Mode&unix.S_ISVTX != 0 {
		mode |= os.ModeSticky
	}
	return mode
}

var direntTypes = map[api.FileType]fuse.DirentType{
	api.FileType_REGULAR:   fuse.DT_File,
	api.FileType_DIRECTORY: fuse.DT_Dir,
	api.FileType_SYMLINK:   fuse.DT_Link,
	api.FileType_BLOCK:     fuse.DT_Block,
	api.FileType_CHAR:      fuse.DT_Char,
	api.FileType_SOCKET:    fuse.DT_Socket,
	api.FileType_FIFO:      fuse.DT_FIFO,
}

// withCaller makes remote calls on behalf of the process behind a request.
func withCaller(ctx context.Context, h fuse.Header) context.Context {
	return client.WithCredentials(ctx, nfs.FSCredsToProto(handlefs.Credentials{
		UID:    h.Uid,
		GID:    h.Gid,
		Groups: []uint32{h.Gid},
	}))
}

var errnos = []struct {
	err   error
	errno fuse.Errno
}{
	{handlefs.ErrNotExist, fuse.ENOENT},
	{handlefs.ErrNotDir, fuse.Errno(syscall.ENOTDIR)},
	{handlefs.ErrIsDir, fuse.Errno(syscall.EISDIR)},
	{handlefs.ErrNotEmpty, fuse.Errno(syscall.ENOTEMPTY)},
	{handlefs.ErrInvalidHandle, fuse.Errno(syscall.ESTALE)},
	{handlefs.ErrInvalidName, fuse.Errno(syscall.EINVAL)},
	{handlefs.ErrNotSupported, fuse.Errno(syscall.ENOTSUP)},
	{handlefs.ErrIO, fuse.EIO},
	{client.ErrPermission, fuse.Errno(syscall.EPERM)},
	{client.ErrExist, fuse.Errno(syscall.EEXIST)},
	{context.Canceled, fuse.Errno(syscall.EINTR)},
}

// toErrno converts a client error into the errno reported to the kernel.
func toErrno(ctx context.Context, op, path string, err error) error {
	for _, e := range errnos {
		if errors.Is(err, e.err) {
			return e.errno
		}
	}
	log.G(ctx).WithFields(log.Fields{
		"op":   op,
		"path": path,
	}).WithError(err).Warn("remote call failed")
	return fuse.EIO
}
