// pkg/fs/local/local_fs.go
package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/containerd/log"

	"github.com/example/handlefs/pkg/fs"
)

// LocalFS implements fs.VirtualFileSystem on a local directory tree. Objects
// are addressed by kernel file handles, so identifiers survive renames and
// moves inside the export.
//
// Every call reopens the objects it needs by handle, uses the descriptors
// and closes them before returning. The root state below is written once by
// the constructor and only read afterwards, so LocalFS is safe for
// concurrent use.
type LocalFS struct {
	sys Syscalls

	// rootPath is the exported directory
	rootPath string

	// rootFH is the handle of rootPath; its type is shared by every handle
	// of the mount
	rootFH fs.KernelHandle

	// rootFd stays open for the lifetime of the LocalFS and anchors
	// open_by_handle_at
	rootFd int

	mountID int

	closeOnce sync.Once
}

var _ fs.VirtualFileSystem = (*LocalFS)(nil)

// NewLocalFS exports rootPath using the host kernel.
func NewLocalFS(rootPath string) (*LocalFS, error) {
	sys, err := HostSyscalls()
	if err != nil {
		return nil, fs.NewError("init", rootPath, err)
	}
	return NewLocalFSWithSyscalls(rootPath, sys)
}

// NewLocalFSWithSyscalls exports rootPath through sys. It fails if the root
// cannot be opened or has no handle; no partially initialized LocalFS is
// ever returned.
func NewLocalFSWithSyscalls(rootPath string, sys Syscalls) (*LocalFS, error) {
	ctx := context.Background()

	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fs.NewError("init", rootPath, err)
	}

	fd, err := sys.Open(absPath, OpenDirectory, 0)
	if err != nil {
		return nil, checkError(ctx, "init", absPath, err)
	}

	fh, mountID, err := sys.NameToHandleAt(fd, "", HandleEmptyPath)
	if err != nil {
		sys.Close(fd)
		return nil, checkError(ctx, "init", absPath, err)
	}

	log.G(ctx).WithFields(log.Fields{
		"root":    absPath,
		"handle":  fh.String(),
		"mountid": mountID,
	}).Debug("export root resolved")

	return &LocalFS{
		sys:      sys,
		rootPath: absPath,
		rootFH:   fh,
		rootFd:   fd,
		mountID:  mountID,
	}, nil
}

// Root returns the absolute path of the exported directory.
func (l *LocalFS) Root() string {
	return l.rootPath
}

// MountID returns the id of the mount the export lives on.
func (l *LocalFS) MountID() int {
	return l.mountID
}

// Close releases the root descriptor.
func (l *LocalFS) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = checkError(context.Background(), "close", l.rootPath, l.sys.Close(l.rootFd))
	})
	return err
}

// toKernelHandle re-encodes a client identifier with the mount's handle type.
func (l *LocalFS) toKernelHandle(inode fs.Inode) (fs.KernelHandle, error) {
	return fs.NewKernelHandle(l.rootFH.Type, inode)
}

// nameToHandle resolves name inside the directory open as dirfd.
func (l *LocalFS) nameToHandle(ctx context.Context, op string, dirfd int, name string, flags HandleFlags) (fs.KernelHandle, error) {
	fh, _, err := l.sys.NameToHandleAt(dirfd, name, flags)
	if err != nil {
		return fs.KernelHandle{}, checkError(ctx, op, name, err)
	}
	log.G(ctx).WithFields(log.Fields{
		"name":   name,
		"handle": fh.String(),
	}).Debug("resolved handle")
	return fh, nil
}

func (l *LocalFS) statFd(ctx context.Context, op string, fd *rawFD) (fs.FileInfo, error) {
	st, err := l.sys.Fstat(fd.fd)
	if err != nil {
		return fs.FileInfo{}, checkError(ctx, op, "", err)
	}
	return toFileInfo(st), nil
}

// validateName rejects names that would make *at calls walk more than one
// component.
func validateName(op, name string) error {
	if name == "" || strings.ContainsRune(name, '/') {
		return fs.NewError(op, name, fs.ErrInvalidName)
	}
	return nil
}

// RootInode returns the identifier of the export root.
func (l *LocalFS) RootInode(ctx context.Context) (fs.Inode, error) {
	return l.rootFH.FileID(), nil
}

// Lookup resolves name inside parent. A trailing symlink is not followed:
// the identifier of the link itself is returned. ".." of the root resolves
// to the root so lookups never leave the export.
func (l *LocalFS) Lookup(ctx context.Context, parent fs.Inode, name string) (fs.Inode, error) {
	if err := validateName("lookup", name); err != nil {
		return nil, err
	}
	// The export root is its own parent, as "/" is.
	if name == ".." && bytes.Equal(parent, l.rootFH.FileID()) {
		return l.rootFH.FileID(), nil
	}

	fd, err := l.openInode(ctx, "lookup", parent, OpenDirectory|OpenPath)
	if err != nil {
		return nil, err
	}
	defer fd.release()

	fh, err := l.nameToHandle(ctx, "lookup", fd.fd, name, 0)
	if err != nil {
		return nil, err
	}
	return fh.FileID(), nil
}

// List returns the entries of dir, "." and ".." excluded. Each entry costs
// one handle resolution and one stat.
func (l *LocalFS) List(ctx context.Context, dir fs.Inode) ([]fs.DirEntry, error) {
	fd, err := l.openInode(ctx, "list", dir, OpenDirectory)
	if err != nil {
		return nil, err
	}
	defer fd.release()

	stream, err := l.sys.OpenDir(fd.fd)
	if err != nil {
		return nil, checkError(ctx, "list", "", err)
	}
	defer stream.Close()

	var entries []fs.DirEntry
	for {
		name, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, checkError(ctx, "list", "", err)
		}
		if name == "." || name == ".." {
			continue
		}

		inode, err := l.Lookup(ctx, dir, name)
		if err != nil {
			return nil, err
		}
		attr, err := l.GetAttr(ctx, inode)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fs.DirEntry{
			Name:  name,
			Inode: inode,
			Attr:  attr,
		})
	}
	return entries, nil
}

// GetAttr stats inode through a path-only descriptor.
func (l *LocalFS) GetAttr(ctx context.Context, inode fs.Inode) (fs.FileInfo, error) {
	fd, err := l.openInode(ctx, "getattr", inode, OpenPath|OpenNoFollow)
	if err != nil {
		return fs.FileInfo{}, err
	}
	defer fd.release()

	return l.statFd(ctx, "getattr", fd)
}

// Mkdir creates name in parent and hands it to uid:gid. The new directory
// is not removed again if changing its owner fails.
func (l *LocalFS) Mkdir(ctx context.Context, parent fs.Inode, name string, uid, gid, mode uint32) (fs.Inode, error) {
	if err := validateName("mkdir", name); err != nil {
		return nil, err
	}

	fd, err := l.openInode(ctx, "mkdir", parent, OpenPath|OpenNoFollow|OpenDirectory)
	if err != nil {
		return nil, err
	}
	defer fd.release()

	if err := l.sys.Mkdirat(fd.fd, name, mode); err != nil {
		return nil, checkError(ctx, "mkdir", name, err)
	}

	inode, err := l.Lookup(ctx, parent, name)
	if err != nil {
		return nil, err
	}

	dir, err := l.openInode(ctx, "mkdir", inode, OpenNoFollow|OpenDirectory)
	if err != nil {
		return nil, err
	}
	defer dir.release()

	if err := l.sys.Fchown(dir.fd, int(uid), int(gid)); err != nil {
		return nil, checkError(ctx, "chown", name, err)
	}
	return inode, nil
}

// Remove unlinks name from parent, as a directory if it currently is one.
// The type check and the unlink are two separate calls; the object can be
// replaced in between.
func (l *LocalFS) Remove(ctx context.Context, parent fs.Inode, name string) error {
	if err := validateName("remove", name); err != nil {
		return err
	}

	fd, err := l.openInode(ctx, "remove", parent, OpenPath|OpenDirectory)
	if err != nil {
		return err
	}
	defer fd.release()

	inode, err := l.Lookup(ctx, parent, name)
	if err != nil {
		return err
	}
	attr, err := l.GetAttr(ctx, inode)
	if err != nil {
		return err
	}

	if err := l.sys.Unlinkat(fd.fd, name, attr.IsDir()); err != nil {
		return checkError(ctx, "remove", name, err)
	}
	return nil
}

// Readlink reads a symlink target sized by a prior stat. A target that grew
// in between is truncated to the stat size.
func (l *LocalFS) Readlink(ctx context.Context, inode fs.Inode) (string, error) {
	fd, err := l.openInode(ctx, "readlink", inode, OpenPath|OpenNoFollow)
	if err != nil {
		return "", err
	}
	defer fd.release()

	attr, err := l.statFd(ctx, "readlink", fd)
	if err != nil {
		return "", err
	}

	buf := make([]byte, attr.Size)
	n, err := l.sys.Readlinkat(fd.fd, "", buf)
	if err != nil {
		return "", checkError(ctx, "readlink", "", err)
	}
	if n > len(buf) {
		n = len(buf)
	}
	return string(buf[:n]), nil
}

// Access grants whatever is asked; callers enforce permissions.
func (l *LocalFS) Access(ctx context.Context, inode fs.Inode, mode uint32) (uint32, error) {
	return mode, nil
}

// Create is not supported.
func (l *LocalFS) Create(ctx context.Context, parent fs.Inode, typ fs.FileType, name string, uid, gid, mode uint32) (fs.Inode, error) {
	return nil, fs.NotSupported("create")
}

// Link is not supported.
func (l *LocalFS) Link(ctx context.Context, parent fs.Inode, target fs.Inode, name string) (fs.Inode, error) {
	return nil, fs.NotSupported("link")
}

// Symlink is not supported.
func (l *LocalFS) Symlink(ctx context.Context, parent fs.Inode, name, target string, uid, gid, mode uint32) (fs.Inode, error) {
	return nil, fs.NotSupported("symlink")
}

// Rename is not supported.
func (l *LocalFS) Rename(ctx context.Context, src fs.Inode, oldName string, dest fs.Inode, newName string) error {
	return fs.NotSupported("rename")
}

// ParentOf is not supported.
func (l *LocalFS) ParentOf(ctx context.Context, inode fs.Inode) (fs.Inode, error) {
	return nil, fs.NotSupported("parentof")
}

// Read is not supported.
func (l *LocalFS) Read(ctx context.Context, inode fs.Inode, data []byte, offset int64) (int, error) {
	return 0, fs.NotSupported("read")
}

// Write is not supported.
func (l *LocalFS) Write(ctx context.Context, inode fs.Inode, data []byte, offset int64, stability fs.StabilityLevel) (fs.WriteResult, error) {
	return fs.WriteResult{}, fs.NotSupported("write")
}

// Commit is not supported.
func (l *LocalFS) Commit(ctx context.Context, inode fs.Inode, offset int64, count int) error {
	return fs.NotSupported("commit")
}

// SetAttr is not supported.
func (l *LocalFS) SetAttr(ctx context.Context, inode fs.Inode, attr fs.FileAttr) error {
	return fs.NotSupported("setattr")
}

// GetACL is not supported.
func (l *LocalFS) GetACL(ctx context.Context, inode fs.Inode) ([]fs.ACE, error) {
	return nil, fs.NotSupported("getacl")
}

// SetACL is not supported.
func (l *LocalFS) SetACL(ctx context.Context, inode fs.Inode, acl []fs.ACE) error {
	return fs.NotSupported("setacl")
}

// HasIOLayout is not supported.
func (l *LocalFS) HasIOLayout(ctx context.Context, inode fs.Inode) (bool, error) {
	return false, fs.NotSupported("hasiolayout")
}

// StatFS is not supported.
func (l *LocalFS) StatFS(ctx context.Context) (fs.FSStat, error) {
	return fs.FSStat{}, fs.NotSupported("statfs")
}
