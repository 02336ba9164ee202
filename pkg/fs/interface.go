package fs

import (
	"context"
	"time"
)

// VirtualFileSystem is the operation set the file service requires from a
// storage backend. Objects are addressed by opaque Inode identifiers that
// stay valid across renames; names are single path components.
//
// The contract is total: operations a backend does not implement still
// exist and fail with ErrNotSupported.
type VirtualFileSystem interface {
	// RootInode returns the identifier of the exported root directory.
	RootInode(ctx context.Context) (Inode, error)

	// Lookup resolves name inside the directory parent.
	Lookup(ctx context.Context, parent Inode, name string) (Inode, error)

	// List returns every entry of the directory with its identifier and
	// attributes.
	List(ctx context.Context, dir Inode) ([]DirEntry, error)

	// GetAttr returns the attributes of an object. It never opens the
	// object's content, so devices and pipes are not triggered.
	GetAttr(ctx context.Context, inode Inode) (FileInfo, error)

	// Mkdir creates a directory owned by uid:gid. Creation and ownership
	// change are separate steps; if the second fails the directory is left
	// in place and the error is returned.
	Mkdir(ctx context.Context, parent Inode, name string, uid, gid, mode uint32) (Inode, error)

	// Remove unlinks a file or removes an empty directory.
	Remove(ctx context.Context, parent Inode, name string) error

	// Readlink returns the target of a symbolic link.
	Readlink(ctx context.Context, inode Inode) (string, error)

	// Access returns the subset of mode the caller may use. Permission
	// enforcement is left to the caller, so this is mode unchanged.
	Access(ctx context.Context, inode Inode, mode uint32) (uint32, error)

	Create(ctx context.Context, parent Inode, typ FileType, name string, uid, gid, mode uint32) (Inode, error)
	Link(ctx context.Context, parent Inode, target Inode, name string) (Inode, error)
	Symlink(ctx context.Context, parent Inode, name, target string, uid, gid, mode uint32) (Inode, error)
	Rename(ctx context.Context, src Inode, oldName string, dest Inode, newName string) error
	ParentOf(ctx context.Context, inode Inode) (Inode, error)
	Read(ctx context.Context, inode Inode, data []byte, offset int64) (int, error)
	Write(ctx context.Context, inode Inode, data []byte, offset int64, stability StabilityLevel) (WriteResult, error)
	Commit(ctx context.Context, inode Inode, offset int64, count int) error
	SetAttr(ctx context.Context, inode Inode, attr FileAttr) error
	GetACL(ctx context.Context, inode Inode) ([]ACE, error)
	SetACL(ctx context.Context, inode Inode, acl []ACE) error
	HasIOLayout(ctx context.Context, inode Inode) (bool, error)
	StatFS(ctx context.Context) (FSStat, error)
}

// Credentials represents the authentication information for a user.
type Credentials struct {
	// UID is the user ID
	UID uint32

	// GID is the primary group ID
	GID uint32

	// Groups is the list of supplementary group IDs
	Groups []uint32
}

// FileAttr contains attributes to set on a file.
// Only non-nil fields will be modified.
type FileAttr struct {
	Mode       *uint32
	Size       *int64
	Uid        *uint32
	Gid        *uint32
	AccessTime *time.Time
	ModifyTime *time.Time
}

// StabilityLevel is the durability a writer asks for.
type StabilityLevel int

const (
	Unstable StabilityLevel = iota
	DataSync
	FileSync
)

// WriteResult reports the outcome of a write.
type WriteResult struct {
	Count     int
	Stability StabilityLevel
}

// ACE is one access control entry.
type ACE struct {
	Type       uint32
	Flags      uint32
	AccessMask uint32
	Who        string
}

// FSStat contains information about a filesystem.
type FSStat struct {
	TotalBytes uint64
	FreeBytes  uint64
	AvailBytes uint64
	TotalFiles uint64
	FreeFiles  uint64
}
