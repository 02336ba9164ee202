package fs

import (
	"time"
)

// FileType represents the type of a file.
type FileType uint32

const (
	// FileTypeRegular is a regular file
	FileTypeRegular FileType = iota
	// FileTypeDirectory is a directory
	FileTypeDirectory
	// FileTypeSymlink is a symbolic link
	FileTypeSymlink
	// FileTypeBlock is a block special device
	FileTypeBlock
	// FileTypeChar is a character special device
	FileTypeChar
	// FileTypeFIFO is a named pipe
	FileTypeFIFO
	// FileTypeSocket is a socket
	FileTypeSocket
)

// String returns a string representation of the file type
func (ft FileType) String() string {
	switch ft {
	case FileTypeRegular:
		return "regular"
	case FileTypeDirectory:
		return "directory"
	case FileTypeSymlink:
		return "symlink"
	case FileTypeBlock:
		return "block"
	case FileTypeChar:
		return "char"
	case FileTypeFIFO:
		return "fifo"
	case FileTypeSocket:
		return "socket"
	default:
		return "unknown"
	}
}

// Mode bits of st_mode.
const (
	ModeTypeMask  uint32 = 0170000
	ModeSocket    uint32 = 0140000
	ModeSymlink   uint32 = 0120000
	ModeRegular   uint32 = 0100000
	ModeBlock     uint32 = 0060000
	ModeDirectory uint32 = 0040000
	ModeChar      uint32 = 0020000
	ModeFIFO      uint32 = 0010000

	// ModePermMask covers permission, setuid, setgid and sticky bits.
	ModePermMask uint32 = 07777
)

// TypeFromMode extracts the file type from raw st_mode bits.
func TypeFromMode(mode uint32) FileType {
	switch mode & ModeTypeMask {
	case ModeDirectory:
		return FileTypeDirectory
	case ModeSymlink:
		return FileTypeSymlink
	case ModeBlock:
		return FileTypeBlock
	case ModeChar:
		return FileTypeChar
	case ModeFIFO:
		return FileTypeFIFO
	case ModeSocket:
		return FileTypeSocket
	default:
		return FileTypeRegular
	}
}

// FileInfo is the attribute sheet of a filesystem object. It is a snapshot
// taken for one request and never updated afterwards.
type FileInfo struct {
	// Type is the file type, derived from Mode
	Type FileType

	// Mode is the raw st_mode, type bits included
	Mode uint32

	// Size is the file size in bytes; for a symlink, the target length
	Size int64

	Uid uint32
	Gid uint32

	// Dev is the id of the device holding the object
	Dev uint64

	// Ino is the inode number
	Ino uint64

	// FileID is the protocol file id. It equals Ino.
	FileID uint64

	Nlink uint32

	// Rdev is the device id of a block or character special file
	Rdev uint64

	// Timestamps have millisecond resolution.
	AccessTime time.Time
	ModifyTime time.Time
	ChangeTime time.Time

	// Generation is ChangeTime XOR ModifyTime, in milliseconds. It changes
	// whenever either timestamp changes but is neither monotonic nor unique.
	Generation uint64
}

// Perm returns the permission bits including setuid, setgid and sticky.
func (fi FileInfo) Perm() uint32 {
	return fi.Mode & ModePermMask
}

// IsDir reports whether the object is a directory.
func (fi FileInfo) IsDir() bool {
	return fi.Type == FileTypeDirectory
}

// DirEntry represents an entry in a directory.
type DirEntry struct {
	Name  string
	Inode Inode
	Attr  FileInfo
}
