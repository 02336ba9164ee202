package nfs

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/example/handlefs/pkg/api"
	"github.com/example/handlefs/pkg/fs"
)

var fileTypes = map[fs.FileType]api.FileType{
	fs.FileTypeRegular:   api.FileType_REGULAR,
	fs.FileTypeDirectory: api.FileType_DIRECTORY,
	fs.FileTypeSymlink:   api.FileType_SYMLINK,
	fs.FileTypeBlock:     api.FileType_BLOCK,
	fs.FileTypeChar:      api.FileType_CHAR,
	fs.FileTypeFIFO:      api.FileType_FIFO,
	fs.FileTypeSocket:    api.FileType_SOCKET,
}

// TimeToProto converts a timestamp to its wire form.
func TimeToProto(t time.Time) *api.FileTime {
	return &api.FileTime{
		Seconds: t.Unix(),
		Nano:    int32(t.Nanosecond()),
	}
}

// ProtoToTime converts a wire timestamp. A nil value is the zero time.
func ProtoToTime(ft *api.FileTime) time.Time {
	if ft == nil {
		return time.Time{}
	}
	return time.Unix(ft.Seconds, int64(ft.Nano))
}

// FSInfoToProtoAttributes converts a backend attribute sheet.
func FSInfoToProtoAttributes(info fs.FileInfo) *api.FileAttributes {
	fileType, ok := fileTypes[info.Type]
	if !ok {
		fileType = api.FileType_UNKNOWN
	}

	return &api.FileAttributes{
		Type:       fileType,
		Mode:       info.Mode,
		Nlink:      info.Nlink,
		Uid:        info.Uid,
		Gid:        info.Gid,
		Size:       uint64(info.Size),
		RdevMajor:  unix.Major(info.Rdev),
		RdevMinor:  unix.Minor(info.Rdev),
		Fsid:       info.Dev,
		Fileid:     info.FileID,
		Atime:      TimeToProto(info.AccessTime),
		Mtime:      TimeToProto(info.ModifyTime),
		Ctime:      TimeToProto(info.ChangeTime),
		Generation: info.Generation,
	}
}

// ProtoAttributesToFSAttr converts wire attributes to a set of changes. Only
// the fields present in the request are set.
func ProtoAttributesToFSAttr(attr *api.FileAttributes) fs.FileAttr {
	result := fs.FileAttr{}
	if attr == nil {
		return result
	}

	if attr.Mode != 0 {
		mode := attr.Mode & fs.ModePermMask
		result.Mode = &mode
	}
	if attr.Size != 0 {
		size := int64(attr.Size)
		result.Size = &size
	}
	if attr.Uid != 0 {
		uid := attr.Uid
		result.Uid = &uid
	}
	if attr.Gid != 0 {
		gid := attr.Gid
		result.Gid = &gid
	}
	if attr.Atime != nil {
		atime := ProtoToTime(attr.Atime)
		result.AccessTime = &atime
	}
	if attr.Mtime != nil {
		mtime := ProtoToTime(attr.Mtime)
		result.ModifyTime = &mtime
	}
	return result
}

// ProtoCredsToFSCreds converts wire credentials. Missing credentials are
// root.
func ProtoCredsToFSCreds(creds *api.Credentials) fs.Credentials {
	if creds == nil {
		return fs.Credentials{
			UID:    0,
			GID:    0,
			Groups: []uint32{0},
		}
	}

	return fs.Credentials{
		UID:    creds.Uid,
		GID:    creds.Gid,
		Groups: creds.Groups,
	}
}

// FSCredsToProto converts backend credentials to their wire form.
func FSCredsToProto(creds fs.Credentials) *api.Credentials {
	return &api.Credentials{
		Uid:    creds.UID,
		Gid:    creds.GID,
		Groups: creds.Groups,
	}
}

// ProtoToFileType converts a wire file type back to the backend enum.
func ProtoToFileType(t api.FileType) fs.FileType {
	for k, v := range fileTypes {
		if v == t {
			return k
		}
	}
	return fs.FileTypeRegular
}
