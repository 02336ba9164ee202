package fuse

import (
	"context"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
)

// File represents a non-directory, non-symlink object. Contents are not
// served.
type File struct {
	node
}

var (
	_ fs.Node         = (*File)(nil)
	_ fs.NodeAccesser = (*File)(nil)
)

// Symlink represents a symbolic link
type Symlink struct {
	node
}

var (
	_ fs.Node           = (*Symlink)(nil)
	_ fs.NodeReadlinker = (*Symlink)(nil)
)

// Readlink returns the link target
func (s *Symlink) Readlink(ctx context.Context, req *fuse.ReadlinkRequest) (string, error) {
	target, err := s.fs.remote.Readlink(withCaller(ctx, req.Header), s.handle)
	if err != nil {
		return "", toErrno(ctx, "readlink", s.path, err)
	}
	return target, nil
}
