package fuse

import (
	"context"
	"path"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/example/handlefs/pkg/api"
)

// Dir represents a directory in the filesystem
type Dir struct {
	node
}

var (
	_ fs.Node                = (*Dir)(nil)
	_ fs.NodeRequestLookuper = (*Dir)(nil)
	_ fs.HandleReadDirAller  = (*Dir)(nil)
	_ fs.NodeMkdirer         = (*Dir)(nil)
	_ fs.NodeRemover         = (*Dir)(nil)
	_ fs.NodeAccesser        = (*Dir)(nil)
)

// Lookup looks up a specific entry in the directory
func (d *Dir) Lookup(ctx context.Context, req *fuse.LookupRequest, resp *fuse.LookupResponse) (fs.Node, error) {
	childPath := path.Join(d.path, req.Name)
	handle, attrs, err := d.fs.remote.Lookup(withCaller(ctx, req.Header), d.handle, req.Name)
	if err != nil {
		return nil, toErrno(ctx, "lookup", childPath, err)
	}
	resp.EntryValid = d.fs.attrValid
	if attrs != nil {
		d.fs.fillAttr(&resp.Attr, attrs)
	}
	return d.fs.newNode(handle, attrs, childPath), nil
}

// ReadDirAll returns all entries in the directory
func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	entries, err := d.fs.remote.ReadDir(ctx, d.handle)
	if err != nil {
		return nil, toErrno(ctx, "readdir", d.path, err)
	}

	dirents := make([]fuse.Dirent, 0, len(entries))
	for _, entry := range entries {
		typ := fuse.DT_Unknown
		if entry.Attributes != nil {
			typ = direntTypes[entry.Attributes.Type]
		}
		dirents = append(dirents, fuse.Dirent{
			Inode: entry.FileId,
			Type:  typ,
			Name:  entry.Name,
		})
	}
	return dirents, nil
}

// Mkdir creates a directory owned by the caller.
func (d *Dir) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fs.Node, error) {
	mode := uint32(req.Mode.Perm() &^ req.Umask.Perm())
	childPath := path.Join(d.path, req.Name)

	handle, _, err := d.fs.remote.Mkdir(withCaller(ctx, req.Header), d.handle, req.Name, &api.FileAttributes{Mode: mode})
	if err != nil {
		return nil, toErrno(ctx, "mkdir", childPath, err)
	}
	return &Dir{node{fs: d.fs, handle: handle, path: childPath}}, nil
}

// Remove serves unlink(2) and rmdir(2). The service removes either kind,
// so the object type is checked here first.
func (d *Dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	ctx = withCaller(ctx, req.Header)
	childPath := path.Join(d.path, req.Name)

	_, attrs, err := d.fs.remote.Lookup(ctx, d.handle, req.Name)
	if err != nil {
		return toErrno(ctx, "remove", childPath, err)
	}
	isDir := attrs != nil && attrs.Type == api.FileType_DIRECTORY
	switch {
	case req.Dir && !isDir:
		return fuse.Errno(syscall.ENOTDIR)
	case !req.Dir && isDir:
		return fuse.Errno(syscall.EISDIR)
	}

	if err := d.fs.remote.Remove(ctx, d.handle, req.Name); err != nil {
		return toErrno(ctx, "remove", childPath, err)
	}
	return nil
}
