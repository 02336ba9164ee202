package fuse

import (
	"context"
	"errors"
	"os"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"testing"
	"time"

	"bazil.org/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/handlefs/pkg/api"
	"github.com/example/handlefs/pkg/client"
	handlefs "github.com/example/handlefs/pkg/fs"
)

type fakeNode struct {
	attrs    *api.FileAttributes
	children map[string][]byte
	target   string
}

// fakeRemote is an in-memory RemoteFS recording the credentials of every
// call made with them.
type fakeRemote struct {
	mu     sync.Mutex
	nodes  map[string]*fakeNode
	nextID uint64
	creds  []*api.Credentials
	modes  []uint32
}

func newFakeRemote() (*fakeRemote, []byte) {
	r := &fakeRemote{nodes: make(map[string]*fakeNode)}
	root := r.add(api.FileType_DIRECTORY, 0o755)
	return r, root
}

func (r *fakeRemote) add(typ api.FileType, mode uint32) []byte {
	r.nextID++
	handle := []byte("h" + strconv.FormatUint(r.nextID, 10))
	r.nodes[string(handle)] = &fakeNode{
		attrs:    &api.FileAttributes{Type: typ, Mode: mode, Fileid: r.nextID, Nlink: 1},
		children: make(map[string][]byte),
	}
	return handle
}

func (r *fakeRemote) addChild(dir []byte, name string, typ api.FileType, mode uint32) []byte {
	handle := r.add(typ, mode)
	r.nodes[string(dir)].children[name] = handle
	return handle
}

func (r *fakeRemote) record(ctx context.Context) {
	if creds, ok := client.CredentialsFromContext(ctx); ok {
		r.creds = append(r.creds, creds)
	}
}

func (r *fakeRemote) get(handle []byte) (*fakeNode, error) {
	n, ok := r.nodes[string(handle)]
	if !ok {
		return nil, client.NewNFSError("fake", api.Status_ERR_STALE, "stale", handlefs.ErrInvalidHandle)
	}
	return n, nil
}

func (r *fakeRemote) GetAttr(ctx context.Context, handle []byte) (*api.FileAttributes, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.get(handle)
	if err != nil {
		return nil, err
	}
	return n.attrs, nil
}

func (r *fakeRemote) Lookup(ctx context.Context, dir []byte, name string) ([]byte, *api.FileAttributes, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(ctx)
	d, err := r.get(dir)
	if err != nil {
		return nil, nil, err
	}
	child, ok := d.children[name]
	if !ok {
		return nil, nil, client.StatusToError("Lookup", api.Status_ERR_NOENT)
	}
	return child, r.nodes[string(child)].attrs, nil
}

func (r *fakeRemote) ReadDir(ctx context.Context, dir []byte) ([]*api.DirEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, err := r.get(dir)
	if err != nil {
		return nil, err
	}
	var entries []*api.DirEntry
	for name, handle := range d.children {
		attrs := r.nodes[string(handle)].attrs
		entries = append(entries, &api.DirEntry{FileId: attrs.Fileid, Name: name, FileHandle: handle, Attributes: attrs})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (r *fakeRemote) Readlink(ctx context.Context, handle []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(ctx)
	n, err := r.get(handle)
	if err != nil {
		return "", err
	}
	return n.target, nil
}

func (r *fakeRemote) Mkdir(ctx context.Context, dir []byte, name string, attrs *api.FileAttributes) ([]byte, *api.FileAttributes, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(ctx)
	r.modes = append(r.modes, attrs.Mode)
	d, err := r.get(dir)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := d.children[name]; ok {
		return nil, nil, client.StatusToError("Mkdir", api.Status_ERR_EXIST)
	}
	handle := r.addChild(dir, name, api.FileType_DIRECTORY, attrs.Mode)
	return handle, r.nodes[string(handle)].attrs, nil
}

func (r *fakeRemote) Remove(ctx context.Context, dir []byte, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(ctx)
	d, err := r.get(dir)
	if err != nil {
		return err
	}
	child, ok := d.children[name]
	if !ok {
		return client.StatusToError("Remove", api.Status_ERR_NOENT)
	}
	if len(r.nodes[string(child)].children) > 0 {
		return client.StatusToError("Remove", api.Status_ERR_NOTEMPTY)
	}
	delete(d.children, name)
	delete(r.nodes, string(child))
	return nil
}

func (r *fakeRemote) Access(ctx context.Context, handle []byte, access uint32) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(ctx)
	n, err := r.get(handle)
	if err != nil {
		return 0, err
	}
	// Grant everything except modification of read-only objects.
	if n.attrs.Mode&0o200 == 0 {
		access &^= api.AccessModify | api.AccessExtend
	}
	return access, nil
}

func setupTestFS(t *testing.T) (*NFSFS, *fakeRemote, *Dir) {
	t.Helper()

	remote, root := newFakeRemote()
	sub := remote.addChild(root, "sub", api.FileType_DIRECTORY, 0o755)
	remote.addChild(sub, "file", api.FileType_REGULAR, 0o444)
	link := remote.addChild(root, "link", api.FileType_SYMLINK, 0o777)
	remote.nodes[string(link)].target = "sub/file"
	remote.addChild(root, "pipe", api.FileType_FIFO, 0o600)

	nfsFS := NewNFSFS(remote, root, time.Second)
	node, err := nfsFS.Root()
	require.NoError(t, err)
	return nfsFS, remote, node.(*Dir)
}

func lookup(t *testing.T, d *Dir, name string) interface{} {
	t.Helper()
	var resp fuse.LookupResponse
	node, err := d.Lookup(context.Background(), &fuse.LookupRequest{Name: name}, &resp)
	require.NoError(t, err, name)
	return node
}

func TestRootAttr(t *testing.T) {
	_, _, root := setupTestFS(t)

	var attr fuse.Attr
	require.NoError(t, root.Attr(context.Background(), &attr))
	assert.True(t, attr.Mode.IsDir())
	assert.Equal(t, os.FileMode(0o755), attr.Mode.Perm())
	assert.Equal(t, uint64(1), attr.Inode)
	assert.Equal(t, time.Second, attr.Valid)
}

func TestLookupNodeTypes(t *testing.T) {
	_, _, root := setupTestFS(t)

	assert.IsType(t, &Dir{}, lookup(t, root, "sub"))
	assert.IsType(t, &Symlink{}, lookup(t, root, "link"))
	assert.IsType(t, &File{}, lookup(t, root, "pipe"))

	var resp fuse.LookupResponse
	_, err := root.Lookup(context.Background(), &fuse.LookupRequest{Name: "sub"}, &resp)
	require.NoError(t, err)
	assert.Equal(t, time.Second, resp.EntryValid)
	assert.True(t, resp.Attr.Mode.IsDir())

	_, err = root.Lookup(context.Background(), &fuse.LookupRequest{Name: "missing"}, &resp)
	assert.Equal(t, fuse.ENOENT, err)

	sub := lookup(t, root, "sub").(*Dir)
	assert.Equal(t, "/sub", sub.path)
	file := lookup(t, sub, "file").(*File)
	assert.Equal(t, "/sub/file", file.path)
}

func TestLookupForwardsCaller(t *testing.T) {
	_, remote, root := setupTestFS(t)

	req := &fuse.LookupRequest{Header: fuse.Header{Uid: 1000, Gid: 100}, Name: "sub"}
	_, err := root.Lookup(context.Background(), req, &fuse.LookupResponse{})
	require.NoError(t, err)

	require.Len(t, remote.creds, 1)
	assert.Equal(t, &api.Credentials{Uid: 1000, Gid: 100, Groups: []uint32{100}}, remote.creds[0])
}

func TestReadDirAll(t *testing.T) {
	_, _, root := setupTestFS(t)

	dirents, err := root.ReadDirAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []fuse.Dirent{
		{Inode: 4, Type: fuse.DT_Link, Name: "link"},
		{Inode: 5, Type: fuse.DT_FIFO, Name: "pipe"},
		{Inode: 2, Type: fuse.DT_Dir, Name: "sub"},
	}, dirents)
}

func TestReadlink(t *testing.T) {
	_, _, root := setupTestFS(t)

	link := lookup(t, root, "link").(*Symlink)
	target, err := link.Readlink(context.Background(), &fuse.ReadlinkRequest{})
	require.NoError(t, err)
	assert.Equal(t, "sub/file", target)

	var attr fuse.Attr
	require.NoError(t, link.Attr(context.Background(), &attr))
	assert.Equal(t, os.ModeSymlink, attr.Mode.Type())
}

func TestMkdir(t *testing.T) {
	_, remote, root := setupTestFS(t)

	req := &fuse.MkdirRequest{
		Header: fuse.Header{Uid: 1000, Gid: 100},
		Name:   "new",
		Mode:   os.ModeDir | 0o777,
		Umask:  0o022,
	}
	node, err := root.Mkdir(context.Background(), req)
	require.NoError(t, err)
	dir := node.(*Dir)
	assert.Equal(t, "/new", dir.path)
	assert.Equal(t, []uint32{0o755}, remote.modes)
	assert.Equal(t, uint32(1000), remote.creds[0].Uid)

	_, err = root.Mkdir(context.Background(), req)
	assert.Equal(t, fuse.Errno(syscall.EEXIST), err)
}

func TestRemove(t *testing.T) {
	_, _, root := setupTestFS(t)
	ctx := context.Background()

	err := root.Remove(ctx, &fuse.RemoveRequest{Name: "pipe", Dir: true})
	assert.Equal(t, fuse.Errno(syscall.ENOTDIR), err)
	err = root.Remove(ctx, &fuse.RemoveRequest{Name: "sub"})
	assert.Equal(t, fuse.Errno(syscall.EISDIR), err)
	err = root.Remove(ctx, &fuse.RemoveRequest{Name: "sub", Dir: true})
	assert.Equal(t, fuse.Errno(syscall.ENOTEMPTY), err)
	err = root.Remove(ctx, &fuse.RemoveRequest{Name: "missing"})
	assert.Equal(t, fuse.ENOENT, err)

	require.NoError(t, root.Remove(ctx, &fuse.RemoveRequest{Name: "pipe"}))
	_, err = root.Lookup(ctx, &fuse.LookupRequest{Name: "pipe"}, &fuse.LookupResponse{})
	assert.Equal(t, fuse.ENOENT, err)
}

func TestAccess(t *testing.T) {
	_, _, root := setupTestFS(t)
	ctx := context.Background()
	file := lookup(t, lookup(t, root, "sub").(*Dir), "file").(*File)

	assert.NoError(t, root.Access(ctx, &fuse.AccessRequest{Mask: 7}))
	assert.NoError(t, file.Access(ctx, &fuse.AccessRequest{Mask: 4}))
	assert.Equal(t, fuse.Errno(syscall.EACCES), file.Access(ctx, &fuse.AccessRequest{Mask: 2}))
	assert.NoError(t, file.Access(ctx, &fuse.AccessRequest{Mask: 0}))
}

func TestStaleNode(t *testing.T) {
	nfsFS, _, _ := setupTestFS(t)
	stale := nfsFS.newNode([]byte("gone"), nil, "/gone")

	var attr fuse.Attr
	err := stale.Attr(context.Background(), &attr)
	assert.Equal(t, fuse.Errno(syscall.ESTALE), err)
}

func TestFileMode(t *testing.T) {
	tests := []struct {
		attrs *api.FileAttributes
		want  os.FileMode
	}{
		{&api.FileAttributes{Type: api.FileType_REGULAR, Mode: 0o644}, 0o644},
		{&api.FileAttributes{Type: api.FileType_DIRECTORY, Mode: 0o1777}, os.ModeDir | os.ModeSticky | 0o777},
		{&api.FileAttributes{Type: api.FileType_REGULAR, Mode: 0o4755}, os.ModeSetuid | 0o755},
		{&api.FileAttributes{Type: api.FileType_CHAR, Mode: 0o620}, os.ModeDevice | os.ModeCharDevice | 0o620},
		{&api.FileAttributes{Type: api.FileType_SOCKET, Mode: 0o2700}, os.ModeSocket | os.ModeSetgid | 0o700},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fileMode(tt.attrs), "%v %o", tt.attrs.Type, tt.attrs.Mode)
	}
}

func TestToErrno(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, fuse.ENOENT, toErrno(ctx, "op", "/", client.StatusToError("Op", api.Status_ERR_NOENT)))
	assert.Equal(t, fuse.Errno(syscall.ENOTSUP), toErrno(ctx, "op", "/", client.StatusToError("Op", api.Status_ERR_NOTSUPP)))
	assert.Equal(t, fuse.EIO, toErrno(ctx, "op", "/", client.StatusToError("Op", api.Status_ERR_SERVERFAULT)))
	assert.Equal(t, fuse.EIO, toErrno(ctx, "op", "/", errors.New("transport")))
}
