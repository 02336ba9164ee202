package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/example/handlefs/pkg/api"
	"github.com/example/handlefs/pkg/fs"
	"github.com/example/handlefs/pkg/fs/local"
	"github.com/example/handlefs/pkg/fs/local/memsys"
	"github.com/example/handlefs/pkg/server"
)

// setupTestClient serves an in-memory export holding:
//
//	/a/b/c
//	/a/file  "hello"
//	/link -> a/file
func setupTestClient(t *testing.T, configure func(*Config)) (*Client, *memsys.Sys) {
	t.Helper()

	sys := memsys.New()
	require.NoError(t, sys.MkdirAll("/export/a/b/c", 0o755))
	require.NoError(t, sys.WriteFile("/export/a/file", []byte("hello"), 0o644))
	require.NoError(t, sys.Symlink("a/file", "/export/link"))

	lfs, err := local.NewLocalFSWithSyscalls("/export", sys)
	require.NoError(t, err)
	t.Cleanup(func() { lfs.Close() })

	serverConfig := server.DefaultConfig()
	serverConfig.EnableRootSquash = false
	nfsServer, err := server.NewNFSServer(serverConfig, lfs)
	require.NoError(t, err)

	conn := dialBufconn(t, func(s *grpc.Server) { api.RegisterNFSServiceServer(s, nfsServer) })

	config := DefaultConfig()
	config.Credentials = &api.Credentials{}
	config.RetryDelay = time.Millisecond
	if configure != nil {
		configure(config)
	}
	client := NewClientWithConn(conn, config)
	t.Cleanup(func() { client.Close() })
	return client, sys
}

func TestLookupPath(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := context.Background()

	root, err := client.GetRootFileHandle(ctx)
	require.NoError(t, err)

	handle, err := client.LookupPath(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, root, handle)

	a, _, err := client.Lookup(ctx, root, "a")
	require.NoError(t, err)
	b, _, err := client.Lookup(ctx, a, "b")
	require.NoError(t, err)
	c, attrs, err := client.Lookup(ctx, b, "c")
	require.NoError(t, err)
	assert.Equal(t, api.FileType_DIRECTORY, attrs.Type)

	for _, p := range []string{"a/b/c", "/a/b/c", "a//b/./c/", "/a/x/../b/c"} {
		handle, err := client.LookupPath(ctx, p)
		require.NoError(t, err, p)
		assert.Equal(t, c, handle, p)
	}

	_, err = client.LookupPath(ctx, "a/missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = client.LookupPath(ctx, "a/file/x")
	assert.ErrorIs(t, err, fs.ErrNotDir)
}

func TestLookupPathIsCached(t *testing.T) {
	client, sys := setupTestClient(t, nil)
	ctx := context.Background()

	handle, err := client.LookupPath(ctx, "a/b/c")
	require.NoError(t, err)

	require.NoError(t, sys.RemoveAll("/export/a/b/c"))
	cached, err := client.LookupPath(ctx, "a/b/c")
	require.NoError(t, err)
	assert.Equal(t, handle, cached)

	require.NoError(t, client.ClearCache())
	_, err = client.LookupPath(ctx, "a/b/c")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestGetAttr(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := context.Background()

	file, err := client.LookupPath(ctx, "a/file")
	require.NoError(t, err)
	attrs, err := client.GetAttr(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, api.FileType_REGULAR, attrs.Type)
	assert.Equal(t, uint64(5), attrs.Size)

	_, err = client.GetAttr(ctx, nil)
	assert.ErrorIs(t, err, fs.ErrInvalidHandle)
}

func TestReadDirPaging(t *testing.T) {
	client, sys := setupTestClient(t, func(c *Config) { c.ReadDirCount = 2 })
	ctx := context.Background()

	var want []string
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("f%d", i)
		require.NoError(t, sys.WriteFile("/export/a/b/"+name, nil, 0o644))
		want = append(want, name)
	}
	want = append([]string{"c"}, want...)

	dir, err := client.LookupPath(ctx, "a/b")
	require.NoError(t, err)
	entries, err := client.ReadDir(ctx, dir)
	require.NoError(t, err)

	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name)
		require.NotNil(t, entry.Attributes)
		assert.Equal(t, entry.FileId, entry.Attributes.Fileid)
	}
	assert.ElementsMatch(t, want, names)

	// Entries are cached under their path.
	f3, ok := client.handleCache.GetHandle("/a/b/f3")
	require.True(t, ok)
	handle, err := client.LookupPath(ctx, "a/b/f3")
	require.NoError(t, err)
	assert.Equal(t, f3, handle)

	file, err := client.LookupPath(ctx, "a/file")
	require.NoError(t, err)
	_, err = client.ReadDir(ctx, file)
	assert.ErrorIs(t, err, fs.ErrNotDir)
}

func TestMkdirRemove(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := context.Background()

	root, err := client.GetRootFileHandle(ctx)
	require.NoError(t, err)

	handle, attrs, err := client.Mkdir(ctx, root, "new", &api.FileAttributes{Mode: 0o700})
	require.NoError(t, err)
	assert.Equal(t, api.FileType_DIRECTORY, attrs.Type)
	assert.Equal(t, uint32(0o700), attrs.Mode&0o777)

	looked, err := client.LookupPath(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, handle, looked)

	// EEXIST has no classification in the backend.
	_, _, err = client.Mkdir(ctx, root, "new", nil)
	assert.ErrorIs(t, err, fs.ErrServerFault)

	require.NoError(t, client.Remove(ctx, root, "new"))

	_, err = client.LookupPath(ctx, "new")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = client.GetAttr(ctx, handle)
	assert.Error(t, err)

	err = client.Remove(ctx, root, "a")
	assert.ErrorIs(t, err, fs.ErrNotEmpty)
	err = client.Remove(ctx, root, "bad/name")
	assert.ErrorIs(t, err, fs.ErrInvalidName)
}

func TestRemoveInvalidatesSubtree(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := context.Background()

	_, err := client.LookupPath(ctx, "a/b/c")
	require.NoError(t, err)
	b, err := client.LookupPath(ctx, "a/b")
	require.NoError(t, err)

	require.NoError(t, client.Remove(ctx, b, "c"))
	_, ok := client.handleCache.GetHandle("/a/b/c")
	assert.False(t, ok)
	_, ok = client.attrCache.Get(b)
	assert.False(t, ok)
}

func TestReadlinkAndAccess(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := context.Background()

	link, err := client.LookupPath(ctx, "link")
	require.NoError(t, err)
	attrs, err := client.GetAttr(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, api.FileType_SYMLINK, attrs.Type)

	target, err := client.Readlink(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, "a/file", target)

	dir, err := client.LookupPath(ctx, "a")
	require.NoError(t, err)
	_, err = client.Readlink(ctx, dir)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	want := api.AccessRead | api.AccessLookup
	granted, err := client.Access(ctx, dir, want)
	require.NoError(t, err)
	assert.Equal(t, want, granted)
}

func TestConcurrentLookups(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := context.Background()

	root, err := client.GetRootFileHandle(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	handles := make([][]byte, 16)
	errs := make([]error, len(handles))
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], _, errs[i] = client.Lookup(ctx, root, "a")
		}(i)
	}
	wg.Wait()

	for i := range handles {
		require.NoError(t, errs[i])
		assert.Equal(t, handles[0], handles[i])
	}
}

func TestErrorsCarryStatus(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := context.Background()

	root, err := client.GetRootFileHandle(ctx)
	require.NoError(t, err)

	_, _, err = client.Lookup(ctx, root, "missing")
	var nfsErr *NFSError
	require.True(t, errors.As(err, &nfsErr))
	assert.Equal(t, api.Status_ERR_NOENT, nfsErr.Status)
	assert.Equal(t, "Lookup", nfsErr.Op)
}
