package server

import (
	"context"
	"math"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/example/handlefs/pkg/api"
	"github.com/example/handlefs/pkg/fs"
	"github.com/example/handlefs/pkg/fs/local"
	"github.com/example/handlefs/pkg/fs/local/memsys"
)

var rootCreds = &api.Credentials{Uid: 0, Gid: 0, Groups: []uint32{0}}

// setupTestServer exports /export of an in-memory tree holding "sub" and
// the file "sub/file".
func setupTestServer(t *testing.T, configure func(*Config)) (*NFSServer, *memsys.Sys, []byte) {
	t.Helper()

	sys := memsys.New()
	require.NoError(t, sys.MkdirAll("/export/sub", 0o755))
	require.NoError(t, sys.WriteFile("/export/sub/file", []byte("hello"), 0o644))

	lfs, err := local.NewLocalFSWithSyscalls("/export", sys)
	require.NoError(t, err)
	t.Cleanup(func() { lfs.Close() })

	config := DefaultConfig()
	config.EnableRootSquash = false
	if configure != nil {
		configure(config)
	}
	server, err := NewNFSServer(config, lfs)
	require.NoError(t, err)

	resp, err := server.GetRootHandle(context.Background(), &api.GetRootHandleRequest{Credentials: rootCreds})
	require.NoError(t, err)
	require.Equal(t, api.Status_OK, resp.Status)
	return server, sys, resp.FileHandle
}

func lookup(t *testing.T, s *NFSServer, dir []byte, name string) []byte {
	t.Helper()
	resp, err := s.Lookup(context.Background(), &api.LookupRequest{DirectoryHandle: dir, Name: name, Credentials: rootCreds})
	require.NoError(t, err)
	require.Equal(t, api.Status_OK, resp.Status, "lookup %q", name)
	return resp.FileHandle
}

func TestNewNFSServerRejectsBadConfig(t *testing.T) {
	config := DefaultConfig()
	config.MaxConcurrent = 0
	_, err := NewNFSServer(config, nil)
	assert.Error(t, err)
}

func TestGetRootHandle(t *testing.T) {
	server, _, root := setupTestServer(t, nil)

	resp, err := server.GetAttr(context.Background(), &api.GetAttrRequest{FileHandle: root})
	require.NoError(t, err)
	assert.Equal(t, api.Status_OK, resp.Status)
	assert.Equal(t, api.FileType_DIRECTORY, resp.Attributes.Type)
}

func TestGetAttr(t *testing.T) {
	server, _, root := setupTestServer(t, nil)
	sub := lookup(t, server, root, "sub")
	file := lookup(t, server, sub, "file")

	testCases := []struct {
		name           string
		handle         []byte
		expectedStatus api.Status
		expectedType   api.FileType
	}{
		{"directory", sub, api.Status_OK, api.FileType_DIRECTORY},
		{"regular file", file, api.Status_OK, api.FileType_REGULAR},
		{"empty handle", nil, api.Status_ERR_BADHANDLE, api.FileType_UNKNOWN},
		{"oversized handle", make([]byte, fs.MaxHandleSize+1), api.Status_ERR_BADHANDLE, api.FileType_UNKNOWN},
		{"unknown handle", []byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0}, api.Status_ERR_SERVERFAULT, api.FileType_UNKNOWN},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := server.GetAttr(context.Background(), &api.GetAttrRequest{FileHandle: tc.handle, Credentials: rootCreds})
			require.NoError(t, err)
			assert.Equal(t, tc.expectedStatus, resp.Status)
			if tc.expectedStatus == api.Status_OK {
				assert.Equal(t, tc.expectedType, resp.Attributes.Type)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	server, _, root := setupTestServer(t, nil)
	sub := lookup(t, server, root, "sub")
	file := lookup(t, server, sub, "file")

	testCases := []struct {
		name           string
		dir            []byte
		fileName       string
		expectedStatus api.Status
	}{
		{"existing file", sub, "file", api.Status_OK},
		{"dot", sub, ".", api.Status_OK},
		{"dot dot", sub, "..", api.Status_ERR_NOTSUPP},
		{"missing", sub, "missing", api.Status_ERR_NOENT},
		{"not a directory", file, "x", api.Status_ERR_NOTDIR},
		{"empty name", sub, "", api.Status_ERR_INVAL},
		{"name with slash", root, "sub/file", api.Status_ERR_INVAL},
		{"empty handle", nil, "file", api.Status_ERR_BADHANDLE},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := server.Lookup(context.Background(), &api.LookupRequest{
				DirectoryHandle: tc.dir,
				Name:            tc.fileName,
				Credentials:     rootCreds,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.expectedStatus, resp.Status)
		})
	}

	resp, err := server.Lookup(context.Background(), &api.LookupRequest{DirectoryHandle: sub, Name: "."})
	require.NoError(t, err)
	assert.Equal(t, sub, resp.FileHandle)
	assert.NotNil(t, resp.DirectoryAttributes)
}

func TestReadDir(t *testing.T) {
	server, sys, root := setupTestServer(t, nil)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, sys.WriteFile("/export/sub/"+name, nil, 0o644))
	}
	sub := lookup(t, server, root, "sub")

	resp, err := server.ReadDir(context.Background(), &api.ReadDirRequest{DirectoryHandle: sub, Credentials: rootCreds})
	require.NoError(t, err)
	require.Equal(t, api.Status_OK, resp.Status)
	assert.True(t, resp.Eof)

	var names []string
	for _, e := range resp.Entries {
		names = append(names, e.Name)
		assert.Equal(t, lookup(t, server, sub, e.Name), e.FileHandle)
		require.NotNil(t, e.Attributes)
		assert.Equal(t, e.Attributes.Fileid, e.FileId)
	}
	assert.Equal(t, []string{"a", "b", "c", "file"}, names)

	page, err := server.ReadDir(context.Background(), &api.ReadDirRequest{DirectoryHandle: sub, Count: 2})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.False(t, page.Eof)

	rest, err := server.ReadDir(context.Background(), &api.ReadDirRequest{
		DirectoryHandle: sub,
		Cookie:          page.Entries[1].Cookie,
		CookieVerifier:  page.CookieVerifier,
	})
	require.NoError(t, err)
	require.Equal(t, api.Status_OK, rest.Status)
	require.Len(t, rest.Entries, 2)
	assert.Equal(t, "c", rest.Entries[0].Name)
	assert.True(t, rest.Eof)

	stale, err := server.ReadDir(context.Background(), &api.ReadDirRequest{
		DirectoryHandle: sub,
		Cookie:          1,
		CookieVerifier:  page.CookieVerifier + 1,
	})
	require.NoError(t, err)
	assert.Equal(t, api.Status_ERR_BAD_COOKIE, stale.Status)

	file := lookup(t, server, sub, "file")
	notDir, err := server.ReadDir(context.Background(), &api.ReadDirRequest{DirectoryHandle: file})
	require.NoError(t, err)
	assert.Equal(t, api.Status_ERR_NOTDIR, notDir.Status)
}

func TestMkdirRemove(t *testing.T) {
	server, _, root := setupTestServer(t, nil)

	resp, err := server.Mkdir(context.Background(), &api.MkdirRequest{
		DirectoryHandle: root,
		Name:            "newdir",
		Attributes:      &api.FileAttributes{Mode: 0o750},
		Credentials:     &api.Credentials{Uid: 1000, Gid: 1000},
	})
	require.NoError(t, err)
	require.Equal(t, api.Status_OK, resp.Status)
	require.NotNil(t, resp.Attributes)
	assert.Equal(t, uint32(1000), resp.Attributes.Uid)
	assert.Equal(t, uint32(1000), resp.Attributes.Gid)
	assert.Equal(t, uint32(0o750), resp.Attributes.Mode&fs.ModePermMask)
	assert.Equal(t, resp.FileHandle, lookup(t, server, root, "newdir"))

	rm, err := server.Remove(context.Background(), &api.RemoveRequest{DirectoryHandle: root, Name: "newdir"})
	require.NoError(t, err)
	assert.Equal(t, api.Status_OK, rm.Status)

	gone, err := server.Lookup(context.Background(), &api.LookupRequest{DirectoryHandle: root, Name: "newdir"})
	require.NoError(t, err)
	assert.Equal(t, api.Status_ERR_NOENT, gone.Status)

	rm, err = server.Remove(context.Background(), &api.RemoveRequest{DirectoryHandle: root, Name: "sub"})
	require.NoError(t, err)
	assert.Equal(t, api.Status_ERR_NOTEMPTY, rm.Status)

	bad, err := server.Mkdir(context.Background(), &api.MkdirRequest{DirectoryHandle: root, Name: "a/b"})
	require.NoError(t, err)
	assert.Equal(t, api.Status_ERR_INVAL, bad.Status)
}

func TestMkdirRootSquash(t *testing.T) {
	server, _, root := setupTestServer(t, func(c *Config) {
		c.EnableRootSquash = true
		c.AnonUID = 65534
		c.AnonGID = 65533
	})

	resp, err := server.Mkdir(context.Background(), &api.MkdirRequest{
		DirectoryHandle: root,
		Name:            "squashed",
		Credentials:     rootCreds,
	})
	require.NoError(t, err)
	require.Equal(t, api.Status_OK, resp.Status)
	assert.Equal(t, uint32(65534), resp.Attributes.Uid)
	assert.Equal(t, uint32(65533), resp.Attributes.Gid)
	assert.Equal(t, uint32(defaultDirMode), resp.Attributes.Mode&fs.ModePermMask)
}

func TestReadlinkAndAccess(t *testing.T) {
	server, sys, root := setupTestServer(t, nil)
	require.NoError(t, sys.Symlink("sub/file", "/export/link"))
	link := lookup(t, server, root, "link")

	resp, err := server.Readlink(context.Background(), &api.ReadlinkRequest{FileHandle: link})
	require.NoError(t, err)
	require.Equal(t, api.Status_OK, resp.Status)
	assert.Equal(t, "sub/file", resp.Target)
	assert.Equal(t, api.FileType_SYMLINK, resp.Attributes.Type)

	access, err := server.Access(context.Background(), &api.AccessRequest{FileHandle: root, Access: api.AccessRead | api.AccessLookup})
	require.NoError(t, err)
	assert.Equal(t, api.Status_OK, access.Status)
	assert.Equal(t, api.AccessRead|api.AccessLookup, access.Access)
}

func TestUnsupportedOperations(t *testing.T) {
	server, _, root := setupTestServer(t, nil)
	sub := lookup(t, server, root, "sub")
	file := lookup(t, server, sub, "file")
	ctx := context.Background()

	read, err := server.Read(ctx, &api.ReadRequest{FileHandle: file, Count: 5})
	require.NoError(t, err)
	assert.Equal(t, api.Status_ERR_NOTSUPP, read.Status)

	write, err := server.Write(ctx, &api.WriteRequest{FileHandle: file, Data: []byte("x"), Stability: api.StabilityFileSync})
	require.NoError(t, err)
	assert.Equal(t, api.Status_ERR_NOTSUPP, write.Status)

	create, err := server.Create(ctx, &api.CreateRequest{DirectoryHandle: sub, Name: "new", Mode: api.CreateMode_GUARDED})
	require.NoError(t, err)
	assert.Equal(t, api.Status_ERR_NOTSUPP, create.Status)

	rename, err := server.Rename(ctx, &api.RenameRequest{FromDirHandle: sub, FromName: "file", ToDirHandle: root, ToName: "moved"})
	require.NoError(t, err)
	assert.Equal(t, api.Status_ERR_NOTSUPP, rename.Status)

	setattr, err := server.SetAttr(ctx, &api.SetAttrRequest{FileHandle: file, Attributes: &api.FileAttributes{Mode: 0o600}})
	require.NoError(t, err)
	assert.Equal(t, api.Status_ERR_NOTSUPP, setattr.Status)
}

// readRecorder records the buffer size every Read is handed.
type readRecorder struct {
	fs.VirtualFileSystem
	sizes []int
}

func (r *readRecorder) Read(ctx context.Context, inode fs.Inode, data []byte, offset int64) (int, error) {
	r.sizes = append(r.sizes, len(data))
	return r.VirtualFileSystem.Read(ctx, inode, data, offset)
}

func TestReadCountIsCapped(t *testing.T) {
	sys := memsys.New()
	require.NoError(t, sys.MkdirAll("/export", 0o755))
	require.NoError(t, sys.WriteFile("/export/file", []byte("hello"), 0o644))
	lfs, err := local.NewLocalFSWithSyscalls("/export", sys)
	require.NoError(t, err)
	t.Cleanup(func() { lfs.Close() })

	recorder := &readRecorder{VirtualFileSystem: lfs}
	config := DefaultConfig()
	config.MaxReadSize = 4096
	server, err := NewNFSServer(config, recorder)
	require.NoError(t, err)

	ctx := context.Background()
	root, err := server.GetRootHandle(ctx, &api.GetRootHandleRequest{Credentials: rootCreds})
	require.NoError(t, err)
	file := lookup(t, server, root.FileHandle, "file")

	resp, err := server.Read(ctx, &api.ReadRequest{FileHandle: file, Count: math.MaxUint32})
	require.NoError(t, err)
	assert.Equal(t, api.Status_ERR_NOTSUPP, resp.Status)

	resp, err = server.Read(ctx, &api.ReadRequest{FileHandle: file, Count: 16})
	require.NoError(t, err)
	assert.Equal(t, api.Status_ERR_NOTSUPP, resp.Status)

	assert.Equal(t, []int{4096, 16}, recorder.sizes)
}

func TestWorkerPoolExhausted(t *testing.T) {
	server, _, root := setupTestServer(t, func(c *Config) {
		c.MaxConcurrent = 1
	})

	server.workerPool <- struct{}{}
	defer func() { <-server.workerPool }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := server.GetAttr(ctx, &api.GetAttrRequest{FileHandle: root})
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

// startBufconnServer serves s in memory and returns a connected client.
func startBufconnServer(t *testing.T, s *NFSServer) api.NFSServiceClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return api.NewNFSServiceClient(conn)
}

func TestServeOverGRPC(t *testing.T) {
	server, _, root := setupTestServer(t, nil)
	client := startBufconnServer(t, server)
	ctx := context.Background()

	rootResp, err := client.GetRootHandle(ctx, &api.GetRootHandleRequest{Credentials: rootCreds})
	require.NoError(t, err)
	assert.Equal(t, root, rootResp.FileHandle)

	lookupResp, err := client.Lookup(ctx, &api.LookupRequest{DirectoryHandle: root, Name: "sub"})
	require.NoError(t, err)
	require.Equal(t, api.Status_OK, lookupResp.Status)

	dirResp, err := client.ReadDir(ctx, &api.ReadDirRequest{DirectoryHandle: lookupResp.FileHandle})
	require.NoError(t, err)
	require.Len(t, dirResp.Entries, 1)
	assert.Equal(t, "file", dirResp.Entries[0].Name)

	missing, err := client.GetAttr(ctx, &api.GetAttrRequest{})
	require.NoError(t, err)
	assert.Equal(t, api.Status_ERR_BADHANDLE, missing.Status)

	assert.Equal(t, float64(1), testutil.ToFloat64(server.metrics.rpcs.WithLabelValues("Lookup", codes.OK.String())))
	assert.Equal(t, float64(1), testutil.ToFloat64(server.metrics.statuses.WithLabelValues("GetAttr", "ERR_BADHANDLE")))

	expected := `
# HELP handlefs_server_requests_in_flight Requests currently holding a worker.
# TYPE handlefs_server_requests_in_flight gauge
handlefs_server_requests_in_flight 0
`
	assert.NoError(t, testutil.CollectAndCompare(server.metrics.inflight, strings.NewReader(expected)))
}
