package memsys

import (
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/handlefs/pkg/fs/local"
)

func readAll(t *testing.T, ds local.DirStream) []string {
	t.Helper()
	var names []string
	for {
		name, err := ds.Next()
		if err == io.EOF {
			return names
		}
		require.NoError(t, err)
		names = append(names, name)
	}
}

func TestOpenAndHandles(t *testing.T) {
	s := New()
	require.NoError(t, s.MkdirAll("/export/a", 0o755))
	require.NoError(t, s.WriteFile("/export/a/f", []byte("x"), 0o644))

	root, err := s.Open("/export", local.OpenDirectory, 0)
	require.NoError(t, err)

	h, mnt, err := s.NameToHandleAt(root, "a/f", 0)
	require.NoError(t, err)
	assert.Equal(t, MountID, mnt)
	assert.Equal(t, HandleType, h.Type)

	fd, err := s.OpenByHandleAt(root, h, local.OpenPath)
	require.NoError(t, err)
	st, err := s.Fstat(fd)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Size)

	_, err = s.OpenByHandleAt(root, h, local.OpenDirectory)
	assert.ErrorIs(t, err, syscall.ENOTDIR)

	assert.Equal(t, 2, s.OpenDescriptors())
	require.NoError(t, s.Close(fd))
	require.NoError(t, s.Close(root))
	assert.Equal(t, 0, s.OpenDescriptors())
	assert.ErrorIs(t, s.Close(root), syscall.EBADF)
}

func TestHandleSurvivesRenameAndGoesStale(t *testing.T) {
	s := New()
	require.NoError(t, s.MkdirAll("/export/a", 0o755))
	require.NoError(t, s.MkdirAll("/export/b", 0o755))
	require.NoError(t, s.WriteFile("/export/a/f", nil, 0o644))

	root, err := s.Open("/export", local.OpenDirectory, 0)
	require.NoError(t, err)
	h, _, err := s.NameToHandleAt(root, "a/f", 0)
	require.NoError(t, err)

	require.NoError(t, s.Rename("/export/a/f", "/export/b/g"))
	fd, err := s.OpenByHandleAt(root, h, local.OpenPath)
	require.NoError(t, err)
	require.NoError(t, s.Close(fd))

	require.NoError(t, s.RemoveAll("/export/b/g"))
	_, err = s.OpenByHandleAt(root, h, local.OpenPath)
	assert.ErrorIs(t, err, syscall.ESTALE)
}

func TestSymlinkRules(t *testing.T) {
	s := New()
	require.NoError(t, s.MkdirAll("/export/d", 0o755))
	require.NoError(t, s.Symlink("d", "/export/l"))

	root, err := s.Open("/export", local.OpenDirectory, 0)
	require.NoError(t, err)

	link, _, err := s.NameToHandleAt(root, "l", 0)
	require.NoError(t, err)
	dir, _, err := s.NameToHandleAt(root, "l", local.HandleFollow)
	require.NoError(t, err)
	assert.NotEqual(t, link, dir)

	_, err = s.OpenByHandleAt(root, link, local.OpenNoFollow)
	assert.ErrorIs(t, err, syscall.ELOOP)

	fd, err := s.OpenByHandleAt(root, link, local.OpenPath|local.OpenNoFollow)
	require.NoError(t, err)
	buf := make([]byte, 1)
	n, err := s.Readlinkat(fd, "", buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "d", string(buf[:n]))
}

func TestDirectoryOperations(t *testing.T) {
	s := New()
	require.NoError(t, s.MkdirAll("/export", 0o755))
	root, err := s.Open("/export", local.OpenDirectory, 0)
	require.NoError(t, err)

	require.NoError(t, s.Mkdirat(root, "sub", 0o777))
	assert.ErrorIs(t, s.Mkdirat(root, "sub", 0o777), syscall.EEXIST)
	require.NoError(t, s.WriteFile("/export/sub/f", nil, 0o644))

	assert.ErrorIs(t, s.Unlinkat(root, "sub", false), syscall.EISDIR)
	assert.ErrorIs(t, s.Unlinkat(root, "sub", true), syscall.ENOTEMPTY)
	assert.ErrorIs(t, s.Unlinkat(root, "missing", false), syscall.ENOENT)

	ds, err := s.OpenDir(root)
	require.NoError(t, err)
	assert.Equal(t, []string{".", "..", "sub"}, readAll(t, ds))

	h, _, err := s.NameToHandleAt(root, "sub", 0)
	require.NoError(t, err)
	fd, err := s.OpenByHandleAt(root, h, local.OpenDirectory)
	require.NoError(t, err)
	st, err := s.Fstat(fd)
	require.NoError(t, err)
	assert.Equal(t, uint32(0o40755), st.Mode, "umask 022 applies")

	assert.ErrorIs(t, s.Unlinkat(fd, "f", true), syscall.ENOTDIR)
	require.NoError(t, s.Unlinkat(fd, "f", false))
	require.NoError(t, s.Unlinkat(root, "sub", true))
}

func TestPathDescriptorRestrictions(t *testing.T) {
	s := New()
	require.NoError(t, s.MkdirAll("/export", 0o755))
	fd, err := s.Open("/export", local.OpenDirectory|local.OpenPath, 0)
	require.NoError(t, err)

	_, err = s.OpenDir(fd)
	assert.ErrorIs(t, err, syscall.EBADF)
	assert.ErrorIs(t, s.Fchown(fd, 1, 1), syscall.EBADF)
}

func TestInjectAndBefore(t *testing.T) {
	s := New()
	require.NoError(t, s.MkdirAll("/export", 0o755))

	s.Inject(OpOpen, syscall.EACCES)
	_, err := s.Open("/export", local.OpenDirectory, 0)
	assert.ErrorIs(t, err, syscall.EACCES)

	calls := 0
	s.Reset(OpOpen)
	s.Before(OpOpen, func() { calls++ })
	fd, err := s.Open("/export", local.OpenDirectory, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.NoError(t, s.Close(fd))
}
