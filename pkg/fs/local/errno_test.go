package local

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/handlefs/pkg/fs"
)

func TestCheckError(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		errno syscall.Errno
		want  error
	}{
		{syscall.ENOENT, fs.ErrNotExist},
		{syscall.ENOTDIR, fs.ErrNotDir},
		{syscall.EISDIR, fs.ErrIsDir},
		{syscall.EIO, fs.ErrIO},
		{syscall.ENOTEMPTY, fs.ErrNotEmpty},
		{syscall.EACCES, fs.ErrServerFault},
		{syscall.EEXIST, fs.ErrServerFault},
		{syscall.ESTALE, fs.ErrServerFault},
	}

	for _, tt := range tests {
		t.Run(tt.errno.Error(), func(t *testing.T) {
			err := checkError(ctx, "lookup", "x", tt.errno)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var fsErr *fs.FSError
			require.True(t, errors.As(err, &fsErr))
			assert.Equal(t, tt.errno, fsErr.Errno)
			assert.Equal(t, "lookup", fsErr.Op)
			assert.Contains(t, err.Error(), tt.errno.Error())
		})
	}
}

func TestCheckErrorPassThrough(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, checkError(ctx, "op", "", nil))

	orig := fs.NewError("encode", "", fs.ErrInvalidHandle)
	assert.Same(t, orig, checkError(ctx, "lookup", "", orig))

	err := checkError(ctx, "init", "", errors.New("boom"))
	assert.ErrorIs(t, err, fs.ErrServerFault)
}

func TestToFileInfo(t *testing.T) {
	atime := time.Unix(1700000000, 123456789)
	mtime := time.Unix(1700000100, 987654321)
	ctime := time.Unix(1700000200, 500000000)

	info := toFileInfo(RawStat{
		Dev:   7,
		Ino:   99,
		Mode:  fs.ModeDirectory | 0o750,
		Nlink: 3,
		Uid:   1000,
		Gid:   100,
		Size:  4096,
		Atime: atime,
		Mtime: mtime,
		Ctime: ctime,
	})

	assert.Equal(t, fs.FileTypeDirectory, info.Type)
	assert.Equal(t, uint32(0o750), info.Perm())
	assert.Equal(t, uint64(99), info.FileID)
	assert.Equal(t, uint64(99), info.Ino)
	assert.Equal(t, uint32(3), info.Nlink)
	assert.Equal(t, int64(1700000100987), info.ModifyTime.UnixMilli())
	assert.Equal(t, 0, info.ModifyTime.Nanosecond()%int(time.Millisecond), "truncated to milliseconds")
	assert.Equal(t, uint64(mtime.UnixMilli()^ctime.UnixMilli()), info.Generation)
}
