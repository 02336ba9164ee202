package local

import (
	"time"

	"github.com/example/handlefs/pkg/fs"
)

// toFileInfo maps raw OS metadata onto the attribute sheet.
func toFileInfo(st RawStat) fs.FileInfo {
	atime := toMillis(st.Atime)
	mtime := toMillis(st.Mtime)
	ctime := toMillis(st.Ctime)

	return fs.FileInfo{
		Type:       fs.TypeFromMode(st.Mode),
		Mode:       st.Mode,
		Size:       st.Size,
		Uid:        st.Uid,
		Gid:        st.Gid,
		Dev:        st.Dev,
		Ino:        st.Ino,
		FileID:     st.Ino,
		Nlink:      uint32(st.Nlink),
		Rdev:       st.Rdev,
		AccessTime: atime,
		ModifyTime: mtime,
		ChangeTime: ctime,
		Generation: uint64(ctime.UnixMilli() ^ mtime.UnixMilli()),
	}
}

func toMillis(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli())
}
