package memsys

import (
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/example/handlefs/pkg/fs"
)

// The helpers below build and mutate the tree by absolute path. They bypass
// fault injection, hooks and the umask.

func splitPath(p string) (string, string) {
	p = path.Clean("/" + p)
	return path.Dir(p), path.Base(p)
}

func (s *Sys) lookupPath(p string) (*node, error) {
	return s.walk(s.root, p, false, 0)
}

func (s *Sys) create(p string, mode uint32) (*node, error) {
	dirPath, name := splitPath(p)
	dir, err := s.walk(s.root, dirPath, true, 0)
	if err != nil {
		return nil, err
	}
	if !dir.isDir() {
		return nil, syscall.ENOTDIR
	}
	if _, ok := dir.children[name]; ok {
		return nil, syscall.EEXIST
	}
	n := s.newNode(mode, dir)
	s.link(dir, name, n)
	return n, nil
}

// MkdirAll creates p and any missing parents.
func (s *Sys) MkdirAll(p string, perm uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.root
	for _, part := range strings.Split(path.Clean("/"+p), "/") {
		if part == "" {
			continue
		}
		next, ok := cur.children[part]
		if !ok {
			next = s.newNode(fs.ModeDirectory|perm&fs.ModePermMask, cur)
			s.link(cur, part, next)
		}
		if !next.isDir() {
			return syscall.ENOTDIR
		}
		cur = next
	}
	return nil
}

// WriteFile creates a regular file holding data.
func (s *Sys) WriteFile(p string, data []byte, perm uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.create(p, fs.ModeRegular|perm&fs.ModePermMask)
	if err != nil {
		return err
	}
	n.data = append([]byte(nil), data...)
	return nil
}

// Symlink creates a symbolic link at p pointing to target.
func (s *Sys) Symlink(target, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.create(p, fs.ModeSymlink|0o777)
	if err != nil {
		return err
	}
	n.target = target
	return nil
}

// Mkfifo creates a named pipe.
func (s *Sys) Mkfifo(p string, perm uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.create(p, fs.ModeFIFO|perm&fs.ModePermMask)
	return err
}

// SetLinkTarget replaces the target of an existing symlink.
func (s *Sys) SetLinkTarget(p, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookupPath(p)
	if err != nil {
		return err
	}
	if !n.isSymlink() {
		return syscall.EINVAL
	}
	n.target = target
	n.mtime = s.now()
	n.ctime = n.mtime
	return nil
}

// Chown sets the owner of p without following a final symlink.
func (s *Sys) Chown(p string, uid, gid uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookupPath(p)
	if err != nil {
		return err
	}
	n.uid, n.gid = uid, gid
	return nil
}

// SetTimes sets the timestamps of p.
func (s *Sys) SetTimes(p string, atime, mtime, ctime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookupPath(p)
	if err != nil {
		return err
	}
	n.atime, n.mtime, n.ctime = atime, mtime, ctime
	return nil
}

// Rename moves oldPath to newPath. The object keeps its inode, so handles
// issued for it stay valid.
func (s *Sys) Rename(oldPath, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldDirPath, oldName := splitPath(oldPath)
	newDirPath, newName := splitPath(newPath)
	oldDir, err := s.lookupPath(oldDirPath)
	if err != nil {
		return err
	}
	newDir, err := s.lookupPath(newDirPath)
	if err != nil {
		return err
	}
	if !oldDir.isDir() || !newDir.isDir() {
		return syscall.ENOTDIR
	}
	n, ok := oldDir.children[oldName]
	if !ok {
		return syscall.ENOENT
	}
	if _, ok := newDir.children[newName]; ok {
		return syscall.EEXIST
	}

	delete(oldDir.children, oldName)
	if n.isDir() {
		oldDir.nlink--
	}
	n.parent = newDir
	s.link(newDir, newName, n)
	return nil
}

// RemoveAll deletes p and everything below it. Handles of removed objects
// become stale.
func (s *Sys) RemoveAll(p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirPath, name := splitPath(p)
	dir, err := s.lookupPath(dirPath)
	if err != nil {
		return err
	}
	if _, ok := dir.children[name]; !ok {
		return syscall.ENOENT
	}
	s.unlink(dir, name)
	return nil
}

// Ino returns the inode number of p, without following a final symlink.
func (s *Sys) Ino(p string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.lookupPath(p)
	if err != nil {
		return 0, err
	}
	return n.ino, nil
}
