// Package memsys implements local.Syscalls over an in-memory object tree.
//
// Objects are addressed by inode number, their handles carry that number, and
// a removed object's handle goes stale just like on a real filesystem. The
// tree is guarded by a single mutex and can be driven concurrently.
package memsys

import (
	"encoding/binary"
	"io"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/example/handlefs/pkg/fs"
	"github.com/example/handlefs/pkg/fs/local"
)

// HandleType is the handle_type of every handle issued by a Sys.
const HandleType int32 = 0x4d53

// MountID is the mount id reported by NameToHandleAt.
const MountID = 42

const maxSymlinkDepth = 8

// Operation names accepted by Inject and Before.
const (
	OpOpen           = "open"
	OpNameToHandleAt = "name_to_handle_at"
	OpOpenByHandleAt = "open_by_handle_at"
	OpFstat          = "fstat"
	OpMkdirat        = "mkdirat"
	OpUnlinkat       = "unlinkat"
	OpReadlinkat     = "readlinkat"
	OpFchown         = "fchown"
	OpOpenDir        = "opendir"
	OpClose          = "close"
)

type node struct {
	ino    uint64
	mode   uint32
	uid    uint32
	gid    uint32
	nlink  uint64
	rdev   uint64
	data   []byte
	target string
	atime  time.Time
	mtime  time.Time
	ctime  time.Time

	parent   *node
	children map[string]*node
}

func (n *node) isDir() bool {
	return n.mode&fs.ModeTypeMask == fs.ModeDirectory
}

func (n *node) isSymlink() bool {
	return n.mode&fs.ModeTypeMask == fs.ModeSymlink
}

func (n *node) size() int64 {
	switch {
	case n.isSymlink():
		return int64(len(n.target))
	case n.isDir():
		return 4096
	default:
		return int64(len(n.data))
	}
}

type openFile struct {
	n     *node
	flags local.OpenFlags
}

// Sys is an in-memory local.Syscalls.
type Sys struct {
	mu sync.Mutex

	nodes   map[uint64]*node
	root    *node
	nextIno uint64

	fds    map[int]*openFile
	nextFd int

	umask uint32
	now   func() time.Time

	faults map[string]syscall.Errno
	hooks  map[string]func()
}

var _ local.Syscalls = (*Sys)(nil)

// New returns an empty tree holding only "/".
func New() *Sys {
	s := &Sys{
		nodes:   make(map[uint64]*node),
		nextIno: 2,
		fds:     make(map[int]*openFile),
		nextFd:  3,
		umask:   0o022,
		now:     time.Now,
		faults:  make(map[string]syscall.Errno),
		hooks:   make(map[string]func()),
	}
	s.root = s.newNode(fs.ModeDirectory|0o755, nil)
	s.root.parent = s.root
	return s
}

func (s *Sys) newNode(mode uint32, parent *node) *node {
	now := s.now()
	n := &node{
		ino:    s.nextIno,
		mode:   mode,
		nlink:  1,
		atime:  now,
		mtime:  now,
		ctime:  now,
		parent: parent,
	}
	if n.isDir() {
		n.children = make(map[string]*node)
		n.nlink = 2
	}
	s.nextIno++
	s.nodes[n.ino] = n
	return n
}

// SetUmask replaces the umask applied by Mkdirat. The default is 022.
func (s *Sys) SetUmask(mask uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.umask = mask
}

// SetClock replaces the time source used for new and modified objects.
func (s *Sys) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Inject makes every later call of op fail with errno until Reset.
func (s *Sys) Inject(op string, errno syscall.Errno) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = errno
}

// Before registers fn to run at the start of every call of op, outside the
// tree lock.
func (s *Sys) Before(op string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[op] = fn
}

// Reset drops the faults and hooks registered for op.
func (s *Sys) Reset(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.faults, op)
	delete(s.hooks, op)
}

// OpenDescriptors returns the number of descriptors currently open.
func (s *Sys) OpenDescriptors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fds)
}

// enter runs the hook of op and then takes the lock. It returns the
// injected errno, if any; the caller must unlock in either case.
func (s *Sys) enter(op string) error {
	s.mu.Lock()
	hook := s.hooks[op]
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.mu.Lock()
	if errno, ok := s.faults[op]; ok {
		return errno
	}
	return nil
}

func encodeHandle(n *node) fs.KernelHandle {
	var id [8]byte
	binary.LittleEndian.PutUint64(id[:], n.ino)
	h, _ := fs.NewKernelHandle(HandleType, id[:])
	return h
}

// walk resolves p from dir. Intermediate symlinks are always followed; the
// last component is followed only if follow is set.
func (s *Sys) walk(dir *node, p string, follow bool, depth int) (*node, error) {
	if depth > maxSymlinkDepth {
		return nil, syscall.ELOOP
	}
	if strings.HasPrefix(p, "/") {
		dir = s.root
	}
	var parts []string
	for _, part := range strings.Split(p, "/") {
		if part != "" && part != "." {
			parts = append(parts, part)
		}
	}
	cur := dir
	for i, part := range parts {
		if !cur.isDir() {
			return nil, syscall.ENOTDIR
		}
		var next *node
		if part == ".." {
			next = cur.parent
		} else {
			var ok bool
			next, ok = cur.children[part]
			if !ok {
				return nil, syscall.ENOENT
			}
		}
		last := i == len(parts)-1
		if next.isSymlink() && (!last || follow) {
			resolved, err := s.walk(cur, next.target, true, depth+1)
			if err != nil {
				return nil, err
			}
			next = resolved
		}
		cur = next
	}
	return cur, nil
}

// checkOpen applies the open flag rules to a resolved object.
func checkOpen(n *node, flags local.OpenFlags) error {
	if n.isSymlink() && flags&local.OpenPath == 0 {
		return syscall.ELOOP
	}
	if flags&local.OpenDirectory != 0 && !n.isDir() {
		return syscall.ENOTDIR
	}
	return nil
}

func (s *Sys) allocFd(n *node, flags local.OpenFlags) int {
	fd := s.nextFd
	s.nextFd++
	s.fds[fd] = &openFile{n: n, flags: flags}
	return fd
}

func (s *Sys) file(fd int) (*openFile, error) {
	f, ok := s.fds[fd]
	if !ok {
		return nil, syscall.EBADF
	}
	return f, nil
}

func (s *Sys) dirFile(fd int) (*node, error) {
	f, err := s.file(fd)
	if err != nil {
		return nil, err
	}
	if !f.n.isDir() {
		return nil, syscall.ENOTDIR
	}
	return f.n, nil
}

// Open opens an absolute path.
func (s *Sys) Open(p string, flags local.OpenFlags, mode uint32) (int, error) {
	err := s.enter(OpOpen)
	defer s.mu.Unlock()
	if err != nil {
		return -1, err
	}

	n, err := s.walk(s.root, p, flags&local.OpenNoFollow == 0, 0)
	if err != nil {
		return -1, err
	}
	if err := checkOpen(n, flags); err != nil {
		return -1, err
	}
	return s.allocFd(n, flags), nil
}

// NameToHandleAt resolves name inside dirfd.
func (s *Sys) NameToHandleAt(dirfd int, name string, flags local.HandleFlags) (fs.KernelHandle, int, error) {
	err := s.enter(OpNameToHandleAt)
	defer s.mu.Unlock()
	if err != nil {
		return fs.KernelHandle{}, 0, err
	}

	f, err := s.file(dirfd)
	if err != nil {
		return fs.KernelHandle{}, 0, err
	}
	if name == "" {
		if flags&local.HandleEmptyPath == 0 {
			return fs.KernelHandle{}, 0, syscall.ENOENT
		}
		return encodeHandle(f.n), MountID, nil
	}

	n, err := s.walk(f.n, name, flags&local.HandleFollow != 0, 0)
	if err != nil {
		return fs.KernelHandle{}, 0, err
	}
	return encodeHandle(n), MountID, nil
}

// OpenByHandleAt reopens a handle. Handles of removed objects are stale.
func (s *Sys) OpenByHandleAt(mountfd int, h fs.KernelHandle, flags local.OpenFlags) (int, error) {
	err := s.enter(OpOpenByHandleAt)
	defer s.mu.Unlock()
	if err != nil {
		return -1, err
	}

	if _, err := s.file(mountfd); err != nil {
		return -1, err
	}
	if h.Type != HandleType || h.Bytes != 8 {
		return -1, syscall.EINVAL
	}
	n, ok := s.nodes[binary.LittleEndian.Uint64(h.Data[:8])]
	if !ok {
		return -1, syscall.ESTALE
	}
	if err := checkOpen(n, flags); err != nil {
		return -1, err
	}
	return s.allocFd(n, flags), nil
}

// Fstat reports the metadata of an open object.
func (s *Sys) Fstat(fd int) (local.RawStat, error) {
	err := s.enter(OpFstat)
	defer s.mu.Unlock()
	if err != nil {
		return local.RawStat{}, err
	}

	f, err := s.file(fd)
	if err != nil {
		return local.RawStat{}, err
	}
	n := f.n
	return local.RawStat{
		Dev:   MountID,
		Ino:   n.ino,
		Mode:  n.mode,
		Nlink: n.nlink,
		Uid:   n.uid,
		Gid:   n.gid,
		Rdev:  n.rdev,
		Size:  n.size(),
		Atime: n.atime,
		Mtime: n.mtime,
		Ctime: n.ctime,
	}, nil
}

// Mkdirat creates a directory, owned by 0:0, with mode masked by the umask.
func (s *Sys) Mkdirat(dirfd int, name string, mode uint32) error {
	err := s.enter(OpMkdirat)
	defer s.mu.Unlock()
	if err != nil {
		return err
	}

	dir, err := s.dirFile(dirfd)
	if err != nil {
		return err
	}
	if _, ok := dir.children[name]; ok {
		return syscall.EEXIST
	}
	s.link(dir, name, s.newNode(fs.ModeDirectory|(mode&fs.ModePermMask&^s.umask), dir))
	return nil
}

func (s *Sys) link(dir *node, name string, n *node) {
	dir.children[name] = n
	if n.isDir() {
		dir.nlink++
	}
	now := s.now()
	dir.mtime = now
	dir.ctime = now
}

func (s *Sys) unlink(dir *node, name string) {
	n := dir.children[name]
	delete(dir.children, name)
	if n.isDir() {
		dir.nlink--
	}
	now := s.now()
	dir.mtime = now
	dir.ctime = now
	s.forget(n)
}

// forget drops n and everything below it from the handle table.
func (s *Sys) forget(n *node) {
	for _, c := range n.children {
		s.forget(c)
	}
	delete(s.nodes, n.ino)
}

// Unlinkat removes name from dirfd.
func (s *Sys) Unlinkat(dirfd int, name string, removeDir bool) error {
	err := s.enter(OpUnlinkat)
	defer s.mu.Unlock()
	if err != nil {
		return err
	}

	dir, err := s.dirFile(dirfd)
	if err != nil {
		return err
	}
	n, ok := dir.children[name]
	if !ok {
		return syscall.ENOENT
	}
	switch {
	case removeDir && !n.isDir():
		return syscall.ENOTDIR
	case !removeDir && n.isDir():
		return syscall.EISDIR
	case removeDir && len(n.children) > 0:
		return syscall.ENOTEMPTY
	}
	s.unlink(dir, name)
	return nil
}

// Readlinkat reads a link target. An empty name reads the link dirfd
// itself refers to.
func (s *Sys) Readlinkat(dirfd int, name string, buf []byte) (int, error) {
	err := s.enter(OpReadlinkat)
	defer s.mu.Unlock()
	if err != nil {
		return 0, err
	}

	f, err := s.file(dirfd)
	if err != nil {
		return 0, err
	}
	n := f.n
	if name != "" {
		if n, err = s.walk(f.n, name, false, 0); err != nil {
			return 0, err
		}
	}
	if !n.isSymlink() {
		if name == "" {
			return 0, syscall.ENOENT
		}
		return 0, syscall.EINVAL
	}
	return copy(buf, n.target), nil
}

// Fchown changes the owner of an object. -1 keeps the current value.
// Path-only descriptors are refused.
func (s *Sys) Fchown(fd int, uid, gid int) error {
	err := s.enter(OpFchown)
	defer s.mu.Unlock()
	if err != nil {
		return err
	}

	f, err := s.file(fd)
	if err != nil {
		return err
	}
	if f.flags&local.OpenPath != 0 {
		return syscall.EBADF
	}
	if uid != -1 {
		f.n.uid = uint32(uid)
	}
	if gid != -1 {
		f.n.gid = uint32(gid)
	}
	f.n.ctime = s.now()
	return nil
}

// OpenDir snapshots the entries of a directory, "." and ".." first.
func (s *Sys) OpenDir(fd int) (local.DirStream, error) {
	err := s.enter(OpOpenDir)
	defer s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	f, err := s.file(fd)
	if err != nil {
		return nil, err
	}
	if f.flags&local.OpenPath != 0 {
		return nil, syscall.EBADF
	}
	if !f.n.isDir() {
		return nil, syscall.ENOTDIR
	}

	names := make([]string, 0, len(f.n.children))
	for name := range f.n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return &dirStream{names: append([]string{".", ".."}, names...)}, nil
}

// Close releases a descriptor.
func (s *Sys) Close(fd int) error {
	err := s.enter(OpClose)
	defer s.mu.Unlock()
	if err != nil {
		return err
	}

	if _, ok := s.fds[fd]; !ok {
		return syscall.EBADF
	}
	delete(s.fds, fd)
	return nil
}

type dirStream struct {
	names []string
}

func (d *dirStream) Next() (string, error) {
	if len(d.names) == 0 {
		return "", io.EOF
	}
	name := d.names[0]
	d.names = d.names[1:]
	return name, nil
}

func (d *dirStream) Close() error {
	d.names = nil
	return nil
}
