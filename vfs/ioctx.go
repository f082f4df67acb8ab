package vfs

import (
	"sync"

	"github.com/hashicorp/go-multierror"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
)

// IOContext is the per-session state a caller holds across engine calls
// (§3): per-drive root/cwd vnodes, cached DIRPS/FATPOS geometry, and the
// open file-descriptor and directory-stream tables. One IOContext exists
// per logical session; the Engine itself holds no per-caller state,
// matching the "I/O contexts are borrowed from the caller" design note
// (§9).
type IOContext struct {
	mu sync.Mutex

	root     map[swordvfs.DriveLetter]*VNode
	cwd      map[swordvfs.DriveLetter]*VNode
	dirPS    map[swordvfs.DriveLetter]swordvfs.RecordNumber
	fatPos   map[swordvfs.DriveLetter]swordvfs.RecordNumber
	fds      []*FileDescriptor
	dirs     []*DirStream
}

// NewIOContext returns a fresh, empty I/O context.
func NewIOContext() *IOContext {
	return &IOContext{
		root:   make(map[swordvfs.DriveLetter]*VNode),
		cwd:    make(map[swordvfs.DriveLetter]*VNode),
		dirPS:  make(map[swordvfs.DriveLetter]swordvfs.RecordNumber),
		fatPos: make(map[swordvfs.DriveLetter]swordvfs.RecordNumber),
	}
}

func (c *IOContext) setRoot(letter swordvfs.DriveLetter, v *VNode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.root[letter] = v
}

func (c *IOContext) setCwd(letter swordvfs.DriveLetter, v *VNode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cwd[letter] = v
}

func (c *IOContext) setGeometry(letter swordvfs.DriveLetter, dirps, fatpos swordvfs.RecordNumber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirPS[letter] = dirps
	c.fatPos[letter] = fatpos
}

func (c *IOContext) clearDrive(letter swordvfs.DriveLetter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.root, letter)
	delete(c.cwd, letter)
	delete(c.dirPS, letter)
	delete(c.fatPos, letter)
}

func (c *IOContext) cwdFor(letter swordvfs.DriveLetter) *VNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cwd[letter]
}

// RootOf returns the cached root vnode for letter.
func (c *IOContext) RootOf(letter swordvfs.DriveLetter) *VNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root[letter]
}

// CwdOf returns the cached working-directory vnode for letter.
func (c *IOContext) CwdOf(letter swordvfs.DriveLetter) *VNode {
	return c.cwdFor(letter)
}

// Geometry returns the cached DIRPS/FATPOS pair for letter, avoiding a
// superblock re-read on every path resolution (SPEC_FULL §3,
// ioc_dirps[]/ioc_fatpos[] in struct _fs_ioctx).
func (c *IOContext) Geometry(letter swordvfs.DriveLetter) (dirps, fatpos swordvfs.RecordNumber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirPS[letter], c.fatPos[letter]
}

// allocFD installs a new open file descriptor, reusing a closed slot
// when one is available, and returns its index.
func (c *IOContext) allocFD(vn *VNode, flags swordvfs.IOFlags, pos int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	fd := &FileDescriptor{VNode: vn, Flags: flags, Position: pos, open: true}
	for i, slot := range c.fds {
		if slot == nil || !slot.open {
			c.fds[i] = fd
			return i
		}
	}
	c.fds = append(c.fds, fd)
	return len(c.fds) - 1
}

// FD returns the open descriptor at index n, or NOTOPEN if the slot is
// out of range or closed.
func (c *IOContext) FD(n int) (*FileDescriptor, errors.DriverError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 || n >= len(c.fds) || c.fds[n] == nil || !c.fds[n].open {
		return nil, errors.ErrNotOpen
	}
	return c.fds[n], nil
}

// FreeFD marks descriptor n closed, making its slot available for reuse.
func (c *IOContext) FreeFD(n int) errors.DriverError {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 || n >= len(c.fds) || c.fds[n] == nil || !c.fds[n].open {
		return errors.ErrNotOpen
	}
	c.fds[n].open = false
	return nil
}

func (c *IOContext) allocDirStream(vn *VNode) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ds := &DirStream{VNode: vn, open: true}
	for i, slot := range c.dirs {
		if slot == nil || !slot.open {
			c.dirs[i] = ds
			return i
		}
	}
	c.dirs = append(c.dirs, ds)
	return len(c.dirs) - 1
}

// DirStreamAt returns the open directory stream at index n, or NOTOPEN.
func (c *IOContext) DirStreamAt(n int) (*DirStream, errors.DriverError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 || n >= len(c.dirs) || c.dirs[n] == nil || !c.dirs[n].open {
		return nil, errors.ErrNotOpen
	}
	return c.dirs[n], nil
}

// closeAllOnDrive force-closes every descriptor and directory stream still
// open against mount, one caller at a time, rewriting each open file's
// attribute byte as a best-effort flush before dropping the reference.
// Any individual rewrite failure doesn't stop the sweep: every descriptor
// gets a chance to close, and the failures are aggregated into one
// *multierror.Error, the same all-or-report-everything shape a forced
// unmount needs instead of bailing out at the first bad descriptor.
func (c *IOContext) closeAllOnDrive(mount *Mount) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result *multierror.Error
	for _, fd := range c.fds {
		if fd == nil || !fd.open || fd.VNode.mount != mount {
			continue
		}
		if err := mount.FSMount.SetAttr(&fd.VNode.fib, fd.VNode.fib.Header.Attribute); err != nil {
			result = multierror.Append(result, err)
		}
		fd.VNode.unref()
		fd.open = false
	}
	for _, ds := range c.dirs {
		if ds == nil || !ds.open || ds.VNode.mount != mount {
			continue
		}
		ds.VNode.unref()
		ds.open = false
	}
	return result.ErrorOrNil()
}

func (c *IOContext) freeDirStream(n int) errors.DriverError {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 || n >= len(c.dirs) || c.dirs[n] == nil || !c.dirs[n].open {
		return errors.ErrNotOpen
	}
	c.dirs[n].open = false
	return nil
}
