// Package vfs is the POSIX-flavored front-end (§4.F-I): the v-node cache,
// the mount-point manager, and the file-descriptor / directory-stream
// layer that dispatches every operation through a pluggable FileSystem
// implementation, exactly as the original source's fs-vnode.c/fs-mount.c/
// fs-vfs.c do for the Z80 trap layer. It is grounded on the teacher's
// driver.BaseDriver (driver/driver.go) and disko.FileSystemImplementer
// (api.go), generalized from disko's hierarchical-path model to the
// spec's v-node-by-#DIRNO, single-level-directory model.
package vfs

import (
	"sync"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
	"github.com/sword-emu/swordvfs/storage"
)

// FileSystem is the per-drive implementation contract (§4.I, §9's
// dispatch-through-function-tables note): the vfs package only ever talks
// to this interface, never to a concrete driver, so adding a second
// implementation (e.g. a host-directory backend) never touches this
// package. It plays the role disko.FileSystemImplementer plays for
// driver.BaseDriver.
type FileSystem interface {
	// Name identifies the implementation for the registry (e.g. "sword").
	Name() string

	// Mount binds to an already-mounted storage.Driver for letter and
	// returns the per-mount handle that every subsequent vfs operation on
	// this drive is dispatched through, plus the resulting superblock and
	// the FIB identifying the root of the single-level directory.
	Mount(drv storage.Driver, letter swordvfs.DriveLetter, flags swordvfs.MountFlags) (FSMount, swordvfs.Superblock, swordvfs.FIB, errors.DriverError)
}

// FSMount is the live, per-drive handle a FileSystem hands back from
// Mount. Every vnode/file operation the front-end performs on that drive
// is dispatched through it, mirroring the dispatch the original source
// performed through struct _fs_operations function pointers.
type FSMount interface {
	// Unmount releases any implementation-private state. It does not
	// unmount the underlying storage.Driver; that is the caller's
	// responsibility via the storage package.
	Unmount() errors.DriverError

	// Lookup resolves a #DIRNO to its FIB.
	Lookup(dirno uint8) (swordvfs.FIB, errors.DriverError)
	// LookupByName resolves a host-presentable filename to its FIB.
	LookupByName(hostName string) (swordvfs.FIB, errors.DriverError)
	// Create allocates a new directory entry for hostName with header,
	// returning its FIB. The file is not yet allocated any clusters.
	Create(hostName string, header swordvfs.HeaderPacket) (swordvfs.FIB, errors.DriverError)

	Read(fib *swordvfs.FIB, pos int, buf []byte) (int, errors.DriverError)
	Write(fib *swordvfs.FIB, pos int, buf []byte) (int, errors.DriverError)
	Truncate(fib *swordvfs.FIB, length int) errors.DriverError
	Unlink(fib swordvfs.FIB) errors.DriverError
	Rename(fib *swordvfs.FIB, newHostName string) errors.DriverError
	SetAttr(fib *swordvfs.FIB, attr swordvfs.Attribute) errors.DriverError

	// ReadDirEntry returns the first live (non-free) entry at or after
	// raw slot `from`, along with its actual #DIRNO, or NOENT at the
	// end-of-directory sentinel.
	ReadDirEntry(from uint8) (uint8, swordvfs.FIB, errors.DriverError)
}

// FSRegistry is the named file-system registry (§4.I): implementations
// register themselves once at startup under a name, and Mount looks them
// up by that name, mirroring storage.Registry's role one layer up.
type FSRegistry struct {
	mu sync.Mutex
	fs map[string]FileSystem
}

// NewFSRegistry returns an empty file-system registry.
func NewFSRegistry() *FSRegistry {
	return &FSRegistry{fs: make(map[string]FileSystem)}
}

// Register adds a named file-system implementation.
func (r *FSRegistry) Register(fs FileSystem) errors.DriverError {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.fs[fs.Name()]; exists {
		return errors.ErrExist.WithMessage("file system already registered: " + fs.Name())
	}
	r.fs[fs.Name()] = fs
	return nil
}

// Unregister removes a named file-system implementation.
func (r *FSRegistry) Unregister(name string) errors.DriverError {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.fs[name]; !exists {
		return errors.ErrNoEnt.WithMessage("file system not registered: " + name)
	}
	delete(r.fs, name)
	return nil
}

// Get returns the named file-system implementation.
func (r *FSRegistry) Get(name string) (FileSystem, errors.DriverError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fs, exists := r.fs[name]
	if !exists {
		return nil, errors.ErrNoEnt.WithMessage("file system not registered: " + name)
	}
	return fs, nil
}
