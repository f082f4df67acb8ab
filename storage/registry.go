package storage

import (
	"strings"
	"sync"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
)

// Registry is the mount-time driver dispatch table (§4.B): drivers
// register themselves once at startup, and Mount consults them in
// registration order, picking the first whose Accepts matches. A driver's
// use count (the number of drives currently mounted through it) forbids
// Unregister while any image is live, mirroring the teacher's
// storage-manager use-count field (sm_use_cnt in storage.h).
type Registry struct {
	mu       sync.Mutex
	entries  []*registryEntry
	mounted  map[swordvfs.DriveLetter]*registryEntry
}

type registryEntry struct {
	driver  Driver
	useCnt  int
}

// NewRegistry returns an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{
		mounted: make(map[swordvfs.DriveLetter]*registryEntry),
	}
}

// Register adds a driver to the dispatch table. Registering the same
// driver name twice is a no-op error, matching the one-name-one-manager
// invariant implied by struct _storage_manager.sm_name.
func (r *Registry) Register(driver Driver) errors.DriverError {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.driver.Name() == driver.Name() {
			return errors.ErrExist.WithMessage("storage driver already registered: " + driver.Name())
		}
	}
	r.entries = append(r.entries, &registryEntry{driver: driver})
	return nil
}

// Unregister removes a driver by name. It fails while any drive is
// currently mounted through it.
func (r *Registry) Unregister(name string) errors.DriverError {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.driver.Name() != name {
			continue
		}
		if e.useCnt > 0 {
			return errors.ErrExist.WithMessage("storage driver busy: " + name)
		}
		r.entries = append(r.entries[:i], r.entries[i+1:]...)
		return nil
	}
	return errors.ErrNoEnt.WithMessage("storage driver not registered: " + name)
}

// Mount finds the first registered driver willing to accept (letter, path)
// and mounts it, bumping that driver's use count.
func (r *Registry) Mount(letter swordvfs.DriveLetter, path string, flags swordvfs.MountFlags) (Driver, errors.DriverError) {
	if !letter.IsValid() {
		return nil, errors.ErrSyntax.WithMessage("invalid drive letter")
	}

	r.mu.Lock()
	if _, already := r.mounted[letter]; already {
		r.mu.Unlock()
		return nil, errors.New(errors.RESERVED, "drive already mounted").WithMessage(letter.String())
	}

	var chosen *registryEntry
	for _, e := range r.entries {
		if e.driver.Accepts(letter, path) {
			chosen = e
			break
		}
	}
	if chosen == nil {
		r.mu.Unlock()
		return nil, errors.ErrOffline.WithMessage("no driver bound for " + letter.String())
	}
	r.mu.Unlock()

	if err := chosen.driver.Mount(letter, path, flags); err != nil {
		return nil, err
	}

	r.mu.Lock()
	chosen.useCnt++
	r.mounted[letter] = chosen
	r.mu.Unlock()

	return chosen.driver, nil
}

// Unmount releases the drive's binding and decrements the owning driver's
// use count.
func (r *Registry) Unmount(letter swordvfs.DriveLetter) errors.DriverError {
	r.mu.Lock()
	entry, ok := r.mounted[letter]
	if !ok {
		r.mu.Unlock()
		return errors.ErrOffline.WithMessage("not mounted: " + letter.String())
	}
	delete(r.mounted, letter)
	r.mu.Unlock()

	err := entry.driver.Unmount(letter)

	r.mu.Lock()
	entry.useCnt--
	r.mu.Unlock()

	return err
}

// DriverFor returns the driver currently bound to letter, or nil.
func (r *Registry) DriverFor(letter swordvfs.DriveLetter) Driver {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.mounted[letter]
	if !ok {
		return nil
	}
	return e.driver
}

// matchExtension does a case-insensitive compare of path's extension
// (without the dot) against want, as §6 specifies for image selection.
func matchExtension(path string, want ...string) bool {
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 || dot == len(path)-1 {
		return false
	}
	ext := strings.ToLower(path[dot+1:])
	for _, w := range want {
		if ext == w {
			return true
		}
	}
	return false
}
