package vfs

import (
	"sync"

	"github.com/boljen/go-bitmap"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
)

// VNodeStatus is the lifecycle state of one cache slot (§3, §4.F).
type VNodeStatus int

const (
	// VNodeFree marks an unused table slot.
	VNodeFree VNodeStatus = iota
	// VNodeBusy marks a vnode with at least one live reference; it can
	// never be chosen as an eviction victim.
	VNodeBusy
	// VNodeCached marks a vnode with zero live references whose FIB is
	// still valid: it can be handed back out on a matching lookup, or
	// reclaimed as an eviction victim if the table is full.
	VNodeCached
)

// VNode is the cached per-file engine handle (§3): exactly one lives per
// (mount, #DIRNO) while referenced, with free-list reuse governed by
// vnodeCache.
type VNode struct {
	id       uint8
	status   VNodeStatus
	useCount int
	mount    *Mount
	fib      swordvfs.FIB
}

// ID returns the #DIRNO this vnode caches.
func (v *VNode) ID() uint8 { return v.id }

// Mount returns the mount point this vnode belongs to.
func (v *VNode) Mount() *Mount { return v.mount }

// FIB returns a copy of the cached directory-entry projection.
func (v *VNode) FIB() swordvfs.FIB { return v.fib }

// UseCount returns the live reference count.
func (v *VNode) UseCount() int { return v.useCount }

// Status returns the current lifecycle state.
func (v *VNode) Status() VNodeStatus { return v.status }

// ref bumps the reference count and marks the vnode busy.
func (v *VNode) ref() {
	v.useCount++
	v.status = VNodeBusy
}

// unref drops the reference count, demoting to CACHED once it reaches
// zero. It is a no-op below zero, matching the teacher's defensive
// close-twice guards (callers are expected to have already checked
// NOTOPEN before calling this).
func (v *VNode) unref() {
	if v.useCount == 0 {
		return
	}
	v.useCount--
	if v.useCount == 0 {
		v.status = VNodeCached
	}
}

// vnodeCache is the fixed-size v-node table (§4.F). Lookups are linear;
// the table sizes the spec expects (a few dozen to a few hundred live
// files) make this the simplest correct implementation, matching the
// teacher's preference for straightforward scans over premature indexing
// (disko's BaseDriver resolves paths with a similar linear walk).
type vnodeCache struct {
	mu       sync.Mutex
	table    []*VNode
	occupied bitmap.Bitmap
}

func newVNodeCache(size int) *vnodeCache {
	return &vnodeCache{table: make([]*VNode, size), occupied: bitmap.New(size)}
}

// lookup finds a live vnode for (mount, id), bumping its reference count
// on success. Concurrent re-entrant lookups converge on the same vnode
// because the table itself is the single source of truth; the mutex
// serializes the lookup-or-create race instead of a separate BUSY latch.
func (c *vnodeCache) lookup(mount *Mount, id uint8) *VNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.table {
		if v != nil && v.mount == mount && v.id == id {
			v.ref()
			return v
		}
	}
	return nil
}

// alloc reserves a table slot for a brand new vnode, preferring an empty
// slot and falling back to evicting the first CACHED (use_count == 0,
// not busy) entry. It returns NOSPC if every slot is busy.
func (c *vnodeCache) alloc() (*VNode, errors.DriverError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < len(c.table); i++ {
		if !c.occupied.Get(i) {
			nv := &VNode{status: VNodeBusy, useCount: 1}
			c.table[i] = nv
			c.occupied.Set(i, true)
			return nv, nil
		}
	}

	for i, v := range c.table {
		if v.status != VNodeBusy {
			if v.mount != nil {
				v.mount.removeVNode(v)
			}
			nv := &VNode{status: VNodeBusy, useCount: 1}
			c.table[i] = nv
			return nv, nil
		}
	}

	return nil, errors.ErrNoSpc.WithMessage("vnode table full")
}

// free unconditionally clears a vnode's table slot, used when a mount is
// torn down and every vnode it owns must be invalidated regardless of use
// count.
func (c *vnodeCache) free(target *VNode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range c.table {
		if v == target {
			c.table[i] = nil
			c.occupied.Set(i, false)
			return
		}
	}
}
