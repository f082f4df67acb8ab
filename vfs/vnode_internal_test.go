package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVNodeCacheAllocAndLookupConverge(t *testing.T) {
	c := newVNodeCache(2)
	mount := &Mount{}

	v1, err := c.alloc()
	require.Nil(t, err)
	v1.id = 5
	v1.mount = mount

	found := c.lookup(mount, 5)
	require.NotNil(t, found)
	assert.Same(t, v1, found)
	assert.Equal(t, 2, found.useCount)
}

func TestVNodeCacheAllocFailsWhenFullAndAllBusy(t *testing.T) {
	c := newVNodeCache(1)
	v1, err := c.alloc()
	require.Nil(t, err)
	require.NotNil(t, v1)

	_, err2 := c.alloc()
	require.NotNil(t, err2)
}

func TestVNodeCacheAllocEvictsCachedEntry(t *testing.T) {
	c := newVNodeCache(1)
	mount := &Mount{}

	v1, err := c.alloc()
	require.Nil(t, err)
	v1.id = 1
	v1.mount = mount
	mount.addVNode(v1)
	v1.unref() // drop to CACHED (use_count 0)

	v2, err2 := c.alloc()
	require.Nil(t, err2)
	assert.NotSame(t, v1, v2)
	assert.Empty(t, mount.liveVNodes())
}

func TestVNodeRefUnrefTransitionsStatus(t *testing.T) {
	v := &VNode{}
	v.ref()
	assert.Equal(t, VNodeBusy, v.Status())
	assert.Equal(t, 1, v.UseCount())

	v.unref()
	assert.Equal(t, VNodeCached, v.Status())
	assert.Equal(t, 0, v.UseCount())

	v.unref()
	assert.Equal(t, 0, v.UseCount())
}

func TestVNodeCacheFreeClearsSlotRegardlessOfUseCount(t *testing.T) {
	c := newVNodeCache(1)
	v, err := c.alloc()
	require.Nil(t, err)

	c.free(v)
	v2, err2 := c.alloc()
	require.Nil(t, err2)
	assert.NotSame(t, v, v2)
}
