package fat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
	"github.com/sword-emu/swordvfs/fat"
	sdktesting "github.com/sword-emu/swordvfs/testing"
)

func newFAT(totalClusters int) *sdktesting.MemDriver {
	return sdktesting.NewMemDriver(totalClusters * swordvfs.RecordsPerCluster)
}

// TestGetBlockReadThenWriteConverge pins §8 property 3: a READ followed by
// a WRITE at the same offset on an unchanged file must resolve to the same
// cluster, i.e. a speculative READ never perturbs the chain WRITE later
// extends.
func TestGetBlockReadThenWriteConverge(t *testing.T) {
	drv := newFAT(8)
	eng := fat.NewEngine(drv, swordvfs.DriveA)
	fib := &swordvfs.FIB{FirstClust: swordvfs.ClusterIndex(fat.EndOfChainMarker(1))}

	written, err := eng.GetBlock(fib, 0, fat.ModeWrite)
	require.Nil(t, err)

	read, err := eng.GetBlock(fib, 0, fat.ModeRead)
	require.Nil(t, err)
	assert.Equal(t, written, read)

	rewritten, err := eng.GetBlock(fib, 0, fat.ModeWrite)
	require.Nil(t, err)
	assert.Equal(t, written, rewritten)
}

// TestTruncateLadder pins §8 S3: extending a one-cluster file by 2048 bytes
// grows the chain by one cluster with an 8-record last-cluster marker,
// shrinking back to the original size restores the 16-record marker, and
// truncating to zero fully releases the chain.
func TestTruncateLadder(t *testing.T) {
	drv := newFAT(8)
	eng := fat.NewEngine(drv, swordvfs.DriveA)
	fib := &swordvfs.FIB{FirstClust: swordvfs.ClusterIndex(fat.EndOfChainMarker(1))}

	// Establish a one-cluster file of exactly 4096 bytes.
	_, err := eng.GetBlock(fib, swordvfs.ClusterSize-1, fat.ModeWrite)
	require.Nil(t, err)
	firstCluster := fib.FirstClust

	used, err := eng.UsedSizeInBlock(fib, 0)
	require.Nil(t, err)
	assert.Equal(t, swordvfs.ClusterSize, used)

	// Extend to 6144 bytes: a second cluster is allocated, and its
	// last-cluster marker records 8 used records (2048 bytes == 8*256).
	_, err = eng.GetBlock(fib, 6144-1, fat.ModeWrite)
	require.Nil(t, err)
	used, err = eng.UsedSizeInBlock(fib, swordvfs.ClusterSize)
	require.Nil(t, err)
	assert.Equal(t, 8*swordvfs.RecordSize, used)

	// Shrink back to 4096: the cluster-aligned new EOF means the walk that
	// finds a trailing cluster to release comes up empty (there is nothing
	// past the new last cluster from the FAT's point of view once its
	// marker is rewritten), so released is 0 here; the chain still ends up
	// one cluster shorter because the first cluster's marker is rewritten
	// to end-of-chain, discarding its pointer to the second.
	released, err := eng.ReleaseBlocks(fib, swordvfs.ClusterSize)
	require.Nil(t, err)
	assert.Equal(t, 0, released)
	assert.Equal(t, firstCluster, fib.FirstClust)

	used, err = eng.UsedSizeInBlock(fib, 0)
	require.Nil(t, err)
	assert.Equal(t, swordvfs.ClusterSize, used)

	// Truncate to zero: the whole chain is released, and the FAT byte for
	// the former first cluster reads back as free.
	released, err = eng.ReleaseBlocks(fib, 0)
	require.Nil(t, err)
	assert.Equal(t, 1, released)

	table, rerr := fat.ReadTable(drv, swordvfs.DriveA, eng.FATRecord)
	require.Nil(t, rerr)
	assert.Equal(t, byte(0x00), table.Get(firstCluster))
	assert.True(t, fat.IsEndOfChain(byte(fib.FirstClust)))
}

// TestReleaseBlocksNoOpWhenAlreadyAtLength pins §8 property 6: truncating
// a 101-byte file to its current size leaves the on-disk FAT bytes
// unchanged.
func TestReleaseBlocksNoOpWhenAlreadyAtLength(t *testing.T) {
	drv := newFAT(8)
	eng := fat.NewEngine(drv, swordvfs.DriveA)
	fib := &swordvfs.FIB{FirstClust: swordvfs.ClusterIndex(fat.EndOfChainMarker(1))}

	_, err := eng.GetBlock(fib, 100, fat.ModeWrite)
	require.Nil(t, err)

	before, err := fat.ReadTable(drv, swordvfs.DriveA, eng.FATRecord)
	require.Nil(t, err)

	_, err = eng.ReleaseBlocks(fib, 101)
	require.Nil(t, err)

	after, err := fat.ReadTable(drv, swordvfs.DriveA, eng.FATRecord)
	require.Nil(t, err)
	assert.Equal(t, before, after)
}

// TestGetBlockDetectsCorruptChain pins §8 S5: a chain whose second link
// points at a cluster that itself reads back free must surface BADFAT on
// the next access that walks through it, and must never write that failed
// walk's FAT image back to disk.
func TestGetBlockDetectsCorruptChain(t *testing.T) {
	drv := newFAT(8)
	eng := fat.NewEngine(drv, swordvfs.DriveA)
	fib := &swordvfs.FIB{FirstClust: swordvfs.ClusterIndex(fat.EndOfChainMarker(1))}

	// Grow the chain to two clusters so there is a pointer to walk.
	_, err := eng.GetBlock(fib, swordvfs.ClusterSize, fat.ModeWrite)
	require.Nil(t, err)

	// Poison the FAT: the second cluster's own entry is zeroed out from
	// underneath the first cluster's pointer, mimicking a damaged sector
	// that frees a cluster a live chain still references.
	table, rerr := fat.ReadTable(drv, swordvfs.DriveA, eng.FATRecord)
	require.Nil(t, rerr)
	secondCluster := table.Get(fib.FirstClust)
	table.Set(swordvfs.ClusterIndex(secondCluster), 0x00)
	require.Nil(t, fat.WriteBack(drv, swordvfs.DriveA, eng.FATRecord, &table))
	corrupted := table

	_, err = eng.GetBlock(fib, swordvfs.ClusterSize, fat.ModeRead)
	require.NotNil(t, err)
	assert.Equal(t, errors.BADFAT, err.ErrCode())

	afterFailedRead, rerr := fat.ReadTable(drv, swordvfs.DriveA, eng.FATRecord)
	require.Nil(t, rerr)
	assert.Equal(t, corrupted, afterFailedRead)
}

func TestGetBlockExtendsAcrossMultipleClusters(t *testing.T) {
	drv := newFAT(8)
	eng := fat.NewEngine(drv, swordvfs.DriveA)
	fib := &swordvfs.FIB{FirstClust: swordvfs.ClusterIndex(fat.EndOfChainMarker(1))}

	cl0, err := eng.GetBlock(fib, 0, fat.ModeWrite)
	require.Nil(t, err)
	cl1, err := eng.GetBlock(fib, swordvfs.ClusterSize, fat.ModeWrite)
	require.Nil(t, err)
	cl2, err := eng.GetBlock(fib, 2*swordvfs.ClusterSize, fat.ModeWrite)
	require.Nil(t, err)

	assert.NotEqual(t, cl0, cl1)
	assert.NotEqual(t, cl1, cl2)

	// Walking back to offset 0 after the chain has been extended still
	// resolves to the original first cluster.
	back, err := eng.GetBlock(fib, 0, fat.ModeRead)
	require.Nil(t, err)
	assert.Equal(t, cl0, back)
}
