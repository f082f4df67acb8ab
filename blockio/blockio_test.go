package blockio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/blockio"
	"github.com/sword-emu/swordvfs/fat"
	sdktesting "github.com/sword-emu/swordvfs/testing"
)

func newFAT(totalClusters int) *sdktesting.MemDriver {
	return sdktesting.NewMemDriver(totalClusters * swordvfs.RecordsPerCluster)
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	drv := newFAT(8)
	eng := fat.NewEngine(drv, swordvfs.DriveA)
	fib := &swordvfs.FIB{FirstClust: swordvfs.ClusterIndex(fat.EndOfChainMarker(1))}

	payload := []byte("HELLO\r")
	n, err := blockio.RWBlock(eng, drv, swordvfs.DriveA, fib, 0, fat.ModeWrite, payload)
	require.Nil(t, err)
	assert.Equal(t, len(payload), n)

	buf := make([]byte, len(payload))
	n, err = blockio.RWBlock(eng, drv, swordvfs.DriveA, fib, 0, fat.ModeRead, buf)
	require.Nil(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf)
}

func TestWriteAcrossClusterBoundary(t *testing.T) {
	drv := newFAT(8)
	eng := fat.NewEngine(drv, swordvfs.DriveA)
	fib := &swordvfs.FIB{FirstClust: swordvfs.ClusterIndex(fat.EndOfChainMarker(1))}

	payload := make([]byte, swordvfs.ClusterSize+10)
	for i := range payload {
		payload[i] = byte(i)
	}

	n, err := blockio.RWBlock(eng, drv, swordvfs.DriveA, fib, 0, fat.ModeWrite, payload)
	require.Nil(t, err)
	assert.Equal(t, len(payload), n)

	buf := make([]byte, len(payload))
	n, err = blockio.RWBlock(eng, drv, swordvfs.DriveA, fib, 0, fat.ModeRead, buf)
	require.Nil(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf)
}

// Reading beyond what was actually written but still inside the record
// the FAT marks "used" does not short-stop: end-of-chain accounting is
// record-granular, not byte-granular, so the caller (the vfs front-end)
// is responsible for clamping reads to the directory entry's Size field.
func TestReadWithinUsedRecordReturnsZeroFill(t *testing.T) {
	drv := newFAT(8)
	eng := fat.NewEngine(drv, swordvfs.DriveA)
	fib := &swordvfs.FIB{FirstClust: swordvfs.ClusterIndex(fat.EndOfChainMarker(1))}

	payload := []byte("ABCDEF")
	_, err := blockio.RWBlock(eng, drv, swordvfs.DriveA, fib, 0, fat.ModeWrite, payload)
	require.Nil(t, err)

	buf := make([]byte, swordvfs.RecordSize)
	n, err := blockio.RWBlock(eng, drv, swordvfs.DriveA, fib, 0, fat.ModeRead, buf)
	require.Nil(t, err)
	assert.Equal(t, swordvfs.RecordSize, n)
	assert.Equal(t, payload, buf[:len(payload)])
	assert.Equal(t, make([]byte, swordvfs.RecordSize-len(payload)), buf[len(payload):])
}
