// Package fat implements the FAT engine (§4.C): allocate, walk, extend,
// and shrink cluster chains, with the end-of-chain / used-records byte
// encoding from §3. Grounded directly on the original source's
// fs-swd-fat.c (fs_swd_get_block_number, fs_swd_release_blocks,
// fs_swd_get_used_size_in_block).
package fat

import (
	"github.com/boljen/go-bitmap"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
	"github.com/sword-emu/swordvfs/storage"
)

// entryFree is the on-disk FAT byte value for an unallocated cluster.
const entryFree byte = 0x00

// entryEndClsBit marks a FAT byte as the terminal entry of a chain; the
// low nibble then carries used-records-minus-one instead of a pointer.
const entryEndClsBit byte = 0x80

// Table is the in-memory image of the on-disk FAT: one byte per cluster
// index, indexed directly by swordvfs.ClusterIndex.
type Table [swordvfs.MaxFileClusterIndex + 1]byte

// Get returns the raw FAT byte for a cluster index.
func (t *Table) Get(idx swordvfs.ClusterIndex) byte { return t[idx] }

// Set stores the raw FAT byte for a cluster index.
func (t *Table) Set(idx swordvfs.ClusterIndex, v byte) { t[idx] = v }

func isFree(v byte) bool    { return v == entryFree }
func isEndCls(v byte) bool  { return v&entryEndClsBit != 0 }

// usedRecordsAtLastCluster extracts "records used" (1..16) from an
// end-of-chain entry's low nibble.
func usedRecordsAtLastCluster(v byte) int {
	return int(v&0x0F) + 1
}

// entryAtLastCluster builds an end-of-chain FAT byte recording that
// useRecs records (1..16) are valid in the final cluster.
func entryAtLastCluster(useRecs int) byte {
	return entryEndClsBit | byte(useRecs-1)
}

// EndOfChainMarker is the exported form of entryAtLastCluster, for callers
// outside this package (the sword driver) that need to initialize a new
// file's first-cluster field to the "never allocated" end-of-chain value
// GetBlock recognizes.
func EndOfChainMarker(useRecs int) byte { return entryAtLastCluster(useRecs) }

// IsEndOfChain reports whether v is an end-of-chain FAT byte (bit 7 set).
func IsEndOfChain(v byte) bool { return isEndCls(v) }

// ReadTable reads the 256-byte FAT from its fixed record into memory.
func ReadTable(driver storage.Driver, letter swordvfs.DriveLetter, fatRecord swordvfs.RecordNumber) (Table, errors.DriverError) {
	var t Table
	n, err := driver.RecordRead(letter, t[:], fatRecord, 1)
	if err != nil {
		return t, err
	}
	if n != 1 {
		return t, errors.ErrIO.WithMessage("short FAT read")
	}
	return t, nil
}

// WriteBack persists the FAT to its fixed record. Callers must only
// invoke this after all chain mutations for one operation are complete:
// the engine never writes back speculative or partial state.
func WriteBack(driver storage.Driver, letter swordvfs.DriveLetter, fatRecord swordvfs.RecordNumber, t *Table) errors.DriverError {
	n, err := driver.RecordWrite(letter, t[:], fatRecord, 1)
	if err != nil {
		return err
	}
	if n != 1 {
		return errors.ErrIO.WithMessage("short FAT write")
	}
	return nil
}

// findFreeCluster scans clusters from swordvfs.ReservedClusterFloor to
// swordvfs.MaxFileClusterIndex for the first free entry, first-fit,
// grounded on the teacher's bitmap Allocator pattern (allocatormap.go)
// generalized from contiguous-run allocation to a single-cluster search
// over the FAT's own free/used state.
func findFreeCluster(t *Table) (swordvfs.ClusterIndex, errors.DriverError) {
	bm := bitmap.New(swordvfs.MaxFileClusterIndex + 1)
	for i := swordvfs.ReservedClusterFloor; i <= swordvfs.MaxFileClusterIndex; i++ {
		if !isFree(t[i]) {
			bm.Set(i, true)
		}
	}
	for i := swordvfs.ReservedClusterFloor; i <= swordvfs.MaxFileClusterIndex; i++ {
		if !bm.Get(i) {
			return swordvfs.ClusterIndex(i), nil
		}
	}
	return 0, errors.ErrNoSpc
}
