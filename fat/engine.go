package fat

import (
	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
	"github.com/sword-emu/swordvfs/storage"
)

// Mode selects whether GetBlock is allowed to extend the cluster chain.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

// Engine is the FAT engine scoped to one mounted drive (§4.C).
type Engine struct {
	Driver    storage.Driver
	Letter    swordvfs.DriveLetter
	FATRecord swordvfs.RecordNumber
}

// NewEngine returns a FAT engine using the standard FATRecord default.
func NewEngine(driver storage.Driver, letter swordvfs.DriveLetter) *Engine {
	return &Engine{Driver: driver, Letter: letter, FATRecord: swordvfs.DefaultFATRecord}
}

// clearCluster zero-fills every record of a newly allocated cluster, as
// clear_block_sword does before a chain ever points at it.
func (e *Engine) clearCluster(idx swordvfs.ClusterIndex) errors.DriverError {
	zero := make([]byte, swordvfs.RecordSize)
	firstRec := swordvfs.ClusterToFirstRecord(idx)
	for i := 0; i < swordvfs.RecordsPerCluster; i++ {
		if _, err := e.Driver.RecordWrite(e.Letter, zero, firstRec+swordvfs.RecordNumber(i), 1); err != nil {
			return err
		}
	}
	return nil
}

// allocateNewBlock finds and clears the first free cluster, per
// alloc_newblock_sword.
func (e *Engine) allocateNewBlock(t *Table) (swordvfs.ClusterIndex, errors.DriverError) {
	idx, err := findFreeCluster(t)
	if err != nil {
		return 0, err
	}
	if err := e.clearCluster(idx); err != nil {
		return 0, err
	}
	return idx, nil
}

// GetBlock resolves the cluster index backing fileOffset within fib's
// chain, reading the FAT, walking or extending it as needed, and (only on
// a successful write-mode call) persisting the FAT exactly once. It is a
// direct port of fs_swd_get_block_number.
func (e *Engine) GetBlock(fib *swordvfs.FIB, fileOffset int, mode Mode) (swordvfs.ClusterIndex, errors.DriverError) {
	if fib.FirstClust == swordvfs.ClusterIndex(entryFree) {
		return 0, errors.ErrBadFAT
	}

	table, err := ReadTable(e.Driver, e.Letter, e.FATRecord)
	if err != nil {
		return 0, err
	}

	if isEndCls(byte(fib.FirstClust)) {
		if mode != ModeWrite {
			return 0, errors.ErrNoEnt
		}
		newBlk, allocErr := e.allocateNewBlock(&table)
		if allocErr != nil {
			return 0, allocErr
		}
		fib.FirstClust = newBlk
		table.Set(newBlk, entryAtLastCluster(1))
	}

	cur := fib.FirstClust

	pos := fileOffset
	if pos > swordvfs.MaxFileSize {
		pos = swordvfs.MaxFileSize
	}

	blockOffset := pos / swordvfs.ClusterSize

	for remaining := blockOffset; remaining > 0; remaining-- {
		entry := table.Get(cur)
		if !isEndCls(entry) {
			cur = swordvfs.ClusterIndex(entry)
			if isFree(table.Get(cur)) {
				return 0, errors.ErrBadFAT
			}
			continue
		}

		if mode != ModeWrite {
			return 0, errors.ErrNoEnt
		}

		newBlk, allocErr := e.allocateNewBlock(&table)
		if allocErr != nil {
			return 0, allocErr
		}
		table.Set(newBlk, entryAtLastCluster(1))
		table.Set(cur, byte(newBlk))
		cur = newBlk
	}

	lastEntry := table.Get(cur)
	if isEndCls(lastEntry) && pos%swordvfs.ClusterSize >= usedRecordsAtLastCluster(lastEntry)*swordvfs.RecordSize {
		if mode != ModeWrite {
			return 0, errors.ErrNoEnt
		}
		useRecs := nextAlign(pos%swordvfs.ClusterSize+1, swordvfs.RecordSize) / swordvfs.RecordSize
		table.Set(cur, entryAtLastCluster(useRecs))
	}

	if mode == ModeWrite {
		if err := WriteBack(e.Driver, e.Letter, e.FATRecord, &table); err != nil {
			return 0, err
		}
	}

	return cur, nil
}

// ReleaseBlocks truncates fib's chain so byte offset becomes the new EOF,
// a direct port of fs_swd_release_blocks.
func (e *Engine) ReleaseBlocks(fib *swordvfs.FIB, fileOffset int) (int, errors.DriverError) {
	if fib.FirstClust == swordvfs.ClusterIndex(entryFree) {
		return 0, errors.ErrBadFAT
	}

	pos := fileOffset
	if pos > swordvfs.MaxFileSize {
		pos = swordvfs.MaxFileSize
	}

	table, err := ReadTable(e.Driver, e.Letter, e.FATRecord)
	if err != nil {
		return 0, err
	}

	const unavailable = -1
	remainedBlk := unavailable

	if pos > 0 {
		blk, getErr := e.GetBlock(fib, pos-1, ModeRead)
		if getErr != nil {
			return 0, getErr
		}
		remainedBlk = int(blk)
		entry := table.Get(blk)
		useRecs := nextAlign((pos-1)%swordvfs.ClusterSize+1, swordvfs.RecordSize) / swordvfs.RecordSize
		_ = entry
		table.Set(blk, entryAtLastCluster(useRecs))
	}

	released := 0
	relPos := nextAlign(pos, swordvfs.ClusterSize)

	next, getErr := e.GetBlock(fib, relPos, ModeRead)
	if getErr != nil {
		if getErr.ErrCode() == errors.NOENT && (pos == 0 || remainedBlk != unavailable) {
			return e.finishRelease(fib, &table, released)
		}
		return 0, getErr
	}

	for {
		cur := next
		entry := table.Get(cur)
		if isFree(entry) {
			return 0, errors.ErrBadFAT
		}
		next = cur
		if !isEndCls(entry) {
			next = swordvfs.ClusterIndex(entry)
		}
		table.Set(cur, entryFree)
		released++
		if isEndCls(entry) {
			break
		}
	}

	return e.finishRelease(fib, &table, released)
}

func (e *Engine) finishRelease(fib *swordvfs.FIB, table *Table, released int) (int, errors.DriverError) {
	if err := WriteBack(e.Driver, e.Letter, e.FATRecord, table); err != nil {
		return 0, err
	}

	if !isEndCls(byte(fib.FirstClust)) && isFree(table.Get(fib.FirstClust)) {
		fib.FirstClust = swordvfs.ClusterIndex(entryAtLastCluster(1))
	}

	return released, nil
}

// UsedSizeInBlock returns the number of valid bytes in the cluster holding
// fileOffset, a direct port of fs_swd_get_used_size_in_block.
func (e *Engine) UsedSizeInBlock(fib *swordvfs.FIB, fileOffset int) (int, errors.DriverError) {
	pos := fileOffset
	if pos > swordvfs.MaxFileSize {
		pos = swordvfs.MaxFileSize
	}

	table, err := ReadTable(e.Driver, e.Letter, e.FATRecord)
	if err != nil {
		return 0, err
	}

	blk, err := e.GetBlock(fib, pos, ModeRead)
	if err != nil {
		return 0, err
	}

	entry := table.Get(blk)
	if !isEndCls(entry) {
		return swordvfs.ClusterSize, nil
	}
	return usedRecordsAtLastCluster(entry) * swordvfs.RecordSize, nil
}

// nextAlign rounds n up to the next multiple of align, matching
// SOS_CALC_NEXT_ALIGN.
func nextAlign(n, align int) int {
	if n%align == 0 {
		return n
	}
	return ((n / align) + 1) * align
}
