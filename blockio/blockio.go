// Package blockio implements cluster-granularity read/modify/write over a
// FIB's cluster chain (§4.E), the layer that sits directly on top of the
// FAT engine and the storage driver. Grounded on the original source's
// fs-swd-rwblk.c (fs_swd_rw_block): it resolves one cluster at a time via
// fat.Engine.GetBlock, transfers whole records directly and partial
// trailing records via read-modify-write, and stops as soon as the
// requested length is satisfied or GetBlock fails.
package blockio

import (
	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
	"github.com/sword-emu/swordvfs/fat"
	"github.com/sword-emu/swordvfs/storage"
)

// RWBlock transfers len(buf) bytes between buf and fib's cluster chain
// starting at byte offset pos, in mode (READ fills buf, WRITE drains it).
// It returns the number of bytes actually transferred alongside any
// error: a short read at EOF is reported by returning fewer bytes than
// requested with a nil error once at least one byte has been transferred,
// matching fs_swd_rw_block's stop-on-NOENT behavior.
func RWBlock(
	fatEngine *fat.Engine,
	driver storage.Driver,
	letter swordvfs.DriveLetter,
	fib *swordvfs.FIB,
	pos int,
	mode fat.Mode,
	buf []byte,
) (int, errors.DriverError) {
	transferred := 0
	remaining := len(buf)

	for remaining > 0 {
		cluster, err := fatEngine.GetBlock(fib, pos, mode)
		if err != nil {
			if mode == fat.ModeRead && err.ErrCode() == errors.NOENT && transferred > 0 {
				return transferred, nil
			}
			return transferred, err
		}

		clusterOffset := pos % swordvfs.ClusterSize
		recordOffset := clusterOffset % swordvfs.RecordSize
		record := swordvfs.ClusterToFirstRecord(cluster) + swordvfs.RecordNumber(clusterOffset/swordvfs.RecordSize)

		chunk := swordvfs.RecordSize - recordOffset
		if chunk > remaining {
			chunk = remaining
		}

		var n int
		var ioErr errors.DriverError
		if mode == fat.ModeRead {
			n, ioErr = readChunk(driver, letter, record, recordOffset, buf[transferred:transferred+chunk])
		} else {
			n, ioErr = writeChunk(driver, letter, record, recordOffset, buf[transferred:transferred+chunk])
		}

		transferred += n
		pos += n
		remaining -= n
		if ioErr != nil {
			return transferred, ioErr
		}
		if n < chunk {
			return transferred, errors.ErrIO.WithMessage("short record transfer")
		}
	}
	return transferred, nil
}

// readChunk reads one full record and copies the slice of it covering
// [offset, offset+len(dest)) into dest.
func readChunk(driver storage.Driver, letter swordvfs.DriveLetter, rec swordvfs.RecordNumber, offset int, dest []byte) (int, errors.DriverError) {
	full := make([]byte, swordvfs.RecordSize)
	n, err := driver.RecordRead(letter, full, rec, 1)
	if err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, errors.ErrIO.WithMessage("short record read")
	}
	return copy(dest, full[offset:offset+len(dest)]), nil
}

// writeChunk writes src into a record, doing a full-record write when src
// covers the whole record and a read-modify-write when it only covers a
// partial trailing portion, exactly as §4.E requires.
func writeChunk(driver storage.Driver, letter swordvfs.DriveLetter, rec swordvfs.RecordNumber, offset int, src []byte) (int, errors.DriverError) {
	if offset == 0 && len(src) == swordvfs.RecordSize {
		n, err := driver.RecordWrite(letter, src, rec, 1)
		if err != nil {
			return 0, err
		}
		if n != 1 {
			return 0, errors.ErrIO.WithMessage("short record write")
		}
		return len(src), nil
	}

	full := make([]byte, swordvfs.RecordSize)
	if n, err := driver.RecordRead(letter, full, rec, 1); err != nil || n != 1 {
		if err != nil {
			return 0, err
		}
		return 0, errors.ErrIO.WithMessage("short record read")
	}
	copy(full[offset:offset+len(src)], src)

	n, err := driver.RecordWrite(letter, full, rec, 1)
	if err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, errors.ErrIO.WithMessage("short record write")
	}
	return len(src), nil
}
