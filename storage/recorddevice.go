package storage

import (
	"io"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
)

// recordDevice is the record-granularity counterpart to the teacher's
// BlockDevice: it turns an io.ReadWriteSeeker backing an image file into a
// device addressable only in whole 256-byte records, used by every disk
// driver in this package.
type recordDevice struct {
	stream       io.ReadWriteSeeker
	totalRecords swordvfs.RecordNumber
}

func newRecordDevice(stream io.ReadWriteSeeker, totalRecords swordvfs.RecordNumber) recordDevice {
	return recordDevice{stream: stream, totalRecords: totalRecords}
}

func (d *recordDevice) checkBounds(first swordvfs.RecordNumber, count int) errors.DriverError {
	if count < 0 || int64(first)+int64(count) > int64(d.totalRecords) {
		return errors.ErrBadR.WithMessage("record range out of bounds")
	}
	return nil
}

func (d *recordDevice) readRecords(buf []byte, first swordvfs.RecordNumber, count int) (int, errors.DriverError) {
	if err := d.checkBounds(first, count); err != nil {
		return 0, err
	}
	want := count * swordvfs.RecordSize
	if len(buf) < want {
		return 0, errors.ErrInval.WithMessage("buffer too small for requested record count")
	}

	if _, err := d.stream.Seek(int64(first)*swordvfs.RecordSize, io.SeekStart); err != nil {
		return 0, errors.ErrIO.WrapError(err)
	}
	n, err := io.ReadFull(d.stream, buf[:want])
	if err != nil && err != io.ErrUnexpectedEOF {
		return n / swordvfs.RecordSize, errors.ErrIO.WrapError(err)
	}
	return n / swordvfs.RecordSize, nil
}

func (d *recordDevice) writeRecords(buf []byte, first swordvfs.RecordNumber, count int) (int, errors.DriverError) {
	if err := d.checkBounds(first, count); err != nil {
		return 0, err
	}
	want := count * swordvfs.RecordSize
	if len(buf) < want {
		return 0, errors.ErrInval.WithMessage("buffer too small for requested record count")
	}

	if _, err := d.stream.Seek(int64(first)*swordvfs.RecordSize, io.SeekStart); err != nil {
		return 0, errors.ErrIO.WrapError(err)
	}
	n, err := d.stream.Write(buf[:want])
	if err != nil {
		return n / swordvfs.RecordSize, errors.ErrIO.WrapError(err)
	}
	return n / swordvfs.RecordSize, nil
}
