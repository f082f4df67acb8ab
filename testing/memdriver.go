// Package testing holds fixture helpers shared by every package's test
// files, modeled on the teacher's testing/{images,blockcache}.go: small,
// in-memory stand-ins and image builders that keep individual _test.go
// files from re-deriving the same plumbing.
package testing

import (
	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
	"github.com/sword-emu/swordvfs/storage"
)

// MemDriver is a minimal in-memory storage.Driver, scoped to
// record_read/record_write, used to exercise the directory and FAT
// engines without any real image format in the loop.
type MemDriver struct {
	Records map[swordvfs.RecordNumber][]byte
	Flags   swordvfs.MountFlags
	Super   swordvfs.Superblock
}

// NewMemDriver returns a MemDriver with totalRecords zero-filled records
// and a Superblock reporting the standard DIRPS/FATPOS layout.
func NewMemDriver(totalRecords int) *MemDriver {
	records := make(map[swordvfs.RecordNumber][]byte, totalRecords)
	for i := 0; i < totalRecords; i++ {
		records[swordvfs.RecordNumber(i)] = make([]byte, swordvfs.RecordSize)
	}
	return &MemDriver{
		Records: records,
		Super:   swordvfs.NewSuperblock(swordvfs.RecordNumber(totalRecords), 0),
	}
}

func (m *MemDriver) Name() string                                      { return "mem" }
func (m *MemDriver) Accepts(swordvfs.DriveLetter, string) bool          { return true }
func (m *MemDriver) Mount(swordvfs.DriveLetter, string, swordvfs.MountFlags) errors.DriverError {
	return nil
}
func (m *MemDriver) Unmount(swordvfs.DriveLetter) errors.DriverError { return nil }

func (m *MemDriver) RecordRead(_ swordvfs.DriveLetter, buf []byte, first swordvfs.RecordNumber, count int) (int, errors.DriverError) {
	for i := 0; i < count; i++ {
		rec, ok := m.Records[first+swordvfs.RecordNumber(i)]
		if !ok {
			return i, errors.ErrBadR
		}
		copy(buf[i*swordvfs.RecordSize:(i+1)*swordvfs.RecordSize], rec)
	}
	return count, nil
}

func (m *MemDriver) RecordWrite(_ swordvfs.DriveLetter, buf []byte, first swordvfs.RecordNumber, count int) (int, errors.DriverError) {
	if !m.Flags.CanWrite() {
		return 0, errors.ErrRDOnly
	}
	for i := 0; i < count; i++ {
		rec := make([]byte, swordvfs.RecordSize)
		copy(rec, buf[i*swordvfs.RecordSize:(i+1)*swordvfs.RecordSize])
		m.Records[first+swordvfs.RecordNumber(i)] = rec
	}
	return count, nil
}

func (m *MemDriver) SeqRead(swordvfs.DriveLetter, []byte) (int, errors.DriverError) {
	return 0, errors.ErrReserved
}
func (m *MemDriver) SeqWrite(swordvfs.DriveLetter, []byte) (int, errors.DriverError) {
	return 0, errors.ErrReserved
}
func (m *MemDriver) FIBRead(swordvfs.DriveLetter, uint8) (swordvfs.FIB, errors.DriverError) {
	return swordvfs.FIB{}, errors.ErrReserved
}
func (m *MemDriver) FIBWrite(swordvfs.DriveLetter, uint8, swordvfs.FIB) errors.DriverError {
	return errors.ErrReserved
}
func (m *MemDriver) GetImageInfo(swordvfs.DriveLetter) (storage.ImageInfo, errors.DriverError) {
	return storage.ImageInfo{Superblock: m.Super, ReadOnly: !m.Flags.CanWrite()}, nil
}

var _ storage.Driver = (*MemDriver)(nil)
