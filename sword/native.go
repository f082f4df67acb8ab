package sword

import (
	"strings"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
	"github.com/sword-emu/swordvfs/storage"
	"github.com/sword-emu/swordvfs/vfs"
)

// nativeMount is the vfs.FSMount for a storage.Driver that supplies its
// own FIB abstraction instead of a generic directory/FAT pair — the tape
// (MZT) driver, which holds exactly one file synthesized from its header
// (§6, SPEC_FULL §3). It dispatches straight to FIBRead/FIBWrite and
// record-addressed I/O instead of directory.Engine/fat.Engine.
type nativeMount struct {
	driver storage.Driver
	letter swordvfs.DriveLetter
}

func (m *nativeMount) Unmount() errors.DriverError { return nil }

func (m *nativeMount) Lookup(dirno uint8) (swordvfs.FIB, errors.DriverError) {
	return m.driver.FIBRead(m.letter, dirno)
}

// LookupByName accepts the tape's one file under any name whose header is
// still blank (a freshly blanked image) and otherwise requires a
// case-insensitive match against the name baked into the header, the
// same "wrong tape loaded" rejection a cassette deck's user would expect.
func (m *nativeMount) LookupByName(hostName string) (swordvfs.FIB, errors.DriverError) {
	fib, err := m.driver.FIBRead(m.letter, 0)
	if err != nil {
		return swordvfs.FIB{}, err
	}
	if fib.HostName != "" && !strings.EqualFold(fib.HostName, hostName) {
		return swordvfs.FIB{}, errors.ErrNoEnt.WithMessage(hostName)
	}
	fib.HostName = hostName
	return fib, nil
}

func (m *nativeMount) Create(hostName string, header swordvfs.HeaderPacket) (swordvfs.FIB, errors.DriverError) {
	fib := swordvfs.FIB{Drive: m.letter, DirNo: 0, Header: header, HostName: hostName}
	if err := m.driver.FIBWrite(m.letter, 0, fib); err != nil {
		return swordvfs.FIB{}, err
	}
	return fib, nil
}

func (m *nativeMount) Read(fib *swordvfs.FIB, pos int, buf []byte) (int, errors.DriverError) {
	return nativeRW(m.driver, m.letter, pos, buf, false)
}

func (m *nativeMount) Write(fib *swordvfs.FIB, pos int, buf []byte) (int, errors.DriverError) {
	n, err := nativeRW(m.driver, m.letter, pos, buf, true)
	if err != nil && n == 0 {
		return n, err
	}
	if pos+n > int(fib.Size) {
		fib.Size = uint16(pos + n)
	}
	if werr := m.driver.FIBWrite(m.letter, fib.DirNo, *fib); werr != nil {
		return n, werr
	}
	return n, err
}

func (m *nativeMount) Truncate(fib *swordvfs.FIB, length int) errors.DriverError {
	fib.Size = uint16(length)
	return m.driver.FIBWrite(m.letter, fib.DirNo, *fib)
}

func (m *nativeMount) Unlink(fib swordvfs.FIB) errors.DriverError {
	fib.Header = swordvfs.HeaderPacket{}
	fib.Size = 0
	fib.HostName = ""
	return m.driver.FIBWrite(m.letter, fib.DirNo, fib)
}

func (m *nativeMount) Rename(fib *swordvfs.FIB, newHostName string) errors.DriverError {
	fib.HostName = newHostName
	return m.driver.FIBWrite(m.letter, fib.DirNo, *fib)
}

func (m *nativeMount) SetAttr(fib *swordvfs.FIB, attr swordvfs.Attribute) errors.DriverError {
	fib.Header.Attribute = (fib.Header.Attribute & swordvfs.AttrTypeMask) | (attr &^ swordvfs.AttrTypeMask)
	return m.driver.FIBWrite(m.letter, fib.DirNo, *fib)
}

// ReadDirEntry surfaces the tape's single entry at #DIRNO 0 and stops
// there: there is no second slot to enumerate into.
func (m *nativeMount) ReadDirEntry(from uint8) (uint8, swordvfs.FIB, errors.DriverError) {
	if from > 0 {
		return 0, swordvfs.FIB{}, errors.ErrNoEnt
	}
	fib, err := m.driver.FIBRead(m.letter, 0)
	if err != nil {
		return 0, swordvfs.FIB{}, err
	}
	if fib.HostName == "" {
		return 0, swordvfs.FIB{}, errors.ErrNoEnt
	}
	return 0, fib, nil
}

var _ vfs.FSMount = (*nativeMount)(nil)

// nativeRW transfers len(buf) bytes at byte offset pos against a driver
// with no cluster indirection, resolving one record at a time the way
// blockio.RWBlock does for a FAT-backed file, but addressing the record
// directly (pos/RecordSize) instead of walking a chain.
func nativeRW(driver storage.Driver, letter swordvfs.DriveLetter, pos int, buf []byte, write bool) (int, errors.DriverError) {
	transferred := 0
	remaining := len(buf)

	for remaining > 0 {
		rec := swordvfs.RecordNumber(pos / swordvfs.RecordSize)
		offset := pos % swordvfs.RecordSize
		chunk := swordvfs.RecordSize - offset
		if chunk > remaining {
			chunk = remaining
		}

		full := make([]byte, swordvfs.RecordSize)
		if write {
			if offset != 0 || chunk != swordvfs.RecordSize {
				if _, err := driver.RecordRead(letter, full, rec, 1); err != nil {
					return transferred, err
				}
			}
			copy(full[offset:offset+chunk], buf[transferred:transferred+chunk])
			if _, err := driver.RecordWrite(letter, full, rec, 1); err != nil {
				return transferred, err
			}
		} else {
			n, err := driver.RecordRead(letter, full, rec, 1)
			if err != nil {
				if transferred > 0 {
					return transferred, nil
				}
				return transferred, err
			}
			avail := n - offset
			if avail < 0 {
				avail = 0
			}
			if avail > chunk {
				avail = chunk
			}
			copy(buf[transferred:transferred+avail], full[offset:offset+avail])
			transferred += avail
			if avail < chunk {
				return transferred, nil
			}
			pos += avail
			remaining -= avail
			continue
		}

		transferred += chunk
		pos += chunk
		remaining -= chunk
	}
	return transferred, nil
}
