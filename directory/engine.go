package directory

import (
	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
	"github.com/sword-emu/swordvfs/storage"
)

// Engine scans and mutates the single-level directory of one mounted
// drive, grounded record-by-record on search_dent_by_dirno,
// fs_swd_search_dent_by_name, fs_swd_search_free_dent, and
// fs_swd_write_dent (fs-swd-dent.c).
type Engine struct {
	Driver storage.Driver
	Letter swordvfs.DriveLetter
	// MaxEntries bounds the scan; it defaults to
	// swordvfs.DefaultDirectoryEntryCount but a driver with a
	// non-standard layout (see IOContext's cached DIRPS/FATPOS) may
	// override it.
	MaxEntries int
}

// NewEngine returns a directory engine scoped to one mounted drive.
func NewEngine(driver storage.Driver, letter swordvfs.DriveLetter) *Engine {
	return &Engine{Driver: driver, Letter: letter, MaxEntries: swordvfs.DefaultDirectoryEntryCount}
}

func (e *Engine) maxEntries() int {
	if e.MaxEntries > 0 {
		return e.MaxEntries
	}
	return swordvfs.DefaultDirectoryEntryCount
}

// readRecord reads the directory record at rec into a fresh buffer.
func (e *Engine) readRecord(rec swordvfs.RecordNumber) ([]byte, errors.DriverError) {
	buf := make([]byte, swordvfs.RecordSize)
	n, err := e.Driver.RecordRead(e.Letter, buf, rec, 1)
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, errors.ErrIO.WithMessage("short directory record read")
	}
	return buf, nil
}

// SearchByDirNo reads the directory entry named by #DIRNO, scanning
// record-by-record from dirStart exactly as search_dent_by_dirno does: a
// free slot (0x00) is skipped, the end-of-directory sentinel (0xFF) short-
// circuits to NOENT, and the scan never reads past MaxEntries.
func (e *Engine) SearchByDirNo(dirStart swordvfs.RecordNumber, dirno uint8) (swordvfs.RecordNumber, Entry, errors.DriverError) {
	cur := 0
	for rec := dirStart; cur < e.maxEntries(); rec++ {
		buf, err := e.readRecord(rec)
		if err != nil {
			return 0, Entry{}, err
		}

		for i := 0; i < swordvfs.EntriesPerDirectoryRecord && cur < e.maxEntries(); i, cur = i+1, cur+1 {
			raw := buf[i*EntrySize : (i+1)*EntrySize]
			entry := Decode(raw)

			if entry.IsFree() {
				continue
			}
			if entry.IsEndOfDirectory() {
				return 0, Entry{}, errors.ErrNoEnt
			}
			if cur == int(dirno) {
				return rec, entry, nil
			}
		}
	}
	return 0, Entry{}, errors.ErrNoEnt
}

// SearchByName scans every #DIRNO from 0 looking for an entry whose name
// field matches, mirroring fs_swd_search_dent_by_name's memcmp over exactly
// SOS_FNAME_NAMELEN (13) bytes from SOS_FIB_OFF_FNAME. The extension is not
// part of the key: two files differing only in extension collide, per the
// original's behavior (§9's pinned Open Question). extField is accepted for
// the caller's symmetry with host→SWORD codec output but is not compared.
func (e *Engine) SearchByName(dirStart swordvfs.RecordNumber, nameField [13]byte, extField [3]byte) (uint8, swordvfs.RecordNumber, Entry, errors.DriverError) {
	_ = extField
	for from := 0; from < e.maxEntries(); {
		dirno, rec, entry, err := e.NextEntry(dirStart, uint8(from))
		if err != nil {
			return 0, 0, Entry{}, err
		}
		if entry.Name == nameField {
			return dirno, rec, entry, nil
		}
		from = int(dirno) + 1
	}
	return 0, 0, Entry{}, errors.ErrNoEnt
}

// SearchFreeDent finds the first free or end-of-directory slot, per
// fs_swd_search_free_dent. NOSPC is returned when every slot up to
// MaxEntries is occupied by a live file.
func (e *Engine) SearchFreeDent(dirStart swordvfs.RecordNumber) (uint8, errors.DriverError) {
	cur := 0
	for rec := dirStart; cur < e.maxEntries(); rec++ {
		buf, err := e.readRecord(rec)
		if err != nil {
			return 0, err
		}

		for i := 0; i < swordvfs.EntriesPerDirectoryRecord && cur < e.maxEntries(); i, cur = i+1, cur+1 {
			raw := buf[i*EntrySize : (i+1)*EntrySize]
			attr := swordvfs.Attribute(raw[offAttr])
			if attr == swordvfs.AttrFree || attr == swordvfs.AttrEndOfDirectory {
				return uint8(cur), nil
			}
		}
	}
	return 0, errors.ErrNoSpc
}

// readSlot reads the raw entry at #DIRNO regardless of whether it is free,
// live, or the end-of-directory sentinel, unlike SearchByDirNo which
// treats a free slot and the sentinel as "not found" for lookup purposes.
func (e *Engine) readSlot(dirStart swordvfs.RecordNumber, dirno uint8) (swordvfs.RecordNumber, Entry, errors.DriverError) {
	rec := dirStart + swordvfs.RecordNumber(int(dirno)/swordvfs.EntriesPerDirectoryRecord)
	offsetInRecord := (int(dirno) % swordvfs.EntriesPerDirectoryRecord) * EntrySize

	buf, err := e.readRecord(rec)
	if err != nil {
		return 0, Entry{}, err
	}
	return rec, Decode(buf[offsetInRecord : offsetInRecord+EntrySize]), nil
}

// NextEntry scans forward from raw slot index `from`, skipping free slots,
// and returns the first live (non-free, non-sentinel) entry found. It
// surfaces NOENT at the end-of-directory sentinel, exactly as an
// enumerating readdir needs: unlike SearchByDirNo, a free slot does not
// end the scan, only the sentinel does.
func (e *Engine) NextEntry(dirStart swordvfs.RecordNumber, from uint8) (uint8, swordvfs.RecordNumber, Entry, errors.DriverError) {
	cur := 0
	for rec := dirStart; cur < e.maxEntries(); rec++ {
		buf, err := e.readRecord(rec)
		if err != nil {
			return 0, 0, Entry{}, err
		}

		for i := 0; i < swordvfs.EntriesPerDirectoryRecord && cur < e.maxEntries(); i, cur = i+1, cur+1 {
			if cur < int(from) {
				continue
			}
			raw := buf[i*EntrySize : (i+1)*EntrySize]
			entry := Decode(raw)
			if entry.IsFree() {
				continue
			}
			if entry.IsEndOfDirectory() {
				return 0, 0, Entry{}, errors.ErrNoEnt
			}
			return uint8(cur), rec, entry, nil
		}
	}
	return 0, 0, Entry{}, errors.ErrNoEnt
}

// Insert writes entry into the slot named by #DIRNO and preserves the
// end-of-directory sentinel per §4.D: if the slot being overwritten was
// itself the 0xFF sentinel, the next slot must become the new sentinel,
// but only if it wasn't already holding data (a fresh 0x00 slot).
func (e *Engine) Insert(dirStart swordvfs.RecordNumber, dirno uint8, entry Entry) errors.DriverError {
	_, existing, err := e.readSlot(dirStart, dirno)
	if err != nil {
		return err
	}
	wasSentinel := existing.IsEndOfDirectory()

	if err := e.WriteDent(dirStart, dirno, entry); err != nil {
		return err
	}

	if !wasSentinel {
		return nil
	}

	nextDirno := int(dirno) + 1
	if nextDirno >= e.maxEntries() {
		return nil
	}

	_, nextExisting, err := e.readSlot(dirStart, uint8(nextDirno))
	if err != nil {
		return err
	}
	if !nextExisting.IsFree() {
		return nil
	}
	return e.WriteDent(dirStart, uint8(nextDirno), Entry{Attribute: swordvfs.AttrEndOfDirectory})
}

// WriteDent writes entry back to the slot named by #DIRNO, reading the
// containing record, patching the one 32-byte slice, and writing the whole
// record back, exactly as fs_swd_write_dent does (directory modifications
// are always record-granular, never partial).
func (e *Engine) WriteDent(dirStart swordvfs.RecordNumber, dirno uint8, entry Entry) errors.DriverError {
	rec := dirStart + swordvfs.RecordNumber(int(dirno)/swordvfs.EntriesPerDirectoryRecord)
	offsetInRecord := (int(dirno) % swordvfs.EntriesPerDirectoryRecord) * EntrySize

	buf, err := e.readRecord(rec)
	if err != nil {
		return err
	}

	copy(buf[offsetInRecord:offsetInRecord+EntrySize], Encode(entry))

	n, werr := e.Driver.RecordWrite(e.Letter, buf, rec, 1)
	if werr != nil {
		return werr
	}
	if n != 1 {
		return errors.ErrIO.WithMessage("short directory record write")
	}
	return nil
}
