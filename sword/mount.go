package sword

import (
	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/directory"
	"github.com/sword-emu/swordvfs/errors"
	"github.com/sword-emu/swordvfs/fat"
	"github.com/sword-emu/swordvfs/name"
	"github.com/sword-emu/swordvfs/storage"
)

// mount is the per-drive handle FileSystem.Mount hands back; it is the
// vfs.FSMount implementation every vfs.Engine operation on this drive
// dispatches through.
type mount struct {
	driver storage.Driver
	letter swordvfs.DriveLetter
	dir    *directory.Engine
	fat    *fat.Engine
	super  swordvfs.Superblock
}

func (m *mount) Unmount() errors.DriverError {
	return nil
}

// fibFromEntry projects a decoded directory.Entry plus its raw #DIRNO and
// containing record into the FIB shape the vfs layer works with.
func fibFromEntry(letter swordvfs.DriveLetter, dirno uint8, rec swordvfs.RecordNumber, entry directory.Entry) swordvfs.FIB {
	return swordvfs.FIB{
		Drive:      letter,
		DirNo:      dirno,
		DirRecord:  rec,
		Header:     swordvfs.HeaderPacket{Attribute: entry.Attribute, LoadAddress: entry.LoadAddress, ExecAddress: entry.ExecAddress},
		Size:       entry.Size,
		FirstClust: entry.FirstCluster,
		Date:       entry.Date,
		SwordName:  nameFieldsToSwordName(entry.Name, entry.Ext),
		HostName:   name.SwordToHostBytes(entry.Name[:], entry.Ext[:]),
	}
}

// entryFromFIB is fibFromEntry's inverse, used when writing a FIB's current
// state back to its directory slot.
func entryFromFIB(fib swordvfs.FIB) directory.Entry {
	nameField, extField := swordNameToFields(fib.SwordName)
	return directory.Entry{
		Attribute:    fib.Header.Attribute,
		Name:         nameField,
		Ext:          extField,
		Size:         fib.Size,
		LoadAddress:  fib.Header.LoadAddress,
		ExecAddress:  fib.Header.ExecAddress,
		Date:         fib.Date,
		FirstCluster: fib.FirstClust,
	}
}

func nameFieldsToSwordName(nameField [13]byte, extField [3]byte) [16]byte {
	var out [16]byte
	copy(out[:13], nameField[:])
	copy(out[13:], extField[:])
	return out
}

func swordNameToFields(swordName [16]byte) (nameField [13]byte, extField [3]byte) {
	copy(nameField[:], swordName[:13])
	copy(extField[:], swordName[13:])
	return nameField, extField
}

func (m *mount) Lookup(dirno uint8) (swordvfs.FIB, errors.DriverError) {
	if dirno == RootDirNo {
		return swordvfs.FIB{Drive: m.letter, DirNo: RootDirNo, DirRecord: m.super.DirectoryStart, Header: swordvfs.HeaderPacket{Attribute: swordvfs.AttrDir}, HostName: "/"}, nil
	}
	rec, entry, err := m.dir.SearchByDirNo(m.super.DirectoryStart, dirno)
	if err != nil {
		return swordvfs.FIB{}, err
	}
	return fibFromEntry(m.letter, dirno, rec, entry), nil
}

func (m *mount) LookupByName(hostName string) (swordvfs.FIB, errors.DriverError) {
	nameField, extField, err := name.HostToSword(hostName)
	if err != nil {
		return swordvfs.FIB{}, err
	}
	dirno, rec, entry, serr := m.dir.SearchByName(m.super.DirectoryStart, nameField, extField)
	if serr != nil {
		return swordvfs.FIB{}, serr
	}
	return fibFromEntry(m.letter, dirno, rec, entry), nil
}

// Create allocates a new directory entry for hostName, leaving its cluster
// chain unallocated (FirstClust set to the "never allocated" end-of-chain
// byte fat.GetBlock recognizes, exactly as the original source's
// fs_swd_creat leaves a fresh entry before the first write extends it).
func (m *mount) Create(hostName string, header swordvfs.HeaderPacket) (swordvfs.FIB, errors.DriverError) {
	nameField, extField, err := name.HostToSword(hostName)
	if err != nil {
		return swordvfs.FIB{}, err
	}

	dirno, serr := m.dir.SearchFreeDent(m.super.DirectoryStart)
	if serr != nil {
		return swordvfs.FIB{}, serr
	}

	entry := directory.Entry{
		Attribute:    header.Attribute,
		Name:         nameField,
		Ext:          extField,
		LoadAddress:  header.LoadAddress,
		ExecAddress:  header.ExecAddress,
		FirstCluster: swordvfs.ClusterIndex(fat.EndOfChainMarker(1)),
	}

	if ierr := m.dir.Insert(m.super.DirectoryStart, dirno, entry); ierr != nil {
		return swordvfs.FIB{}, ierr
	}

	rec, written, rerr := m.dir.SearchByDirNo(m.super.DirectoryStart, dirno)
	if rerr != nil {
		return swordvfs.FIB{}, rerr
	}
	return fibFromEntry(m.letter, dirno, rec, written), nil
}

func (m *mount) Read(fib *swordvfs.FIB, pos int, buf []byte) (int, errors.DriverError) {
	return rwblockRead(m, fib, pos, buf)
}

func (m *mount) Write(fib *swordvfs.FIB, pos int, buf []byte) (int, errors.DriverError) {
	n, err := rwblockWrite(m, fib, pos, buf)
	if err != nil && n == 0 {
		return n, err
	}
	if pos+n > int(fib.Size) {
		fib.Size = uint16(pos + n)
	}
	if werr := m.writeFIB(*fib); werr != nil {
		return n, werr
	}
	return n, err
}

func (m *mount) Truncate(fib *swordvfs.FIB, length int) errors.DriverError {
	if length < int(fib.Size) {
		if _, err := m.fat.ReleaseBlocks(fib, length); err != nil {
			return err
		}
	} else if length > int(fib.Size) {
		if _, err := m.fat.GetBlock(fib, length-1, fat.ModeWrite); err != nil {
			return err
		}
	}
	fib.Size = uint16(length)
	return m.writeFIB(*fib)
}

func (m *mount) Unlink(fib swordvfs.FIB) errors.DriverError {
	if _, err := m.fat.ReleaseBlocks(&fib, 0); err != nil {
		return err
	}
	return m.dir.WriteDent(m.super.DirectoryStart, fib.DirNo, directory.Entry{Attribute: swordvfs.AttrFree})
}

func (m *mount) Rename(fib *swordvfs.FIB, newHostName string) errors.DriverError {
	nameField, extField, err := name.HostToSword(newHostName)
	if err != nil {
		return err
	}
	entry := entryFromFIB(*fib)
	entry.Name = nameField
	entry.Ext = extField
	if werr := m.dir.WriteDent(m.super.DirectoryStart, fib.DirNo, entry); werr != nil {
		return werr
	}
	fib.SwordName = nameFieldsToSwordName(nameField, extField)
	fib.HostName = newHostName
	return nil
}

// SetAttr replaces attr's non-type bits while preserving the file-type and
// directory bits fixed at creation time (§3's AttrTypeMask), matching the
// original source's chmod call which never lets a caller turn a BIN file
// into a BAS file.
func (m *mount) SetAttr(fib *swordvfs.FIB, attr swordvfs.Attribute) errors.DriverError {
	merged := (fib.Header.Attribute & swordvfs.AttrTypeMask) | (attr &^ swordvfs.AttrTypeMask)
	fib.Header.Attribute = merged
	return m.writeFIB(*fib)
}

func (m *mount) ReadDirEntry(from uint8) (uint8, swordvfs.FIB, errors.DriverError) {
	dirno, rec, entry, err := m.dir.NextEntry(m.super.DirectoryStart, from)
	if err != nil {
		return 0, swordvfs.FIB{}, err
	}
	return dirno, fibFromEntry(m.letter, dirno, rec, entry), nil
}

func (m *mount) writeFIB(fib swordvfs.FIB) errors.DriverError {
	return m.dir.WriteDent(m.super.DirectoryStart, fib.DirNo, entryFromFIB(fib))
}

func rwblockRead(m *mount, fib *swordvfs.FIB, pos int, buf []byte) (int, errors.DriverError) {
	return rwBlock(m, fib, pos, fat.ModeRead, buf)
}

func rwblockWrite(m *mount, fib *swordvfs.FIB, pos int, buf []byte) (int, errors.DriverError) {
	return rwBlock(m, fib, pos, fat.ModeWrite, buf)
}
