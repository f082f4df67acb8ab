package storage

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"sync"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
)

// mztLinuxPrefix is the 8-byte prefix Linux "mzt" tooling prepends to a
// raw MZT header (§6).
var mztLinuxPrefix = []byte{'m', 'z', '2', '0', 0x00, 0x02, 0x00, 0x00}

const (
	mztHeaderSize   = 128
	mztNameLen      = 17
	mztOffAttr      = 0
	mztOffName      = 1
	mztOffSize      = 18
	mztOffLoad      = 20
	mztOffExec      = 22
)

// mztAttribute is the on-tape attribute byte, whose vocabulary differs
// from the directory attribute byte and must be translated (§6).
type mztAttribute byte

const (
	mztAttrBIN   mztAttribute = 0x01
	mztAttrBAS   mztAttribute = 0x02
	mztAttrBSDQD mztAttribute = 0x03
	mztAttrASC   mztAttribute = 0x04
	mztAttrSBAS  mztAttribute = 0x05
)

// translateMZTAttribute implements the §6 header translation table:
// BIN->BIN, BAS->BAS, BSD_QD->BAS, ASC->ASC, SBAS->BAS.
func translateMZTAttribute(a mztAttribute) swordvfs.Attribute {
	switch a {
	case mztAttrBIN:
		return swordvfs.AttrBIN
	case mztAttrASC:
		return swordvfs.AttrASC
	case mztAttrBAS, mztAttrBSDQD, mztAttrSBAS:
		return swordvfs.AttrBAS
	default:
		return swordvfs.AttrBIN
	}
}

// untranslateMZTAttribute picks the on-tape byte for a directory
// attribute when synthesizing a header on write; BAS is the canonical
// choice among the BAS-mapped family.
func untranslateMZTAttribute(a swordvfs.Attribute) mztAttribute {
	switch {
	case a.IsFileType() && a&swordvfs.AttrASC != 0:
		return mztAttrASC
	case a.IsFileType() && a&swordvfs.AttrBAS != 0:
		return mztAttrBAS
	default:
		return mztAttrBIN
	}
}

// MZTDriver mounts ".mzt"/".m12"/".mzf" tape images (§6, supplemented
// feature list in SPEC_FULL §3): a sequential medium holding exactly one
// named file, with no FAT or directory of its own. record_read/write are
// emulated on top of the native seq_read/seq_write via an internal byte
// cursor, grounded on storage.h's distinct seq_*/record_* operation pairs.
type MZTDriver struct {
	mu     sync.Mutex
	mounts map[swordvfs.DriveLetter]*mztMount
}

type mztMount struct {
	data   []byte // header + body, prefix already stripped
	cursor int64  // seq_read/seq_write position, relative to start of body
	closer io.Closer
	path   string
	flags  swordvfs.MountFlags
	header mztHeader
}

type mztHeader struct {
	attr  swordvfs.Attribute
	name  string
	size  uint16
	load  uint16
	exec  uint16
}

func NewMZTDriver() *MZTDriver {
	return &MZTDriver{mounts: make(map[swordvfs.DriveLetter]*mztMount)}
}

func (d *MZTDriver) Name() string { return "mzt" }

func (d *MZTDriver) Accepts(letter swordvfs.DriveLetter, path string) bool {
	return letter.IsTape() && matchExtension(path, "mzt", "m12", "mzf")
}

func parseMZTHeader(raw []byte) (mztHeader, []byte, errors.DriverError) {
	buf := raw
	if bytes.HasPrefix(buf, mztLinuxPrefix) {
		buf = buf[len(mztLinuxPrefix):]
	}
	if len(buf) < mztHeaderSize {
		return mztHeader{}, nil, errors.ErrIO.WithMessage("mzt image too short for header")
	}

	nameBytes := buf[mztOffName : mztOffName+mztNameLen]
	if term := bytes.IndexByte(nameBytes, 0x0D); term >= 0 {
		nameBytes = nameBytes[:term]
	}
	name := string(bytes.TrimRight(nameBytes, " "))

	h := mztHeader{
		attr: translateMZTAttribute(mztAttribute(buf[mztOffAttr])),
		name: name,
		size: binary.LittleEndian.Uint16(buf[mztOffSize:]),
		load: binary.LittleEndian.Uint16(buf[mztOffLoad:]),
		exec: binary.LittleEndian.Uint16(buf[mztOffExec:]),
	}
	return h, buf[mztHeaderSize:], nil
}

func encodeMZTHeader(h mztHeader) []byte {
	buf := make([]byte, mztHeaderSize)
	buf[mztOffAttr] = byte(untranslateMZTAttribute(h.attr))
	nameBytes := []byte(h.name)
	if len(nameBytes) > mztNameLen-1 {
		nameBytes = nameBytes[:mztNameLen-1]
	}
	copy(buf[mztOffName:], nameBytes)
	for i := len(nameBytes); i < mztNameLen; i++ {
		buf[mztOffName+i] = ' '
	}
	binary.LittleEndian.PutUint16(buf[mztOffSize:], h.size)
	binary.LittleEndian.PutUint16(buf[mztOffLoad:], h.load)
	binary.LittleEndian.PutUint16(buf[mztOffExec:], h.exec)
	return buf
}

func (d *MZTDriver) Mount(letter swordvfs.DriveLetter, path string, flags swordvfs.MountFlags) errors.DriverError {
	openFlags := os.O_RDWR
	if !flags.CanWrite() {
		openFlags = os.O_RDONLY
	}
	f, err := os.OpenFile(path, openFlags, 0)
	if err != nil {
		return errors.ErrOffline.WrapError(err)
	}
	raw, err2 := io.ReadAll(f)
	if err2 != nil {
		f.Close()
		return errors.ErrIO.WrapError(err2)
	}

	header, body, derr := parseMZTHeader(raw)
	if derr != nil {
		f.Close()
		return derr
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.mounts[letter] = &mztMount{
		data:   body,
		closer: f,
		path:   path,
		flags:  flags,
		header: header,
	}
	return nil
}

func (d *MZTDriver) Unmount(letter swordvfs.DriveLetter) errors.DriverError {
	d.mu.Lock()
	mount, ok := d.mounts[letter]
	if ok {
		delete(d.mounts, letter)
	}
	d.mu.Unlock()
	if !ok {
		return errors.ErrOffline.WithMessage("not mounted: " + letter.String())
	}

	if mount.flags.CanWrite() {
		if wf, ok := mount.closer.(*os.File); ok {
			full := append(append([]byte{}, mztLinuxPrefix...), encodeMZTHeader(mount.header)...)
			full = append(full, mount.data...)
			if _, err := wf.WriteAt(full, 0); err != nil {
				mount.closer.Close()
				return errors.ErrIO.WrapError(err)
			}
			if err := wf.Truncate(int64(len(full))); err != nil {
				mount.closer.Close()
				return errors.ErrIO.WrapError(err)
			}
		}
	}
	if mount.closer != nil {
		if err := mount.closer.Close(); err != nil {
			return errors.ErrIO.WrapError(err)
		}
	}
	return nil
}

func (d *MZTDriver) lookup(letter swordvfs.DriveLetter) (*mztMount, errors.DriverError) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mount, ok := d.mounts[letter]
	if !ok {
		return nil, errors.ErrOffline.WithMessage("not mounted: " + letter.String())
	}
	return mount, nil
}

// SeqRead/SeqWrite are the native tape operations: positioned by the
// mount's internal cursor, advanced by the number of bytes transferred.
func (d *MZTDriver) SeqRead(letter swordvfs.DriveLetter, dest []byte) (int, errors.DriverError) {
	mount, err := d.lookup(letter)
	if err != nil {
		return 0, err
	}
	if mount.cursor >= int64(len(mount.data)) {
		return 0, nil
	}
	n := copy(dest, mount.data[mount.cursor:])
	mount.cursor += int64(n)
	return n, nil
}

func (d *MZTDriver) SeqWrite(letter swordvfs.DriveLetter, src []byte) (int, errors.DriverError) {
	mount, err := d.lookup(letter)
	if err != nil {
		return 0, err
	}
	if !mount.flags.CanWrite() {
		return 0, errors.ErrRDOnly
	}
	end := mount.cursor + int64(len(src))
	if end > int64(len(mount.data)) {
		grown := make([]byte, end)
		copy(grown, mount.data)
		mount.data = grown
	}
	copy(mount.data[mount.cursor:end], src)
	mount.cursor = end
	return len(src), nil
}

// RecordRead/RecordWrite emulate record-granularity access on top of the
// byte cursor: they seek the cursor to the requested record boundary,
// perform the transfer, then restore nothing (record I/O is always
// explicitly positioned, unlike seq_*).
func (d *MZTDriver) RecordRead(letter swordvfs.DriveLetter, buf []byte, first swordvfs.RecordNumber, count int) (int, errors.DriverError) {
	mount, err := d.lookup(letter)
	if err != nil {
		return 0, err
	}
	want := count * swordvfs.RecordSize
	if len(buf) < want {
		return 0, errors.ErrInval.WithMessage("buffer too small")
	}
	mount.cursor = int64(first) * swordvfs.RecordSize
	return d.SeqRead(letter, buf[:want])
}

func (d *MZTDriver) RecordWrite(letter swordvfs.DriveLetter, buf []byte, first swordvfs.RecordNumber, count int) (int, errors.DriverError) {
	mount, err := d.lookup(letter)
	if err != nil {
		return 0, err
	}
	mount.cursor = int64(first) * swordvfs.RecordSize
	return d.SeqWrite(letter, buf[:count*swordvfs.RecordSize])
}

// FIBRead/FIBWrite synthesize the tape's single-entry root directory from
// its header: #DIRNO 0 is the only valid entry.
func (d *MZTDriver) FIBRead(letter swordvfs.DriveLetter, dirno uint8) (swordvfs.FIB, errors.DriverError) {
	mount, err := d.lookup(letter)
	if err != nil {
		return swordvfs.FIB{}, err
	}
	if dirno != 0 {
		return swordvfs.FIB{}, errors.ErrNoEnt
	}
	return swordvfs.FIB{
		Drive: letter,
		DirNo: 0,
		Header: swordvfs.HeaderPacket{
			Attribute:   mount.header.attr,
			LoadAddress: mount.header.load,
			ExecAddress: mount.header.exec,
		},
		Size:     mount.header.size,
		HostName: mount.header.name,
	}, nil
}

func (d *MZTDriver) FIBWrite(letter swordvfs.DriveLetter, dirno uint8, fib swordvfs.FIB) errors.DriverError {
	mount, err := d.lookup(letter)
	if err != nil {
		return err
	}
	if dirno != 0 {
		return errors.ErrNoSpc.WithMessage("a tape image holds exactly one file")
	}
	if !mount.flags.CanWrite() {
		return errors.ErrRDOnly
	}
	mount.header = mztHeader{
		attr: fib.Header.Attribute,
		name: fib.HostName,
		size: fib.Size,
		load: fib.Header.LoadAddress,
		exec: fib.Header.ExecAddress,
	}
	return nil
}

func (d *MZTDriver) GetImageInfo(letter swordvfs.DriveLetter) (ImageInfo, errors.DriverError) {
	mount, err := d.lookup(letter)
	if err != nil {
		return ImageInfo{}, err
	}
	return ImageInfo{
		Superblock: swordvfs.Superblock{
			TotalRecords: swordvfs.RecordNumber(len(mount.data) / swordvfs.RecordSize),
			Flags:        mount.flags,
		},
		Path:     mount.path,
		ReadOnly: !mount.flags.CanWrite(),
	}, nil
}
