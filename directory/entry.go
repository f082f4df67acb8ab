// Package directory implements the SWORD directory engine (§4.D): the
// 32-byte on-disk entry codec and the scan/lookup/insert operations that
// work record-by-record through the single-level directory, grounded on
// the original source's fs-swd-dent.c (search_dent_by_dirno,
// fs_swd_search_dent_by_name, fs_swd_search_free_dent, fs_swd_write_dent).
package directory

import (
	"encoding/binary"

	"github.com/noxer/bytewriter"

	swordvfs "github.com/sword-emu/swordvfs"
)

// EntrySize is the width in bytes of one on-disk directory entry (§3).
const EntrySize = 32

const (
	offAttr      = 0
	offName      = 1
	offExt       = 14
	offPassword  = 17
	offSize      = 18
	offLoad      = 20
	offExec      = 22
	offDate      = 24
	offFirstCls  = 30
	offReserved  = 31

	nameFieldLen = 13
	extFieldLen  = 3
	dateFieldLen = 6
)

// Entry is the decoded form of one 32-byte directory record (§3).
type Entry struct {
	Attribute    swordvfs.Attribute
	Name         [nameFieldLen]byte
	Ext          [extFieldLen]byte
	Size         uint16
	LoadAddress  uint16
	ExecAddress  uint16
	Date         [dateFieldLen]byte
	FirstCluster swordvfs.ClusterIndex
}

// IsFree reports whether this entry is the 0x00 free-slot sentinel.
func (e Entry) IsFree() bool { return e.Attribute == swordvfs.AttrFree }

// IsEndOfDirectory reports whether this entry is the 0xFF end-of-directory
// sentinel.
func (e Entry) IsEndOfDirectory() bool { return e.Attribute == swordvfs.AttrEndOfDirectory }

// Decode parses a 32-byte on-disk record into an Entry.
func Decode(raw []byte) Entry {
	var e Entry
	e.Attribute = swordvfs.Attribute(raw[offAttr])
	copy(e.Name[:], raw[offName:offName+nameFieldLen])
	copy(e.Ext[:], raw[offExt:offExt+extFieldLen])
	e.Size = binary.LittleEndian.Uint16(raw[offSize:])
	e.LoadAddress = binary.LittleEndian.Uint16(raw[offLoad:])
	e.ExecAddress = binary.LittleEndian.Uint16(raw[offExec:])
	copy(e.Date[:], raw[offDate:offDate+dateFieldLen])
	e.FirstCluster = swordvfs.ClusterIndex(raw[offFirstCls])
	return e
}

// Encode serializes e into a fresh EntrySize-byte on-disk record, building
// it incrementally with bytewriter the way the teacher's on-disk format
// writers do rather than indexing the slice by hand field-by-field.
func Encode(e Entry) []byte {
	buf := make([]byte, EntrySize)
	w := bytewriter.New(buf)

	w.Write([]byte{byte(e.Attribute)})
	w.Write(e.Name[:])
	w.Write(e.Ext[:])
	w.Write([]byte{0}) // password, unused
	binary.Write(w, binary.LittleEndian, e.Size)
	binary.Write(w, binary.LittleEndian, e.LoadAddress)
	binary.Write(w, binary.LittleEndian, e.ExecAddress)
	w.Write(e.Date[:])
	w.Write([]byte{byte(e.FirstCluster)})
	w.Write([]byte{0}) // reserved

	return buf
}
