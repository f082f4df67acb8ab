// Package name implements the SWORD <-> host filename codec (§4.A): the
// 13-byte name plus 3-byte extension, both space-padded, that the directory
// engine stores on disk, and the host-side "NAME.EXT" form every other
// layer works with. It is grounded on the teacher's fat8 filename codec
// (FilenameToBytes/BytesToFilename), generalized from 8.3 to 13+3 and from a
// NUL-padding convention to the space-padding the original source uses.
package name

import (
	"strings"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
)

const (
	// NameFieldSize is the width in bytes of the on-disk name field.
	NameFieldSize = 13
	// ExtFieldSize is the width in bytes of the on-disk extension field.
	ExtFieldSize = 3
	// FullFieldSize is NameFieldSize+ExtFieldSize, the width compared by
	// Compare.
	FullFieldSize = NameFieldSize + ExtFieldSize
)

// SwordToHost decodes a 13-byte name field and a 3-byte extension field
// into a host-presentable "NAME" or "NAME.EXT" string. Trailing spaces in
// each field are trimmed independently; a blank extension omits the dot.
func SwordToHost(nameField [NameFieldSize]byte, extField [ExtFieldSize]byte) string {
	return swordToHost(nameField[:], extField[:])
}

// swordToHost is the slice-based form behind SwordToHost and
// SwordToHostBytes.
func swordToHost(nameField, extField []byte) string {
	n := strings.TrimRight(string(nameField), " ")
	e := strings.TrimRight(string(extField), " ")
	if e == "" {
		return n
	}
	return n + "." + e
}

// SwordToHostBytes is the exported slice-based counterpart of SwordToHost,
// used by directory.Entry where the fields are already plain byte slices.
func SwordToHostBytes(nameField, extField []byte) string {
	return swordToHost(nameField, extField)
}

// HostToSword encodes a host-side filename into the on-disk 13+3
// space-padded fields. An optional "X:" drive prefix is stripped; the
// split point is the *last* '.' in the remainder; over-long components are
// truncated to fit rather than rejected, matching the original source's
// tolerant behavior.
func HostToSword(hostName string) (nameField [NameFieldSize]byte, extField [ExtFieldSize]byte, err errors.DriverError) {
	stripped := stripDriveLetterPrefix(hostName)

	var base, ext string
	if idx := strings.LastIndex(stripped, "."); idx >= 0 {
		base, ext = stripped[:idx], stripped[idx+1:]
	} else {
		base = stripped
	}

	if base == "" {
		return nameField, extField, errors.ErrSyntax.WithMessage("empty file name")
	}

	base = strings.ToUpper(base)
	ext = strings.ToUpper(ext)

	copy(nameField[:], padTruncate(base, NameFieldSize))
	copy(extField[:], padTruncate(ext, ExtFieldSize))
	for i := len(base); i < NameFieldSize; i++ {
		nameField[i] = ' '
	}
	for i := len(ext); i < ExtFieldSize; i++ {
		extField[i] = ' '
	}
	return nameField, extField, nil
}

func stripDriveLetterPrefix(s string) string {
	if len(s) >= 2 && s[1] == ':' {
		letter := swordvfs.DriveLetter(strings.ToUpper(s[:1])[0])
		if letter.IsValid() {
			return s[2:]
		}
	}
	return s
}

func padTruncate(s string, width int) []byte {
	if len(s) > width {
		s = s[:width]
	}
	buf := make([]byte, width)
	for i := range buf {
		buf[i] = ' '
	}
	copy(buf, s)
	return buf
}

// Compare encodes both inputs via HostToSword and byte-compares the
// resulting 16-byte fields, the same two-step process §4.A specifies for
// name equality (encode then compare, never raw string compare).
func Compare(a, b string) (bool, errors.DriverError) {
	nameA, extA, err := HostToSword(a)
	if err != nil {
		return false, err
	}
	nameB, extB, err := HostToSword(b)
	if err != nil {
		return false, err
	}
	return nameA == nameB && extA == extB, nil
}
