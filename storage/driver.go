// Package storage is the pluggable image-format layer (§4.B): a uniform
// record-oriented interface over disk and tape image files, keyed by drive
// letter, with a registry of named drivers consulted at mount time. It
// plays the role the teacher's drivers/common package plays for disko's
// BlockDevice abstraction, generalized from a single block device per
// mount to the SWORD model of one named driver bound per drive letter.
package storage

import (
	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
)

// ImageInfo summarizes a mounted image for get_image_info (§4.B).
type ImageInfo struct {
	Superblock swordvfs.Superblock
	Path       string
	ReadOnly   bool
}

// Driver is the uniform record-oriented interface every image format
// implements: 2D floppy images, MZT tape images, and the single-fork
// side-car driver. Mount/Unmount are keyed by drive letter so one driver
// instance can back several simultaneously mounted drives.
type Driver interface {
	// Name identifies the driver for registry diagnostics and CLI output.
	Name() string

	// Accepts reports whether this driver is willing to handle a mount of
	// path on the given letter, based on the letter's kind (disk vs tape)
	// and the filename extension (§6: .2d for disk2D; .mzt/.m12/.mzf for
	// MZT tape).
	Accepts(letter swordvfs.DriveLetter, path string) bool

	Mount(letter swordvfs.DriveLetter, path string, flags swordvfs.MountFlags) errors.DriverError
	Unmount(letter swordvfs.DriveLetter) errors.DriverError

	// RecordRead/RecordWrite are the positioned, record-granularity
	// primitives every disk format supports natively.
	RecordRead(letter swordvfs.DriveLetter, buf []byte, firstRecord swordvfs.RecordNumber, count int) (int, errors.DriverError)
	RecordWrite(letter swordvfs.DriveLetter, buf []byte, firstRecord swordvfs.RecordNumber, count int) (int, errors.DriverError)

	// SeqRead/SeqWrite are the cursor-based streaming primitives tape
	// devices support natively; drivers without sequential I/O (the 2D
	// disk and side-car drivers) return errors.ErrReserved.
	SeqRead(letter swordvfs.DriveLetter, dest []byte) (int, errors.DriverError)
	SeqWrite(letter swordvfs.DriveLetter, src []byte) (int, errors.DriverError)

	// FIBRead/FIBWrite give a driver the chance to supply its own
	// directory abstraction instead of the generic directory.Engine; the
	// MZT driver uses this to synthesize a single-entry root directory
	// from its tape header. A driver that has no native directory
	// abstraction of its own returns errors.ErrReserved.
	FIBRead(letter swordvfs.DriveLetter, dirno uint8) (swordvfs.FIB, errors.DriverError)
	FIBWrite(letter swordvfs.DriveLetter, dirno uint8, fib swordvfs.FIB) errors.DriverError

	GetImageInfo(letter swordvfs.DriveLetter) (ImageInfo, errors.DriverError)
}
