// Package sword is the concrete SWORD file system binding (§9's "one
// concrete FileSystem" design note): it wires directory.Engine, fat.Engine,
// and blockio.RWBlock together behind the vfs.FileSystem/vfs.FSMount
// contracts, the same way the original source's fs-swd.c glues
// fs-swd-dent.c, fs-swd-fat.c, and fs-swd-rwblk.c together behind the
// generic struct _fs_operations table.
package sword

import (
	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/directory"
	"github.com/sword-emu/swordvfs/errors"
	"github.com/sword-emu/swordvfs/fat"
	"github.com/sword-emu/swordvfs/storage"
	"github.com/sword-emu/swordvfs/vfs"
)

// RootDirNo is the synthetic #DIRNO given to the drive's root v-node. It
// lies outside the [0, DefaultDirectoryEntryCount) range a real entry can
// occupy, so it never collides with a live file; there is no on-disk slot
// behind it; it only anchors the v-node the mount manager hands out as the
// per-drive root/cwd.
const RootDirNo = 0xFF

// FileSystem is the "sword" implementation of vfs.FileSystem.
type FileSystem struct{}

// New returns a FileSystem ready to register with a vfs.Engine.
func New() FileSystem { return FileSystem{} }

func (FileSystem) Name() string { return "sword" }

// Mount binds directory and FAT engines to drv for letter, reading the
// image's geometry from the driver's ImageInfo (a zero DirectoryStart or
// FATRecord falls back to the standard default). A driver with its own
// FIB abstraction (the MZT tape and side-car drivers) is bound to a
// nativeMount instead and uses no directory or FAT engine.
func (FileSystem) Mount(drv storage.Driver, letter swordvfs.DriveLetter, flags swordvfs.MountFlags) (vfs.FSMount, swordvfs.Superblock, swordvfs.FIB, errors.DriverError) {
	info, err := drv.GetImageInfo(letter)
	if err != nil {
		return nil, swordvfs.Superblock{}, swordvfs.FIB{}, err
	}

	super := info.Superblock
	super.Flags = flags

	// A driver with its own directory abstraction (the MZT tape driver)
	// answers FIBRead with something other than ErrReserved; everything
	// else gets the generic directory/FAT binding.
	if _, probeErr := drv.FIBRead(letter, 0); probeErr == nil || probeErr.ErrCode() != errors.RESERVED {
		root := swordvfs.FIB{
			Drive:    letter,
			DirNo:    RootDirNo,
			Header:   swordvfs.HeaderPacket{Attribute: swordvfs.AttrDir},
			HostName: "/",
		}
		return &nativeMount{driver: drv, letter: letter}, super, root, nil
	}

	if super.DirectoryStart == 0 {
		super.DirectoryStart = swordvfs.DefaultDirectoryRecord
	}
	if super.FATRecord == 0 {
		super.FATRecord = swordvfs.DefaultFATRecord
	}

	m := &mount{
		driver: drv,
		letter: letter,
		dir:    directory.NewEngine(drv, letter),
		fat:    fat.NewEngine(drv, letter),
		super:  super,
	}
	m.fat.FATRecord = super.FATRecord

	root := swordvfs.FIB{
		Drive:     letter,
		DirNo:     RootDirNo,
		DirRecord: super.DirectoryStart,
		Header:    swordvfs.HeaderPacket{Attribute: swordvfs.AttrDir},
		HostName:  "/",
	}
	return m, super, root, nil
}
