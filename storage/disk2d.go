package storage

import (
	"io"
	"os"
	"sync"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
)

// fatMirrorCount is the number of redundant back-to-back copies the
// original disk layout keeps of the FAT record. A 2D image's FAT is a
// single record at FATRecord; the real hardware format stores it twice in a
// row so a damaged sector can be detected (not corrected) on mount. The
// mirror copies must stay strictly within [FATRecord, DefaultDirectoryRecord)
// — FATRecord is 0x0E and the directory starts at 0x10, leaving room for
// exactly two copies (0x0E, 0x0F) before DIRPS.
const fatMirrorCount = 2

// Disk2DDriver mounts ".2d" floppy images: a flat record-addressed file
// with a fixed directory/FAT layout, redundant FAT copies, and no native
// FIB abstraction (the generic directory.Engine is used instead).
// Grounded on the teacher's BlockDevice plus the original source's
// storage.c disk image backend.
type Disk2DDriver struct {
	mu     sync.Mutex
	mounts map[swordvfs.DriveLetter]*disk2DMount
}

type disk2DMount struct {
	dev      recordDevice
	closer   io.Closer
	super    swordvfs.Superblock
	flags    swordvfs.MountFlags
	path     string
}

// NewDisk2DDriver returns an empty, unmounted 2D disk driver.
func NewDisk2DDriver() *Disk2DDriver {
	return &Disk2DDriver{mounts: make(map[swordvfs.DriveLetter]*disk2DMount)}
}

func (d *Disk2DDriver) Name() string { return "disk2d" }

func (d *Disk2DDriver) Accepts(letter swordvfs.DriveLetter, path string) bool {
	return letter.IsDisk() && matchExtension(path, "2d")
}

// mountStream is the stream-injecting half of Mount, used directly by
// tests with an in-memory github.com/xaionaro-go/bytesextra buffer instead
// of a real file.
func (d *Disk2DDriver) mountStream(
	letter swordvfs.DriveLetter,
	path string,
	stream io.ReadWriteSeeker,
	closer io.Closer,
	totalRecords swordvfs.RecordNumber,
	flags swordvfs.MountFlags,
) errors.DriverError {
	dev := newRecordDevice(stream, totalRecords)

	if err := verifyFATMirrors(&dev, swordvfs.DefaultFATRecord); err != nil {
		return err
	}

	mount := &disk2DMount{
		dev:   dev,
		closer: closer,
		super: swordvfs.NewSuperblock(totalRecords, flags),
		flags: flags,
		path:  path,
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.mounts[letter] = mount
	return nil
}

func (d *Disk2DDriver) Mount(letter swordvfs.DriveLetter, path string, flags swordvfs.MountFlags) errors.DriverError {
	openFlags := os.O_RDWR
	if !flags.CanWrite() {
		openFlags = os.O_RDONLY
	}

	f, err := os.OpenFile(path, openFlags, 0)
	if err != nil {
		return errors.ErrOffline.WrapError(err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.ErrIO.WrapError(err)
	}
	totalRecords := swordvfs.RecordNumber(info.Size() / swordvfs.RecordSize)

	if driverErr := d.mountStream(letter, path, f, f, totalRecords, flags); driverErr != nil {
		f.Close()
		return driverErr
	}
	return nil
}

func (d *Disk2DDriver) Unmount(letter swordvfs.DriveLetter) errors.DriverError {
	d.mu.Lock()
	mount, ok := d.mounts[letter]
	if ok {
		delete(d.mounts, letter)
	}
	d.mu.Unlock()

	if !ok {
		return errors.ErrOffline.WithMessage("not mounted: " + letter.String())
	}
	if mount.closer != nil {
		if err := mount.closer.Close(); err != nil {
			return errors.ErrIO.WrapError(err)
		}
	}
	return nil
}

func (d *Disk2DDriver) lookup(letter swordvfs.DriveLetter) (*disk2DMount, errors.DriverError) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mount, ok := d.mounts[letter]
	if !ok {
		return nil, errors.ErrOffline.WithMessage("not mounted: " + letter.String())
	}
	return mount, nil
}

func (d *Disk2DDriver) RecordRead(letter swordvfs.DriveLetter, buf []byte, first swordvfs.RecordNumber, count int) (int, errors.DriverError) {
	mount, err := d.lookup(letter)
	if err != nil {
		return 0, err
	}
	return mount.dev.readRecords(buf, first, count)
}

func (d *Disk2DDriver) RecordWrite(letter swordvfs.DriveLetter, buf []byte, first swordvfs.RecordNumber, count int) (int, errors.DriverError) {
	mount, err := d.lookup(letter)
	if err != nil {
		return 0, err
	}
	if !mount.flags.CanWrite() {
		return 0, errors.ErrRDOnly
	}

	n, writeErr := mount.dev.writeRecords(buf, first, count)
	if writeErr != nil {
		return n, writeErr
	}

	// The FAT record is mirrored fatMirrorCount times back-to-back; any
	// write that lands exactly on it is replicated so the redundant copies
	// stay in sync instead of drifting into a false corruption report on
	// the next mount.
	if first == mount.super.FATRecord && count == 1 {
		for copyIdx := 1; copyIdx < fatMirrorCount; copyIdx++ {
			dest := mount.super.FATRecord + swordvfs.RecordNumber(copyIdx)
			if _, mirrorErr := mount.dev.writeRecords(buf, dest, 1); mirrorErr != nil {
				return n, mirrorErr
			}
		}
	}
	return n, nil
}

func (d *Disk2DDriver) SeqRead(letter swordvfs.DriveLetter, dest []byte) (int, errors.DriverError) {
	return 0, errors.ErrReserved.WithMessage("disk2d does not support sequential I/O")
}

func (d *Disk2DDriver) SeqWrite(letter swordvfs.DriveLetter, src []byte) (int, errors.DriverError) {
	return 0, errors.ErrReserved.WithMessage("disk2d does not support sequential I/O")
}

func (d *Disk2DDriver) FIBRead(letter swordvfs.DriveLetter, dirno uint8) (swordvfs.FIB, errors.DriverError) {
	return swordvfs.FIB{}, errors.ErrReserved.WithMessage("disk2d has no native FIB abstraction")
}

func (d *Disk2DDriver) FIBWrite(letter swordvfs.DriveLetter, dirno uint8, fib swordvfs.FIB) errors.DriverError {
	return errors.ErrReserved.WithMessage("disk2d has no native FIB abstraction")
}

func (d *Disk2DDriver) GetImageInfo(letter swordvfs.DriveLetter) (ImageInfo, errors.DriverError) {
	mount, err := d.lookup(letter)
	if err != nil {
		return ImageInfo{}, err
	}
	return ImageInfo{
		Superblock: mount.super,
		Path:       mount.path,
		ReadOnly:   !mount.flags.CanWrite(),
	}, nil
}

// verifyFATMirrors reads the redundant FAT copies and fails the mount with
// BADFAT if they disagree, rather than silently trusting the first copy the
// way a naive reader would.
func verifyFATMirrors(dev *recordDevice, fatRecord swordvfs.RecordNumber) errors.DriverError {
	if int64(fatRecord)+fatMirrorCount > int64(dev.totalRecords) {
		// Image too small to carry redundant copies (e.g. a freshly
		// truncated test fixture); nothing to verify.
		return nil
	}

	first := make([]byte, swordvfs.RecordSize)
	if _, err := dev.readRecords(first, fatRecord, 1); err != nil {
		return err
	}

	other := make([]byte, swordvfs.RecordSize)
	for copyIdx := 1; copyIdx < fatMirrorCount; copyIdx++ {
		if _, err := dev.readRecords(other, fatRecord+swordvfs.RecordNumber(copyIdx), 1); err != nil {
			return err
		}
		for i := range first {
			if first[i] != other[i] {
				return errors.ErrBadFAT.WithMessage("redundant FAT copies disagree")
			}
		}
	}
	return nil
}
