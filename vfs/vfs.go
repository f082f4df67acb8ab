package vfs

import (
	"strings"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
	"github.com/sword-emu/swordvfs/storage"
)

// Whence selects the reference point for Engine.Seek (§4.H).
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

// Engine is the VFS front-end (§4.H): the single entry point the trap
// layer calls with a drive letter, a path, and arguments. It owns the
// file-system registry and the mount manager; every other piece of
// mutable state (root/cwd, open descriptors) lives in the caller-supplied
// IOContext, per the "I/O contexts are borrowed from the caller" design
// note (§9).
type Engine struct {
	FS     *FSRegistry
	Mounts *MountManager
}

// NewEngine returns a VFS front-end with room for vnodeTableSize live
// v-nodes.
func NewEngine(vnodeTableSize int) *Engine {
	return &Engine{
		FS:     NewFSRegistry(),
		Mounts: NewMountManager(vnodeTableSize),
	}
}

// RegisterFileSystem adds a named file-system implementation that Mount
// can subsequently bind a drive to.
func (e *Engine) RegisterFileSystem(fs FileSystem) errors.DriverError {
	return e.FS.Register(fs)
}

// Mount binds the named file system to an already-mounted storage.Driver
// on letter, seeding ioctx's root/cwd for that drive.
func (e *Engine) Mount(letter swordvfs.DriveLetter, fsName string, drv storage.Driver, flags swordvfs.MountFlags, ioctx *IOContext) errors.DriverError {
	fs, err := e.FS.Get(fsName)
	if err != nil {
		return err
	}
	return e.Mounts.Mount(letter, fs, drv, flags, ioctx)
}

// Unmount tears down letter's mount, refusing if busy (§4.G).
func (e *Engine) Unmount(letter swordvfs.DriveLetter, ioctx *IOContext) errors.DriverError {
	return e.Mounts.Unmount(letter, ioctx)
}

// ForceUnmount tears down letter's mount unconditionally, closing any
// descriptor still open against it rather than refusing.
func (e *Engine) ForceUnmount(letter swordvfs.DriveLetter, ioctx *IOContext) errors.DriverError {
	return e.Mounts.ForceUnmount(letter, ioctx)
}

// lastComponent extracts the final path element, tolerating an optional
// leading "X:" drive prefix and "/"-separated input, per §4.H's path
// resolution note: the native format is single-level, so the resolver is
// expected to see at most one component beyond the root.
func lastComponent(path string) string {
	if idx := strings.LastIndexByte(path, ':'); idx == 1 {
		path = path[2:]
	}
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		path = path[idx+1:]
	}
	return path
}

// Creat creates hostName on letter with the given header packet and opens
// it for read/write (§4.H). A name collision with a different attribute
// fails EXIST; a collision with the same attribute truncates and reuses
// the existing entry, matching the original source's fs_swd_creat, which
// treats re-creating a file of the same type as a legal truncation.
func (e *Engine) Creat(ioctx *IOContext, letter swordvfs.DriveLetter, path string, header swordvfs.HeaderPacket) (int, errors.DriverError) {
	mount, err := e.Mounts.MountOf(letter)
	if err != nil {
		return 0, err
	}
	if !mount.Flags.CanWrite() {
		return 0, errors.ErrRDOnly
	}

	base := lastComponent(path)
	var fib swordvfs.FIB

	existing, lookErr := mount.FSMount.LookupByName(base)
	switch {
	case lookErr == nil:
		if existing.Header.Attribute != header.Attribute {
			return 0, errors.ErrExist.WithMessage(base)
		}
		fib = existing
	case lookErr.ErrCode() == errors.NOENT:
		created, cerr := mount.FSMount.Create(base, header)
		if cerr != nil {
			return 0, cerr
		}
		fib = created
	default:
		return 0, lookErr
	}

	vn, verr := e.Mounts.GetVNode(letter, fib.DirNo, ioctx)
	if verr != nil {
		return 0, verr
	}

	if fib.Size != 0 {
		if terr := mount.FSMount.Truncate(&vn.fib, 0); terr != nil {
			vn.unref()
			return 0, terr
		}
	}

	fd := ioctx.allocFD(vn, swordvfs.O_RDWR|swordvfs.O_CREATE, 0)
	return fd, nil
}

// Open resolves path on letter per the flags table in §4.H, creating the
// file first when O_CREAT is set and it doesn't yet exist.
func (e *Engine) Open(ioctx *IOContext, letter swordvfs.DriveLetter, path string, flags swordvfs.IOFlags, header swordvfs.HeaderPacket) (int, errors.DriverError) {
	mount, err := e.Mounts.MountOf(letter)
	if err != nil {
		return 0, err
	}

	if flags.Create() && !flags.CanWrite() {
		return 0, errors.ErrSyntax.WithMessage("O_CREAT requires a writable access mode")
	}
	if flags.RequiresWritePerm() && !mount.Flags.CanWrite() {
		return 0, errors.ErrRDOnly
	}

	base := lastComponent(path)
	fib, lookErr := mount.FSMount.LookupByName(base)
	exists := lookErr == nil
	if lookErr != nil && lookErr.ErrCode() != errors.NOENT {
		return 0, lookErr
	}

	if exists {
		if flags.Create() && flags.Excl() {
			return 0, errors.ErrExist.WithMessage(base)
		}
		if fib.Header.Attribute&swordvfs.AttrTypeMask != header.Attribute&swordvfs.AttrTypeMask {
			return 0, errors.ErrNoEnt.WithMessage("no file of the requested type: " + base)
		}
	} else {
		if !flags.Create() {
			return 0, errors.ErrNoEnt.WithMessage(base)
		}
		created, cerr := mount.FSMount.Create(base, header)
		if cerr != nil {
			return 0, cerr
		}
		fib = created
	}

	vn, verr := e.Mounts.GetVNode(letter, fib.DirNo, ioctx)
	if verr != nil {
		return 0, verr
	}

	if flags.Truncate() {
		if terr := mount.FSMount.Truncate(&vn.fib, 0); terr != nil {
			vn.unref()
			return 0, terr
		}
	}

	pos := 0
	if flags.Append() {
		pos = int(vn.fib.Size)
	}
	return ioctx.allocFD(vn, flags, pos), nil
}

// Close releases fd's vnode reference and frees its table slot.
func (e *Engine) Close(ioctx *IOContext, fd int) errors.DriverError {
	fdesc, err := ioctx.FD(fd)
	if err != nil {
		return err
	}
	fdesc.VNode.unref()
	return ioctx.FreeFD(fd)
}

// Read transfers up to len(buf) bytes from fd's current position,
// clamping to the file's recorded size (§8 property 4; §4.E's FAT
// granularity doesn't track byte-exact EOF on its own).
func (e *Engine) Read(ioctx *IOContext, fd int, buf []byte) (int, errors.DriverError) {
	fdesc, err := ioctx.FD(fd)
	if err != nil {
		return 0, err
	}
	if !fdesc.Flags.CanRead() {
		return 0, errors.ErrFMode
	}

	remaining := int(fdesc.VNode.fib.Size) - fdesc.Position
	if remaining <= 0 {
		return 0, nil
	}
	if remaining < len(buf) {
		buf = buf[:remaining]
	}

	mount := fdesc.VNode.mount
	n, rerr := mount.FSMount.Read(&fdesc.VNode.fib, fdesc.Position, buf)
	fdesc.Position += n
	return n, rerr
}

// Write transfers len(buf) bytes to fd's current position, extending the
// file and its cluster chain as needed (§4.H, §4.C).
func (e *Engine) Write(ioctx *IOContext, fd int, buf []byte) (int, errors.DriverError) {
	fdesc, err := ioctx.FD(fd)
	if err != nil {
		return 0, err
	}
	if !fdesc.Flags.CanWrite() {
		return 0, errors.ErrFMode
	}

	mount := fdesc.VNode.mount
	if !mount.Flags.CanWrite() {
		return 0, errors.ErrRDOnly
	}
	if fdesc.VNode.fib.Header.Attribute.IsReadOnly() {
		return 0, errors.ErrRDOnly
	}

	pos := fdesc.Position
	if fdesc.Flags.Append() {
		pos = int(fdesc.VNode.fib.Size)
	}

	n, werr := mount.FSMount.Write(&fdesc.VNode.fib, pos, buf)
	fdesc.Position = pos + n
	return n, werr
}

// Seek repositions fd per whence (§4.H). Seeking past EOF succeeds here;
// the allocation only happens lazily on the next write.
func (e *Engine) Seek(ioctx *IOContext, fd int, offset int, whence Whence) (int, errors.DriverError) {
	fdesc, err := ioctx.FD(fd)
	if err != nil {
		return 0, err
	}

	var base int
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = fdesc.Position
	case SeekEnd:
		base = int(fdesc.VNode.fib.Size)
	default:
		return 0, errors.ErrInval.WithMessage("bad whence")
	}

	newPos := base + offset
	if newPos < 0 {
		return 0, errors.ErrInval.WithMessage("negative seek position")
	}
	fdesc.Position = newPos
	return newPos, nil
}

// Truncate extends or shrinks fd's file to length bytes (§4.H, §4.C).
func (e *Engine) Truncate(ioctx *IOContext, fd int, length int) errors.DriverError {
	fdesc, err := ioctx.FD(fd)
	if err != nil {
		return err
	}
	mount := fdesc.VNode.mount
	if !mount.Flags.CanWrite() {
		return errors.ErrRDOnly
	}
	return mount.FSMount.Truncate(&fdesc.VNode.fib, length)
}

// Unlink removes path from letter's directory, refusing if the RDONLY
// attribute bit is set (§4.H, §8 property 9).
func (e *Engine) Unlink(ioctx *IOContext, letter swordvfs.DriveLetter, path string) errors.DriverError {
	mount, err := e.Mounts.MountOf(letter)
	if err != nil {
		return err
	}
	if !mount.Flags.CanWrite() {
		return errors.ErrRDOnly
	}

	base := lastComponent(path)
	fib, lookErr := mount.FSMount.LookupByName(base)
	if lookErr != nil {
		return lookErr
	}
	if fib.Header.Attribute.IsReadOnly() {
		return errors.ErrRDOnly
	}
	return mount.FSMount.Unlink(fib)
}

// Rename moves oldPath to newPath within letter, refusing if the source
// carries the RDONLY attribute bit or the destination already exists
// (§4.H, §8 S4).
func (e *Engine) Rename(ioctx *IOContext, letter swordvfs.DriveLetter, oldPath, newPath string) errors.DriverError {
	mount, err := e.Mounts.MountOf(letter)
	if err != nil {
		return err
	}
	if !mount.Flags.CanWrite() {
		return errors.ErrRDOnly
	}

	oldBase := lastComponent(oldPath)
	newBase := lastComponent(newPath)

	fib, lookErr := mount.FSMount.LookupByName(oldBase)
	if lookErr != nil {
		return lookErr
	}
	if fib.Header.Attribute.IsReadOnly() {
		return errors.ErrRDOnly
	}
	if _, existErr := mount.FSMount.LookupByName(newBase); existErr == nil {
		return errors.ErrExist.WithMessage(newBase)
	}

	vn, verr := e.Mounts.GetVNode(letter, fib.DirNo, ioctx)
	if verr != nil {
		return verr
	}
	defer vn.unref()
	return mount.FSMount.Rename(&vn.fib, newBase)
}

// SetAttr replaces path's attribute byte within the preserved subset
// (§3's 0x87 mask plus RDONLY/HIDDEN/RAW).
func (e *Engine) SetAttr(ioctx *IOContext, letter swordvfs.DriveLetter, path string, attr swordvfs.Attribute) errors.DriverError {
	mount, err := e.Mounts.MountOf(letter)
	if err != nil {
		return err
	}
	if !mount.Flags.CanWrite() {
		return errors.ErrRDOnly
	}

	base := lastComponent(path)
	fib, lookErr := mount.FSMount.LookupByName(base)
	if lookErr != nil {
		return lookErr
	}

	vn, verr := e.Mounts.GetVNode(letter, fib.DirNo, ioctx)
	if verr != nil {
		return verr
	}
	defer vn.unref()
	return mount.FSMount.SetAttr(&vn.fib, attr)
}

// GetAttr returns path's current attribute byte.
func (e *Engine) GetAttr(letter swordvfs.DriveLetter, ioctx *IOContext, path string) (swordvfs.Attribute, errors.DriverError) {
	mount, err := e.Mounts.MountOf(letter)
	if err != nil {
		return 0, err
	}
	base := lastComponent(path)
	fib, lookErr := mount.FSMount.LookupByName(base)
	if lookErr != nil {
		return 0, lookErr
	}
	return fib.Header.Attribute, nil
}

// OpenDir opens an iteration stream over letter's directory.
func (e *Engine) OpenDir(ioctx *IOContext, letter swordvfs.DriveLetter) (int, errors.DriverError) {
	mount, err := e.Mounts.MountOf(letter)
	if err != nil {
		return 0, err
	}
	mount.Root.ref()
	return ioctx.allocDirStream(mount.Root), nil
}

// ReadDir returns the next live directory entry's FIB, advancing the
// stream's cursor past it; it terminates with NOENT at the sentinel.
func (e *Engine) ReadDir(ioctx *IOContext, ds int) (swordvfs.FIB, errors.DriverError) {
	stream, err := ioctx.DirStreamAt(ds)
	if err != nil {
		return swordvfs.FIB{}, err
	}
	mount := stream.VNode.mount
	dirno, fib, rerr := mount.FSMount.ReadDirEntry(stream.Next)
	if rerr != nil {
		return swordvfs.FIB{}, rerr
	}
	stream.Next = dirno + 1
	return fib, nil
}

// SeekDir repositions ds's cursor to an arbitrary #DIRNO.
func (e *Engine) SeekDir(ioctx *IOContext, ds int, dirno uint8) errors.DriverError {
	stream, err := ioctx.DirStreamAt(ds)
	if err != nil {
		return err
	}
	stream.Next = dirno
	return nil
}

// TellDir returns ds's current cursor.
func (e *Engine) TellDir(ioctx *IOContext, ds int) (uint8, errors.DriverError) {
	stream, err := ioctx.DirStreamAt(ds)
	if err != nil {
		return 0, err
	}
	return stream.Next, nil
}

// CloseDir releases ds's vnode reference and frees its slot.
func (e *Engine) CloseDir(ioctx *IOContext, ds int) errors.DriverError {
	stream, err := ioctx.DirStreamAt(ds)
	if err != nil {
		return err
	}
	stream.VNode.unref()
	return ioctx.freeDirStream(ds)
}
