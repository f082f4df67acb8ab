package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
)

// sidecarHeaderSize is the width of the fixed ASCII header
// "_SOS %02x %04x %04x\n" (§6): 4 + 1 + 2 + 1 + 4 + 1 + 4 + 1.
const sidecarHeaderSize = 18

// SidecarDriver mounts single-file ".dat" containers: a simple tool format
// carrying one S-OS file as an 18-byte ASCII header plus body, with ASCII
// files round-tripping '\n' to '\r'. This is the convention the
// spec reserves for exchanging a single file with the host file system
// (used by the CLI's put/get commands); unlike MZT it has no Linux binary
// prefix and its header is plain ASCII so a host text editor can read it.
type SidecarDriver struct {
	mu     sync.Mutex
	mounts map[swordvfs.DriveLetter]*sidecarMount
}

type sidecarMount struct {
	attr   swordvfs.Attribute
	load   uint16
	exec   uint16
	body   []byte
	closer io.Closer
	path   string
	flags  swordvfs.MountFlags
}

func NewSidecarDriver() *SidecarDriver {
	return &SidecarDriver{mounts: make(map[swordvfs.DriveLetter]*sidecarMount)}
}

func (d *SidecarDriver) Name() string { return "sidecar" }

func (d *SidecarDriver) Accepts(letter swordvfs.DriveLetter, path string) bool {
	return letter.IsValid() && matchExtension(path, "dat")
}

func parseSidecarHeader(raw []byte) (attr swordvfs.Attribute, load, exec uint16, body []byte, err errors.DriverError) {
	if len(raw) < sidecarHeaderSize {
		return 0, 0, 0, nil, errors.ErrIO.WithMessage("side-car file too short for header")
	}
	var attrVal, loadVal, execVal uint64
	n, scanErr := fmt.Sscanf(string(raw[:sidecarHeaderSize]), "_SOS %02x %04x %04x\n", &attrVal, &loadVal, &execVal)
	if scanErr != nil || n != 3 {
		return 0, 0, 0, nil, errors.ErrSyntax.WithMessage("malformed side-car header")
	}
	return swordvfs.Attribute(attrVal), uint16(loadVal), uint16(execVal), raw[sidecarHeaderSize:], nil
}

func encodeSidecarHeader(attr swordvfs.Attribute, load, exec uint16) []byte {
	return []byte("_SOS " +
		pad2Hex(uint8(attr)) + " " +
		pad4Hex(load) + " " +
		pad4Hex(exec) + "\n")
}

func pad2Hex(v uint8) string {
	s := strconv.FormatUint(uint64(v), 16)
	for len(s) < 2 {
		s = "0" + s
	}
	return s
}

func pad4Hex(v uint16) string {
	s := strconv.FormatUint(uint64(v), 16)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

// translateBodyForRead converts the on-disk '\n'-terminated ASCII body to
// the in-memory '\r'-terminated representation S-OS ASCII files use, when
// attr names an ASCII file.
func translateBodyForRead(attr swordvfs.Attribute, body []byte) []byte {
	if attr&swordvfs.AttrASC == 0 {
		return body
	}
	return bytes.ReplaceAll(body, []byte{'\n'}, []byte{'\r'})
}

func translateBodyForWrite(attr swordvfs.Attribute, body []byte) []byte {
	if attr&swordvfs.AttrASC == 0 {
		return body
	}
	return bytes.ReplaceAll(body, []byte{'\r'}, []byte{'\n'})
}

func (d *SidecarDriver) Mount(letter swordvfs.DriveLetter, path string, flags swordvfs.MountFlags) errors.DriverError {
	openFlags := os.O_RDWR
	if !flags.CanWrite() {
		openFlags = os.O_RDONLY
	}
	f, err := os.OpenFile(path, openFlags, 0)
	if err != nil {
		return errors.ErrOffline.WrapError(err)
	}
	raw, rerr := io.ReadAll(f)
	if rerr != nil {
		f.Close()
		return errors.ErrIO.WrapError(rerr)
	}

	attr, load, exec, body, herr := parseSidecarHeader(raw)
	if herr != nil {
		f.Close()
		return herr
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.mounts[letter] = &sidecarMount{
		attr:   attr,
		load:   load,
		exec:   exec,
		body:   translateBodyForRead(attr, body),
		closer: f,
		path:   path,
		flags:  flags,
	}
	return nil
}

func (d *SidecarDriver) Unmount(letter swordvfs.DriveLetter) errors.DriverError {
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
			header := encodeSidecarHeader(mount.attr, mount.load, mount.exec)
			full := append(header, translateBodyForWrite(mount.attr, mount.body)...)
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

func (d *SidecarDriver) lookup(letter swordvfs.DriveLetter) (*sidecarMount, errors.DriverError) {
	d.mu.Lock()
	defer d.mu.Unlock()
	mount, ok := d.mounts[letter]
	if !ok {
		return nil, errors.ErrOffline.WithMessage("not mounted: " + letter.String())
	}
	return mount, nil
}

// RecordRead returns the number of bytes actually copied into buf, not a
// record count: like MZTDriver.RecordRead, this drives a FileSystem with
// its own FIB abstraction (nativeRW in the sword package) that reads a
// record at a time and needs to know exactly how many of the requested
// record's bytes exist, since a side-car body's length is rarely a whole
// multiple of the record size.
func (d *SidecarDriver) RecordRead(letter swordvfs.DriveLetter, buf []byte, first swordvfs.RecordNumber, count int) (int, errors.DriverError) {
	mount, err := d.lookup(letter)
	if err != nil {
		return 0, err
	}
	start := int64(first) * swordvfs.RecordSize
	want := count * swordvfs.RecordSize
	if start >= int64(len(mount.body)) {
		return 0, nil
	}
	n := copy(buf[:want], mount.body[start:])
	return n, nil
}

// RecordWrite returns the number of bytes written, matching RecordRead's
// byte-count convention.
func (d *SidecarDriver) RecordWrite(letter swordvfs.DriveLetter, buf []byte, first swordvfs.RecordNumber, count int) (int, errors.DriverError) {
	mount, err := d.lookup(letter)
	if err != nil {
		return 0, err
	}
	if !mount.flags.CanWrite() {
		return 0, errors.ErrRDOnly
	}
	start := int64(first) * swordvfs.RecordSize
	want := count * swordvfs.RecordSize
	end := start + int64(want)
	if end > int64(len(mount.body)) {
		grown := make([]byte, end)
		copy(grown, mount.body)
		mount.body = grown
	}
	copy(mount.body[start:end], buf[:want])
	return want, nil
}

func (d *SidecarDriver) SeqRead(letter swordvfs.DriveLetter, dest []byte) (int, errors.DriverError) {
	return 0, errors.ErrReserved.WithMessage("sidecar does not support sequential I/O")
}

func (d *SidecarDriver) SeqWrite(letter swordvfs.DriveLetter, src []byte) (int, errors.DriverError) {
	return 0, errors.ErrReserved.WithMessage("sidecar does not support sequential I/O")
}

func (d *SidecarDriver) FIBRead(letter swordvfs.DriveLetter, dirno uint8) (swordvfs.FIB, errors.DriverError) {
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
			Attribute:   mount.attr,
			LoadAddress: mount.load,
			ExecAddress: mount.exec,
		},
		Size: uint16(len(mount.body)),
	}, nil
}

func (d *SidecarDriver) FIBWrite(letter swordvfs.DriveLetter, dirno uint8, fib swordvfs.FIB) errors.DriverError {
	mount, err := d.lookup(letter)
	if err != nil {
		return err
	}
	if dirno != 0 {
		return errors.ErrNoSpc.WithMessage("a side-car image holds exactly one file")
	}
	if !mount.flags.CanWrite() {
		return errors.ErrRDOnly
	}
	mount.attr = fib.Header.Attribute
	mount.load = fib.Header.LoadAddress
	mount.exec = fib.Header.ExecAddress
	return nil
}

func (d *SidecarDriver) GetImageInfo(letter swordvfs.DriveLetter) (ImageInfo, errors.DriverError) {
	mount, err := d.lookup(letter)
	if err != nil {
		return ImageInfo{}, err
	}
	return ImageInfo{
		Superblock: swordvfs.Superblock{
			TotalRecords: swordvfs.RecordNumber(len(mount.body) / swordvfs.RecordSize),
			Flags:        mount.flags,
		},
		Path:     mount.path,
		ReadOnly: !mount.flags.CanWrite(),
	}, nil
}
