package vfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
	"github.com/sword-emu/swordvfs/sword"
	sdktesting "github.com/sword-emu/swordvfs/testing"
	"github.com/sword-emu/swordvfs/vfs"
)

func mountedEngine(t *testing.T) (*vfs.Engine, *vfs.IOContext) {
	t.Helper()
	drv := sdktesting.NewMemDriver(32 * swordvfs.RecordsPerCluster)

	engine := vfs.NewEngine(16)
	require.Nil(t, engine.RegisterFileSystem(sword.New()))

	ioctx := vfs.NewIOContext()
	require.Nil(t, engine.Mount(swordvfs.DriveA, "sword", drv, 0, ioctx))
	return engine, ioctx
}

func TestCreatWriteReadRoundTrip(t *testing.T) {
	engine, ioctx := mountedEngine(t)

	fd, err := engine.Creat(ioctx, swordvfs.DriveA, "HELLO.BIN", swordvfs.HeaderPacket{Attribute: swordvfs.AttrBIN})
	require.Nil(t, err)

	payload := []byte("hello, sword")
	n, err := engine.Write(ioctx, fd, payload)
	require.Nil(t, err)
	assert.Equal(t, len(payload), n)

	_, err = engine.Seek(ioctx, fd, 0, vfs.SeekSet)
	require.Nil(t, err)

	buf := make([]byte, len(payload))
	n, err = engine.Read(ioctx, fd, buf)
	require.Nil(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf)

	require.Nil(t, engine.Close(ioctx, fd))
}

func TestOpenWithoutCreateOnMissingFileFailsNoEnt(t *testing.T) {
	engine, ioctx := mountedEngine(t)

	_, err := engine.Open(ioctx, swordvfs.DriveA, "MISSING.BIN", swordvfs.O_RDONLY, swordvfs.HeaderPacket{})
	require.NotNil(t, err)
	assert.ErrorIs(t, err, errors.ErrNoEnt)
}

func TestOpenReadOnlyWithCreateFlagIsSyntaxError(t *testing.T) {
	engine, ioctx := mountedEngine(t)

	_, err := engine.Open(ioctx, swordvfs.DriveA, "NEW.BIN", swordvfs.O_RDONLY|swordvfs.O_CREATE, swordvfs.HeaderPacket{Attribute: swordvfs.AttrBIN})
	require.NotNil(t, err)
	assert.ErrorIs(t, err, errors.ErrSyntax)
}

func TestUnlinkThenOpenFails(t *testing.T) {
	engine, ioctx := mountedEngine(t)

	fd, err := engine.Creat(ioctx, swordvfs.DriveA, "TEMP.BIN", swordvfs.HeaderPacket{Attribute: swordvfs.AttrBIN})
	require.Nil(t, err)
	require.Nil(t, engine.Close(ioctx, fd))

	require.Nil(t, engine.Unlink(ioctx, swordvfs.DriveA, "TEMP.BIN"))

	_, err = engine.Open(ioctx, swordvfs.DriveA, "TEMP.BIN", swordvfs.O_RDONLY, swordvfs.HeaderPacket{})
	assert.ErrorIs(t, err, errors.ErrNoEnt)
}

func TestRenameThenOpenUnderNewName(t *testing.T) {
	engine, ioctx := mountedEngine(t)

	fd, err := engine.Creat(ioctx, swordvfs.DriveA, "OLD.BIN", swordvfs.HeaderPacket{Attribute: swordvfs.AttrBIN})
	require.Nil(t, err)
	_, err = engine.Write(ioctx, fd, []byte("data"))
	require.Nil(t, err)
	require.Nil(t, engine.Close(ioctx, fd))

	require.Nil(t, engine.Rename(ioctx, swordvfs.DriveA, "OLD.BIN", "NEW.BIN"))

	fd2, err := engine.Open(ioctx, swordvfs.DriveA, "NEW.BIN", swordvfs.O_RDONLY, swordvfs.HeaderPacket{Attribute: swordvfs.AttrBIN})
	require.Nil(t, err)
	buf := make([]byte, 4)
	n, err := engine.Read(ioctx, fd2, buf)
	require.Nil(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "data", string(buf))
}

func TestForceUnmountClosesBusyDescriptor(t *testing.T) {
	engine, ioctx := mountedEngine(t)

	fd, err := engine.Creat(ioctx, swordvfs.DriveA, "BUSY.BIN", swordvfs.HeaderPacket{Attribute: swordvfs.AttrBIN})
	require.Nil(t, err)
	_, err = engine.Write(ioctx, fd, []byte("x"))
	require.Nil(t, err)

	require.Nil(t, engine.ForceUnmount(swordvfs.DriveA, ioctx))

	err = engine.Close(ioctx, fd)
	assert.ErrorIs(t, err, errors.ErrNotOpen)
}

func TestReaddirEnumeratesCreatedFiles(t *testing.T) {
	engine, ioctx := mountedEngine(t)

	for _, n := range []string{"A.BIN", "B.BIN", "C.BIN"} {
		fd, err := engine.Creat(ioctx, swordvfs.DriveA, n, swordvfs.HeaderPacket{Attribute: swordvfs.AttrBIN})
		require.Nil(t, err)
		require.Nil(t, engine.Close(ioctx, fd))
	}

	ds, err := engine.OpenDir(ioctx, swordvfs.DriveA)
	require.Nil(t, err)

	var names []string
	for {
		fib, rerr := engine.ReadDir(ioctx, ds)
		if rerr != nil {
			break
		}
		names = append(names, fib.HostName)
	}
	require.Nil(t, engine.CloseDir(ioctx, ds))

	assert.ElementsMatch(t, []string{"A.BIN", "B.BIN", "C.BIN"}, names)
}

func TestUnmountRefusedWhileFileOpen(t *testing.T) {
	engine, ioctx := mountedEngine(t)

	fd, err := engine.Creat(ioctx, swordvfs.DriveA, "BUSY.BIN", swordvfs.HeaderPacket{Attribute: swordvfs.AttrBIN})
	require.Nil(t, err)

	err = engine.Unmount(swordvfs.DriveA, ioctx)
	require.NotNil(t, err)
	assert.Equal(t, errors.RESERVED, err.ErrCode())

	require.Nil(t, engine.Close(ioctx, fd))
	assert.Nil(t, engine.Unmount(swordvfs.DriveA, ioctx))
}

func TestRenameRefusesReadOnlySource(t *testing.T) {
	engine, ioctx := mountedEngine(t)

	fd, err := engine.Creat(ioctx, swordvfs.DriveA, "LOCKED.BIN", swordvfs.HeaderPacket{Attribute: swordvfs.AttrBIN})
	require.Nil(t, err)
	require.Nil(t, engine.Close(ioctx, fd))
	require.Nil(t, engine.SetAttr(ioctx, swordvfs.DriveA, "LOCKED.BIN", swordvfs.AttrBIN|swordvfs.AttrRDOnly))

	err = engine.Rename(ioctx, swordvfs.DriveA, "LOCKED.BIN", "RENAMED.BIN")
	require.NotNil(t, err)
	assert.ErrorIs(t, err, errors.ErrRDOnly)

	_, err = engine.Open(ioctx, swordvfs.DriveA, "LOCKED.BIN", swordvfs.O_RDONLY, swordvfs.HeaderPacket{Attribute: swordvfs.AttrBIN})
	assert.Nil(t, err)
}
