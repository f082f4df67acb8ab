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

func TestDoubleCloseFailsNotOpen(t *testing.T) {
	engine, ioctx := mountedEngine(t)

	fd, err := engine.Creat(ioctx, swordvfs.DriveA, "A.BIN", swordvfs.HeaderPacket{Attribute: swordvfs.AttrBIN})
	require.Nil(t, err)
	require.Nil(t, engine.Close(ioctx, fd))

	err = engine.Close(ioctx, fd)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, errors.ErrNotOpen)
}

func TestClosedFDSlotIsReusedByNextOpen(t *testing.T) {
	engine, ioctx := mountedEngine(t)

	fd1, err := engine.Creat(ioctx, swordvfs.DriveA, "A.BIN", swordvfs.HeaderPacket{Attribute: swordvfs.AttrBIN})
	require.Nil(t, err)
	require.Nil(t, engine.Close(ioctx, fd1))

	fd2, err := engine.Creat(ioctx, swordvfs.DriveA, "B.BIN", swordvfs.HeaderPacket{Attribute: swordvfs.AttrBIN})
	require.Nil(t, err)
	assert.Equal(t, fd1, fd2)
	require.Nil(t, engine.Close(ioctx, fd2))
}

func TestSeekWhenceVariants(t *testing.T) {
	engine, ioctx := mountedEngine(t)

	fd, err := engine.Creat(ioctx, swordvfs.DriveA, "A.BIN", swordvfs.HeaderPacket{Attribute: swordvfs.AttrBIN})
	require.Nil(t, err)
	_, err = engine.Write(ioctx, fd, []byte("0123456789"))
	require.Nil(t, err)

	pos, err := engine.Seek(ioctx, fd, 3, vfs.SeekSet)
	require.Nil(t, err)
	assert.Equal(t, 3, pos)

	pos, err = engine.Seek(ioctx, fd, 2, vfs.SeekCur)
	require.Nil(t, err)
	assert.Equal(t, 5, pos)

	pos, err = engine.Seek(ioctx, fd, 0, vfs.SeekEnd)
	require.Nil(t, err)
	assert.Equal(t, 10, pos)

	_, err = engine.Seek(ioctx, fd, -100, vfs.SeekSet)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, errors.ErrInval)
}

func TestReadOnlyMountRejectsWrite(t *testing.T) {
	engine := vfs.NewEngine(16)
	require.Nil(t, engine.RegisterFileSystem(sword.New()))

	drv := sdktesting.NewMemDriver(32 * swordvfs.RecordsPerCluster)
	ioctx := vfs.NewIOContext()
	require.Nil(t, engine.Mount(swordvfs.DriveA, "sword", drv, swordvfs.MountReadOnly, ioctx))

	_, err := engine.Creat(ioctx, swordvfs.DriveA, "B.BIN", swordvfs.HeaderPacket{Attribute: swordvfs.AttrBIN})
	require.NotNil(t, err)
	assert.ErrorIs(t, err, errors.ErrRDOnly)
}
