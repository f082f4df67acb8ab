package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/errors"
	"github.com/sword-emu/swordvfs/storage"
)

func writeMZTFixture(t *testing.T, body []byte) string {
	t.Helper()
	header := make([]byte, 128)
	header[0] = 0x01 // mztAttrBIN
	copy(header[1:], []byte("HELLO          \r"))
	header[18] = byte(len(body))
	header[19] = byte(len(body) >> 8)

	full := append([]byte{'m', 'z', '2', '0', 0x00, 0x02, 0x00, 0x00}, header...)
	full = append(full, body...)

	path := filepath.Join(t.TempDir(), "tape.mzt")
	require.Nil(t, os.WriteFile(path, full, 0o644))
	return path
}

func TestMZTDriverAcceptsOnlyTapeLettersAndExtensions(t *testing.T) {
	d := storage.NewMZTDriver()
	assert.True(t, d.Accepts(swordvfs.DriveCommonTape, "game.mzt"))
	assert.True(t, d.Accepts(swordvfs.DriveQuickDisk, "game.m12"))
	assert.False(t, d.Accepts(swordvfs.DriveA, "game.mzt"))
	assert.False(t, d.Accepts(swordvfs.DriveCommonTape, "game.2d"))
}

func TestMZTDriverMountReadsHeaderAndBody(t *testing.T) {
	path := writeMZTFixture(t, []byte("payload"))
	d := storage.NewMZTDriver()
	require.Nil(t, d.Mount(swordvfs.DriveCommonTape, path, 0))
	defer d.Unmount(swordvfs.DriveCommonTape)

	fib, err := d.FIBRead(swordvfs.DriveCommonTape, 0)
	require.Nil(t, err)
	assert.Equal(t, swordvfs.AttrBIN, fib.Header.Attribute)
	assert.Equal(t, "HELLO", fib.HostName)
	assert.Equal(t, uint16(len("payload")), fib.Size)

	_, err = d.FIBRead(swordvfs.DriveCommonTape, 1)
	assert.NotNil(t, err)
}

func TestMZTDriverSeqReadWriteCursor(t *testing.T) {
	path := writeMZTFixture(t, []byte("0123456789"))
	d := storage.NewMZTDriver()
	require.Nil(t, d.Mount(swordvfs.DriveCommonTape, path, 0))
	defer d.Unmount(swordvfs.DriveCommonTape)

	buf := make([]byte, 4)
	n, err := d.SeqRead(swordvfs.DriveCommonTape, buf)
	require.Nil(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "0123", string(buf))

	n, err = d.SeqRead(swordvfs.DriveCommonTape, buf)
	require.Nil(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "4567", string(buf))
}

func TestMZTDriverWriteProtectedMount(t *testing.T) {
	path := writeMZTFixture(t, []byte("data"))
	d := storage.NewMZTDriver()
	require.Nil(t, d.Mount(swordvfs.DriveCommonTape, path, swordvfs.MountReadOnly))
	defer d.Unmount(swordvfs.DriveCommonTape)

	_, err := d.SeqWrite(swordvfs.DriveCommonTape, []byte("x"))
	require.NotNil(t, err)
	assert.Equal(t, errors.RDONLY, err.ErrCode())
}
