package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/storage"
)

func writeSidecarFixture(t *testing.T, attr swordvfs.Attribute, body string) string {
	t.Helper()
	header := []byte("_SOS " + padHex2(uint8(attr)) + " 0000 0000\n")
	path := filepath.Join(t.TempDir(), "file.dat")
	require.Nil(t, os.WriteFile(path, append(header, []byte(body)...), 0o644))
	return path
}

func padHex2(v uint8) string {
	const hexDigits = "0123456789abcdef"
	return string([]byte{hexDigits[v>>4], hexDigits[v&0xF]})
}

func TestSidecarDriverAcceptsExtensionOnly(t *testing.T) {
	d := storage.NewSidecarDriver()
	assert.True(t, d.Accepts(swordvfs.DriveA, "file.dat"))
	assert.True(t, d.Accepts(swordvfs.DriveCommonTape, "file.dat"))
	assert.False(t, d.Accepts(swordvfs.DriveA, "file.2d"))
}

func TestSidecarDriverRoundTripsASCIITranslation(t *testing.T) {
	path := writeSidecarFixture(t, swordvfs.AttrASC, "line one\nline two\n")
	d := storage.NewSidecarDriver()
	require.Nil(t, d.Mount(swordvfs.DriveA, path, 0))

	fib, err := d.FIBRead(swordvfs.DriveA, 0)
	require.Nil(t, err)
	assert.Equal(t, swordvfs.AttrASC, fib.Header.Attribute)

	buf := make([]byte, swordvfs.RecordSize)
	n, rerr := d.RecordRead(swordvfs.DriveA, buf, 0, 1)
	require.Nil(t, rerr)
	assert.Equal(t, len("line one\rline two\r"), n)
	assert.Contains(t, string(buf[:len("line one\rline two\r")]), "\r")
	assert.NotContains(t, string(buf[:len("line one\rline two\r")]), "\n")

	require.Nil(t, d.Unmount(swordvfs.DriveA))

	raw, rerr2 := os.ReadFile(path)
	require.Nil(t, rerr2)
	assert.Contains(t, string(raw), "\n")
}

func TestSidecarDriverBinaryBodyUntranslated(t *testing.T) {
	path := writeSidecarFixture(t, swordvfs.AttrBIN, "\x00\x01\x02\x03")
	d := storage.NewSidecarDriver()
	require.Nil(t, d.Mount(swordvfs.DriveA, path, 0))
	defer d.Unmount(swordvfs.DriveA)

	buf := make([]byte, swordvfs.RecordSize)
	n, err := d.RecordRead(swordvfs.DriveA, buf, 0, 1)
	require.Nil(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0x00, 0x01, 0x02, 0x03}, buf[:4])
}

func TestSidecarDriverRejectsWriteWhenMountedReadOnly(t *testing.T) {
	path := writeSidecarFixture(t, swordvfs.AttrBIN, "data")
	d := storage.NewSidecarDriver()
	require.Nil(t, d.Mount(swordvfs.DriveA, path, swordvfs.MountReadOnly))
	defer d.Unmount(swordvfs.DriveA)

	buf := make([]byte, swordvfs.RecordSize)
	_, err := d.RecordWrite(swordvfs.DriveA, buf, 0, 1)
	require.NotNil(t, err)
}
