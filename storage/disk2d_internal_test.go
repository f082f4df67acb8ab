package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	swordvfs "github.com/sword-emu/swordvfs"
)

func TestMountStreamAcceptsConsistentFATMirrors(t *testing.T) {
	img := make([]byte, 64*swordvfs.RecordSize)
	stream := bytesextra.NewReadWriteSeeker(img)

	d := NewDisk2DDriver()
	err := d.mountStream(swordvfs.DriveA, "test.2d", stream, nil, 64, 0)
	require.Nil(t, err)

	info, err := d.GetImageInfo(swordvfs.DriveA)
	require.Nil(t, err)
	assert.EqualValues(t, 64, info.Superblock.TotalRecords)
}

func TestMountStreamRejectsDivergentFATMirrors(t *testing.T) {
	img := make([]byte, 64*swordvfs.RecordSize)
	// Corrupt the second FAT mirror copy so it disagrees with the first.
	secondCopyOffset := int(swordvfs.DefaultFATRecord+1) * swordvfs.RecordSize
	img[secondCopyOffset] = 0xAB
	stream := bytesextra.NewReadWriteSeeker(img)

	d := NewDisk2DDriver()
	err := d.mountStream(swordvfs.DriveA, "test.2d", stream, nil, 64, 0)
	require.NotNil(t, err)
	assert.Equal(t, 0x7, int(err.ErrCode()))
}

func TestRecordWriteMirrorsFATToAllCopies(t *testing.T) {
	img := make([]byte, 64*swordvfs.RecordSize)
	stream := bytesextra.NewReadWriteSeeker(img)

	d := NewDisk2DDriver()
	require.Nil(t, d.mountStream(swordvfs.DriveA, "test.2d", stream, nil, 64, swordvfs.MountFlags(0)))

	payload := make([]byte, swordvfs.RecordSize)
	payload[0] = 0x42
	_, err := d.RecordWrite(swordvfs.DriveA, payload, swordvfs.DefaultFATRecord, 1)
	require.Nil(t, err)

	for copyIdx := 0; copyIdx < fatMirrorCount; copyIdx++ {
		buf := make([]byte, swordvfs.RecordSize)
		n, rerr := d.RecordRead(swordvfs.DriveA, buf, swordvfs.DefaultFATRecord+swordvfs.RecordNumber(copyIdx), 1)
		require.Nil(t, rerr)
		require.Equal(t, 1, n)
		assert.Equal(t, byte(0x42), buf[0])
	}
}
