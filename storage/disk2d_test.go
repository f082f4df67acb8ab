package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/storage"
)

func newFixtureImage(t *testing.T, totalRecords int) []byte {
	t.Helper()
	img := make([]byte, totalRecords*swordvfs.RecordSize)
	// The two FAT copies (the default FAT record and its mirror) start
	// identical (all-free FAT), which is what a freshly formatted image
	// looks like.
	return img
}

func TestDisk2DAcceptsDiskLettersAndExtension(t *testing.T) {
	img := newFixtureImage(t, 64)
	stream := bytesextra.NewReadWriteSeeker(img)

	reg := storage.NewRegistry()
	driver := storage.NewDisk2DDriver()
	require.Nil(t, reg.Register(driver))

	// The registry dispatches by letter kind and extension, so check the
	// driver's Accepts answers for both.
	assert.True(t, driver.Accepts(swordvfs.DriveA, "image.2d"))
	assert.False(t, driver.Accepts(swordvfs.DriveCommonTape, "image.2d"))
	assert.False(t, driver.Accepts(swordvfs.DriveA, "image.mzt"))

	_ = stream
}

func TestRegistryRejectsDoubleRegistrationOfSameDriver(t *testing.T) {
	reg := storage.NewRegistry()
	driver := storage.NewDisk2DDriver()
	require.Nil(t, reg.Register(driver))

	err := reg.Register(driver)
	require.NotNil(t, err)
	assert.Equal(t, "file already exists: storage driver already registered: disk2d", err.Error())
}

func TestRegistryUnmountUnknownLetterFails(t *testing.T) {
	reg := storage.NewRegistry()
	err := reg.Unmount(swordvfs.DriveA)
	require.NotNil(t, err)
}

func TestRegistryUnregisterUnknownDriverFails(t *testing.T) {
	reg := storage.NewRegistry()
	err := reg.Unregister("nope")
	require.NotNil(t, err)
}
