package sword

import (
	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/blockio"
	"github.com/sword-emu/swordvfs/errors"
	"github.com/sword-emu/swordvfs/fat"
)

// rwBlock adapts mount's fields to blockio.RWBlock's free-function shape.
func rwBlock(m *mount, fib *swordvfs.FIB, pos int, mode fat.Mode, buf []byte) (int, errors.DriverError) {
	return blockio.RWBlock(m.fat, m.driver, m.letter, fib, pos, mode, buf)
}
