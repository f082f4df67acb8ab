package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sword-emu/swordvfs/errors"
)

func TestSentinelWithMessage(t *testing.T) {
	newErr := errors.ErrNoEnt.WithMessage("HELLO.TXT")
	assert.Equal(t, "file not found: HELLO.TXT", newErr.Error())
	assert.ErrorIs(t, newErr, errors.ErrNoEnt)
	assert.Equal(t, errors.NOENT, newErr.ErrCode())
}

func TestSentinelWrapError(t *testing.T) {
	originalErr := stderrors.New("short read")
	newErr := errors.ErrIO.WrapError(originalErr)

	assert.Equal(t, "device I/O error: short read", newErr.Error())
	assert.ErrorIs(t, newErr, originalErr)
	assert.Equal(t, errors.IO, newErr.ErrCode())
}

func TestCodesMatchSpec(t *testing.T) {
	cases := map[errors.Code]errors.SwordError{
		errors.IO:       errors.ErrIO,
		errors.OFFLINE:  errors.ErrOffline,
		errors.BADF:     errors.ErrBadF,
		errors.RDONLY:   errors.ErrRDOnly,
		errors.BADR:     errors.ErrBadR,
		errors.FMODE:    errors.ErrFMode,
		errors.BADFAT:   errors.ErrBadFAT,
		errors.NOENT:    errors.ErrNoEnt,
		errors.NOSPC:    errors.ErrNoSpc,
		errors.EXIST:    errors.ErrExist,
		errors.RESERVED: errors.ErrReserved,
		errors.NOTOPEN:  errors.ErrNotOpen,
		errors.SYNTAX:   errors.ErrSyntax,
		errors.INVAL:    errors.ErrInval,
	}
	for code, err := range cases {
		assert.Equal(t, code, err.ErrCode())
	}
}
