package timssdr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuredError(t *testing.T) {
	err := newErr("StartRX", ErrCodeInvalidParam, "nil callback")

	assert.Equal(t, "StartRX", err.Op)
	assert.Equal(t, ErrCodeInvalidParam, err.Code)
	assert.Equal(t, "timssdr: StartRX: nil callback", err.Error())
}

func TestDeviceError(t *testing.T) {
	err := newDeviceErr("StopTX", 3, ErrCodeBusy, "transfers already cancelling")

	assert.Equal(t, uint32(3), err.DevID)
	assert.Equal(t, "timssdr: StopTX: transfers already cancelling", err.Error())
}

func TestErrorIs(t *testing.T) {
	a := &Error{Code: ErrCodeNotFound}
	b := &Error{Code: ErrCodeNotFound, Msg: "different message, same code"}

	assert.True(t, errors.Is(a, b))
	assert.True(t, errors.Is(a, ErrDeviceNotFound))
	assert.False(t, errors.Is(a, ErrInvalidParameters))
}

func TestIsCode(t *testing.T) {
	err := newErr("Test", ErrCodeBusy, "device busy")

	assert.True(t, IsCode(err, ErrCodeBusy))
	assert.False(t, IsCode(err, ErrCodeNotFound))
	assert.False(t, IsCode(nil, ErrCodeBusy))
}

func TestErrorName(t *testing.T) {
	assert.Equal(t, "device busy", ErrorName(ErrCodeBusy))
	assert.Equal(t, "device not found", ErrorName(ErrCodeNotFound))
}

func TestCloseNilDevice(t *testing.T) {
	err := Close(nil)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}
