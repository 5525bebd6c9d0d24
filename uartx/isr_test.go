package uartx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher(t *testing.T) {
	var d Dispatcher
	var got []Vector
	var missed []Vector
	d.SetFallback(func(v Vector) { missed = append(missed, v) })

	assert.NoError(t, d.Register(VecStart, func(v Vector) { got = append(got, v) }))
	assert.ErrorIs(t, d.Register(VecNone, nil), ErrInvalidVector)
	assert.ErrorIs(t, d.Register(Vector(3), nil), ErrInvalidVector)
	assert.ErrorIs(t, d.Register(Vector(2*vectorSlots), nil), ErrInvalidVector)

	d.Dispatch(VecStart)
	d.Dispatch(VecTxComplete)
	d.Dispatch(Vector(0x21))
	d.Dispatch(Vector(0x40))

	assert.Equal(t, []Vector{VecStart}, got)
	assert.Equal(t, []Vector{VecTxComplete, 0x21, 0x40}, missed)

	assert.NoError(t, d.Register(VecStart, nil))
	d.Dispatch(VecStart)
	assert.Len(t, got, 1)
	assert.Len(t, missed, 4)
}

func TestVectorString(t *testing.T) {
	assert.Equal(t, "rx", VecRX.String())
	assert.Equal(t, "tx-complete", VecTxComplete.String())
	assert.Equal(t, "vector(10)", Vector(10).String())
}
