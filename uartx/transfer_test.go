package uartx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferReceiveTerminator(t *testing.T) {
	tr := newTransfer(RX, VecRX)
	buf := make([]byte, 10)
	require.NoError(t, tr.arm(buf, Term('\n')))
	assert.Equal(t, Busy, tr.load())

	var last bool
	for _, b := range []byte{'1', '2', '\n'} {
		require.False(t, last)
		_, last = tr.advance(b)
	}
	require.True(t, last)
	tr.complete()
	assert.Equal(t, Done, tr.load())

	select {
	case <-tr.notify:
	default:
		t.Fatal("completion not signalled")
	}

	n, err := tr.consume()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("12\n"), buf[:n])
	assert.Equal(t, Idle, tr.load())
}

func TestTransferSendRunsToLength(t *testing.T) {
	tr := newTransfer(TX, VecTX)
	require.NoError(t, tr.arm([]byte{0x41, 0x42, 0x43}, NoTerminate))

	var got []byte
	for {
		b, last := tr.advance(0)
		got = append(got, b)
		if last {
			break
		}
	}
	assert.Equal(t, []byte{0x41, 0x42, 0x43}, got)
}

func TestTransferArmChecks(t *testing.T) {
	tx := newTransfer(TX, VecTX)
	assert.ErrorIs(t, tx.arm(nil, NoTerminate), ErrInvalidSize)
	assert.ErrorIs(t, tx.arm(make([]byte, MaxTransfer+1), NoTerminate), ErrInvalidSize)
	assert.ErrorIs(t, tx.arm([]byte{1}, Term(0)), ErrInvalidTerminator)

	rx := newTransfer(RX, VecRX)
	assert.ErrorIs(t, rx.arm([]byte{1}, Terminator(256)), ErrInvalidTerminator)
	assert.ErrorIs(t, rx.arm([]byte{1}, Terminator(-2)), ErrInvalidTerminator)

	require.NoError(t, rx.arm(make([]byte, 4), NoTerminate))
	assert.ErrorIs(t, rx.arm(make([]byte, 4), NoTerminate), ErrBusy)
}

func TestTransferAbortAndConsume(t *testing.T) {
	tr := newTransfer(RX, VecRX)
	_, err := tr.consume()
	assert.ErrorIs(t, err, ErrNotDone)

	require.NoError(t, tr.arm(make([]byte, 4), NoTerminate))
	tr.advance('x')
	tr.advance('y')
	_, err = tr.consume()
	assert.ErrorIs(t, err, ErrNotDone)

	assert.Equal(t, 2, tr.abort())
	assert.Equal(t, Idle, tr.load())
	assert.Zero(t, tr.abort())

	// Not busy any more: the ISR side is a no-op.
	_, last := tr.advance('z')
	assert.False(t, last)
}
