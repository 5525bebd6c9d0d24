package uartxsim

import (
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-uartxfer/uartx"
)

func configured(t *testing.T, cfg Config) *Sim {
	t.Helper()
	if cfg.ByteTime == 0 {
		cfg.ByteTime = 100 * time.Microsecond
	}
	s := New(cfg)
	t.Cleanup(func() { s.Close() })
	d, err := uartx.NewDivisor(uartx.DefaultClockHz, uartx.DefaultBaudRate)
	require.NoError(t, err)
	s.Configure(d)
	return s
}

func TestVectorPriorityAndAcknowledge(t *testing.T) {
	s := configured(t, Config{})

	assert.Equal(t, uartx.VecNone, s.Vector(), "nothing enabled")
	s.Raise(uartx.VecTxComplete)
	s.EnableInterrupt(uartx.VecTX)

	assert.Equal(t, uartx.VecTX, s.Vector())
	assert.Equal(t, uartx.VecTX, s.Vector(), "TX stays pending until written")
	s.DisableInterrupt(uartx.VecTX)

	assert.Equal(t, uartx.VecTxComplete, s.Vector())
	assert.Equal(t, uartx.VecNone, s.Vector(), "event sources clear on read")
}

func TestTransmitTiming(t *testing.T) {
	s := configured(t, Config{ByteTime: 2 * time.Millisecond})
	assert.True(t, s.TxIdle())

	s.WriteData('a')
	assert.False(t, s.TxIdle())
	require.Eventually(t, s.TxIdle, time.Second, 100*time.Microsecond)
	assert.Equal(t, []byte("a"), s.Sent())
}

func TestFlowControlHoldsBytes(t *testing.T) {
	s := configured(t, Config{FlowControl: true})
	s.EnableInterrupt(uartx.VecRX)
	s.Inject(1, 2, 3)

	time.Sleep(5 * time.Millisecond)
	for _, want := range []byte{1, 2, 3} {
		require.Eventually(t, func() bool { return s.Vector() == uartx.VecRX }, time.Second, 100*time.Microsecond)
		b, st := s.ReadData()
		assert.Equal(t, want, b)
		assert.Zero(t, st)
	}
}

func TestOverrunWithoutFlowControl(t *testing.T) {
	s := configured(t, Config{})
	s.EnableInterrupt(uartx.VecRX)
	s.Inject(1, 2)

	time.Sleep(5 * time.Millisecond)
	b, st := s.ReadData()
	assert.Equal(t, byte(2), b)
	assert.Equal(t, uartx.StatusOverrun, st&uartx.StatusOverrun)
}

func TestInterruptDeliveryAndMask(t *testing.T) {
	s := configured(t, Config{})
	var calls atomic.Int32
	s.Attach(func() {
		calls.Add(1)
		s.DisableInterrupt(uartx.VecStart)
	})

	st := s.DisableIRQ()
	assert.True(t, s.Masked())
	s.Raise(uartx.VecStart)
	time.Sleep(2 * time.Millisecond)
	assert.Zero(t, calls.Load())

	s.RestoreIRQ(st)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 100*time.Microsecond)
	assert.False(t, s.Masked())
}

func TestLoopbackAndRemote(t *testing.T) {
	s := configured(t, Config{Loopback: true})
	s.EnableInterrupt(uartx.VecRX)

	s.WriteData('z')
	require.Eventually(t, func() bool { return s.Vector() == uartx.VecRX }, time.Second, 100*time.Microsecond)
	b, _ := s.ReadData()
	assert.Equal(t, byte('z'), b)

	buf := make([]byte, 4)
	n, err := s.Remote().Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "z", string(buf[:n]))

	s.Close()
	_, err = s.Remote().Read(buf)
	assert.Equal(t, io.EOF, err)
}
