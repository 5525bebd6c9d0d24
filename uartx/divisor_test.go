package uartx

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDivisor(t *testing.T) {
	cases := []struct {
		clock, baud uint32
		ibrd        uint16
		fbrd        uint8
	}{
		{125_000_000, 115200, 67, 52},
		{125_000_000, 9600, 813, 51},
		{125_000_000, 921600, 8, 31},
		{150_000_000, 115200, 81, 24},
	}
	for _, c := range cases {
		d, err := NewDivisor(c.clock, c.baud)
		require.NoError(t, err, "clock %d baud %d", c.clock, c.baud)
		assert.Equal(t, c.ibrd, d.Integer, "ibrd for %d", c.baud)
		assert.Equal(t, c.fbrd, d.Fraction, "fbrd for %d", c.baud)
		assert.Less(t, d.RateError(), MaxBaudError)
	}
}

func TestNewDivisorRejects(t *testing.T) {
	for _, c := range []struct{ clock, baud uint32 }{
		{0, 115200},
		{125_000_000, 0},
		{1_000_000, 921600}, // divisor below 1
		{125_000_000, 100},  // divisor above 65535
	} {
		_, err := NewDivisor(c.clock, c.baud)
		require.Error(t, err, "clock %d baud %d", c.clock, c.baud)
		assert.True(t, errors.Is(err, ErrBadConfig))
		var ce *ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, c.baud, ce.BaudRate)
	}
}

func TestDivisorByteTime(t *testing.T) {
	d, err := NewDivisor(DefaultClockHz, DefaultBaudRate)
	require.NoError(t, err)
	assert.InDelta(t, 115207, d.Rate(), 1)
	assert.InDelta(t, float64(86800*time.Nanosecond), float64(d.ByteTime()), float64(200*time.Nanosecond))
}
