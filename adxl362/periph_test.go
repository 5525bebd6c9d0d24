//go:build !tinygo

package adxl362_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/jangala-dev/tinygo-uartxfer/adxl362"
)

func TestPeriphPort(t *testing.T) {
	p := &spitest.Playback{
		Playback: conntest.Playback{
			Ops: []conntest.IO{
				{
					W: []byte{adxl362.CmdReadReg, 0x00, 0x00, 0x00, 0x00},
					R: []byte{0x00, 0x00, 0xAD, 0x1D, 0xF2},
				},
				{W: []byte{adxl362.CmdWriteReg, 0x2D, 0x02}},
				{
					W: []byte{adxl362.CmdReadReg, 0x0E, 0, 0, 0, 0, 0, 0},
					R: []byte{0, 0, 0x10, 0x00, 0xF0, 0xFF, 0x00, 0x02},
				},
				{W: []byte{adxl362.CmdWriteReg, 0x2D, 0x00}},
			},
			DontPanic: true,
		},
	}

	port, err := adxl362.Connect(p, adxl362.DefaultSPIFrequency)
	require.NoError(t, err)

	require.NoError(t, port.CheckID())
	require.NoError(t, port.SetPowerControl(adxl362.PowerMeasure))
	x, y, z, err := port.ReadAcceleration()
	require.NoError(t, err)
	assert.Equal(t, [3]int16{16, -16, 512}, [3]int16{x, y, z})

	require.NoError(t, port.Close())
	assert.Empty(t, p.Ops)
}

func TestPeriphPortBusError(t *testing.T) {
	p := &spitest.Playback{
		Playback: conntest.Playback{
			Ops:       []conntest.IO{{W: []byte{adxl362.CmdReadReg, 0x00, 0x00}, R: []byte{0, 0, 0}}},
			DontPanic: true,
		},
	}
	port, err := adxl362.Connect(p, adxl362.DefaultSPIFrequency)
	require.NoError(t, err)

	// The playback expects a different frame, so the transaction fails.
	_, err = port.ReadRegister(adxl362.RegPartID)
	assert.Error(t, err)
}
