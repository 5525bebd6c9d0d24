package adxl362

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFIFO(t *testing.T) {
	raw := []byte{
		0x05, 0x00, // x +5
		0xFF, 0x7F, // y -1
		0x00, 0xA0, // z -8192
		0x2C, 0xC1, // temp 0x12C
		0x01, // trailing half word
	}
	out := make([]Sample, 8)
	n := ParseFIFO(raw, out)
	assert.Equal(t, 4, n)
	assert.Equal(t, []Sample{
		{AxisX, 5},
		{AxisY, -1},
		{AxisZ, -8192},
		{AxisTemp, 0x12C},
	}, out[:n])

	assert.Equal(t, 1, ParseFIFO(raw, out[:1]))
	assert.Equal(t, uint16(0x7FFF), Sample{AxisY, -1}.Word())
}

func TestFilterValue(t *testing.T) {
	assert.Equal(t, byte(0x13), FilterValue(Range2G, ODR100Hz, true))
	assert.Equal(t, byte(0x95), FilterValue(Range8G, ODR400Hz, true))
	assert.Equal(t, byte(0x44), FilterValue(Range4G, ODR200Hz, false))
}
