package console_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-uartxfer/adxl362"
	"github.com/jangala-dev/tinygo-uartxfer/console"
)

type chunk struct {
	data string
	err  error
}

// scriptedPort replays reads in order, like a serial port with a read timeout.
type scriptedPort struct {
	reads   []chunk
	written bytes.Buffer
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	if len(p.reads) == 0 {
		return 0, io.EOF
	}
	c := p.reads[0]
	p.reads = p.reads[1:]
	return copy(b, c.data), c.err
}

func (p *scriptedPort) Write(b []byte) (int, error) { return p.written.Write(b) }

func TestClientResyncsAfterLateReply(t *testing.T) {
	port := &scriptedPort{reads: []chunk{
		{data: "OK A"},
		{err: io.EOF}, // read timeout mid reply
		{data: "D 1D F2\nOK 95\n"},
	}}
	c := console.NewClient(port)

	_, err := c.ID()
	require.Error(t, err)
	assert.ErrorIs(t, err, io.EOF)

	v, err := c.ReadRegister(adxl362.RegFilterCtl)
	require.NoError(t, err)
	assert.Equal(t, byte(0x95), v)
	assert.Equal(t, "ID\nR 2C\n", port.written.String())
}

func TestClientReportsMalformedReply(t *testing.T) {
	port := &scriptedPort{reads: []chunk{{data: "garbage\n"}}}
	c := console.NewClient(port)

	_, err := c.ReadRegister(adxl362.RegStatus)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed reply")
}
