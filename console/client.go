package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/jangala-dev/tinygo-uartxfer/adxl362"
)

// Client issues requests over a byte stream, one at a time.
type Client struct {
	mu sync.Mutex
	rw io.ReadWriter
	r  *bufio.Reader
	w  *bufio.Writer

	// stale is set after a failed read: the rest of that reply may still
	// arrive ahead of the next one.
	stale bool
}

// NewClient wraps rw, typically a serial port.
func NewClient(rw io.ReadWriter) *Client {
	return &Client{rw: rw, r: bufio.NewReaderSize(rw, MaxLine), w: bufio.NewWriterSize(rw, MaxLine)}
}

// Close flushes pending output and closes the stream if it is an io.Closer.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.w.Flush()
	if cl, ok := c.rw.(io.Closer); ok {
		err = multierr.Append(err, cl.Close())
	}
	return err
}

// Do sends req and returns the fields of the OK reply.
func (c *Client) Do(req Request) ([]string, error) {
	line := req.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.WriteString(line + "\n"); err != nil {
		return nil, err
	}
	if err := c.w.Flush(); err != nil {
		return nil, err
	}
	for {
		reply, err := c.r.ReadString(Terminator)
		if err != nil {
			c.r.Reset(c.rw)
			c.stale = true
			return nil, fmt.Errorf("console: %s: %w", line, err)
		}
		if c.stale && !isReply(reply) {
			continue // tail of an abandoned reply
		}
		c.stale = false
		return ParseReply(line, reply)
	}
}

func isReply(line string) bool {
	return strings.HasPrefix(line, "OK") || strings.HasPrefix(line, "ERR")
}

// Exec parses a request line and runs it.
func (c *Client) Exec(line string) ([]string, error) {
	req, err := ParseRequest(line)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *Client) do(op Op, args ...byte) ([]string, error) {
	return c.Do(Request{Op: op, Args: args})
}

func expect(f []string, n int, req string) error {
	if len(f) != n {
		return fmt.Errorf("console: %s: want %d fields, got %d", req, n, len(f))
	}
	return nil
}

func parseHex8(req, s string) (byte, error) {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("console: %s: %w", req, err)
	}
	return byte(v), nil
}

// ID returns DEVID_AD, DEVID_MST and PARTID.
func (c *Client) ID() ([3]byte, error) {
	var id [3]byte
	f, err := c.do(OpID)
	if err == nil {
		err = expect(f, 3, "ID")
	}
	for i := 0; err == nil && i < 3; i++ {
		id[i], err = parseHex8("ID", f[i])
	}
	return id, err
}

// ReadRegister reads one device register.
func (c *Client) ReadRegister(reg adxl362.Register) (byte, error) {
	f, err := c.do(OpRead, byte(reg))
	if err != nil {
		return 0, err
	}
	if err := expect(f, 1, "R"); err != nil {
		return 0, err
	}
	return parseHex8("R", f[0])
}

// WriteRegister writes one device register.
func (c *Client) WriteRegister(reg adxl362.Register, v byte) error {
	_, err := c.do(OpWrite, byte(reg), v)
	return err
}

// Acceleration returns one 12-bit sample per axis.
func (c *Client) Acceleration() (x, y, z int16, err error) {
	f, err := c.do(OpAccel)
	if err != nil {
		return 0, 0, 0, err
	}
	if err := expect(f, 3, "A"); err != nil {
		return 0, 0, 0, err
	}
	var v [3]int16
	for i := range v {
		n, err := strconv.ParseInt(f[i], 10, 16)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("console: A: %w", err)
		}
		v[i] = int16(n)
	}
	return v[0], v[1], v[2], nil
}

// Temperature returns the raw temperature reading.
func (c *Client) Temperature() (int16, error) {
	f, err := c.do(OpTemp)
	if err != nil {
		return 0, err
	}
	if err := expect(f, 1, "T"); err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(f[0], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("console: T: %w", err)
	}
	return int16(n), nil
}

// Status reads the STATUS register.
func (c *Client) Status() (adxl362.Status, error) {
	f, err := c.do(OpStatus)
	if err != nil {
		return 0, err
	}
	if err := expect(f, 1, "S"); err != nil {
		return 0, err
	}
	v, err := parseHex8("S", f[0])
	return adxl362.Status(v), err
}

// FIFO drains up to n samples, at most MaxFIFOWords per call.
func (c *Client) FIFO(n int) ([]adxl362.Sample, error) {
	n = max(0, min(n, MaxFIFOWords))
	f, err := c.do(OpFIFO, byte(n))
	if err != nil {
		return nil, err
	}
	raw := make([]byte, 0, 2*len(f))
	for _, w := range f {
		v, err := strconv.ParseUint(w, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("console: F: %w", err)
		}
		raw = append(raw, byte(v), byte(v>>8))
	}
	out := make([]adxl362.Sample, len(f))
	return out[:adxl362.ParseFIFO(raw, out)], nil
}

// Reset soft-resets the device. It must be reconfigured before measuring.
func (c *Client) Reset() error {
	_, err := c.do(OpReset)
	return err
}

// SelfTest applies or removes the self-test force.
func (c *Client) SelfTest(on bool) error {
	var v byte
	if on {
		v = 1
	}
	_, err := c.do(OpSelfTest, v)
	return err
}
