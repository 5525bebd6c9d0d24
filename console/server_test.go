package console_test

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-uartxfer/adxl362"
	"github.com/jangala-dev/tinygo-uartxfer/adxl362/adxl362test"
	"github.com/jangala-dev/tinygo-uartxfer/console"
	"github.com/jangala-dev/tinygo-uartxfer/uartx"
	"github.com/jangala-dev/tinygo-uartxfer/uartx/uartxsim"
)

func TestHandle(t *testing.T) {
	acc := adxl362test.New()
	dev := adxl362.New(acc, nil)
	s := console.NewServer(nil, dev, nil)

	do := func(line string) string { return string(s.Handle(nil, line)) }

	assert.Equal(t, "OK AD 1D F2\n", do("ID\n"))
	assert.True(t, strings.HasPrefix(do("A\n"), "ERR "), "no data before measurement")
	assert.Equal(t, "OK\n", do("W 2C 95\n"))
	assert.Equal(t, "OK 95\n", do("R 2C\n"))
	assert.True(t, strings.HasPrefix(do("W 00 01\n"), "ERR "))
	assert.True(t, strings.HasPrefix(do("BOGUS\n"), "ERR "))

	assert.Equal(t, "OK\n", do("W 2D 02\n"))
	acc.SetAcceleration(-1, 0, 1000)
	acc.SetTemperature(230)
	assert.Equal(t, "OK -1 0 1000\n", do("A\n"))
	assert.Equal(t, "OK 230\n", do("T\n"))

	acc.PushFIFO(
		adxl362.Sample{Axis: adxl362.AxisX, Value: 1},
		adxl362.Sample{Axis: adxl362.AxisY, Value: -1},
	)
	assert.Equal(t, "OK 0001 7FFF\n", do("F 10\n"))
	assert.Equal(t, "OK\n", do("F 10\n"))

	assert.Equal(t, "OK\n", do("ST 1\n"))
	assert.Equal(t, byte(1), acc.Register(adxl362.RegSelfTest))
	assert.Equal(t, "OK\n", do("RST\n"))
	assert.False(t, dev.Measuring())
}

type link struct {
	sim    *uartxsim.Sim
	uart   *uartx.UART
	acc    *adxl362test.Sim
	client *console.Client
}

func newLink(t *testing.T, opts ...console.ServerOption) *link {
	t.Helper()
	sim := uartxsim.New(uartxsim.Config{ByteTime: 50 * time.Microsecond, FlowControl: true})
	u := uartx.New(sim)
	require.NoError(t, u.Init())

	acc := adxl362test.New()
	dev := adxl362.New(acc, nil)
	require.NoError(t, dev.Configure(adxl362.Config{FIFOMode: adxl362.FIFOStream}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	srv := console.NewServer(u, dev, nil, opts...)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.True(t, errors.Is(err, context.Canceled), "serve: %v", err)
		case <-time.After(time.Second):
			t.Error("server did not stop")
		}
		u.Close()
		sim.Close()
	})
	return &link{sim: sim, uart: u, acc: acc, client: console.NewClient(sim.Remote())}
}

func TestClientServer(t *testing.T) {
	l := newLink(t)
	c := l.client

	id, err := c.ID()
	require.NoError(t, err)
	assert.Equal(t, [3]byte{adxl362.DevIDAD, adxl362.DevIDMST, adxl362.PartID}, id)

	l.acc.SetAcceleration(12, -34, 56)
	x, y, z, err := c.Acceleration()
	require.NoError(t, err)
	assert.Equal(t, [3]int16{12, -34, 56}, [3]int16{x, y, z})

	require.NoError(t, c.WriteRegister(adxl362.RegFilterCtl, 0x94))
	v, err := c.ReadRegister(adxl362.RegFilterCtl)
	require.NoError(t, err)
	assert.Equal(t, byte(0x94), v)

	err = c.WriteRegister(adxl362.RegPartID, 0)
	var ce *console.CommandError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "W 02 00", ce.Request)

	want := []adxl362.Sample{
		{Axis: adxl362.AxisX, Value: 100},
		{Axis: adxl362.AxisY, Value: -100},
		{Axis: adxl362.AxisZ, Value: 4000},
	}
	l.acc.PushFIFO(want...)
	got, err := c.FIFO(8)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	st, err := c.Status()
	require.NoError(t, err)
	assert.NotZero(t, st&adxl362.StatusAwake)

	l.acc.SetTemperature(-40)
	temp, err := c.Temperature()
	require.NoError(t, err)
	assert.EqualValues(t, -40, temp)

	require.NoError(t, c.SelfTest(true))
	require.NoError(t, c.Reset())
	_, _, _, err = c.Acceleration()
	assert.True(t, errors.As(err, &ce))

	assert.Zero(t, l.uart.Stats().BusyRejects)
}

func TestServerDiscardsLongLines(t *testing.T) {
	l := newLink(t)
	remote := l.sim.Remote()
	r := bufio.NewReader(remote)

	_, err := remote.Write([]byte("ID " + strings.Repeat("0", console.MaxLine) + "\n"))
	require.NoError(t, err)
	reply, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ERR line too long\n", reply)

	_, err = remote.Write([]byte("id\n"))
	require.NoError(t, err)
	reply, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "OK AD 1D F2\n", reply)
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	type result struct {
		s   string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := r.ReadString('\n')
		ch <- result{s, err}
	}()
	select {
	case res := <-ch:
		require.NoError(t, res.err)
		return res.s
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
		return ""
	}
}

func TestServerKeepsPartialLineAcrossTimeouts(t *testing.T) {
	l := newLink(t, console.WithIdleTimeout(20*time.Millisecond))
	remote := l.sim.Remote()
	r := bufio.NewReader(remote)

	_, err := remote.Write([]byte("I"))
	require.NoError(t, err)
	time.Sleep(150 * time.Millisecond)
	assert.NotZero(t, l.uart.Stats().Timeouts, "idle receives must expire")

	_, err = remote.Write([]byte("D\n"))
	require.NoError(t, err)
	assert.Equal(t, "OK AD 1D F2\n", readLine(t, r))
}
