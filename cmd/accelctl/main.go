// accelctl is an interactive shell for an accelerometer node on a serial port.
//
//	accelctl -port /dev/ttyUSB0 [command args...]
//
// With a command on the command line it runs that command and exits.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/fatih/color"
	"github.com/golang/glog"
	"github.com/tarm/serial"

	"github.com/jangala-dev/tinygo-uartxfer/adxl362"
	"github.com/jangala-dev/tinygo-uartxfer/console"
)

var (
	portName = "/dev/ttyUSB0"
	baud     = 115200
	timeout  = 2 * time.Second
)

func init() {
	flag.StringVar(&portName, "port", portName, "Serial port of the node.")
	flag.IntVar(&baud, "baud", baud, "Line rate.")
	flag.DurationVar(&timeout, "timeout", timeout, "Read timeout for one reply.")
}

var (
	okf  = color.New(color.FgGreen).SprintfFunc()
	errf = color.New(color.FgRed).SprintfFunc()
)

const clientKey = "$client"

func clientFrom(c *ishell.Context) *console.Client {
	return c.Get(clientKey).(*console.Client)
}

func report(c *ishell.Context, err error, format string, args ...interface{}) {
	if err != nil {
		glog.V(1).Infof("%s: %v", c.Cmd.Name, err)
		c.Println(errf("error: %v", err))
		return
	}
	c.Println(okf(format, args...))
}

func parseReg(c *ishell.Context, n int) ([]byte, bool) {
	if len(c.Args) != n {
		c.Println(errf("usage: %s", c.Cmd.Help))
		return nil, false
	}
	out := make([]byte, n)
	for i, a := range c.Args {
		v, err := strconv.ParseUint(strings.TrimPrefix(a, "0x"), 16, 8)
		if err != nil {
			c.Println(errf("bad hex byte %q", a))
			return nil, false
		}
		out[i] = byte(v)
	}
	return out, true
}

var commands = []*ishell.Cmd{
	{
		Name: "id",
		Help: "id: read the identification registers",
		Func: func(c *ishell.Context) {
			id, err := clientFrom(c).ID()
			report(c, err, "devid %02X mst %02X part %02X", id[0], id[1], id[2])
		},
	},
	{
		Name: "read",
		Help: "read <reg>: read one register (hex)",
		Func: func(c *ishell.Context) {
			a, ok := parseReg(c, 1)
			if !ok {
				return
			}
			v, err := clientFrom(c).ReadRegister(adxl362.Register(a[0]))
			report(c, err, "%02X = %02X", a[0], v)
		},
	},
	{
		Name: "write",
		Help: "write <reg> <val>: write one register (hex)",
		Func: func(c *ishell.Context) {
			a, ok := parseReg(c, 2)
			if !ok {
				return
			}
			report(c, clientFrom(c).WriteRegister(adxl362.Register(a[0]), a[1]), "ok")
		},
	},
	{
		Name: "accel",
		Help: "accel [count [interval]]: read acceleration",
		Func: func(c *ishell.Context) {
			count, interval := 1, 100*time.Millisecond
			if len(c.Args) > 0 {
				if n, err := strconv.Atoi(c.Args[0]); err == nil && n > 0 {
					count = n
				}
			}
			if len(c.Args) > 1 {
				if d, err := time.ParseDuration(c.Args[1]); err == nil {
					interval = d
				}
			}
			for i := 0; i < count; i++ {
				if i > 0 {
					time.Sleep(interval)
				}
				x, y, z, err := clientFrom(c).Acceleration()
				report(c, err, "x %6d  y %6d  z %6d", x, y, z)
				if err != nil {
					return
				}
			}
		},
	},
	{
		Name: "temp",
		Help: "temp: read the raw temperature",
		Func: func(c *ishell.Context) {
			t, err := clientFrom(c).Temperature()
			report(c, err, "temp %d", t)
		},
	},
	{
		Name: "status",
		Help: "status: read STATUS",
		Func: func(c *ishell.Context) {
			st, err := clientFrom(c).Status()
			report(c, err, "status %02X %s", byte(st), statusString(st))
		},
	},
	{
		Name: "fifo",
		Help: "fifo [n]: drain up to n FIFO samples",
		Func: func(c *ishell.Context) {
			n := console.MaxFIFOWords
			if len(c.Args) > 0 {
				if v, err := strconv.Atoi(c.Args[0]); err == nil {
					n = v
				}
			}
			samples, err := clientFrom(c).FIFO(n)
			if err != nil {
				report(c, err, "")
				return
			}
			for _, s := range samples {
				c.Println(okf("%-4s %6d", s.Axis, s.Value))
			}
			c.Println(okf("%d samples", len(samples)))
		},
	},
	{
		Name: "reset",
		Help: "reset: soft reset the accelerometer",
		Func: func(c *ishell.Context) {
			report(c, clientFrom(c).Reset(), "reset; reconfigure before measuring")
		},
	},
	{
		Name: "selftest",
		Help: "selftest on|off: apply or remove the self-test force",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 || (c.Args[0] != "on" && c.Args[0] != "off") {
				c.Println(errf("usage: %s", c.Cmd.Help))
				return
			}
			report(c, clientFrom(c).SelfTest(c.Args[0] == "on"), "self-test %s", c.Args[0])
		},
	},
	{
		Name: "raw",
		Help: "raw <request...>: send a protocol line as is",
		Func: func(c *ishell.Context) {
			f, err := clientFrom(c).Exec(strings.Join(c.Args, " "))
			report(c, err, "OK %s", strings.Join(f, " "))
		},
	},
}

func statusString(st adxl362.Status) string {
	names := []struct {
		bit  adxl362.Status
		name string
	}{
		{adxl362.StatusDataReady, "data-ready"},
		{adxl362.StatusFIFOReady, "fifo-ready"},
		{adxl362.StatusFIFOWatermark, "fifo-watermark"},
		{adxl362.StatusFIFOOverrun, "fifo-overrun"},
		{adxl362.StatusAct, "act"},
		{adxl362.StatusInact, "inact"},
		{adxl362.StatusAwake, "awake"},
		{adxl362.StatusErrUserRegs, "err-user-regs"},
	}
	var out []string
	for _, n := range names {
		if st&n.bit != 0 {
			out = append(out, n.name)
		}
	}
	return strings.Join(out, " ")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	port, err := serial.OpenPort(&serial.Config{Name: portName, Baud: baud, ReadTimeout: timeout})
	if err != nil {
		fmt.Fprintln(os.Stderr, errf("open %s: %v", portName, err))
		os.Exit(1)
	}
	glog.Infof("opened %s at %d baud", portName, baud)

	client := console.NewClient(port)
	defer func() {
		if err := client.Close(); err != nil {
			glog.Warningf("close: %v", err)
		}
	}()

	sh := ishell.New()
	sh.Set(clientKey, client)
	sh.SetPrompt(portName + " > ")
	for _, cmd := range commands {
		sh.AddCmd(cmd)
	}

	if args := flag.Args(); len(args) > 0 {
		if err := sh.Process(args...); err != nil {
			fmt.Fprintln(os.Stderr, errf("%v", err))
			os.Exit(1)
		}
		return
	}
	sh.Run()
}
