//go:build rp2040 || rp2350

// uartx_selftest exercises every transfer mode of the driver on UART1 with
// TX jumpered to RX.
package main

import (
	"context"
	"crypto/sha1"
	"errors"
	"time"

	"machine"

	"github.com/jangala-dev/tinygo-uartxfer/uartx"
)

const (
	baud    = 115200
	timeout = 2 * time.Second
)

var u = uartx.New(uartx.Periph1, uartx.WithTimeout(timeout))

// loop sends tx while a receive into rx is armed and returns the bytes
// received. send picks the transfer mode under test.
func loop(tx, rx []byte, term uartx.Terminator, send func([]byte) (int, error)) (int, error) {
	if err := u.AsyncReceive(rx, term); err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := send(tx); err != nil {
		cancel() // releases the armed receive
		_, _ = u.WaitRx(ctx)
		return 0, err
	}
	return u.WaitRx(ctx)
}

func ledBlink(times int, on time.Duration) {
	for i := 0; i < times; i++ {
		machine.LED.High()
		time.Sleep(on)
		machine.LED.Low()
		time.Sleep(on)
	}
}

func main() {
	// Give the monitor time to attach.
	time.Sleep(3 * time.Second)

	println("uartx self-test starting")
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	if err := u.InitCustom(uartx.DefaultClockHz, baud); err != nil {
		println("InitCustom failed:", err.Error())
		for {
			ledBlink(1, 500*time.Millisecond)
		}
	}

	pass, fail := 0, 0
	defer func() {
		st := u.Stats()
		println("")
		println("Summary")
		println("  passed =", pass)
		println("  failed =", fail)
		println("  isr =", st.ISRCount, "rx =", st.RxBytes, "tx =", st.TxBytes)
		println("  spurious =", st.Spurious, "unregistered =", st.Unregistered, "overrun =", st.ErrOverrun)
		if fail == 0 {
			ledBlink(3, 120*time.Millisecond)
		} else {
			for {
				ledBlink(1, 600*time.Millisecond)
				time.Sleep(800 * time.Millisecond)
			}
		}
	}()

	run := func(name string, f func() string) {
		println("")
		println("[Test]", name)
		if msg := f(); msg == "" {
			println("  PASS")
			pass++
		} else {
			println("  FAIL:", msg)
			fail++
		}
	}

	run("baud: generated rate within tolerance", func() string {
		if _, err := uartx.NewDivisor(1_000_000, 921600); !errors.Is(err, uartx.ErrBadConfig) {
			return "unreachable rate accepted"
		}
		if u.Baud() != baud {
			return "wrong baud"
		}
		return ""
	})

	run("blocking: send 3 bytes in order", func() string {
		rx := make([]byte, 3)
		n, err := loop([]byte{0x41, 0x42, 0x43}, rx, uartx.NoTerminate, u.Send)
		if err != nil {
			return err.Error()
		}
		if n != 3 || string(rx) != "ABC" {
			return "mismatch"
		}
		return ""
	})

	run("receive: stops after terminator", func() string {
		rx := make([]byte, 10)
		n, err := loop([]byte{0x31, 0x32, 0x0A}, rx, uartx.Term(0x0A), u.Send)
		if err != nil {
			return err.Error()
		}
		if n != 3 || string(rx[:n]) != "12\n" {
			return "wrong count " + itoa(n)
		}
		return ""
	})

	run("async: busy until the ISR finishes", func() string {
		msg := []byte("asynchronous transfer")
		rx := make([]byte, len(msg))
		n, err := loop(msg, rx, uartx.NoTerminate, func(p []byte) (int, error) {
			if err := u.AsyncSend(p); err != nil {
				return 0, err
			}
			if !u.IsTxBusy() {
				return 0, errors.New("not busy after AsyncSend")
			}
			if err := u.AsyncSend(p); !errors.Is(err, uartx.ErrBusy) {
				return 0, errors.New("second AsyncSend accepted")
			}
			for u.IsTxBusy() {
			}
			return u.TxResult()
		})
		if err != nil {
			return err.Error()
		}
		if n != len(msg) || string(rx) != string(msg) {
			return "mismatch"
		}
		return ""
	})

	run("critical: same bytes as blocking", func() string {
		msg := []byte("critical section")
		a := make([]byte, len(msg))
		b := make([]byte, len(msg))
		if _, err := loop(msg, a, uartx.NoTerminate, u.Send); err != nil {
			return err.Error()
		}
		if _, err := loop(msg, b, uartx.NoTerminate, u.CritSend); err != nil {
			return err.Error()
		}
		if string(a) != string(b) {
			return "mismatch"
		}
		if _, err := u.CritSend(make([]byte, uartx.DefaultCritLimit+1)); !errors.Is(err, uartx.ErrCritTooLong) {
			return "oversized critical send accepted"
		}
		return ""
	})

	run("timeout: receive with nothing on the line", func() string {
		var rx [4]byte
		start := time.Now()
		n, err := u.Receive(rx[:], uartx.NoTerminate)
		if !errors.Is(err, uartx.ErrTimeout) || n != 0 {
			return "no timeout"
		}
		if time.Since(start) < timeout-100*time.Millisecond {
			return "timed out early"
		}
		if u.IsRxBusy() {
			return "still busy"
		}
		return ""
	})

	run("binary: 4 KiB integrity (SHA-1)", func() string {
		n := 4 * 1024
		src := make([]byte, n)
		var x uint32 = 0x12345678
		for i := range src {
			x = 1664525*x + 1013904223
			src[i] = byte(x >> 24)
		}
		want := sha1.Sum(src)

		got := make([]byte, n)
		for off := 0; off < n; off += 256 {
			if _, err := loop(src[off:off+256], got[off:off+256], uartx.NoTerminate, u.Send); err != nil {
				return "chunk " + itoa(off/256) + ": " + err.Error()
			}
		}
		if sha1.Sum(got) != want {
			return "hash mismatch"
		}
		return ""
	})

	run("throughput: 16 KiB", func() string {
		n := 16 * 1024
		src := make([]byte, n)
		for i := range src {
			src[i] = byte(i * 31)
		}
		got := make([]byte, len(src))

		start := time.Now()
		if _, err := loop(src, got, uartx.NoTerminate, u.Send); err != nil {
			return err.Error()
		}
		ms := int(time.Since(start) / time.Millisecond)
		if ms <= 0 {
			ms = 1
		}
		kbpsX100 := (n*8*100 + ms/2) / ms
		println("  speed =", formatFixed2(kbpsX100), "kbps")
		return ""
	})

	println("")
	println("All tests completed")
}

// --- tiny helpers (no fmt) ---

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := false
	if n < 0 {
		neg = true
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + (n % 10))
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + itoa(n)
	}
	return itoa(n)
}

func formatFixed2(x int) string {
	sign := ""
	if x < 0 {
		sign = "-"
		x = -x
	}
	whole := x / 100
	frac := x % 100
	return sign + itoa(whole) + "." + twoDigits(frac)
}
