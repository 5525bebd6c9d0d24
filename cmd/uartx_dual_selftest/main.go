//go:build rp2040 || rp2350

package main

import (
	"context"
	"crypto/sha1"
	"time"

	"machine"

	"github.com/jangala-dev/tinygo-uartxfer/uartx"
)

const baud = 460800

// Wiring required:
//   UART0 TX (GP0) -> UART1 RX (GP5)
//   UART1 TX (GP4) -> UART0 RX (GP1)
// Flow control not used (RTS/CTS unconnected).

var u0, u1 *uartx.UART

func patternA(i int) byte { return byte((i*31 + 0x55) & 0xFF) }
func patternB(i int) byte { return byte((i*17 + 0xA6) & 0xFF) }

func fill(gen func(int) byte, n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = gen(i)
	}
	return p
}

// oneWay arms a receive of len(src) bytes on rx, sends src from tx and
// compares digests.
func oneWay(ctx context.Context, tx, rx *uartx.UART, src []byte) string {
	got := make([]byte, len(src))
	if err := rx.AsyncReceive(got, uartx.NoTerminate); err != nil {
		return "arm: " + err.Error()
	}
	if _, err := tx.SendContext(ctx, src); err != nil {
		_, _ = rx.WaitRx(ctx)
		return "send: " + err.Error()
	}
	n, err := rx.WaitRx(ctx)
	if err != nil {
		return "receive: " + err.Error() + " after " + itoa(n)
	}
	if sha1.Sum(got) != sha1.Sum(src) {
		return "hash mismatch"
	}
	return ""
}

func main() {
	time.Sleep(3 * time.Second)
	println("uartx cross-UART self-test starting (UART0<->UART1)")

	uartx.Periph1.TX, uartx.Periph1.RX = machine.GPIO4, machine.GPIO5
	u0 = uartx.New(uartx.Periph0, uartx.WithTimeout(3*time.Second))
	u1 = uartx.New(uartx.Periph1, uartx.WithTimeout(3*time.Second))
	for _, u := range []*uartx.UART{u0, u1} {
		if err := u.InitCustom(uartx.DefaultClockHz, baud); err != nil {
			println("init:", err.Error())
			return
		}
	}

	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	pass, fail := 0, 0
	defer func() {
		println("")
		println("Summary")
		println("  passed =", pass)
		println("  failed =", fail)
		for i, u := range []*uartx.UART{u0, u1} {
			st := u.Stats()
			println("  u", i, ": isr =", st.ISRCount, "rx =", st.RxBytes, "tx =", st.TxBytes,
				"overrun =", st.ErrOverrun, "framing =", st.ErrFraming)
		}
		if fail == 0 {
			blink(machine.LED, 3, 120*time.Millisecond)
		} else {
			for {
				blink(machine.LED, 1, 600*time.Millisecond)
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

	// Short messages each way
	run("U0 -> U1 short", func() string {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return oneWay(ctx, u0, u1, []byte("hello from U0\r\n"))
	})

	run("U1 -> U0 short", func() string {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return oneWay(ctx, u1, u0, []byte("hi from U1\r\n"))
	})

	// Integrity 4 KiB each way
	run("U0 -> U1 integrity 4KiB", func() string {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return oneWay(ctx, u0, u1, fill(patternA, 4*1024))
	})

	run("U1 -> U0 integrity 4KiB", func() string {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return oneWay(ctx, u1, u0, fill(patternB, 4*1024))
	})

	// Both directions of both UARTs busy at once.
	run("Full duplex 2KiB", func() string {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		res := make(chan string, 1)
		go func() { res <- oneWay(ctx, u1, u0, fill(patternB, 2*1024)) }()
		msg := oneWay(ctx, u0, u1, fill(patternA, 2*1024))
		if other := <-res; msg == "" {
			msg = other
		}
		return msg
	})

	// Terminated receive across the link.
	run("U0 -> U1 terminator", func() string {
		var buf [32]byte
		if err := u1.AsyncReceive(buf[:], uartx.Term('\n')); err != nil {
			return err.Error()
		}
		if _, err := u0.Send([]byte("line one\n")); err != nil {
			return err.Error()
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		n, err := u1.WaitRx(ctx)
		if err != nil || string(buf[:n]) != "line one\n" {
			return "got " + string(buf[:n])
		}
		return ""
	})
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}

func blink(pin machine.Pin, times int, on time.Duration) {
	for i := 0; i < times; i++ {
		pin.High()
		time.Sleep(on)
		pin.Low()
		time.Sleep(on)
	}
}
