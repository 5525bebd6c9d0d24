//go:build (rp2040 || rp2350) && uartxdebug

// uartx_probe prints driver counters and PL011 registers around a few loopback
// phases on UART1 (TX jumpered to RX).
package main

import (
	"context"
	"crypto/sha1"
	"time"

	"machine"

	"github.com/jangala-dev/tinygo-uartxfer/uartx"
)

const baud = 115200

var u = uartx.New(uartx.Periph1, uartx.WithTimeout(3*time.Second))

func printStats(label string) {
	s := u.Stats()
	println("==", label)
	println("ISR:    count=", s.ISRCount, " rx=", s.RxBytes, " tx=", s.TxBytes, " spurious=", s.Spurious)
	println("Other:  unregistered=", s.Unregistered, " last=", s.LastUnregistered.String())
	println("Errors: OE=", s.ErrOverrun, " BE=", s.ErrBreak, " PE=", s.ErrParity, " FE=", s.ErrFraming, " dropped=", s.RxDropped)
	println("Waits:  wakes=", s.Wakes, " timeouts=", s.Timeouts, " busy=", s.BusyRejects)
	if r, ok := u.DebugRegs(); ok {
		println("Regs:   FR=0x", r.FR, " CR=0x", r.CR, " LCRH=0x", r.LCRH,
			" IMSC=0x", r.IMSC, " MIS=0x", r.MIS, " RIS=0x", r.RIS,
			" IBRD=", r.IBRD, " FBRD=", r.FBRD)
	}
}

// roundTrip sends src in chunks through the jumper and returns what came back.
func roundTrip(src []byte, chunk int) []byte {
	out := make([]byte, len(src))
	for off := 0; off < len(src); off += chunk {
		end := off + chunk
		if end > len(src) {
			end = len(src)
		}
		if err := u.AsyncReceive(out[off:end], uartx.NoTerminate); err != nil {
			println("arm:", err.Error())
			return out[:off]
		}
		if _, err := u.Send(src[off:end]); err != nil {
			println("send:", err.Error())
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		n, err := u.WaitRx(ctx)
		cancel()
		if err != nil {
			println("recv:", err.Error(), "got", n)
			return out[:off+n]
		}
	}
	return out
}

func main() {
	for i := 0; i < 5; i++ {
		println("probe starting in", 5-i, "seconds")
		time.Sleep(time.Second)
	}
	println("uartx probe (diagnostic)")
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	if err := u.InitCustom(uartx.DefaultClockHz, baud); err != nil {
		println("fatal:", err.Error())
		for {
			time.Sleep(time.Hour)
		}
	}
	printStats("idle")

	// Phase 1: 1 KiB integrity, 64-byte chunks.
	println("\n[phase] integrity-1k")
	u.ResetStats()
	src := make([]byte, 1024)
	x := uint32(0x12345678)
	for i := range src {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		src[i] = byte(x)
	}
	got := roundTrip(src, 64)
	println("sha1 match:", sha1.Sum(src) == sha1.Sum(got), "len", len(got))
	printStats("after integrity-1k")

	// Phase 2: 4 KiB in 256-byte chunks.
	println("\n[phase] integrity-4k")
	u.ResetStats()
	big := make([]byte, 4096)
	for i := range big {
		big[i] = src[i%len(src)] ^ byte(i>>8)
	}
	start := time.Now()
	got = roundTrip(big, 256)
	el := time.Since(start)
	println("sha1 match:", sha1.Sum(big) == sha1.Sum(got), "len", len(got), "ms", el.Milliseconds())
	printStats("after integrity-4k")

	// Phase 3: a receive nobody answers.
	println("\n[phase] timeout")
	u.ResetStats()
	var buf [8]byte
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	n, err := u.ReceiveContext(ctx, buf[:], uartx.NoTerminate)
	cancel()
	if err != nil {
		println("receive:", err.Error(), "got", n)
	}
	printStats("after timeout")

	for {
		machine.LED.High()
		time.Sleep(100 * time.Millisecond)
		machine.LED.Low()
		time.Sleep(900 * time.Millisecond)
	}
}
