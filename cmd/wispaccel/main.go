//go:build rp2040 || rp2350

// wispaccel is the accelerometer node firmware: an ADXL362 on SPI0 served to
// a host over UART0 with the console line protocol.
package main

import (
	"context"
	"time"

	"machine"

	"github.com/jangala-dev/tinygo-uartxfer/adxl362"
	"github.com/jangala-dev/tinygo-uartxfer/console"
	"github.com/jangala-dev/tinygo-uartxfer/uartx"
)

var (
	csPin = machine.GPIO17

	link  = uartx.New(uartx.Periph0)
	accel = adxl362.New(machine.SPI0, csPin)
)

func ledBlink(times int, on time.Duration) {
	for i := 0; i < times; i++ {
		machine.LED.High()
		time.Sleep(on)
		machine.LED.Low()
		time.Sleep(on)
	}
}

func fatal(msg string, err error) {
	println(msg, err.Error())
	for {
		ledBlink(1, 500*time.Millisecond)
	}
}

// heartbeat blinks while the link is idle and prints driver counters.
func heartbeat() {
	for {
		ledBlink(1, 50*time.Millisecond)
		st := link.Stats()
		println("link: isr =", st.ISRCount, "rx =", st.RxBytes, "tx =", st.TxBytes,
			"dropped =", st.RxDropped, "unregistered =", st.Unregistered, "timeouts =", st.Timeouts)
		time.Sleep(5 * time.Second)
	}
}

func main() {
	time.Sleep(time.Second)
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	csPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	csPin.High()

	err := machine.SPI0.Configure(machine.SPIConfig{
		Frequency: 5_000_000,
		SCK:       machine.SPI0_SCK_PIN,
		SDO:       machine.SPI0_SDO_PIN,
		SDI:       machine.SPI0_SDI_PIN,
		Mode:      0,
	})
	if err != nil {
		fatal("spi:", err)
	}
	if err := link.Init(); err != nil {
		fatal("uart:", err)
	}

	// A missing sensor is reported to the host through ERR replies, so the
	// link keeps running either way.
	if err := accel.Configure(adxl362.Config{
		ODR:         adxl362.ODR100Hz,
		FIFOMode:    adxl362.FIFOStream,
		FIFOSamples: 3 * console.MaxFIFOWords,
	}); err != nil {
		println("accel:", err.Error())
	}

	go heartbeat()

	println("wispaccel: serving on UART0 at", link.Baud())
	srv := console.NewServer(link, accel, nil)
	if err := srv.Serve(context.Background()); err != nil {
		fatal("serve:", err)
	}
}
