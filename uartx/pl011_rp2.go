//go:build rp2040 || rp2350

package uartx

import (
	"device/rp"
	"machine"
	"runtime/interrupt"
)

// PL011 is the RP2040/RP2350 UART peripheral. FIFOs are left disabled so the
// block raises one RX interrupt per received character and one TX interrupt
// whenever the single-entry transmit holding register is empty, which is the
// byte-per-interrupt model the driver expects.
type PL011 struct {
	Bus       *rp.UART0_Type
	Interrupt interrupt.Interrupt

	TX, RX   machine.Pin
	RTS, CTS machine.Pin

	isr func()
}

// Peripheral instances, for uartx.New.
var (
	Periph0 = &_periph0
	Periph1 = &_periph1

	_periph0 = PL011{Bus: rp.UART0, TX: machine.UART0_TX_PIN, RX: machine.UART0_RX_PIN, RTS: machine.NoPin, CTS: machine.NoPin}
	_periph1 = PL011{Bus: rp.UART1, TX: machine.UART1_TX_PIN, RX: machine.UART1_RX_PIN, RTS: machine.NoPin, CTS: machine.NoPin}
)

func init() {
	Periph0.Interrupt = interrupt.New(rp.IRQ_UART0_IRQ, _periph0.handleInterrupt)
	Periph1.Interrupt = interrupt.New(rp.IRQ_UART1_IRQ, _periph1.handleInterrupt)
}

func (p *PL011) handleInterrupt(interrupt.Interrupt) {
	if p.isr != nil {
		p.isr()
		return
	}
	// Nobody attached: silence everything so the line cannot storm.
	p.Bus.UARTIMSC.Set(0)
	p.Bus.UARTICR.Set(0x7FF)
}

// Configure resets the block, muxes the pins and programs d with 8N1 framing.
// All interrupt sources are left masked.
func (p *PL011) Configure(d Divisor) {
	p.reset()

	// 1) Disable UART while configuring.
	p.Bus.UARTCR.ClearBits(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)

	// 2) Mux pins before touching baud/format.
	if p.TX != machine.NoPin {
		p.TX.Configure(machine.PinConfig{Mode: machine.PinUART})
	}
	if p.RX != machine.NoPin {
		p.RX.Configure(machine.PinConfig{Mode: machine.PinUART})
	}
	if p.RTS != machine.NoPin {
		p.RTS.Configure(machine.PinConfig{Mode: machine.PinUART})
	}
	if p.CTS != machine.NoPin {
		p.CTS.Configure(machine.PinConfig{Mode: machine.PinUART})
	}

	// 3) Divisors, then a full LCR_H write which latches them (PL011 quirk).
	p.Bus.UARTIBRD.Set(uint32(d.Integer))
	p.Bus.UARTFBRD.Set(uint32(d.Fraction))
	p.Bus.UARTLCR_H.Set(3 << rp.UART0_UARTLCR_H_WLEN_Pos) // 8 data bits, 1 stop, no parity, FEN=0

	// 4) Clear pending sources and purge the receive register.
	p.Bus.UARTIMSC.Set(0)
	p.Bus.UARTICR.Set(0x7FF)
	for !p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_RXFE) {
		_ = p.Bus.UARTDR.Get()
	}
	p.Bus.UARTRSR.Set(0)

	// 5) Enable, with hardware flow control only if both pins are wired.
	cr := uint32(rp.UART0_UARTCR_UARTEN | rp.UART0_UARTCR_RXE | rp.UART0_UARTCR_TXE)
	if p.RTS != machine.NoPin && p.CTS != machine.NoPin {
		cr |= rp.UART0_UARTCR_RTSEN | rp.UART0_UARTCR_CTSEN
	}
	p.Bus.UARTCR.Set(cr)

	p.Interrupt.SetPriority(0x80)
	p.Interrupt.Enable()
}

func (p *PL011) Attach(isr func()) { p.isr = isr }

func (p *PL011) Vector() Vector {
	mis := p.Bus.UARTMIS.Get()
	switch {
	case mis&(rp.UART0_UARTMIS_RXMIS|rp.UART0_UARTMIS_RTMIS) != 0:
		return VecRX
	case mis&rp.UART0_UARTMIS_TXMIS != 0:
		return VecTX
	case mis != 0:
		// Modem-status and error sources have no driver handler. Acknowledge
		// them so the catch-all sees each event once.
		p.Bus.UARTICR.Set(mis)
		return vecModem
	}
	return VecNone
}

// vecModem reports PL011 sources outside the driver's vector set.
const vecModem Vector = 0x0A

func (p *PL011) ReadData() (byte, LineStatus) {
	r := p.Bus.UARTDR.Get()
	var st LineStatus
	if r&rp.UART0_UARTDR_OE != 0 {
		st |= StatusOverrun
	}
	if r&rp.UART0_UARTDR_BE != 0 {
		st |= StatusBreak
	}
	if r&rp.UART0_UARTDR_PE != 0 {
		st |= StatusParity
	}
	if r&rp.UART0_UARTDR_FE != 0 {
		st |= StatusFraming
	}
	if st != 0 {
		p.Bus.UARTRSR.Set(0) // clear sticky errors
	}
	p.Bus.UARTICR.Set(rp.UART0_UARTICR_RXIC | rp.UART0_UARTICR_RTIC)
	return byte(r & 0xFF), st
}

func (p *PL011) WriteData(b byte) { p.Bus.UARTDR.Set(uint32(b)) }

// TxIdle reports TXFE with BUSY clear. Neither raises an interrupt.
func (p *PL011) TxIdle() bool {
	return p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_TXFE) && !p.Bus.UARTFR.HasBits(rp.UART0_UARTFR_BUSY)
}

func (p *PL011) EnableInterrupt(v Vector) {
	if m := imscBits(v); m != 0 {
		p.Bus.UARTIMSC.SetBits(m)
	}
}

func (p *PL011) DisableInterrupt(v Vector) {
	if m := imscBits(v); m != 0 {
		p.Bus.UARTIMSC.ClearBits(m)
	}
}

func imscBits(v Vector) uint32 {
	switch v {
	case VecRX:
		return rp.UART0_UARTIMSC_RXIM | rp.UART0_UARTIMSC_RTIM
	case VecTX:
		return rp.UART0_UARTIMSC_TXIM
	}
	return 0
}

func (p *PL011) DisableIRQ() IRQState { return IRQState(interrupt.Disable()) }

func (p *PL011) RestoreIRQ(s IRQState) { interrupt.Restore(interrupt.State(s)) }

// DebugRegs snapshots the PL011 registers.
func (p *PL011) DebugRegs() Regs {
	return Regs{
		FR:   p.Bus.UARTFR.Get(),
		CR:   p.Bus.UARTCR.Get(),
		LCRH: p.Bus.UARTLCR_H.Get(),
		IMSC: p.Bus.UARTIMSC.Get(),
		MIS:  p.Bus.UARTMIS.Get(),
		RIS:  p.Bus.UARTRIS.Get(),
		IBRD: p.Bus.UARTIBRD.Get(),
		FBRD: p.Bus.UARTFBRD.Get(),
	}
}

// reset asserts and releases the peripheral reset for the selected block.
func (p *PL011) reset() {
	var mask uint32
	switch p.Bus {
	case rp.UART0:
		mask = rp.RESETS_RESET_UART0
	case rp.UART1:
		mask = rp.RESETS_RESET_UART1
	}
	rp.RESETS.RESET.SetBits(mask)
	rp.RESETS.RESET.ClearBits(mask)
	for !rp.RESETS.RESET_DONE.HasBits(mask) {
	}
}
