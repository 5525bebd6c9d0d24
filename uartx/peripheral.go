package uartx

import "strconv"

// Vector identifies a pending UART interrupt source, as read from the
// peripheral's interrupt vector register. Values are even; a lower value has
// higher priority. VecNone means nothing is pending.
type Vector uint8

const (
	VecNone       Vector = 0x00
	VecRX         Vector = 0x02 // receive data register full
	VecTX         Vector = 0x04 // transmit data register empty
	VecStart      Vector = 0x06 // start bit received
	VecTxComplete Vector = 0x08 // last bit shifted out
)

// vectorSlots covers every even vector value below 2*vectorSlots.
const vectorSlots = 8

func (v Vector) String() string {
	switch v {
	case VecNone:
		return "none"
	case VecRX:
		return "rx"
	case VecTX:
		return "tx"
	case VecStart:
		return "start"
	case VecTxComplete:
		return "tx-complete"
	default:
		return "vector(" + strconv.Itoa(int(v)) + ")"
	}
}

// LineStatus carries the per-byte receive error flags.
type LineStatus uint8

const (
	StatusOverrun LineStatus = 1 << iota // a previous byte was lost
	StatusParity
	StatusFraming
	StatusBreak
)

// dropMask marks status bits that make the received byte itself unusable.
const dropMask = StatusParity | StatusFraming | StatusBreak

// IRQState is an opaque saved interrupt-enable state returned by DisableIRQ.
type IRQState uintptr

// Peripheral is the register-level view of one UART instance. The driver owns
// all calls except Attach's handler, which the hardware (or a simulator)
// invokes in interrupt context.
type Peripheral interface {
	// Configure resets the peripheral, programs the baud generator from d,
	// selects 8N1 framing and enables the transmitter and receiver with all
	// interrupt sources masked.
	Configure(d Divisor)

	// Attach installs the interrupt entry point.
	Attach(isr func())

	// Vector returns the highest-priority pending source among the enabled
	// ones. Event sources (start, tx-complete) are acknowledged by the read;
	// RX is acknowledged by ReadData and TX by WriteData.
	Vector() Vector

	// ReadData reads the receive data register and its error flags.
	ReadData() (byte, LineStatus)

	// WriteData loads the transmit data register.
	WriteData(b byte)

	// TxIdle reports that the transmit register is empty and the line is idle.
	TxIdle() bool

	EnableInterrupt(v Vector)
	DisableInterrupt(v Vector)

	// DisableIRQ masks interrupt delivery for the calling context and
	// returns the previous state for RestoreIRQ. Calls may nest.
	DisableIRQ() IRQState
	RestoreIRQ(s IRQState)
}

// RegisterDumper is implemented by peripherals that can snapshot their
// hardware registers for diagnostics.
type RegisterDumper interface {
	DebugRegs() Regs
}

// Regs is a snapshot of UART hardware registers. Field meaning is back end
// specific; unused fields are zero.
type Regs struct {
	FR   uint32 // flags
	CR   uint32 // control
	LCRH uint32 // line control
	IMSC uint32 // interrupt mask
	MIS  uint32 // masked interrupt status
	RIS  uint32 // raw interrupt status
	IBRD uint32
	FBRD uint32
}
