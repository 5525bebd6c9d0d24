package uartx

import "sync/atomic"

// Stats holds driver counters since the last reset. Counters are updated with
// 32-bit atomics so the ISR can bump them without masking.
type Stats struct {
	// ISR-level
	ISRCount         uint32 // interrupt entries
	RxBytes          uint32 // bytes stored into receive buffers
	TxBytes          uint32 // bytes loaded into the transmit register
	Spurious         uint32 // RX/TX vectors with no armed transfer
	Unregistered     uint32 // vectors routed to the catch-all handler
	LastUnregistered Vector // most recent catch-all vector

	// Per-byte line errors
	ErrOverrun uint32
	ErrBreak   uint32
	ErrParity  uint32
	ErrFraming uint32
	RxDropped  uint32 // bytes discarded because of parity/framing/break

	// Foreground
	BusyRejects uint32 // transfers refused because the direction was busy
	Timeouts    uint32 // transfers aborted on timeout or cancellation
	Wakes       uint32 // completion waits that found the transfer not yet done
}

type counters struct {
	isr, rxBytes, txBytes, spurious  uint32
	unregistered, lastUnregistered   uint32
	overrun, brk, parity, framing    uint32
	rxDropped, busyRejects, timeouts uint32
	wakes                            uint32
}

// Stats returns a snapshot of the counters.
func (u *UART) Stats() Stats {
	c := &u.stats
	return Stats{
		ISRCount:         atomic.LoadUint32(&c.isr),
		RxBytes:          atomic.LoadUint32(&c.rxBytes),
		TxBytes:          atomic.LoadUint32(&c.txBytes),
		Spurious:         atomic.LoadUint32(&c.spurious),
		Unregistered:     atomic.LoadUint32(&c.unregistered),
		LastUnregistered: Vector(atomic.LoadUint32(&c.lastUnregistered)),

		ErrOverrun: atomic.LoadUint32(&c.overrun),
		ErrBreak:   atomic.LoadUint32(&c.brk),
		ErrParity:  atomic.LoadUint32(&c.parity),
		ErrFraming: atomic.LoadUint32(&c.framing),
		RxDropped:  atomic.LoadUint32(&c.rxDropped),

		BusyRejects: atomic.LoadUint32(&c.busyRejects),
		Timeouts:    atomic.LoadUint32(&c.timeouts),
		Wakes:       atomic.LoadUint32(&c.wakes),
	}
}

// ResetStats zeroes all counters.
func (u *UART) ResetStats() {
	c := &u.stats
	for _, p := range []*uint32{
		&c.isr, &c.rxBytes, &c.txBytes, &c.spurious, &c.unregistered, &c.lastUnregistered,
		&c.overrun, &c.brk, &c.parity, &c.framing, &c.rxDropped,
		&c.busyRejects, &c.timeouts, &c.wakes,
	} {
		atomic.StoreUint32(p, 0)
	}
}

// DebugRegs returns a register snapshot when the peripheral supports it.
func (u *UART) DebugRegs() (Regs, bool) {
	if d, ok := u.hw.(RegisterDumper); ok {
		return d.DebugRegs(), true
	}
	return Regs{}, false
}

// dbgLine counts the error flags of one received byte.
func (u *UART) dbgLine(st LineStatus) {
	if st == 0 {
		return
	}
	if st&StatusOverrun != 0 {
		atomic.AddUint32(&u.stats.overrun, 1)
	}
	if st&StatusBreak != 0 {
		atomic.AddUint32(&u.stats.brk, 1)
	}
	if st&StatusParity != 0 {
		atomic.AddUint32(&u.stats.parity, 1)
	}
	if st&StatusFraming != 0 {
		atomic.AddUint32(&u.stats.framing, 1)
	}
}
