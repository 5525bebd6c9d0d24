package uartx

import "sync/atomic"

// Handler services one interrupt vector. It runs in interrupt context: it
// must not block, allocate or log.
type Handler func(v Vector)

// Dispatcher maps interrupt vectors to handlers. Vectors without a handler,
// and values outside the table, go to the fallback.
type Dispatcher struct {
	table    [vectorSlots]Handler
	fallback Handler
}

// Register installs h for v. A nil h unregisters it.
func (d *Dispatcher) Register(v Vector, h Handler) error {
	if v == VecNone || v&1 != 0 || int(v>>1) >= vectorSlots {
		return ErrInvalidVector
	}
	d.table[v>>1] = h
	return nil
}

// SetFallback installs the catch-all handler.
func (d *Dispatcher) SetFallback(h Handler) { d.fallback = h }

// Dispatch runs the handler registered for v.
func (d *Dispatcher) Dispatch(v Vector) {
	if v&1 == 0 && int(v>>1) < vectorSlots {
		if h := d.table[v>>1]; h != nil {
			h(v)
			return
		}
	}
	if d.fallback != nil {
		d.fallback(v)
	}
}

// maxServicePasses bounds one interrupt entry. A byte-per-interrupt UART
// never has more than a handful of sources pending at once.
const maxServicePasses = 8

// service is the single interrupt entry attached to the peripheral.
func (u *UART) service() {
	atomic.AddUint32(&u.stats.isr, 1)
	u.poll(maxServicePasses)
}

// poll dispatches up to n pending vectors and reports whether any were seen.
// Critical transfers call it from the foreground with interrupts masked.
func (u *UART) poll(n int) bool {
	seen := false
	for i := 0; i < n; i++ {
		v := u.hw.Vector()
		if v == VecNone {
			break
		}
		seen = true
		u.isr.Dispatch(v)
	}
	return seen
}

func (u *UART) handleRX(Vector) {
	if u.rx.load() != Busy {
		// Leave the byte in the data register for the next armed receive.
		u.hw.DisableInterrupt(VecRX)
		atomic.AddUint32(&u.stats.spurious, 1)
		return
	}
	b, st := u.hw.ReadData()
	u.dbgLine(st)
	if st&dropMask != 0 {
		atomic.AddUint32(&u.stats.rxDropped, 1)
		return
	}
	_, last := u.rx.advance(b)
	atomic.AddUint32(&u.stats.rxBytes, 1)
	if last {
		u.hw.DisableInterrupt(VecRX)
		u.rx.complete()
	}
}

func (u *UART) handleTX(Vector) {
	if u.tx.load() != Busy {
		u.hw.DisableInterrupt(VecTX)
		atomic.AddUint32(&u.stats.spurious, 1)
		return
	}
	b, last := u.tx.advance(0)
	u.hw.WriteData(b)
	atomic.AddUint32(&u.stats.txBytes, 1)
	if last {
		u.hw.DisableInterrupt(VecTX)
		u.tx.complete()
	}
}

// unregistered is the catch-all: record and carry on.
func (u *UART) unregistered(v Vector) {
	atomic.AddUint32(&u.stats.unregistered, 1)
	atomic.StoreUint32(&u.stats.lastUnregistered, uint32(v))
}
