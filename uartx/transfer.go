package uartx

import "sync/atomic"

// Direction selects the transmit or receive half of the driver.
type Direction uint8

const (
	TX Direction = iota
	RX
)

func (d Direction) String() string {
	if d == RX {
		return "rx"
	}
	return "tx"
}

// State is the per-direction transfer state.
type State uint32

const (
	Idle State = iota
	Busy
	Done

	// claimed is held by the foreground while it publishes or releases the
	// buffer reference. The ISR treats it like Idle.
	claimed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Busy, claimed:
		return "busy"
	case Done:
		return "done"
	}
	return "unknown"
}

// Terminator is an optional receive sentinel. NoTerminate disables it;
// values 0..255 end a receive after that byte has been stored.
type Terminator int16

// NoTerminate means the receive runs until the buffer is full.
const NoTerminate Terminator = -1

// Term returns the terminator for sentinel byte b.
func Term(b byte) Terminator { return Terminator(b) }

func (t Terminator) valid() bool { return t >= NoTerminate && t <= 0xFF }

func (t Terminator) matches(b byte) bool { return t >= 0 && byte(t) == b }

// MaxTransfer is the largest transfer size (16-bit length).
const MaxTransfer = 0xFFFF

// transfer is the borrowed buffer and progress for one direction.
//
// Ownership: buf is written by the foreground only while the state is
// claimed, read and written by the ISR only while Busy, and handed back
// to the caller once Done is observed. The state word is the only
// synchronisation point.
type transfer struct {
	dir    Direction
	vec    Vector
	buf    []byte
	term   Terminator
	cursor uint32
	state  uint32
	notify chan struct{} // coalesced Busy->Done edge
}

func newTransfer(dir Direction, vec Vector) transfer {
	return transfer{dir: dir, vec: vec, term: NoTerminate, notify: make(chan struct{}, 1)}
}

func (t *transfer) load() State { return State(atomic.LoadUint32(&t.state)) }

// arm takes ownership of buf for a new transfer. Idle -> Busy.
func (t *transfer) arm(buf []byte, term Terminator) error {
	if len(buf) == 0 || len(buf) > MaxTransfer {
		return ErrInvalidSize
	}
	if !term.valid() || (t.dir == TX && term != NoTerminate) {
		return ErrInvalidTerminator
	}
	if !atomic.CompareAndSwapUint32(&t.state, uint32(Idle), uint32(claimed)) {
		return ErrBusy
	}
	t.buf = buf
	t.term = term
	atomic.StoreUint32(&t.cursor, 0)
	select {
	case <-t.notify:
	default:
	}
	atomic.StoreUint32(&t.state, uint32(Busy))
	return nil
}

// advance moves one byte at the cursor. RX stores in; TX returns the byte to
// load into the data register. last reports that this byte completes the
// transfer; the caller publishes completion with complete once the
// direction's interrupt source is quiet. Interrupt context only.
func (t *transfer) advance(in byte) (out byte, last bool) {
	if t.load() != Busy {
		return 0, false
	}
	i := atomic.LoadUint32(&t.cursor)
	if t.dir == RX {
		t.buf[i] = in
	} else {
		out = t.buf[i]
	}
	i++
	atomic.StoreUint32(&t.cursor, i)
	return out, int(i) == len(t.buf) || (t.dir == RX && t.term.matches(in))
}

// complete publishes Busy -> Done and wakes a blocked caller.
func (t *transfer) complete() {
	atomic.StoreUint32(&t.state, uint32(Done))
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// consume returns the transferred count and releases the buffer. Done -> Idle.
func (t *transfer) consume() (int, error) {
	if !atomic.CompareAndSwapUint32(&t.state, uint32(Done), uint32(claimed)) {
		return 0, ErrNotDone
	}
	n := int(atomic.LoadUint32(&t.cursor))
	t.release()
	return n, nil
}

// abort drops an in-flight transfer and returns the partial count.
// Busy -> Idle. The caller must have masked interrupts and disabled the
// direction's source.
func (t *transfer) abort() int {
	if !atomic.CompareAndSwapUint32(&t.state, uint32(Busy), uint32(claimed)) {
		return 0
	}
	n := int(atomic.LoadUint32(&t.cursor))
	t.release()
	return n
}

func (t *transfer) release() {
	t.buf = nil
	t.term = NoTerminate
	select {
	case <-t.notify:
	default:
	}
	atomic.StoreUint32(&t.state, uint32(Idle))
}

// size is only meaningful while the caller owns the transfer.
func (t *transfer) size() int { return len(t.buf) }
