package uartx

import (
	"fmt"
	"sync/atomic"
	"time"
)

// CritSend transmits buf with interrupts masked for the whole transfer. The
// peripheral is serviced from the calling context, so the bytes on the line
// are the same as for Send; only the rest of the system sees the latency.
// len(buf) is limited by WithCritLimit.
func (u *UART) CritSend(buf []byte) (int, error) {
	return u.crit(&u.tx, buf, NoTerminate)
}

// CritReceive is the masked counterpart of Receive. Besides the size limit it
// is bounded by the driver timeout, since the far end decides when bytes
// arrive.
func (u *UART) CritReceive(buf []byte, term Terminator) (int, error) {
	return u.crit(&u.rx, buf, term)
}

func (u *UART) crit(t *transfer, buf []byte, term Terminator) (int, error) {
	if atomic.LoadUint32(&u.initialized) == 0 {
		return 0, ErrNotInitialized
	}
	if len(buf) > u.critLimit {
		return 0, ErrCritTooLong
	}

	s := u.hw.DisableIRQ()
	if err := t.arm(buf, term); err != nil {
		u.hw.RestoreIRQ(s)
		u.rejected(t, err)
		return 0, err
	}
	defer u.hw.RestoreIRQ(s)
	u.hw.EnableInterrupt(t.vec)

	deadline := time.Now().Add(u.timeout)
	for t.load() != Done {
		if u.poll(1) {
			continue
		}
		if time.Now().After(deadline) {
			u.hw.DisableInterrupt(t.vec)
			size := t.size()
			n := t.abort()
			atomic.AddUint32(&u.stats.timeouts, 1)
			return n, fmt.Errorf("%w: critical %s %d of %d bytes", ErrTimeout, t.dir, n, size)
		}
	}
	return t.consume()
}
