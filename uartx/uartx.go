// Package uartx provides an interrupt-driven UART transfer driver. Each
// direction (TX, RX) carries at most one outstanding transfer over a
// caller-owned buffer; the interrupt handler moves one byte per interrupt and
// marks the transfer done. Transfers come in three flavours:
//
//   - blocking (Send, Receive and their Context variants) wait for completion
//     or a timeout;
//   - asynchronous (AsyncSend, AsyncReceive) return at once, progress is
//     observed with IsTxBusy/IsRxBusy/IsRxDone or TxDone/RxDone and collected
//     with TxResult/RxResult;
//   - critical (CritSend, CritReceive) mask interrupts for the whole transfer
//     and service the peripheral from the calling context.
//
// The hardware is reached through the Peripheral interface. A PL011 back end
// is built for rp2040/rp2350; package uartxsim provides a simulated one.
package uartx

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jangala-dev/tinygo-uartxfer/pkg"
)

const (
	// DefaultTimeout bounds blocking transfers that have no caller context.
	DefaultTimeout = time.Second
	// DefaultCritLimit is the largest critical transfer, in bytes. At
	// 115200 baud 8N1 that keeps interrupts masked for at most ~5.6 ms.
	DefaultCritLimit = 64
)

// UART is one driver instance bound to a Peripheral.
type UART struct {
	hw  Peripheral
	isr Dispatcher

	tx transfer
	rx transfer

	div         Divisor
	initialized uint32

	timeout   time.Duration
	critLimit int
	log       *slog.Logger

	stats counters
}

// Option configures a UART at construction.
type Option func(*UART)

// WithTimeout sets the bound for Send and Receive and for the critical
// variants. Values <= 0 keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(u *UART) {
		if d > 0 {
			u.timeout = d
		}
	}
}

// WithCritLimit sets the largest accepted critical transfer in bytes.
func WithCritLimit(n int) Option {
	return func(u *UART) {
		if n > 0 {
			u.critLimit = n
		}
	}
}

// WithLogger sets the logger used for foreground diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(u *UART) { u.log = l }
}

// New returns a driver for hw. The peripheral is untouched until Init or
// InitCustom.
func New(hw Peripheral, opts ...Option) *UART {
	u := &UART{
		hw:        hw,
		tx:        newTransfer(TX, VecTX),
		rx:        newTransfer(RX, VecRX),
		timeout:   DefaultTimeout,
		critLimit: DefaultCritLimit,
	}
	for _, o := range opts {
		o(u)
	}
	u.log = pkg.With(u.log, pkg.ComponentUART)
	_ = u.isr.Register(VecRX, u.handleRX)
	_ = u.isr.Register(VecTX, u.handleTX)
	u.isr.SetFallback(u.unregistered)
	return u
}

// Init configures the peripheral for DefaultBaudRate from DefaultClockHz.
func (u *UART) Init() error {
	return u.InitCustom(DefaultClockHz, DefaultBaudRate)
}

// InitCustom configures the peripheral for baud from a clockHz peripheral
// clock. An unreachable rate fails with a *ConfigError before the peripheral
// is touched.
func (u *UART) InitCustom(clockHz, baud uint32) error {
	d, err := NewDivisor(clockHz, baud)
	if err != nil {
		u.log.Error("configuration rejected", "clock", clockHz, "baud", baud, "err", err)
		return err
	}
	if atomic.LoadUint32(&u.initialized) == 1 {
		u.Close()
	}
	u.div = d
	u.hw.Configure(d)
	u.hw.Attach(u.service)
	atomic.StoreUint32(&u.initialized, 1)
	u.log.Debug("configured", "baud", baud, "rate", int(d.Rate()), "ibrd", d.Integer, "fbrd", d.Fraction)
	return nil
}

// Handle registers h for an interrupt vector other than RX and TX, which the
// driver owns. A nil h returns v to the catch-all.
func (u *UART) Handle(v Vector, h Handler) error {
	if v == VecRX || v == VecTX {
		return ErrVectorInUse
	}
	s := u.hw.DisableIRQ()
	err := u.isr.Register(v, h)
	u.hw.RestoreIRQ(s)
	if err == nil {
		pkg.LogDebug(pkg.ComponentISR, "handler registered", "vector", v, "nil", h == nil)
	}
	return err
}

// Baud returns the requested baud rate of the current configuration.
func (u *UART) Baud() uint32 { return u.div.BaudRate }

// ByteTime returns the duration of one character on the line.
func (u *UART) ByteTime() time.Duration { return u.div.ByteTime() }

// ---------------- Observers ----------------

// IsTxBusy reports a send that has been issued and not yet finished.
func (u *UART) IsTxBusy() bool { return u.tx.load() == Busy || u.tx.load() == claimed }

// IsRxBusy reports a receive that has been issued and not yet finished.
func (u *UART) IsRxBusy() bool { return u.rx.load() == Busy || u.rx.load() == claimed }

// IsTxDone reports a finished send waiting for TxResult.
func (u *UART) IsTxDone() bool { return u.tx.load() == Done }

// IsRxDone reports a finished receive waiting for RxResult.
func (u *UART) IsRxDone() bool { return u.rx.load() == Done }

// TxDone returns a coalesced notification of send completion. Callers must
// re-check IsTxDone after waking.
func (u *UART) TxDone() <-chan struct{} { return u.tx.notify }

// RxDone returns a coalesced notification of receive completion. Callers must
// re-check IsRxDone after waking.
func (u *UART) RxDone() <-chan struct{} { return u.rx.notify }

// ---------------- Asynchronous ----------------

// AsyncSend starts transmitting buf and returns immediately. buf must not be
// modified until the send is done and collected with TxResult.
func (u *UART) AsyncSend(buf []byte) error {
	return u.start(&u.tx, buf, NoTerminate)
}

// AsyncReceive starts receiving into buf and returns immediately. The receive
// ends when buf is full or after the terminator byte has been stored.
func (u *UART) AsyncReceive(buf []byte, term Terminator) error {
	return u.start(&u.rx, buf, term)
}

// TxResult collects a finished send and returns the number of bytes sent. It
// returns ErrNotDone if the send is still running or none was issued.
func (u *UART) TxResult() (int, error) { return u.tx.consume() }

// RxResult collects a finished receive and returns the number of bytes stored.
func (u *UART) RxResult() (int, error) { return u.rx.consume() }

// ---------------- Blocking ----------------

// Send transmits buf and waits for the last byte to be accepted by the
// transmitter, bounded by the driver timeout.
func (u *UART) Send(buf []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
	defer cancel()
	return u.SendContext(ctx, buf)
}

// Receive fills buf, stopping early after term, bounded by the driver timeout.
func (u *UART) Receive(buf []byte, term Terminator) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
	defer cancel()
	return u.ReceiveContext(ctx, buf, term)
}

// SendContext transmits buf and waits until done or ctx ends. On ctx expiry
// the send is aborted and the count of bytes already sent is returned with an
// error wrapping ErrTimeout and ctx.Err().
func (u *UART) SendContext(ctx context.Context, buf []byte) (int, error) {
	if err := u.start(&u.tx, buf, NoTerminate); err != nil {
		return 0, err
	}
	return u.wait(ctx, &u.tx)
}

// ReceiveContext fills buf until full, the terminator, or ctx ends.
func (u *UART) ReceiveContext(ctx context.Context, buf []byte, term Terminator) (int, error) {
	if err := u.start(&u.rx, buf, term); err != nil {
		return 0, err
	}
	return u.wait(ctx, &u.rx)
}

// WaitTx blocks until the send started by AsyncSend finishes and collects it.
// On ctx expiry the send is aborted as in SendContext. It returns ErrNotDone
// when no send is outstanding.
func (u *UART) WaitTx(ctx context.Context) (int, error) { return u.waitIssued(ctx, &u.tx) }

// WaitRx is the receive counterpart of WaitTx.
func (u *UART) WaitRx(ctx context.Context) (int, error) { return u.waitIssued(ctx, &u.rx) }

func (u *UART) waitIssued(ctx context.Context, t *transfer) (int, error) {
	if t.load() == Idle {
		return 0, ErrNotDone
	}
	return u.wait(ctx, t)
}

// Flush blocks until the transmitter has shifted out every byte or ctx ends.
// The line-idle condition raises no interrupt, so Flush polls at about two
// character times.
func (u *UART) Flush(ctx context.Context) error {
	tick := u.drainTick()
	for {
		if !u.IsTxBusy() && u.hw.TxIdle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tick):
		}
	}
}

// drainTick is roughly two character times with a lower bound.
func (u *UART) drainTick() time.Duration {
	t := 2 * u.div.ByteTime()
	if t < 20*time.Microsecond {
		t = 20 * time.Microsecond
	}
	return t
}

// Close masks both interrupt sources and aborts any outstanding transfer.
// The UART must be initialised again before further use.
func (u *UART) Close() error {
	if !atomic.CompareAndSwapUint32(&u.initialized, 1, 0) {
		return nil
	}
	s := u.hw.DisableIRQ()
	u.hw.DisableInterrupt(VecRX)
	u.hw.DisableInterrupt(VecTX)
	u.tx.abort()
	u.rx.abort()
	u.hw.RestoreIRQ(s)
	return nil
}

// ------------------------------- Internals --------------------------------

// start arms t and unmasks its interrupt source inside a short masked window.
func (u *UART) start(t *transfer, buf []byte, term Terminator) error {
	if atomic.LoadUint32(&u.initialized) == 0 {
		return ErrNotInitialized
	}
	s := u.hw.DisableIRQ()
	err := t.arm(buf, term)
	if err == nil {
		u.hw.EnableInterrupt(t.vec)
	}
	u.hw.RestoreIRQ(s)
	if err != nil {
		u.rejected(t, err)
	}
	return err
}

func (u *UART) rejected(t *transfer, err error) {
	if err == ErrBusy {
		atomic.AddUint32(&u.stats.busyRejects, 1)
		u.log.Warn("transfer rejected", "dir", t.dir, "err", err)
	}
}

// wait blocks until t is done or ctx ends.
func (u *UART) wait(ctx context.Context, t *transfer) (int, error) {
	for {
		if t.load() == Done {
			return t.consume()
		}
		select {
		case <-t.notify:
			if t.load() != Done {
				atomic.AddUint32(&u.stats.wakes, 1)
			}
		case <-ctx.Done():
			return u.expire(t, ctx.Err())
		}
	}
}

// expire aborts t after its deadline. A transfer that completed in the race
// window is returned as a success.
func (u *UART) expire(t *transfer, cause error) (int, error) {
	s := u.hw.DisableIRQ()
	u.hw.DisableInterrupt(t.vec)
	if t.load() == Done {
		u.hw.RestoreIRQ(s)
		return t.consume()
	}
	size := t.size()
	n := t.abort()
	u.hw.RestoreIRQ(s)

	atomic.AddUint32(&u.stats.timeouts, 1)
	u.log.Debug("transfer aborted", "dir", t.dir, "got", n, "want", size, "err", cause)
	return n, fmt.Errorf("%w: %s %d of %d bytes: %w", ErrTimeout, t.dir, n, size, cause)
}
