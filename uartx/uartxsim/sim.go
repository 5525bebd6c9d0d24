// Package uartxsim provides a simulated UART peripheral for host builds and
// tests. It models a single-entry receive and transmit data register, a
// character time per byte, level-triggered RX/TX interrupt sources,
// acknowledge-on-read event sources, and a global interrupt mask. Interrupts
// are delivered from the simulator's own goroutine, which stands in for
// hardware preemption of the foreground.
package uartxsim

import (
	"io"
	"sync"
	"time"

	"github.com/jangala-dev/tinygo-uartxfer/uartx"
)

// Config selects the simulated line behaviour.
type Config struct {
	// ByteTime overrides the character time derived from the divisor.
	ByteTime time.Duration
	// Loopback feeds every transmitted byte back into the receiver.
	Loopback bool
	// FlowControl holds incoming bytes while the receive register is full
	// instead of overrunning it.
	FlowControl bool
}

// Sim is a simulated UART. The zero value is not usable; call New.
type Sim struct {
	cfg Config

	mu   sync.Mutex
	cond *sync.Cond

	isr      func()
	enabled  bool
	byteTime time.Duration
	div      uartx.Divisor

	ie      uint32 // enabled sources, bit per vector slot
	pending uint32 // raised sources, bit per vector slot
	masked  bool
	inISR   bool

	rxData   byte
	rxStatus uartx.LineStatus
	incoming []rxByte
	nextRx   time.Time

	txShifting bool
	txByte     byte
	txEnd      time.Time
	sent       []byte

	peer   *Sim
	remote chan byte

	kick chan struct{}
	stop chan struct{}
	once sync.Once
}

type rxByte struct {
	b  byte
	st uartx.LineStatus
}

var _ uartx.Peripheral = (*Sim)(nil)

// New returns a running simulator. Close stops it.
func New(cfg Config) *Sim {
	s := &Sim{
		cfg:    cfg,
		remote: make(chan byte, 4096),
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Connect cross-wires a and b: bytes sent by one arrive at the other.
func Connect(a, b *Sim) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()
	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

// Close stops the simulator goroutine.
func (s *Sim) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func bit(v uartx.Vector) uint32 { return 1 << (uint(v) >> 1) }

// ---------------- uartx.Peripheral ----------------

func (s *Sim) Configure(d uartx.Divisor) {
	s.mu.Lock()
	s.div = d
	s.byteTime = s.cfg.ByteTime
	if s.byteTime == 0 {
		s.byteTime = d.ByteTime()
	}
	s.enabled = true
	s.ie = 0
	s.pending = bit(uartx.VecTX) // transmit register starts empty
	s.rxStatus = 0
	s.txShifting = false
	s.mu.Unlock()
	s.poke()
}

func (s *Sim) Attach(isr func()) {
	s.mu.Lock()
	s.isr = isr
	s.mu.Unlock()
}

func (s *Sim) Vector() uartx.Vector {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := s.pending & s.ie
	if active == 0 {
		return uartx.VecNone
	}
	for slot := uint(1); slot < 32; slot++ {
		if active&(1<<slot) == 0 {
			continue
		}
		v := uartx.Vector(slot << 1)
		if v != uartx.VecRX && v != uartx.VecTX {
			s.pending &^= 1 << slot
		}
		return v
	}
	return uartx.VecNone
}

func (s *Sim) ReadData() (byte, uartx.LineStatus) {
	s.mu.Lock()
	b, st := s.rxData, s.rxStatus
	s.pending &^= bit(uartx.VecRX)
	s.rxStatus = 0
	s.mu.Unlock()
	s.poke()
	return b, st
}

func (s *Sim) WriteData(b byte) {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	s.pending &^= bit(uartx.VecTX) | bit(uartx.VecTxComplete)
	s.txShifting = true
	s.txByte = b
	s.txEnd = time.Now().Add(s.byteTime)
	s.mu.Unlock()
	s.poke()
}

func (s *Sim) TxIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.txShifting && s.pending&bit(uartx.VecTX) != 0
}

func (s *Sim) EnableInterrupt(v uartx.Vector) {
	s.mu.Lock()
	s.ie |= bit(v)
	s.mu.Unlock()
	s.poke()
}

func (s *Sim) DisableInterrupt(v uartx.Vector) {
	s.mu.Lock()
	s.ie &^= bit(v)
	s.mu.Unlock()
}

// DisableIRQ masks delivery. It waits for a handler already running on the
// simulator goroutine to return, as a single-core CPU would.
func (s *Sim) DisableIRQ() uartx.IRQState {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.inISR {
		s.cond.Wait()
	}
	prev := s.masked
	s.masked = true
	if prev {
		return 1
	}
	return 0
}

func (s *Sim) RestoreIRQ(st uartx.IRQState) {
	s.mu.Lock()
	s.masked = st != 0
	s.mu.Unlock()
	s.poke()
}

// ---------------- Test controls ----------------

// Inject queues bytes arriving on the receive line, one per character time.
func (s *Sim) Inject(p ...byte) {
	s.mu.Lock()
	for _, b := range p {
		s.queue(rxByte{b: b})
	}
	s.mu.Unlock()
	s.poke()
}

// InjectStatus queues one byte received with the given line errors.
func (s *Sim) InjectStatus(b byte, st uartx.LineStatus) {
	s.mu.Lock()
	s.queue(rxByte{b: b, st: st})
	s.mu.Unlock()
	s.poke()
}

// Raise sets an event source pending and enables it, as if the hardware had
// flagged it.
func (s *Sim) Raise(v uartx.Vector) {
	s.mu.Lock()
	s.pending |= bit(v)
	s.ie |= bit(v)
	s.mu.Unlock()
	s.poke()
}

// Sent returns a copy of every byte shifted out so far.
func (s *Sim) Sent() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.sent...)
}

// Enabled reports whether interrupt source v is unmasked.
func (s *Sim) Enabled(v uartx.Vector) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ie&bit(v) != 0
}

// Masked reports whether interrupt delivery is globally disabled.
func (s *Sim) Masked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.masked
}

// Remote returns the far end of the line: writes are received by the
// simulated UART, reads return what it transmitted.
func (s *Sim) Remote() io.ReadWriter { return remote{s} }

type remote struct{ s *Sim }

func (r remote) Write(p []byte) (int, error) {
	r.s.Inject(p...)
	return len(p), nil
}

func (r remote) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	select {
	case b := <-r.s.remote:
		p[0] = b
	case <-r.s.stop:
		return 0, io.EOF
	}
	n := 1
	for n < len(p) {
		select {
		case b := <-r.s.remote:
			p[n] = b
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

// ------------------------------- Internals --------------------------------

func (s *Sim) queue(rb rxByte) {
	if len(s.incoming) == 0 {
		s.nextRx = time.Now().Add(s.byteTime)
	}
	s.incoming = append(s.incoming, rb)
}

func (s *Sim) poke() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Sim) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		s.mu.Lock()
		now := time.Now()
		out, peer := s.step(now)
		isr := s.isr
		deliver := isr != nil && !s.masked && s.pending&s.ie != 0
		if deliver {
			s.inISR = true
		}
		wait := s.nextEvent(now)
		s.mu.Unlock()

		if len(out) > 0 {
			if peer != nil {
				peer.Inject(out...)
			}
			for _, b := range out {
				select {
				case s.remote <- b:
				default:
				}
			}
		}

		if deliver {
			isr()
			s.mu.Lock()
			s.inISR = false
			s.cond.Broadcast()
			s.mu.Unlock()
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if wait >= 0 {
			timer.Reset(wait)
		} else {
			timer.Reset(time.Hour)
		}
		select {
		case <-s.stop:
			return
		case <-s.kick:
		case <-timer.C:
		}
	}
}

// step advances the line to now and returns bytes that left the transmitter.
func (s *Sim) step(now time.Time) ([]byte, *Sim) {
	var out []byte
	if s.txShifting && !now.Before(s.txEnd) {
		s.txShifting = false
		s.sent = append(s.sent, s.txByte)
		s.pending |= bit(uartx.VecTX) | bit(uartx.VecTxComplete)
		out = append(out, s.txByte)
		if s.cfg.Loopback {
			s.queue(rxByte{b: s.txByte})
		}
	}
	if s.enabled && len(s.incoming) > 0 && !now.Before(s.nextRx) {
		full := s.pending&bit(uartx.VecRX) != 0
		if !full || !s.cfg.FlowControl {
			rb := s.incoming[0]
			s.incoming = s.incoming[1:]
			st := rb.st
			if full {
				st |= uartx.StatusOverrun
			}
			s.rxData, s.rxStatus = rb.b, st
			s.pending |= bit(uartx.VecRX) | bit(uartx.VecStart)
			s.nextRx = now.Add(s.byteTime)
		}
	}
	return out, s.peer
}

// nextEvent returns how long until the line changes by itself, or -1.
func (s *Sim) nextEvent(now time.Time) time.Duration {
	wait := time.Duration(-1)
	consider := func(t time.Time) {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		if wait < 0 || d < wait {
			wait = d
		}
	}
	if s.txShifting {
		consider(s.txEnd)
	}
	if s.enabled && len(s.incoming) > 0 {
		if s.pending&bit(uartx.VecRX) == 0 || !s.cfg.FlowControl {
			consider(s.nextRx)
		}
	}
	return wait
}
