package console

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/jangala-dev/tinygo-uartxfer/adxl362"
	"github.com/jangala-dev/tinygo-uartxfer/pkg"
	"github.com/jangala-dev/tinygo-uartxfer/uartx"
)

// Transport moves request and reply lines. *uartx.UART satisfies it.
type Transport interface {
	ReceiveContext(ctx context.Context, buf []byte, term uartx.Terminator) (int, error)
	SendContext(ctx context.Context, buf []byte) (int, error)
}

// Accelerometer is the device surface served. *adxl362.Device satisfies it.
type Accelerometer interface {
	ReadRegister(reg adxl362.Register) (byte, error)
	WriteRegister(reg adxl362.Register, v byte) error
	ReadRegisters(reg adxl362.Register, p []byte) error
	ReadAcceleration() (x, y, z int16, err error)
	ReadTemperature() (int16, error)
	ReadStatus() (adxl362.Status, error)
	FIFOEntries() (uint16, error)
	ReadFIFO(p []byte) error
	SoftReset() error
	SelfTest(on bool) error
}

// DefaultIdleTimeout bounds each receive of the serve loop.
const DefaultIdleTimeout = uartx.DefaultTimeout

// Server answers requests from a Transport against an Accelerometer.
type Server struct {
	t    Transport
	dev  Accelerometer
	log  *slog.Logger
	idle time.Duration

	line  [MaxLine]byte
	reply []byte
	fifo  [2 * MaxFIFOWords]byte
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithIdleTimeout sets how long one receive waits before the serve loop
// re-arms it. Values <= 0 keep DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.idle = d
		}
	}
}

// NewServer returns a server. A nil logger uses the package default.
func NewServer(t Transport, dev Accelerometer, l *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		t:     t,
		dev:   dev,
		log:   pkg.With(l, pkg.ComponentConsole),
		idle:  DefaultIdleTimeout,
		reply: make([]byte, 0, MaxLine),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Serve answers requests until ctx ends. Each receive is bounded by the idle
// timeout; expiry is not an error and a partial line is kept and completed by
// the next receive.
func (s *Server) Serve(ctx context.Context) error {
	n := 0
	discard := false
	for {
		got, err := s.receive(ctx, s.line[n:])
		n += got
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, uartx.ErrTimeout):
			continue
		case err != nil:
			return err
		}

		if s.line[n-1] != Terminator {
			// Buffer full without a terminator: drop up to the next one.
			s.log.Warn("request too long, discarding")
			n, discard = 0, true
			continue
		}
		if discard {
			n, discard = 0, false
			s.send(ctx, appendErr(s.reply[:0], ErrLineTooLong.Error()))
			continue
		}

		req := string(s.line[:n])
		n = 0
		s.send(ctx, s.Handle(s.reply[:0], req))
	}
}

func (s *Server) receive(ctx context.Context, p []byte) (int, error) {
	rctx, cancel := context.WithTimeout(ctx, s.idle)
	defer cancel()
	return s.t.ReceiveContext(rctx, p, uartx.Term(Terminator))
}

func (s *Server) send(ctx context.Context, b []byte) {
	sctx, cancel := context.WithTimeout(ctx, s.idle)
	defer cancel()
	if _, err := s.t.SendContext(sctx, b); err != nil {
		s.log.Warn("reply not sent", "err", err)
	}
}

// Handle executes one request line and appends the reply line to dst.
func (s *Server) Handle(dst []byte, line string) []byte {
	req, err := ParseRequest(line)
	if err != nil {
		s.log.Debug("bad request", "line", line, "err", err)
		return appendErr(dst, err.Error())
	}
	s.log.Debug("request", "req", req.String())
	out, err := s.exec(dst, req)
	if err != nil {
		s.log.Warn("request failed", "req", req.String(), "err", err)
		return appendErr(dst, err.Error())
	}
	return out
}

func (s *Server) exec(dst []byte, req Request) ([]byte, error) {
	switch req.Op {
	case OpID:
		var id [3]byte
		if err := s.dev.ReadRegisters(adxl362.RegDevIDAD, id[:]); err != nil {
			return nil, err
		}
		return appendOK(dst, hex8(id[0]), hex8(id[1]), hex8(id[2])), nil

	case OpRead:
		v, err := s.dev.ReadRegister(adxl362.Register(req.Args[0]))
		if err != nil {
			return nil, err
		}
		return appendOK(dst, hex8(v)), nil

	case OpWrite:
		if err := s.dev.WriteRegister(adxl362.Register(req.Args[0]), req.Args[1]); err != nil {
			return nil, err
		}
		return appendOK(dst), nil

	case OpAccel:
		x, y, z, err := s.dev.ReadAcceleration()
		if err != nil {
			return nil, err
		}
		return appendOK(dst, strconv.Itoa(int(x)), strconv.Itoa(int(y)), strconv.Itoa(int(z))), nil

	case OpTemp:
		t, err := s.dev.ReadTemperature()
		if err != nil {
			return nil, err
		}
		return appendOK(dst, strconv.Itoa(int(t))), nil

	case OpStatus:
		st, err := s.dev.ReadStatus()
		if err != nil {
			return nil, err
		}
		return appendOK(dst, hex8(byte(st))), nil

	case OpFIFO:
		avail, err := s.dev.FIFOEntries()
		if err != nil {
			return nil, err
		}
		words := min(int(req.Args[0]), int(avail), MaxFIFOWords)
		raw := s.fifo[:2*words]
		if err := s.dev.ReadFIFO(raw); err != nil {
			return nil, err
		}
		dst = append(dst, "OK"...)
		for i := 0; i < len(raw); i += 2 {
			dst = append(dst, ' ')
			dst = append(dst, hex8(raw[i+1])...)
			dst = append(dst, hex8(raw[i])...)
		}
		return append(dst, Terminator), nil

	case OpReset:
		if err := s.dev.SoftReset(); err != nil {
			return nil, err
		}
		return appendOK(dst), nil

	case OpSelfTest:
		if err := s.dev.SelfTest(req.Args[0] != 0); err != nil {
			return nil, err
		}
		return appendOK(dst), nil
	}
	return nil, ErrUnknownOp
}
