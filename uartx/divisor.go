package uartx

import (
	"fmt"
	"time"
)

const (
	// DefaultClockHz is the peripheral clock assumed by Init.
	DefaultClockHz = 125_000_000
	// DefaultBaudRate is the line rate selected by Init.
	DefaultBaudRate = 115200

	// MaxBaudError is the largest accepted relative difference between the
	// requested and the generated baud rate. Receivers sampling mid-bit
	// tolerate roughly 4% total mismatch at 8N1; 2% leaves the other half
	// for the far end.
	MaxBaudError = 0.02

	bitsPerChar = 10 // 8N1
)

// Divisor is a baud generator setting: the 16x oversampled clock divisor
// split into a 16-bit integer part and a 6-bit fraction in 64ths.
type Divisor struct {
	Integer  uint16
	Fraction uint8
	ClockHz  uint32
	BaudRate uint32 // requested rate
}

// NewDivisor computes the divisor for baud from clockHz. It fails with a
// *ConfigError when either input is zero or the generated rate is off by
// more than MaxBaudError.
func NewDivisor(clockHz, baud uint32) (Divisor, error) {
	if clockHz == 0 || baud == 0 {
		return Divisor{}, &ConfigError{ClockHz: clockHz, BaudRate: baud, Reason: "clock and baud must be non-zero"}
	}

	// div is clock/(16*baud) in 128ths.
	div := 8 * uint64(clockHz) / uint64(baud)
	ibrd := div >> 7
	var fbrd uint64
	switch {
	case ibrd == 0:
		ibrd, fbrd = 1, 0
	case ibrd >= 65535:
		ibrd, fbrd = 65535, 0
	default:
		fbrd = ((div & 0x7f) + 1) / 2
		if fbrd == 64 {
			ibrd, fbrd = ibrd+1, 0
		}
	}

	d := Divisor{Integer: uint16(ibrd), Fraction: uint8(fbrd), ClockHz: clockHz, BaudRate: baud}
	if e := d.RateError(); e > MaxBaudError {
		return Divisor{}, &ConfigError{
			ClockHz:  clockHz,
			BaudRate: baud,
			Reason:   fmt.Sprintf("generated rate %d is off by %.2f%%, limit %.0f%%", int(d.Rate()), 100*e, 100*MaxBaudError),
		}
	}
	return d, nil
}

// Rate returns the baud rate the divisor actually generates.
func (d Divisor) Rate() float64 {
	den := 64*float64(d.Integer) + float64(d.Fraction)
	if den == 0 {
		return 0
	}
	return 4 * float64(d.ClockHz) / den
}

// RateError returns |generated-requested|/requested.
func (d Divisor) RateError() float64 {
	if d.BaudRate == 0 {
		return 1
	}
	e := (d.Rate() - float64(d.BaudRate)) / float64(d.BaudRate)
	if e < 0 {
		e = -e
	}
	return e
}

// ByteTime returns the duration of one 8N1 character at the generated rate.
func (d Divisor) ByteTime() time.Duration {
	r := d.Rate()
	if r <= 0 {
		return 0
	}
	return time.Duration(bitsPerChar * float64(time.Second) / r)
}
