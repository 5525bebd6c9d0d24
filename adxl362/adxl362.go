// Package adxl362 is a register-level client for the Analog Devices ADXL362
// 3-axis accelerometer on an SPI bus.
//
// Every access is one bus transaction: a command byte (CmdWriteReg,
// CmdReadReg or CmdReadFIFO), a register address for register commands, then
// the payload. Register bursts auto-increment the address. Multi-byte fields
// are little endian: the low byte sits at the lower address.
package adxl362

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jangala-dev/tinygo-uartxfer/pkg"
)

// Conn is a full-duplex SPI connection. w and r have the same length when
// both are non-nil. periph.io spi.Conn and TinyGo machine.SPI satisfy it.
type Conn interface {
	Tx(w, r []byte) error
}

// Pin is a chip-select output, active low.
type Pin interface {
	High()
	Low()
}

var (
	// ErrReadOnly is returned for writes to identification, data, status or
	// reserved registers. The bus is not touched.
	ErrReadOnly = errors.New("adxl362: register is read-only")

	// ErrNotMeasuring is returned by data reads issued before POWER_CTL has
	// selected measurement mode.
	ErrNotMeasuring = errors.New("adxl362: not in measurement mode")

	// ErrBurstTooLong is returned for register bursts longer than MaxBurst.
	ErrBurstTooLong = errors.New("adxl362: burst too long")
)

// IDError reports an unexpected identification register value.
type IDError struct {
	Reg  Register
	Got  byte
	Want byte
}

func (e *IDError) Error() string {
	return fmt.Sprintf("adxl362: register 0x%02X reads 0x%02X, want 0x%02X", byte(e.Reg), e.Got, e.Want)
}

// MaxBurst is the longest register burst; it covers the whole map.
const MaxBurst = 0x30

// fifoChunk is the FIFO payload moved per transaction. Even, so sample
// words never straddle two transactions.
const fifoChunk = 32

// Device is an ADXL362 on a Conn.
type Device struct {
	bus Conn
	cs  Pin
	log *slog.Logger

	measuring bool

	w [2 + MaxBurst]byte
	r [2 + MaxBurst]byte
}

// New returns a Device. cs may be nil when the bus drives chip select.
func New(bus Conn, cs Pin) *Device {
	d := &Device{bus: bus, cs: cs, log: pkg.With(nil, pkg.ComponentAccel)}
	if cs != nil {
		cs.High()
	}
	return d
}

// SetLogger replaces the logger used for configuration messages.
func (d *Device) SetLogger(l *slog.Logger) { d.log = pkg.With(l, pkg.ComponentAccel) }

func (d *Device) tx(w, r []byte) error {
	if d.cs != nil {
		d.cs.Low()
		defer d.cs.High()
	}
	return d.bus.Tx(w, r)
}

// ReadRegister reads one register.
func (d *Device) ReadRegister(reg Register) (byte, error) {
	var v [1]byte
	if err := d.ReadRegisters(reg, v[:]); err != nil {
		return 0, err
	}
	return v[0], nil
}

// ReadRegisters reads len(p) consecutive registers starting at reg.
func (d *Device) ReadRegisters(reg Register, p []byte) error {
	if len(p) > MaxBurst {
		return ErrBurstTooLong
	}
	n := 2 + len(p)
	w, r := d.w[:n], d.r[:n]
	w[0], w[1] = CmdReadReg, byte(reg)
	clear(w[2:])
	if err := d.tx(w, r); err != nil {
		return fmt.Errorf("adxl362: read 0x%02X: %w", byte(reg), err)
	}
	copy(p, r[2:])
	return nil
}

// WriteRegister writes one register.
func (d *Device) WriteRegister(reg Register, v byte) error {
	return d.WriteRegisters(reg, v)
}

// WriteRegisters writes consecutive registers starting at reg. Every target
// must be writable.
func (d *Device) WriteRegisters(reg Register, vals ...byte) error {
	if len(vals) > MaxBurst {
		return ErrBurstTooLong
	}
	for i := range vals {
		if !(reg + Register(i)).Writable() {
			return fmt.Errorf("%w: 0x%02X", ErrReadOnly, byte(reg)+byte(i))
		}
	}
	n := 2 + len(vals)
	w := d.w[:n]
	w[0], w[1] = CmdWriteReg, byte(reg)
	copy(w[2:], vals)
	if err := d.tx(w, nil); err != nil {
		return fmt.Errorf("adxl362: write 0x%02X: %w", byte(reg), err)
	}
	d.track(reg, vals)
	return nil
}

// track follows writes that change the measurement state.
func (d *Device) track(reg Register, vals []byte) {
	for i, v := range vals {
		switch reg + Register(i) {
		case RegPowerCtl:
			d.measuring = v&PowerMeasureMask == PowerMeasure
		case RegSoftReset:
			if v == SoftResetKey {
				d.measuring = false
			}
		}
	}
}

// ReadFIFO drains len(p) bytes from the FIFO. Each sample is two bytes; see
// ParseFIFO.
func (d *Device) ReadFIFO(p []byte) error {
	for len(p) > 0 {
		k := min(len(p), fifoChunk)
		w, r := d.w[:1+k], d.r[:1+k]
		w[0] = CmdReadFIFO
		clear(w[1:])
		if err := d.tx(w, r); err != nil {
			return fmt.Errorf("adxl362: read fifo: %w", err)
		}
		copy(p, r[1:])
		p = p[k:]
	}
	return nil
}

// ---------------- Data ----------------

// Measuring reports whether POWER_CTL was last written with measurement mode.
func (d *Device) Measuring() bool { return d.measuring }

// ReadAcceleration returns the 12-bit axis results, in LSBs of the range.
func (d *Device) ReadAcceleration() (x, y, z int16, err error) {
	if !d.measuring {
		return 0, 0, 0, ErrNotMeasuring
	}
	var b [6]byte
	if err := d.ReadRegisters(RegXDataL, b[:]); err != nil {
		return 0, 0, 0, err
	}
	return le16(b[0:]), le16(b[2:]), le16(b[4:]), nil
}

// ReadAcceleration8 returns the 8 most significant bits of each axis.
func (d *Device) ReadAcceleration8() (x, y, z int8, err error) {
	if !d.measuring {
		return 0, 0, 0, ErrNotMeasuring
	}
	var b [3]byte
	if err := d.ReadRegisters(RegXData, b[:]); err != nil {
		return 0, 0, 0, err
	}
	return int8(b[0]), int8(b[1]), int8(b[2]), nil
}

// ReadTemperature returns the raw 12-bit temperature, about 0.065 °C/LSB.
func (d *Device) ReadTemperature() (int16, error) {
	if !d.measuring {
		return 0, ErrNotMeasuring
	}
	var b [2]byte
	if err := d.ReadRegisters(RegTempL, b[:]); err != nil {
		return 0, err
	}
	return le16(b[:]), nil
}

// ReadStatus reads STATUS. Reading clears the activity/inactivity flags.
func (d *Device) ReadStatus() (Status, error) {
	v, err := d.ReadRegister(RegStatus)
	return Status(v), err
}

// FIFOEntries returns the number of valid 16-bit words in the FIFO.
func (d *Device) FIFOEntries() (uint16, error) {
	var b [2]byte
	if err := d.ReadRegisters(RegFIFOEntriesL, b[:]); err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1]&0x03)<<8, nil
}

func le16(b []byte) int16 { return int16(uint16(b[0]) | uint16(b[1])<<8) }

// ---------------- Control ----------------

// SoftReset resets the part. Registers return to their power-on values and
// measurement stops.
func (d *Device) SoftReset() error {
	return d.WriteRegister(RegSoftReset, SoftResetKey)
}

// SelfTest applies or removes the self-test force.
func (d *Device) SelfTest(on bool) error {
	var v byte
	if on {
		v = 1
	}
	return d.WriteRegister(RegSelfTest, v)
}

// SetPowerControl writes POWER_CTL.
func (d *Device) SetPowerControl(v byte) error {
	return d.WriteRegister(RegPowerCtl, v)
}

// SetFilter selects range and output data rate. Bandwidth is ODR/4.
func (d *Device) SetFilter(r Range, odr ODR) error {
	return d.WriteRegister(RegFilterCtl, FilterValue(r, odr, true))
}

// SetActivity programs the 11-bit activity threshold and the activity time
// in samples.
func (d *Device) SetActivity(thresh uint16, samples uint8) error {
	return d.WriteRegisters(RegThreshActL, byte(thresh), byte(thresh>>8)&0x07, samples)
}

// SetInactivity programs the 11-bit inactivity threshold and the 16-bit
// inactivity time in samples.
func (d *Device) SetInactivity(thresh uint16, samples uint16) error {
	return d.WriteRegisters(RegThreshInactL, byte(thresh), byte(thresh>>8)&0x07, byte(samples), byte(samples>>8))
}

// SetActInactControl writes ACT_INACT_CTL.
func (d *Device) SetActInactControl(v byte) error {
	return d.WriteRegister(RegActInactCtl, v)
}

// SetFIFO selects the FIFO mode, the watermark in samples (up to
// MaxFIFOSamples) and whether temperature is stored with each set.
func (d *Device) SetFIFO(mode FIFOMode, samples uint16, temp bool) error {
	if samples > MaxFIFOSamples {
		samples = MaxFIFOSamples
	}
	ctl := byte(mode) & 0x03
	if samples > 0xFF {
		ctl |= fifoAboveHalf
	}
	if temp {
		ctl |= fifoTemp
	}
	return d.WriteRegisters(RegFIFOControl, ctl, byte(samples))
}

// SetInterruptMap writes INTMAP1 (n == 1) or INTMAP2 (n == 2).
func (d *Device) SetInterruptMap(n int, v byte) error {
	switch n {
	case 1:
		return d.WriteRegister(RegIntMap1, v)
	case 2:
		return d.WriteRegister(RegIntMap2, v)
	}
	return fmt.Errorf("adxl362: no interrupt map %d", n)
}

// ---------------- Configuration ----------------

// Config is the part configuration applied by Configure. The zero value
// selects ±2 g at 100 Hz with the FIFO disabled and measurement on.
type Config struct {
	Range Range
	ODR   ODR // zero selects ODR100Hz

	FIFOMode    FIFOMode
	FIFOSamples uint16
	FIFOTemp    bool

	IntMap1 byte
	IntMap2 byte

	// LowNoise selects the low noise mode in POWER_CTL.
	LowNoise bool
	// Standby leaves the part in standby instead of measurement mode.
	Standby bool
}

// Configure resets the part, checks its identity, programs filter, FIFO and
// interrupt maps, and writes POWER_CTL last.
func (d *Device) Configure(cfg Config) error {
	if err := d.SoftReset(); err != nil {
		return err
	}
	if err := d.CheckID(); err != nil {
		return err
	}
	odr := cfg.ODR
	if odr == 0 {
		odr = ODR100Hz
	}
	if err := d.SetFilter(cfg.Range, odr); err != nil {
		return err
	}
	if err := d.SetFIFO(cfg.FIFOMode, cfg.FIFOSamples, cfg.FIFOTemp); err != nil {
		return err
	}
	if err := d.WriteRegisters(RegIntMap1, cfg.IntMap1, cfg.IntMap2); err != nil {
		return err
	}

	power := PowerMeasure
	if cfg.Standby {
		power = PowerStandby
	}
	if cfg.LowNoise {
		power |= PowerLowNoise
	}
	if err := d.SetPowerControl(power); err != nil {
		return err
	}
	d.log.Info("configured", "range", cfg.Range, "odr", odr, "fifo", cfg.FIFOMode, "measuring", d.measuring)
	return nil
}

// CheckID verifies the three identification registers.
func (d *Device) CheckID() error {
	var id [3]byte
	if err := d.ReadRegisters(RegDevIDAD, id[:]); err != nil {
		return err
	}
	for i, want := range [3]byte{DevIDAD, DevIDMST, PartID} {
		if id[i] != want {
			err := &IDError{Reg: RegDevIDAD + Register(i), Got: id[i], Want: want}
			d.log.Error("identity check failed", "err", err)
			return err
		}
	}
	return nil
}
