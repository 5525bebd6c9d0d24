// Package adxl362test provides a simulated ADXL362 that answers SPI
// transactions from a register file and a sample FIFO.
package adxl362test

import (
	"errors"
	"sync"

	"github.com/jangala-dev/tinygo-uartxfer/adxl362"
)

// Sim is a simulated ADXL362. It implements adxl362.Conn.
type Sim struct {
	mu   sync.Mutex
	regs [0x30]byte
	fifo []uint16
	log  []Frame
	id   byte
}

// Frame is one recorded transaction.
type Frame struct {
	Cmd  byte
	Addr adxl362.Register
	Data []byte
}

var errShort = errors.New("adxl362test: short transaction")

// New returns a simulator in its power-on state.
func New() *Sim {
	s := &Sim{id: adxl362.DevIDAD}
	s.reset()
	return s
}

func (s *Sim) reset() {
	s.regs = [0x30]byte{}
	s.regs[adxl362.RegDevIDAD] = s.id
	s.regs[adxl362.RegDevIDMST] = adxl362.DevIDMST
	s.regs[adxl362.RegPartID] = adxl362.PartID
	s.regs[adxl362.RegRevID] = 0x02
	s.regs[adxl362.RegStatus] = byte(adxl362.StatusAwake)
	s.regs[adxl362.RegFIFOSamples] = 0x80
	s.regs[adxl362.RegFilterCtl] = 0x13
	s.fifo = s.fifo[:0]
	s.syncFIFO()
}

// Tx implements adxl362.Conn.
func (s *Sim) Tx(w, r []byte) error {
	if len(w) == 0 {
		return errShort
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch w[0] {
	case adxl362.CmdReadReg:
		if len(w) < 2 || len(r) != len(w) {
			return errShort
		}
		addr := w[1]
		s.log = append(s.log, Frame{Cmd: w[0], Addr: adxl362.Register(addr)})
		for i := 2; i < len(r); i++ {
			r[i] = s.read(addr)
			addr++
		}
	case adxl362.CmdWriteReg:
		if len(w) < 3 {
			return errShort
		}
		addr := w[1]
		s.log = append(s.log, Frame{Cmd: w[0], Addr: adxl362.Register(addr), Data: append([]byte(nil), w[2:]...)})
		for _, v := range w[2:] {
			s.write(addr, v)
			addr++
		}
	case adxl362.CmdReadFIFO:
		if len(r) != len(w) {
			return errShort
		}
		s.log = append(s.log, Frame{Cmd: w[0]})
		for i := 1; i+1 < len(r); i += 2 {
			var word uint16
			if len(s.fifo) > 0 {
				word = s.fifo[0]
				s.fifo = s.fifo[1:]
			}
			r[i], r[i+1] = byte(word), byte(word>>8)
		}
		s.syncFIFO()
	default:
		return errors.New("adxl362test: unknown command")
	}
	return nil
}

func (s *Sim) read(addr byte) byte {
	if int(addr) >= len(s.regs) {
		return 0
	}
	v := s.regs[addr]
	if adxl362.Register(addr) == adxl362.RegStatus {
		s.regs[addr] &^= byte(adxl362.StatusAct | adxl362.StatusInact)
	}
	return v
}

func (s *Sim) write(addr, v byte) {
	reg := adxl362.Register(addr)
	if !reg.Writable() {
		return
	}
	switch reg {
	case adxl362.RegSoftReset:
		if v == adxl362.SoftResetKey {
			s.reset()
		}
		return
	case adxl362.RegThreshActH, adxl362.RegThreshInactH:
		v &= 0x07
	}
	s.regs[addr] = v
}

func (s *Sim) measuring() bool {
	return s.regs[adxl362.RegPowerCtl]&adxl362.PowerMeasureMask == adxl362.PowerMeasure
}

func (s *Sim) syncFIFO() {
	n := len(s.fifo)
	s.regs[adxl362.RegFIFOEntriesL] = byte(n)
	s.regs[adxl362.RegFIFOEntriesH] = byte(n>>8) & 0x03
	st := adxl362.Status(s.regs[adxl362.RegStatus]) &^ adxl362.StatusFIFOReady
	if n > 0 {
		st |= adxl362.StatusFIFOReady
	}
	s.regs[adxl362.RegStatus] = byte(st)
}

// SetAcceleration loads a new sample. It is visible only while measuring,
// as on the part.
func (s *Sim) SetAcceleration(x, y, z int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.measuring() {
		return
	}
	for i, v := range [3]int16{x, y, z} {
		lo := adxl362.RegXDataL + adxl362.Register(2*i)
		s.regs[lo] = byte(v)
		s.regs[lo+1] = byte(uint16(v) >> 8)
		s.regs[adxl362.RegXData+adxl362.Register(i)] = byte(v >> 4)
	}
	s.regs[adxl362.RegStatus] |= byte(adxl362.StatusDataReady)
}

// SetTemperature loads a raw temperature reading.
func (s *Sim) SetTemperature(raw int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.measuring() {
		return
	}
	s.regs[adxl362.RegTempL] = byte(raw)
	s.regs[adxl362.RegTempH] = byte(uint16(raw) >> 8)
}

// SetStatus raises status bits.
func (s *Sim) SetStatus(st adxl362.Status) {
	s.mu.Lock()
	s.regs[adxl362.RegStatus] |= byte(st)
	s.mu.Unlock()
}

// PushFIFO appends samples to the FIFO.
func (s *Sim) PushFIFO(samples ...adxl362.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, smp := range samples {
		if len(s.fifo) >= adxl362.MaxFIFOSamples {
			s.regs[adxl362.RegStatus] |= byte(adxl362.StatusFIFOOverrun)
			break
		}
		s.fifo = append(s.fifo, smp.Word())
	}
	s.syncFIFO()
}

// SetID makes DEVID_AD read id, including after a soft reset.
func (s *Sim) SetID(id byte) {
	s.mu.Lock()
	s.id = id
	s.regs[adxl362.RegDevIDAD] = id
	s.mu.Unlock()
}

// Register returns the current value of reg.
func (s *Sim) Register(reg adxl362.Register) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(reg) >= len(s.regs) {
		return 0
	}
	return s.regs[reg]
}

// Frames returns the recorded transactions.
func (s *Sim) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.log...)
}
