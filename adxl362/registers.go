package adxl362

// Register is an ADXL362 register address.
type Register byte

// Register map.
const (
	RegDevIDAD  Register = 0x00
	RegDevIDMST Register = 0x01
	RegPartID   Register = 0x02
	RegRevID    Register = 0x03

	// 8-bit axis data, the MSBs of the 12-bit result.
	RegXData Register = 0x08
	RegYData Register = 0x09
	RegZData Register = 0x0A

	RegStatus       Register = 0x0B
	RegFIFOEntriesL Register = 0x0C
	RegFIFOEntriesH Register = 0x0D

	RegXDataL Register = 0x0E
	RegXDataH Register = 0x0F
	RegYDataL Register = 0x10
	RegYDataH Register = 0x11
	RegZDataL Register = 0x12
	RegZDataH Register = 0x13
	RegTempL  Register = 0x14
	RegTempH  Register = 0x15

	RegReserved0 Register = 0x16
	RegReserved1 Register = 0x17

	RegSoftReset    Register = 0x1F
	RegThreshActL   Register = 0x20
	RegThreshActH   Register = 0x21
	RegTimeAct      Register = 0x22
	RegThreshInactL Register = 0x23
	RegThreshInactH Register = 0x24
	RegTimeInactL   Register = 0x25
	RegTimeInactH   Register = 0x26
	RegActInactCtl  Register = 0x27
	RegFIFOControl  Register = 0x28
	RegFIFOSamples  Register = 0x29
	RegIntMap1      Register = 0x2A
	RegIntMap2      Register = 0x2B
	RegFilterCtl    Register = 0x2C
	RegPowerCtl     Register = 0x2D
	RegSelfTest     Register = 0x2E
)

// Bus commands.
const (
	CmdWriteReg byte = 0x0A
	CmdReadReg  byte = 0x0B
	CmdReadFIFO byte = 0x0D
)

// Identification values.
const (
	DevIDAD  byte = 0xAD
	DevIDMST byte = 0x1D
	PartID   byte = 0xF2
)

// SoftResetKey is the value written to RegSoftReset to reset the part.
const SoftResetKey byte = 0x52

// Writable reports whether r accepts writes. Identification, data, status
// and reserved registers are read-only.
func (r Register) Writable() bool {
	return r >= RegSoftReset && r <= RegSelfTest
}

// Status is the STATUS register.
type Status byte

const (
	StatusDataReady     Status = 1 << 0
	StatusFIFOReady     Status = 1 << 1
	StatusFIFOWatermark Status = 1 << 2
	StatusFIFOOverrun   Status = 1 << 3
	StatusAct           Status = 1 << 4
	StatusInact         Status = 1 << 5
	StatusAwake         Status = 1 << 6
	StatusErrUserRegs   Status = 1 << 7
)

// Range is the measurement range field of FILTER_CTL (bits 7:6).
type Range byte

const (
	Range2G Range = iota
	Range4G
	Range8G
)

// ODR is the output data rate field of FILTER_CTL (bits 2:0).
type ODR byte

const (
	ODR12_5Hz ODR = iota
	ODR25Hz
	ODR50Hz
	ODR100Hz
	ODR200Hz
	ODR400Hz
)

const (
	filterRangeShift = 6
	filterHalfBW     = 1 << 4
	filterExtSample  = 1 << 3
	filterODRMask    = 0x07
)

// FilterValue assembles a FILTER_CTL value.
func FilterValue(r Range, odr ODR, halfBW bool) byte {
	v := byte(r&0x03)<<filterRangeShift | byte(odr)&filterODRMask
	if halfBW {
		v |= filterHalfBW
	}
	return v
}

// FIFOMode is the FIFO_CONTROL mode field (bits 1:0).
type FIFOMode byte

const (
	FIFODisabled FIFOMode = iota
	FIFOOldestSaved
	FIFOStream
	FIFOTriggered
)

const (
	fifoAboveHalf = 1 << 3 // ninth bit of FIFO_SAMPLES
	fifoTemp      = 1 << 2
)

// POWER_CTL fields.
const (
	PowerMeasureMask byte = 0x03
	PowerStandby     byte = 0x00
	PowerMeasure     byte = 0x02
	PowerAutosleep   byte = 1 << 2
	PowerWakeup      byte = 1 << 3
	PowerLowNoise    byte = 0x10 // low noise; bits 5:4 also select ultralow
	PowerNoiseMask   byte = 0x30
	PowerExtClk      byte = 1 << 6
)

// ACT_INACT_CTL fields.
const (
	ActEnable    byte = 1 << 0
	ActRef       byte = 1 << 1
	InactEnable  byte = 1 << 2
	InactRef     byte = 1 << 3
	LinkLoopMask byte = 0x30
)

// INTMAP bits.
const (
	IntDataReady     byte = 1 << 0
	IntFIFOReady     byte = 1 << 1
	IntFIFOWatermark byte = 1 << 2
	IntFIFOOverrun   byte = 1 << 3
	IntAct           byte = 1 << 4
	IntInact         byte = 1 << 5
	IntAwake         byte = 1 << 6
	IntLow           byte = 1 << 7
)

// MaxFIFOSamples is the FIFO depth in 16-bit words.
const MaxFIFOSamples = 511
