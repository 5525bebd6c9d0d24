package adxl362

// Axis identifies the source of a FIFO word.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisTemp
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return "temp"
}

// Sample is one decoded FIFO word.
type Sample struct {
	Axis  Axis
	Value int16
}

// Word encodes s as the part stores it: axis in bits 15:14, data in 13:0.
func (s Sample) Word() uint16 {
	return uint16(s.Axis&0x03)<<14 | uint16(s.Value)&0x3FFF
}

// ParseFIFO decodes little-endian FIFO words from raw into out and returns
// the number of samples written. A trailing odd byte is ignored.
func ParseFIFO(raw []byte, out []Sample) int {
	n := 0
	for i := 0; i+1 < len(raw) && n < len(out); i += 2 {
		w := uint16(raw[i]) | uint16(raw[i+1])<<8
		out[n] = Sample{
			Axis:  Axis(w >> 14),
			Value: int16(w<<2) >> 2,
		}
		n++
	}
	return n
}
