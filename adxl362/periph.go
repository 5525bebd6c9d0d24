//go:build !tinygo

package adxl362

import (
	"fmt"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// DefaultSPIFrequency is the bus clock used by Open. The part accepts up to
// 8 MHz.
const DefaultSPIFrequency = 5 * physic.MegaHertz

// Port is a Device opened on a periph.io SPI port. Close puts the part in
// standby and releases the port.
type Port struct {
	*Device
	port spi.PortCloser
}

// Open initialises the host drivers and opens the named SPI port ("" for the
// first one available), e.g. "SPI0.0".
func Open(name string) (*Port, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("adxl362: host init: %w", err)
	}
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("adxl362: open %q: %w", name, err)
	}
	return Connect(p, DefaultSPIFrequency)
}

// Connect binds a Device to an open port in SPI mode 0. The port is closed
// if the connection fails.
func Connect(p spi.PortCloser, f physic.Frequency) (*Port, error) {
	c, err := p.Connect(f, spi.Mode0, 8)
	if err != nil {
		return nil, multierr.Combine(fmt.Errorf("adxl362: connect: %w", err), p.Close())
	}
	return &Port{Device: New(c, nil), port: p}, nil
}

// Close stops measurement and closes the port.
func (p *Port) Close() (err error) {
	if p.Device.Measuring() {
		err = p.Device.SetPowerControl(PowerStandby)
	}
	return multierr.Append(err, p.port.Close())
}
