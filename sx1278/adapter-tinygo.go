//go:build tinygo

package sx1278

import (
	"machine"
)

// tinygoPin wraps a machine.Pin to satisfy the Pin interface.
type tinygoPin struct {
	pin machine.Pin
}

func (p *tinygoPin) Out(l Level) error {
	p.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.pin.Set(bool(l))
	return nil
}

func (p *tinygoPin) In(pull Pull) error {
	var mPull machine.PinMode
	switch pull {
	case PullUp:
		mPull = machine.PinInputPullup
	case PullDown:
		mPull = machine.PinInputPulldown
	default:
		mPull = machine.PinInput
	}
	p.pin.Configure(machine.PinConfig{Mode: mPull})
	return nil
}

func (p *tinygoPin) Read() Level {
	return Level(p.pin.Get())
}

// tinygoSPI wraps a machine.SPI to satisfy the SPI interface.
// The NSS/chip-select pin is driven around every transaction.
type tinygoSPI struct {
	spi *machine.SPI
	cs  machine.Pin
}

func (s *tinygoSPI) Tx(w, r []byte) error {
	s.cs.Low()
	err := s.spi.Tx(w, r)
	s.cs.High()
	return err
}

// NewTinyGo creates a new SX1278 driver for TinyGo systems.
func NewTinyGo(c RadioConfig, spi *machine.SPI, csPin, rstPin, dio0Pin machine.Pin) (*Device, error) {
	// Configure CS pin as output and set high (inactive).
	csPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	csPin.High()

	var resetWrapper Pin
	if rstPin != machine.NoPin {
		resetWrapper = &tinygoPin{pin: rstPin}
	}

	var dio0Wrapper Pin
	if dio0Pin != machine.NoPin {
		dio0Wrapper = &tinygoPin{pin: dio0Pin}
	}

	spiWrapper := &tinygoSPI{spi: spi, cs: csPin}

	hwConfig := HardwareConfig{
		RadioConfig: c,
		Reset:       resetWrapper,
		DIO0:        dio0Wrapper,
	}
	return NewWithHardware(hwConfig, spiWrapper)
}

// TinyGoOutputPin wraps a machine.Pin as a plain output, for auxiliary
// outputs wired next to the radio such as a buzzer.
func TinyGoOutputPin(pin machine.Pin) Pin {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &tinygoPin{pin: pin}
}
