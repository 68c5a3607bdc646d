//go:build !tinygo

package sx1278

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// realPin wraps a gpio.PinIO to satisfy the Pin interface.
type realPin struct {
	gpio.PinIO
}

func (p *realPin) Out(l Level) error {
	if l == High {
		return p.PinIO.Out(gpio.High)
	}
	return p.PinIO.Out(gpio.Low)
}

func (p *realPin) In(pull Pull) error {
	var pPull gpio.Pull
	switch pull {
	case PullFloat:
		pPull = gpio.Float
	case PullDown:
		pPull = gpio.PullDown
	case PullUp:
		pPull = gpio.PullUp
	default:
		pPull = gpio.PullNoChange
	}
	return p.PinIO.In(pPull, gpio.NoEdge)
}

func (p *realPin) Read() Level {
	if p.PinIO.Read() == gpio.High {
		return High
	}
	return Low
}

// Config holds the configuration for the Linux/periph.io driver.
type Config struct {
	RadioConfig
	// ResetPin is the GPIO pin number (BCM numbering) for the radio reset pin.
	// Optional. If not provided, the chip is assumed to be out of reset.
	ResetPin int
	// DIO0Pin is the GPIO pin number (BCM numbering) for the DIO0 pin.
	// Optional. Polled only, never used as an interrupt source.
	DIO0Pin int
	// SpiBusPath is the path to the SPI bus (e.g., "/dev/spidev0.0").
	// Defaults to "/dev/spidev0.0" if not provided.
	SpiBusPath string
	// SpiClockHz is the SPI clock frequency in Hz.
	// Defaults to 1000000 (1MHz) if not provided.
	SpiClockHz int
}

// New creates and initializes an SX1278 driver for Linux systems.
// It applies configuration defaults, initializes the GPIO and SPI interfaces
// using periph.io, and configures the radio module.
// It returns the initialized driver or an error if hardware initialization fails.
func New(c Config) (*Device, error) {
	// periph.io host is required for both SPI and GPIO.
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io host: %w", err)
	}

	if c.SpiBusPath == "" {
		c.SpiBusPath = "/dev/spidev0.0"
	}

	p, err := spireg.Open(c.SpiBusPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port: %w", err)
	}

	if c.SpiClockHz == 0 {
		c.SpiClockHz = 1000000
	}

	// Mode 0, 8 bits.
	conn, err := p.Connect(physic.Frequency(c.SpiClockHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create SPI connection: %w", err)
	}

	var resetWrapper Pin
	if c.ResetPin != 0 {
		rstName := fmt.Sprintf("GPIO%d", c.ResetPin)
		realRst := gpioreg.ByName(rstName)
		if realRst == nil {
			p.Close()
			return nil, fmt.Errorf("failed to open reset pin %s", rstName)
		}
		resetWrapper = &realPin{PinIO: realRst}
	}

	var dio0Wrapper Pin
	if c.DIO0Pin != 0 {
		dioName := fmt.Sprintf("GPIO%d", c.DIO0Pin)
		realDio := gpioreg.ByName(dioName)
		if realDio == nil {
			p.Close()
			return nil, fmt.Errorf("failed to open DIO0 pin %s", dioName)
		}
		dio0Wrapper = &realPin{PinIO: realDio}
	}

	hwConfig := HardwareConfig{
		RadioConfig: c.RadioConfig,
		Reset:       resetWrapper,
		DIO0:        dio0Wrapper,
	}
	dev, err := NewWithHardware(hwConfig, conn)
	if err != nil {
		p.Close()
		return nil, err
	}

	// Store the port closer so we can close it later.
	dev.spiPort = p
	return dev, nil
}

// OutputPin opens a GPIO pin (BCM numbering) as a plain output.
// It is a convenience for auxiliary outputs wired next to the radio, such
// as a buzzer, and may be called before New.
func OutputPin(number int) (Pin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io host: %w", err)
	}
	name := fmt.Sprintf("GPIO%d", number)
	real := gpioreg.ByName(name)
	if real == nil {
		return nil, fmt.Errorf("failed to open pin %s", name)
	}
	return &realPin{PinIO: real}, nil
}
