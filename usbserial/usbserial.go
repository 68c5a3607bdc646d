//go:build !tinygo

// Package usbserial provides the USB serial chat channel on hosted systems
// using go.bug.st/serial.
package usbserial

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/stingmesh/loranode/bridge"
)

// DefaultBaudRate matches the fixed rate of the reference hardware.
const DefaultBaudRate = 115200

type Config struct {
	// Port is the device path (e.g. "/dev/ttyUSB0", "COM3").
	// If empty, the first USB serial adapter found is used.
	Port string
	// BaudRate is the line speed.
	// Defaults to 115200 if not provided.
	BaudRate int
	// Logger receives channel diagnostics, such as the port dying
	// mid-session. Optional.
	Logger bridge.Logger
}

// Port is a line channel over a physical serial port.
type Port struct {
	*bridge.IOChannel
	port serial.Port
	name string
}

// Open opens the configured serial port as a chat channel.
func Open(c Config) (*Port, error) {
	if c.Port == "" {
		name, err := Find()
		if err != nil {
			return nil, err
		}
		c.Port = name
	}
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}

	p, err := serial.Open(c.Port, &serial.Mode{BaudRate: c.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", c.Port, err)
	}

	return &Port{
		IOChannel: bridge.NewIOChannel(p, p, c.Logger),
		port:      p,
		name:      c.Port,
	}, nil
}

// Name returns the device path of the open port.
func (p *Port) Name() string { return p.name }

// Close closes the underlying serial port. The channel's scanner goroutine
// exits on the resulting read error.
func (p *Port) Close() error { return p.port.Close() }

// usbKeywords identifies the USB serial adapter chips commonly found on
// microcontroller dev boards.
var usbKeywords = []string{"USB", "CH340", "CH341", "CP210", "FTDI", "PL2303", "ACM", "ARDUINO"}

// Find returns the device path of the first serial port that looks like a
// USB serial adapter.
func Find() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	for _, p := range ports {
		if p.IsUSB || matchesUSB(p.Name+" "+p.Product) {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("no USB serial port found")
}

func matchesUSB(desc string) bool {
	desc = strings.ToUpper(desc)
	for _, kw := range usbKeywords {
		if strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}
