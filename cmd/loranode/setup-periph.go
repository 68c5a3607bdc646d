//go:build !tinygo

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"tinygo.org/x/bluetooth"

	"github.com/stingmesh/loranode/bridge"
	"github.com/stingmesh/loranode/btserial"
	"github.com/stingmesh/loranode/sx1278"
	"github.com/stingmesh/loranode/usbserial"
)

var (
	spiBus     = flag.String("spi", "/dev/spidev0.0", "SPI bus of the SX1278 module")
	spiHz      = flag.Int("spi-hz", 1000000, "SPI clock frequency in Hz")
	resetPin   = flag.Int("reset-pin", 22, "GPIO pin (BCM) wired to the radio reset")
	dio0Pin    = flag.Int("dio0-pin", 25, "GPIO pin (BCM) wired to DIO0 (polled, not an interrupt)")
	buzzerPin  = flag.Int("buzzer-pin", 24, "GPIO pin (BCM) driving the buzzer")
	frequency  = flag.Uint("frequency", 433000000, "LoRa carrier frequency in Hz")
	serialPort = flag.String("port", "-", `serial port device path, "" to autodetect a USB adapter, "-" for stdio`)
	baudRate   = flag.Int("baud", usbserial.DefaultBaudRate, "serial port baud rate")
	btName     = flag.String("bt-name", "Sting_Node_2", "advertised Bluetooth device name")
)

// glogLogger adapts glog to the driver and bridge logging interfaces.
type glogLogger struct{}

func (glogLogger) Debug(msg string) { glog.V(1).Info(msg) }
func (glogLogger) Info(msg string)  { glog.Info(msg) }
func (glogLogger) Warn(msg string)  { glog.Warning(msg) }
func (glogLogger) Error(msg string) { glog.Error(msg) }

// SetupHardware wires the chat node on a hosted Linux system: periph.io
// for SPI/GPIO, go.bug.st/serial (or stdio) for the USB channel and BlueZ
// for the Bluetooth channel. Setup failures other than the radio itself
// are fatal here; the radio is initialized later so its failure can follow
// the banner onto the channels.
func SetupHardware() *Hardware {
	flag.Parse()

	logger := glogLogger{}
	sx1278.SetLogger(logger)

	hw := &Hardware{BTName: *btName, Logger: logger}

	// USB serial channel: a real port, or stdio for desk testing.
	if *serialPort == "-" {
		hw.USB = bridge.NewIOChannel(os.Stdin, os.Stdout, logger)
	} else {
		port, err := usbserial.Open(usbserial.Config{Port: *serialPort, BaudRate: *baudRate, Logger: logger})
		if err != nil {
			glog.Exitf("serial port: %v", err)
		}
		glog.Info("USB serial channel on " + port.Name())
		hw.USB = port
	}

	// Bluetooth serial channel. A missing or disabled BLE stack degrades
	// the node to USB-only operation.
	bt, err := btserial.Listen(bluetooth.DefaultAdapter, *btName)
	if err != nil {
		glog.Warningf("bluetooth disabled: %v", err)
	} else {
		glog.Info("Bluetooth serial channel advertising as " + bt.Name())
		hw.Bluetooth = bt
	}

	pin, err := sx1278.OutputPin(*buzzerPin)
	if err != nil {
		glog.Exitf("buzzer pin: %v", err)
	}
	buzzer, err := bridge.NewBuzzer(outPin{pin}, 0)
	if err != nil {
		glog.Exitf("buzzer: %v", err)
	}
	hw.Buzzer = buzzer

	hw.InitRadio = func() (bridge.Radio, error) {
		dev, err := sx1278.New(sx1278.Config{
			RadioConfig: sx1278.RadioConfig{Frequency: uint32(*frequency)},
			ResetPin:    *resetPin,
			DIO0Pin:     *dio0Pin,
			SpiBusPath:  *spiBus,
			SpiClockHz:  *spiHz,
		})
		if err != nil {
			glog.Errorf("radio init: %v", err)
			return nil, err
		}
		glog.Info(dev.String())
		return dev, nil
	}

	return hw
}

// exitContext returns a context cancelled on SIGINT/SIGTERM.
func exitContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}
