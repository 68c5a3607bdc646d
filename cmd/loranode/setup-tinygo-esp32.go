//go:build tinygo

package main

import (
	"context"
	"time"

	"machine"

	"tinygo.org/x/bluetooth"

	"github.com/stingmesh/loranode/bridge"
	"github.com/stingmesh/loranode/btserial"
	"github.com/stingmesh/loranode/sx1278"
)

// SX1278 (RA-01) wiring on the ESP32 dev board:
//
//	SX1278 Pin -> ESP32 Pin
//	SCK        -> GPIO18
//	MISO       -> GPIO19
//	MOSI       -> GPIO23
//	NSS        -> GPIO5
//	RST        -> GPIO14
//	DIO0       -> GPIO2 (polled, not used as an interrupt)
//
//	Buzzer     -> GPIO25 (GPIO34 is input-only, cannot use for output)
const (
	pinLoraSCK  = machine.Pin(18)
	pinLoraMISO = machine.Pin(19)
	pinLoraMOSI = machine.Pin(23)
	pinLoraNSS  = machine.Pin(5)
	pinLoraRST  = machine.Pin(14)
	pinLoraDIO0 = machine.Pin(2)
	pinBuzzer   = machine.Pin(25)
)

const (
	loraFrequency = 433000000
	btDeviceName  = "Sting_Node_2"
)

// SetupHardware wires the chat node on the bare-metal target: the USB-CDC
// serial for the USB channel, the SoftDevice BLE stack for the Bluetooth
// channel and the on-chip SPI for the radio.
func SetupHardware() *Hardware {
	// The driver's default TinyGo logger writes to machine.Serial, which
	// is the chat surface here. Keep diagnostics off it.
	sx1278.SetLogger(nil)

	hw := &Hardware{BTName: btDeviceName}

	hw.USB = bridge.NewIOChannel(&serialReader{uart: machine.Serial}, machine.Serial, nil)

	bt, err := btserial.Listen(bluetooth.DefaultAdapter, btDeviceName)
	if err == nil {
		hw.Bluetooth = bt
	}

	buzzer, err := bridge.NewBuzzer(outPin{sx1278.TinyGoOutputPin(pinBuzzer)}, 0)
	if err == nil {
		hw.Buzzer = buzzer
	}

	hw.InitRadio = func() (bridge.Radio, error) {
		// VSPI, the bus behind GPIO18/19/23.
		err := machine.SPI3.Configure(machine.SPIConfig{
			Frequency: 1000000,
			SCK:       pinLoraSCK,
			SDO:       pinLoraMOSI,
			SDI:       pinLoraMISO,
			Mode:      0,
		})
		if err != nil {
			return nil, err
		}
		return sx1278.NewTinyGo(
			sx1278.RadioConfig{Frequency: loraFrequency},
			machine.SPI3, pinLoraNSS, pinLoraRST, pinLoraDIO0,
		)
	}

	return hw
}

func exitContext() context.Context {
	return context.Background()
}

// serialReader adapts the byte-at-a-time machine serial API to io.Reader
// so the channel's line scanner can run over it.
type serialReader struct {
	uart machine.Serialer
}

func (r *serialReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for r.uart.Buffered() == 0 {
		time.Sleep(time.Millisecond)
	}
	n := 0
	for n < len(p) && r.uart.Buffered() > 0 {
		b, err := r.uart.ReadByte()
		if err != nil {
			break
		}
		p[n] = b
		n++
	}
	return n, nil
}
