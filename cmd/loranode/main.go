// Command loranode runs a LoRa two-way chat node: lines typed on the USB
// serial or Bluetooth serial channel are transmitted as raw text over the
// radio, and received packets are printed back to both channels with an
// audible buzzer cue.
package main

import (
	"time"

	"github.com/stingmesh/loranode/bridge"
	"github.com/stingmesh/loranode/sx1278"
)

// Hardware is the per-target wiring assembled by SetupHardware (see the
// setup-* files selected by build tag).
type Hardware struct {
	USB       bridge.Channel
	Bluetooth bridge.Channel
	BTName    string
	Buzzer    *bridge.Buzzer
	Logger    bridge.Logger

	// InitRadio is deferred so the startup banner reaches the serial
	// channels before the radio is touched.
	InitRadio func() (bridge.Radio, error)
}

func main() {
	hw := SetupHardware()

	boot := bridge.BootConfig{
		USB:       hw.USB,
		Bluetooth: hw.Bluetooth,
		BTName:    hw.BTName,
		InitRadio: hw.InitRadio,
	}
	cfg := bridge.Config{
		USB:       hw.USB,
		Bluetooth: hw.Bluetooth,
		Logger:    hw.Logger,
	}
	if hw.Buzzer != nil {
		boot.Buzzer = hw.Buzzer
		cfg.Buzzer = hw.Buzzer
	}

	radio, err := bridge.Boot(boot)
	if err != nil {
		// Radio init failure is fatal: Boot has printed the one error
		// line, all that is left is the permanent halt.
		halt()
	}
	cfg.Radio = radio

	node, err := bridge.New(cfg)
	if err != nil {
		bridge.WriteAll("ERROR: "+err.Error(), hw.USB, hw.Bluetooth)
		halt()
	}

	node.Run(exitContext())
}

// halt parks the program forever. The reference hardware has no recovery
// path short of a power cycle, and neither does this.
func halt() {
	for {
		time.Sleep(time.Second)
	}
}

// outPin adapts a driver pin to the buzzer's output interface.
type outPin struct {
	p sx1278.Pin
}

func (o outPin) Out(high bool) error { return o.p.Out(sx1278.Level(high)) }
