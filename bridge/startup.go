package bridge

type BootConfig struct {
	// USB is the USB serial channel.
	// Optional.
	USB Channel
	// Bluetooth is the Bluetooth serial channel.
	// Optional.
	Bluetooth Channel
	// BTName is the advertised Bluetooth device name, printed in the
	// startup banner.
	BTName string
	// Buzzer signals readiness with a single pulse.
	// Optional. If not provided, readiness is silent.
	Buzzer Beeper
	// InitRadio brings up the radio. It is called after the banner so
	// that init failure output follows it onto the channels. Required.
	InitRadio func() (Radio, error)
}

// Boot runs the one-time startup sequence: print the startup banner to
// every channel, initialize the radio, print the ready banner and emit a
// single readiness pulse. On radio failure it prints exactly one error
// line, emits no pulse and returns the error; the caller is expected to
// halt.
func Boot(c BootConfig) (Radio, error) {
	out := []Channel{c.USB, c.Bluetooth}

	WriteAll("LoRa Two-Way Chat", out...)
	WriteAll("Initializing...", out...)
	WriteAll("Bluetooth device name: "+c.BTName, out...)

	radio, err := c.InitRadio()
	if err != nil {
		WriteAll("ERROR: LoRa init failed!", out...)
		return nil, err
	}

	WriteAll("LoRa initialized successfully!", out...)
	WriteAll("Ready to send and receive messages.", out...)
	WriteAll("Input channels: USB Serial + Bluetooth Serial", out...)
	WriteAll("-----------------------------------", out...)

	if c.Buzzer != nil {
		c.Buzzer.Beep(1)
	}

	return radio, nil
}
