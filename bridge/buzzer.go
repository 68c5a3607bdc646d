package bridge

import (
	"fmt"
	"time"
)

// OutputPin drives a single digital output, such as a buzzer transistor.
type OutputPin interface {
	Out(high bool) error
}

// Beeper emits short audible pulses.
type Beeper interface {
	// Beep emits count pulses and blocks for their whole duration.
	Beep(count int) error
}

// Buzzer is a Beeper over a GPIO output pin. Pulses block the caller for
// the whole pulse train, like a delay-driven buzzer routine on a
// microcontroller.
type Buzzer struct {
	pin   OutputPin
	pulse time.Duration
}

// DefaultPulse is the on (and gap) time of one buzzer pulse.
const DefaultPulse = 100 * time.Millisecond

// NewBuzzer creates a Buzzer on the given pin and drives it to its idle
// (low) state. A pulse duration of 0 selects DefaultPulse.
func NewBuzzer(pin OutputPin, pulse time.Duration) (*Buzzer, error) {
	if pin == nil {
		return nil, fmt.Errorf("buzzer pin not configured")
	}
	if pulse == 0 {
		pulse = DefaultPulse
	}
	if err := pin.Out(false); err != nil {
		return nil, err
	}
	return &Buzzer{pin: pin, pulse: pulse}, nil
}

// Beep emits count pulses with one pulse-width gap between them. It blocks
// until the last pulse has finished.
func (b *Buzzer) Beep(count int) error {
	for i := 0; i < count; i++ {
		if err := b.pin.Out(true); err != nil {
			return err
		}
		time.Sleep(b.pulse)
		if err := b.pin.Out(false); err != nil {
			return err
		}
		if i < count-1 {
			time.Sleep(b.pulse)
		}
	}
	return nil
}
