// Package bridge implements a two-way chat node that forwards typed lines
// from its serial channels out over a LoRa radio and prints received radio
// packets back to every channel, with an audible buzzer cue on receipt.
//
// The node is a single-threaded polling loop: each iteration polls the USB
// channel, the Bluetooth channel and the radio once, in that order, and
// reacts. There is no framing, acknowledgement, retry or buffering beyond
// what the underlying channels provide.
package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Radio is the transceiver used to exchange raw text packets between nodes.
// *sx1278.Device satisfies it.
type Radio interface {
	// Transmit sends a raw packet, blocking until it is on the air.
	Transmit(p []byte) error
	// Receive returns a fully received packet and true, or nil and
	// false when nothing is pending. It must not block.
	Receive() ([]byte, bool)
}

// Source tags used in the echoed copy of every forwarded line.
const (
	TagUSB       = "USB"
	TagBluetooth = "BT"
)

// rxBeeps is the number of buzzer pulses emitted per received packet.
const rxBeeps = 2

// DefaultPollInterval paces the polling loop in Run.
const DefaultPollInterval = 5 * time.Millisecond

type Config struct {
	// USB is the USB serial channel.
	// Optional, but at least one channel must be configured.
	USB Channel
	// Bluetooth is the Bluetooth serial channel.
	// Optional, but at least one channel must be configured.
	Bluetooth Channel
	// Radio is the LoRa transceiver. Required.
	Radio Radio
	// Buzzer cues packet receipt.
	// Optional. If not provided, receipt is silent.
	Buzzer Beeper
	// PollInterval paces the loop in Run.
	// Defaults to DefaultPollInterval if not provided.
	PollInterval time.Duration
	// Logger receives diagnostics. Never written to the chat channels.
	// Optional.
	Logger Logger
}

type source struct {
	tag string
	ch  Channel
}

// Node bridges line-oriented serial channels to a LoRa radio.
type Node struct {
	sources  []source
	outputs  []Channel
	radio    Radio
	buzzer   Beeper
	interval time.Duration
	log      Logger
}

// New creates a Node. The radio and at least one channel are required.
func New(c Config) (*Node, error) {
	if c.Radio == nil {
		return nil, fmt.Errorf("radio not configured")
	}
	if c.USB == nil && c.Bluetooth == nil {
		return nil, fmt.Errorf("no serial channel configured")
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Logger == nil {
		c.Logger = &nopLogger{}
	}

	n := &Node{
		radio:    c.Radio,
		buzzer:   c.Buzzer,
		interval: c.PollInterval,
		log:      c.Logger,
	}
	if c.USB != nil {
		n.sources = append(n.sources, source{tag: TagUSB, ch: c.USB})
		n.outputs = append(n.outputs, c.USB)
	}
	if c.Bluetooth != nil {
		n.sources = append(n.sources, source{tag: TagBluetooth, ch: c.Bluetooth})
		n.outputs = append(n.outputs, c.Bluetooth)
	}
	return n, nil
}

// PrintAll writes one line to every configured channel.
func (n *Node) PrintAll(line string) {
	if err := WriteAll(line, n.outputs...); err != nil {
		n.log.Warn("channel write failed: " + err.Error())
	}
}

// Poll runs one iteration of the chat loop: one line poll per input
// channel, then one radio poll. It is the unit Run repeats and is exposed
// so bare-metal mains can drive the loop themselves.
func (n *Node) Poll() {
	for _, src := range n.sources {
		if line, ok := src.ch.Poll(); ok {
			n.forward(line, src.tag)
		}
	}

	if p, ok := n.radio.Receive(); ok {
		n.PrintAll("[RX] " + string(p))
		n.beep(rxBeeps)
	}
}

// forward trims a typed line, echoes the tagged copy to every channel and
// transmits it over the radio. Lines that are empty after trimming are
// silently dropped.
func (n *Node) forward(line, tag string) {
	msg := strings.TrimSpace(line)
	if msg == "" {
		return
	}

	n.PrintAll("[TX " + tag + "] " + msg)

	if err := n.radio.Transmit([]byte(msg)); err != nil {
		// Send failures are not surfaced on the chat channels.
		n.log.Warn("radio transmit failed: " + err.Error())
	}
}

func (n *Node) beep(count int) {
	if n.buzzer == nil {
		return
	}
	if err := n.buzzer.Beep(count); err != nil {
		n.log.Warn("buzzer failed: " + err.Error())
	}
}

// Run drives the polling loop until the context is cancelled. Buzzer
// pulses block the loop for their duration, so receipt cues delay the next
// poll cycle.
func (n *Node) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n.Poll()
		}
	}
}
