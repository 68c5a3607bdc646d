package bridge

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootSuccess(t *testing.T) {
	usb := &fakeChannel{}
	bt := &fakeChannel{}
	buzzer := &fakeBeeper{}
	radio := &fakeRadio{}

	got, err := Boot(BootConfig{
		USB:       usb,
		Bluetooth: bt,
		BTName:    "Sting_Node_2",
		Buzzer:    buzzer,
		InitRadio: func() (Radio, error) { return radio, nil },
	})
	require.NoError(t, err)
	assert.Same(t, radio, got)

	want := []string{
		"LoRa Two-Way Chat",
		"Initializing...",
		"Bluetooth device name: Sting_Node_2",
		"LoRa initialized successfully!",
		"Ready to send and receive messages.",
		"Input channels: USB Serial + Bluetooth Serial",
		"-----------------------------------",
	}
	assert.Equal(t, want, usb.out)
	assert.Equal(t, want, bt.out)

	// Exactly one readiness pulse.
	assert.Equal(t, []int{1}, buzzer.beeps)
}

func TestBootRadioFailure(t *testing.T) {
	usb := &fakeChannel{}
	bt := &fakeChannel{}
	buzzer := &fakeBeeper{}

	_, err := Boot(BootConfig{
		USB:       usb,
		Bluetooth: bt,
		BTName:    "Sting_Node_2",
		Buzzer:    buzzer,
		InitRadio: func() (Radio, error) { return nil, errors.New("version mismatch") },
	})
	require.Error(t, err)

	want := []string{
		"LoRa Two-Way Chat",
		"Initializing...",
		"Bluetooth device name: Sting_Node_2",
		"ERROR: LoRa init failed!",
	}
	assert.Equal(t, want, usb.out)
	assert.Equal(t, want, bt.out)

	// Exactly one error line, no ready banner, no pulses.
	var errLines int
	for _, line := range usb.out {
		if strings.HasPrefix(line, "ERROR:") {
			errLines++
		}
	}
	assert.Equal(t, 1, errLines)
	assert.Empty(t, buzzer.beeps)
}

func TestBootWithoutBuzzer(t *testing.T) {
	usb := &fakeChannel{}

	_, err := Boot(BootConfig{
		USB:       usb,
		InitRadio: func() (Radio, error) { return &fakeRadio{}, nil },
	})
	require.NoError(t, err)
	assert.Equal(t, "-----------------------------------", usb.out[len(usb.out)-1])
}
