// Package btserial exposes a Bluetooth LE serial chat channel using the
// Nordic UART Service (NUS), the de-facto replacement for classic
// Bluetooth SPP. Any NUS terminal app can connect and type lines.
package btserial

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"
)

// writeChunk is the notification payload size. 20 bytes fits the default
// BLE ATT MTU, so lines are pushed out in chunks.
const writeChunk = 20

// maxLineBytes caps the partial-line buffer. Input without a terminator
// beyond this is discarded.
const maxLineBytes = 512

// lineQueueDepth bounds how many completed input lines may wait for the
// chat loop before further lines are dropped.
const lineQueueDepth = 16

// notifier is the write side of the TX characteristic.
type notifier interface {
	Write(p []byte) (n int, err error)
}

// Serial is a line channel over the Nordic UART Service. It satisfies
// bridge.Channel.
type Serial struct {
	name string
	tx   bluetooth.Characteristic
	out  notifier

	lines chan string

	mu  sync.Mutex
	buf []byte // partial line, accumulated across RX writes
}

// Listen enables the Bluetooth stack, registers the UART service and
// starts advertising under the given device name. Central writes to the
// RX characteristic are assembled into newline-terminated lines; WriteLine
// notifies subscribed centrals on the TX characteristic.
func Listen(adapter *bluetooth.Adapter, name string) (*Serial, error) {
	s := &Serial{
		name:  name,
		lines: make(chan string, lineQueueDepth),
	}

	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable BLE stack: %w", err)
	}

	err := adapter.AddService(&bluetooth.Service{
		UUID: bluetooth.ServiceUUIDNordicUART,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &s.tx,
				UUID:   bluetooth.CharacteristicUUIDUARTTX,
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
			},
			{
				UUID:  bluetooth.CharacteristicUUIDUARTRX,
				Flags: bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					s.ingest(value)
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add UART service: %w", err)
	}
	s.out = &s.tx

	adv := adapter.DefaultAdvertisement()
	err = adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: []bluetooth.UUID{bluetooth.ServiceUUIDNordicUART},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure advertisement: %w", err)
	}
	if err := adv.Start(); err != nil {
		return nil, fmt.Errorf("failed to start advertising: %w", err)
	}

	return s, nil
}

// Name returns the advertised device name.
func (s *Serial) Name() string { return s.name }

// ingest appends an RX write to the partial-line buffer and queues every
// completed line.
func (s *Serial) ingest(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, data...)
	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(s.buf[:i]), "\r")
		s.buf = s.buf[i+1:]
		select {
		case s.lines <- line:
		default:
			// Queue full: drop the line, matching a saturated
			// hardware line buffer.
		}
	}

	if len(s.buf) > maxLineBytes {
		s.buf = s.buf[:0]
	}
}

// Poll returns the next complete input line, if any. It never blocks.
func (s *Serial) Poll() (string, bool) {
	select {
	case line := <-s.lines:
		return line, true
	default:
		return "", false
	}
}

// WriteLine notifies s followed by CRLF to subscribed centrals, in
// MTU-sized chunks. Without a subscribed central the notification is
// silently dropped by the stack, like printing to an unplugged serial
// port.
func (s *Serial) WriteLine(line string) error {
	data := append([]byte(line), '\r', '\n')
	for len(data) > 0 {
		n := len(data)
		if n > writeChunk {
			n = writeChunk
		}
		if _, err := s.out.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
