package bridge

import (
	"bufio"
	"io"
)

// Channel is a line-oriented text channel such as a USB serial port or a
// Bluetooth serial link.
//
// Poll must never block: it returns the next complete input line (without
// its terminator) and true, or "" and false when no full line has arrived
// yet. WriteLine appends the line terminator itself.
type Channel interface {
	Poll() (string, bool)
	WriteLine(s string) error
}

// lineQueueDepth bounds how many completed input lines a channel may hold
// before further input is dropped. The chat loop drains one line per poll.
const lineQueueDepth = 16

// IOChannel adapts a blocking byte stream to the Channel interface.
//
// A single internal goroutine scans the reader for newline-terminated
// lines and queues them; the polling side never blocks. This keeps the
// chat loop itself strictly single-threaded.
type IOChannel struct {
	w     io.Writer
	lines chan string
	log   Logger
}

// NewIOChannel wraps a reader/writer pair as a line channel and starts the
// scanner goroutine. The goroutine exits when the reader returns an error
// or EOF; a read error is reported on the logger, which may be nil. The
// channel stays alive for writes but delivers no further lines.
func NewIOChannel(r io.Reader, w io.Writer, log Logger) *IOChannel {
	if log == nil {
		log = &nopLogger{}
	}
	c := &IOChannel{
		w:     w,
		lines: make(chan string, lineQueueDepth),
		log:   log,
	}
	go c.scan(r)
	return c
}

func (c *IOChannel) scan(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case c.lines <- scanner.Text():
		default:
			// Queue full: drop the line, matching a saturated
			// hardware line buffer.
		}
	}
	if err := scanner.Err(); err != nil {
		c.log.Warn("channel reader stopped: " + err.Error())
	}
}

// Poll returns the next complete input line, if any. It never blocks.
func (c *IOChannel) Poll() (string, bool) {
	select {
	case line := <-c.lines:
		return line, true
	default:
		return "", false
	}
}

// WriteLine writes s followed by CRLF.
func (c *IOChannel) WriteLine(s string) error {
	_, err := c.w.Write(append([]byte(s), '\r', '\n'))
	return err
}

// WriteAll writes one line to every channel. The first error is returned
// after all channels have been attempted.
func WriteAll(line string, channels ...Channel) error {
	var first error
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		if err := ch.WriteLine(line); err != nil && first == nil {
			first = err
		}
	}
	return first
}
