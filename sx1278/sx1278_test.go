package sx1278

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

// --- Mocks ---

type mockPin struct {
	mode   string
	level  Level
	levels []Level // history of Out calls
}

func (m *mockPin) Out(l Level) error {
	m.mode = "output"
	m.level = l
	m.levels = append(m.levels, l)
	return nil
}

func (m *mockPin) In(pull Pull) error {
	m.mode = "input"
	return nil
}

func (m *mockPin) Read() Level { return m.level }

// mockSPI emulates the SX1278 register file: writes (address bit 7 set)
// land in a register map, reads return whatever the map holds, and FIFO
// bursts are captured/served separately.
type mockSPI struct {
	tx    []byte // full trace of every byte clocked out
	regs  map[byte]byte
	fifoW []byte // bytes burst-written to the FIFO
	fifoR []byte // bytes served on FIFO burst reads
}

func newMockSPI() *mockSPI {
	return &mockSPI{regs: map[byte]byte{}}
}

func (m *mockSPI) Tx(w, r []byte) error {
	m.tx = append(m.tx, w...)

	addr := w[0]
	if addr&_SPI_WRITE != 0 {
		reg := addr &^ byte(_SPI_WRITE)
		if reg == _FIFO {
			m.fifoW = append(m.fifoW, w[1:]...)
		} else if len(w) > 1 {
			m.regs[reg] = w[1]
		}
		return nil
	}
	if addr == _FIFO {
		copy(r[1:], m.fifoR)
		return nil
	}
	if len(r) > 1 {
		r[1] = m.regs[addr]
	}
	return nil
}

func newTestDevice(t *testing.T, spi *mockSPI, c RadioConfig) (*Device, *mockPin) {
	t.Helper()

	spi.regs[_VERSION] = _CHIP_VERSION
	if c.Frequency == 0 {
		c.Frequency = 433000000
	}
	if c.TxTimeout == 0 {
		c.TxTimeout = 50 * time.Millisecond
	}

	reset := &mockPin{}
	dev, err := NewWithHardware(HardwareConfig{RadioConfig: c, Reset: reset}, spi)
	if err != nil {
		t.Fatalf("NewWithHardware failed: %v", err)
	}
	return dev, reset
}

// --- Tests ---

func TestInitialization(t *testing.T) {
	mock := newMockSPI()
	_, reset := newTestDevice(t, mock, RadioConfig{Frequency: 433000000})

	// Reset pulse: low then high.
	if len(reset.levels) != 2 || reset.levels[0] != Low || reset.levels[1] != High {
		t.Errorf("Expected reset pulse Low,High, got %v", reset.levels)
	}

	// Carrier frequency: frf = 433e6 * 2^19 / 32e6 = 0x6C4000.
	for _, op := range [][]byte{
		{_FRF_MSB | _SPI_WRITE, 0x6C},
		{_FRF_MID | _SPI_WRITE, 0x40},
		{_FRF_LSB | _SPI_WRITE, 0x00},
	} {
		if !bytes.Contains(mock.tx, op) {
			t.Errorf("Expected SPI write %X during init, not found in TX trace", op)
		}
	}

	// Default sync word programmed.
	if mock.regs[_SYNC_WORD] != 0x12 {
		t.Errorf("Expected default sync word 0x12, got 0x%02X", mock.regs[_SYNC_WORD])
	}

	// Auto AGC on.
	if mock.regs[_MODEM_CONFIG_3] != 0x04 {
		t.Errorf("Expected RegModemConfig3=0x04 (AGC), got 0x%02X", mock.regs[_MODEM_CONFIG_3])
	}

	// Radio left in standby.
	if mock.regs[_OP_MODE] != _MODE_LONG_RANGE|_MODE_STDBY {
		t.Errorf("Expected standby after init, got op mode 0x%02X", mock.regs[_OP_MODE])
	}
}

func TestInitializationVersionMismatch(t *testing.T) {
	mock := newMockSPI()
	mock.regs[_VERSION] = 0x00

	_, err := NewWithHardware(HardwareConfig{
		RadioConfig: RadioConfig{Frequency: 433000000},
	}, mock)
	if err == nil {
		t.Fatal("Expected error on version mismatch, got nil")
	}
}

func TestInitializationRequiresFrequency(t *testing.T) {
	mock := newMockSPI()
	mock.regs[_VERSION] = _CHIP_VERSION

	if _, err := NewWithHardware(HardwareConfig{}, mock); err == nil {
		t.Fatal("Expected error for missing frequency, got nil")
	}
}

func TestTransmit(t *testing.T) {
	mock := newMockSPI()
	dev, _ := newTestDevice(t, mock, RadioConfig{})

	mock.tx = nil
	// Let the TxDone poll succeed immediately.
	mock.regs[_IRQ_FLAGS] = _IRQ_TX_DONE

	payload := []byte("hello")
	if err := dev.Transmit(payload); err != nil {
		t.Fatalf("Transmit failed: %v", err)
	}

	if !bytes.Equal(mock.fifoW, payload) {
		t.Errorf("Expected FIFO write %q, got %q", payload, mock.fifoW)
	}
	if mock.regs[_PAYLOAD_LENGTH] != byte(len(payload)) {
		t.Errorf("Expected payload length %d, got %d", len(payload), mock.regs[_PAYLOAD_LENGTH])
	}
	// TX mode entered.
	if !bytes.Contains(mock.tx, []byte{_OP_MODE | _SPI_WRITE, _MODE_LONG_RANGE | _MODE_TX}) {
		t.Errorf("Expected TX mode write, not found in TX trace: %X", mock.tx)
	}
}

func TestTransmitTimeout(t *testing.T) {
	mock := newMockSPI()
	dev, _ := newTestDevice(t, mock, RadioConfig{TxTimeout: 20 * time.Millisecond})

	// IRQ flags stay zero: TxDone never fires.
	err := dev.Transmit([]byte("timeout"))
	if err == nil {
		t.Fatal("Expected error on timeout, got nil")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got: %v", err)
	}
}

func TestTransmitPayloadLimits(t *testing.T) {
	mock := newMockSPI()
	dev, _ := newTestDevice(t, mock, RadioConfig{})

	if err := dev.Transmit(nil); err == nil {
		t.Error("Expected error for empty payload, got nil")
	}
	if err := dev.Transmit(make([]byte, 256)); err == nil {
		t.Error("Expected error for oversized payload, got nil")
	}
}

func TestReceive(t *testing.T) {
	mock := newMockSPI()
	dev, _ := newTestDevice(t, mock, RadioConfig{})
	mock.tx = nil

	mock.regs[_IRQ_FLAGS] = _IRQ_RX_DONE
	mock.regs[_RX_NB_BYTES] = 5
	mock.regs[_FIFO_RX_CURRENT_ADDR] = 0x10
	mock.fifoR = []byte("world")

	data, found := dev.Receive()
	if !found {
		t.Fatal("Expected Receive to return true")
	}
	if string(data) != "world" {
		t.Errorf("Expected payload 'world', got '%s'", string(data))
	}

	// FIFO pointer rewound to the packet start.
	if mock.regs[_FIFO_ADDR_PTR] != 0x10 {
		t.Errorf("Expected FIFO pointer 0x10, got 0x%02X", mock.regs[_FIFO_ADDR_PTR])
	}
	// Back to standby after draining.
	if mock.regs[_OP_MODE] != _MODE_LONG_RANGE|_MODE_STDBY {
		t.Errorf("Expected standby after receive, got op mode 0x%02X", mock.regs[_OP_MODE])
	}
}

func TestReceiveArmsRxSingle(t *testing.T) {
	mock := newMockSPI()
	dev, _ := newTestDevice(t, mock, RadioConfig{})
	mock.tx = nil

	data, found := dev.Receive()
	if found || data != nil {
		t.Fatalf("Expected no packet, got %q", data)
	}

	// With nothing pending and the radio in standby, a poll must arm
	// single-shot reception so a later poll can succeed.
	if mock.regs[_OP_MODE] != _MODE_LONG_RANGE|_MODE_RX_SINGLE {
		t.Errorf("Expected RX single mode, got op mode 0x%02X", mock.regs[_OP_MODE])
	}
	if mock.regs[_FIFO_ADDR_PTR] != 0 {
		t.Errorf("Expected FIFO pointer 0, got 0x%02X", mock.regs[_FIFO_ADDR_PTR])
	}

	// A second poll must not rewrite the mode.
	mock.tx = nil
	dev.Receive()
	if bytes.Contains(mock.tx, []byte{_OP_MODE | _SPI_WRITE, _MODE_LONG_RANGE | _MODE_RX_SINGLE}) {
		t.Error("Expected no mode rewrite while already armed")
	}
}

func TestReceiveDropsCRCError(t *testing.T) {
	mock := newMockSPI()
	dev, _ := newTestDevice(t, mock, RadioConfig{EnableCRC: true})
	mock.tx = nil

	mock.regs[_IRQ_FLAGS] = _IRQ_RX_DONE | _IRQ_PAYLOAD_CRC_ERROR
	mock.regs[_RX_NB_BYTES] = 3
	mock.fifoR = []byte("bad")

	data, found := dev.Receive()
	if found || data != nil {
		t.Fatalf("Expected corrupt packet to be dropped, got %q", data)
	}
	// The FIFO must not have been drained for a dropped packet.
	if bytes.Contains(mock.tx, []byte{_FIFO_ADDR_PTR | _SPI_WRITE}) {
		t.Error("Expected no FIFO pointer rewind for a dropped packet")
	}
}

func TestReceiveBlocking(t *testing.T) {
	mock := newMockSPI()
	dev, _ := newTestDevice(t, mock, RadioConfig{})

	mock.regs[_IRQ_FLAGS] = _IRQ_RX_DONE
	mock.regs[_RX_NB_BYTES] = 2
	mock.fifoR = []byte("hi")

	data, err := dev.ReceiveBlocking(context.Background())
	if err != nil {
		t.Fatalf("ReceiveBlocking failed: %v", err)
	}
	if string(data) != "hi" {
		t.Errorf("Expected 'hi', got %q", data)
	}
}

func TestReceiveBlockingCancel(t *testing.T) {
	mock := newMockSPI()
	dev, _ := newTestDevice(t, mock, RadioConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := dev.ReceiveBlocking(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestConfiguration(t *testing.T) {
	mock := newMockSPI()
	dev, _ := newTestDevice(t, mock, RadioConfig{})

	// SetSyncWord
	dev.SetSyncWord(0x34)
	if mock.regs[_SYNC_WORD] != 0x34 {
		t.Errorf("SetSyncWord didn't write to SPI correctly: 0x%02X", mock.regs[_SYNC_WORD])
	}

	// SetSpreadingFactor: SF12 lands in the high nibble of RegModemConfig2.
	if err := dev.SetSpreadingFactor(12); err != nil {
		t.Fatalf("SetSpreadingFactor failed: %v", err)
	}
	if mock.regs[_MODEM_CONFIG_2]&0xF0 != 0xC0 {
		t.Errorf("SetSpreadingFactor(12) wrote 0x%02X", mock.regs[_MODEM_CONFIG_2])
	}

	// SetSignalBandwidth: 500kHz is setting 0x9 in the high nibble.
	if err := dev.SetSignalBandwidth(500000); err != nil {
		t.Fatalf("SetSignalBandwidth failed: %v", err)
	}
	if mock.regs[_MODEM_CONFIG_1]&0xF0 != 0x90 {
		t.Errorf("SetSignalBandwidth(500000) wrote 0x%02X", mock.regs[_MODEM_CONFIG_1])
	}

	// Invalid values are rejected.
	if err := dev.SetSpreadingFactor(13); err == nil {
		t.Error("Expected error for SF13")
	}
	if err := dev.SetSignalBandwidth(123); err == nil {
		t.Error("Expected error for unsupported bandwidth")
	}
	if err := dev.SetCodingRate(9); err == nil {
		t.Error("Expected error for coding rate 4/9")
	}
	if err := dev.SetTxPower(25); err == nil {
		t.Error("Expected error for 25 dBm")
	}
}

func TestPacketSignalQuality(t *testing.T) {
	mock := newMockSPI()
	dev, _ := newTestDevice(t, mock, RadioConfig{Frequency: 433000000})

	// 433MHz uses the LF port offset (-164).
	mock.regs[_PKT_RSSI_VALUE] = 100
	if rssi := dev.PacketRSSI(); rssi != -64 {
		t.Errorf("Expected RSSI -64, got %d", rssi)
	}

	// SNR register holds a signed value in 0.25 dB steps.
	mock.regs[_PKT_SNR_VALUE] = 0xFC // -4 -> -1.0 dB
	if snr := dev.PacketSNR(); snr != -1.0 {
		t.Errorf("Expected SNR -1.0, got %v", snr)
	}
}

func TestSleepAndIdle(t *testing.T) {
	mock := newMockSPI()
	dev, _ := newTestDevice(t, mock, RadioConfig{})

	dev.Sleep()
	if mock.regs[_OP_MODE] != _MODE_LONG_RANGE|_MODE_SLEEP {
		t.Errorf("Expected sleep mode, got 0x%02X", mock.regs[_OP_MODE])
	}

	dev.Idle()
	if mock.regs[_OP_MODE] != _MODE_LONG_RANGE|_MODE_STDBY {
		t.Errorf("Expected standby mode, got 0x%02X", mock.regs[_OP_MODE])
	}
}
