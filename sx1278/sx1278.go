// Package sx1278 is a driver for Semtech SX1276/77/78/79 LoRa transceivers
// (including the common RA-01/RA-02 modules) over SPI.
//
// The driver speaks raw LoRa packets: no addressing, no framing, no
// acknowledgements. Anything transmitted is received verbatim by every
// listening node on the same frequency and modem settings.
package sx1278

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrPkg     = errors.New("sx1278")
	ErrTimeout = errors.New("timeout waiting for device")
)

// bandwidth (Hz) -> RegModemConfig1 setting.
var bandwidths = map[uint32]byte{
	7800:   0x0,
	10400:  0x1,
	15600:  0x2,
	20800:  0x3,
	31250:  0x4,
	41700:  0x5,
	62500:  0x6,
	125000: 0x7,
	250000: 0x8,
	500000: 0x9,
}

type RadioConfig struct {
	// Frequency is the carrier frequency in Hz (e.g. 433000000).
	// Required.
	Frequency uint32
	// TxPower is the output power in dBm on the PA_BOOST pin.
	// Range: 2 to 20.
	// Defaults to 17 if not provided.
	TxPower int
	// SpreadingFactor sets the LoRa spreading factor.
	// Range: 6 to 12.
	// Defaults to 7 if not provided.
	SpreadingFactor byte
	// SignalBandwidth is the modem bandwidth in Hz.
	// Must be one of 7800, 10400, 15600, 20800, 31250, 41700, 62500,
	// 125000, 250000 or 500000.
	// Defaults to 125000 if not provided.
	SignalBandwidth uint32
	// CodingRate sets the denominator of the 4/x coding rate.
	// Range: 5 to 8.
	// Defaults to 5 if not provided.
	CodingRate byte
	// PreambleLength is the preamble length in symbols.
	// Range: 6 to 65535.
	// Defaults to 8 if not provided.
	PreambleLength uint16
	// SyncWord is the LoRa sync word. 0x34 is reserved for LoRaWAN.
	// Defaults to 0x12 if not provided.
	SyncWord byte
	// EnableCRC enables hardware payload CRC generation and checking.
	// Defaults to false (disabled) if not provided.
	EnableCRC bool
	// TxTimeout bounds how long Transmit waits for the TxDone flag.
	// Defaults to 5s if not provided.
	TxTimeout time.Duration
}

type HardwareConfig struct {
	RadioConfig
	// Reset is the radio reset pin interface.
	// Optional. If not provided, the chip is assumed to be out of reset.
	Reset Pin
	// DIO0 is the DIO0 pin interface.
	// Optional. It is configured as a plain input and only ever polled;
	// the driver never uses it as an interrupt source.
	DIO0 Pin
}

type Device struct {
	config  HardwareConfig
	conn    SPI
	spiPort io.Closer
	mu      sync.Mutex
	scratch [257]byte // address byte + max payload (255) + 1 spare
}

// NewWithHardware creates and initializes an SX1278 driver with the provided
// hardware interfaces. It pulses the reset pin, verifies the chip version
// register and programs the LoRa modem, leaving the radio in standby.
func NewWithHardware(c HardwareConfig, conn SPI) (*Device, error) {
	if c.Frequency == 0 {
		return nil, fmt.Errorf("frequency not configured")
	}
	if c.TxPower == 0 {
		c.TxPower = 17
	}
	if c.TxPower < 2 || c.TxPower > 20 {
		return nil, fmt.Errorf("TxPower must be between 2 and 20 dBm")
	}
	if c.SpreadingFactor == 0 {
		c.SpreadingFactor = 7
	}
	if c.SpreadingFactor < 6 || c.SpreadingFactor > 12 {
		return nil, fmt.Errorf("SpreadingFactor must be between 6 and 12")
	}
	if c.SignalBandwidth == 0 {
		c.SignalBandwidth = 125000
	}
	if _, ok := bandwidths[c.SignalBandwidth]; !ok {
		return nil, fmt.Errorf("unsupported signal bandwidth %d Hz", c.SignalBandwidth)
	}
	if c.CodingRate == 0 {
		c.CodingRate = 5
	}
	if c.CodingRate < 5 || c.CodingRate > 8 {
		return nil, fmt.Errorf("CodingRate must be between 5 and 8")
	}
	if c.PreambleLength == 0 {
		c.PreambleLength = 8
	}
	if c.SyncWord == 0 {
		c.SyncWord = 0x12
	}
	if c.TxTimeout == 0 {
		c.TxTimeout = 5 * time.Second
	}

	dev := &Device{
		config: c,
		conn:   conn,
	}

	// --- Hardware Initialization ---

	globalLogger.Info("Initializing SX1278 SPI communication...")

	if c.Reset != nil {
		c.Reset.Out(Low)
		time.Sleep(10 * time.Millisecond)
		c.Reset.Out(High)
		time.Sleep(10 * time.Millisecond)
	}

	if c.DIO0 != nil {
		c.DIO0.In(PullNoChange)
	}

	// Probe the version register before touching anything else.
	if v := dev.readRegister(_VERSION); v != _CHIP_VERSION {
		return nil, fmt.Errorf("failed to verify SX1278 connection: check wiring/power (version 0x%02X)", v)
	}

	// LoRa mode is only writable from sleep.
	dev.writeRegister(_OP_MODE, _MODE_LONG_RANGE|_MODE_SLEEP)
	time.Sleep(time.Millisecond)

	dev.setFrequency(c.Frequency)

	// Use the whole 256-byte FIFO for both directions; TX and RX never
	// overlap because the modem is half duplex.
	dev.writeRegister(_FIFO_TX_BASE_ADDR, 0)
	dev.writeRegister(_FIFO_RX_BASE_ADDR, 0)

	// LNA boost and automatic gain control.
	dev.writeRegister(_LNA, dev.readRegister(_LNA)|0x03)
	dev.writeRegister(_MODEM_CONFIG_3, 0x04)

	dev.setTxPower(c.TxPower)
	dev.setSpreadingFactor(c.SpreadingFactor)
	dev.setSignalBandwidth(c.SignalBandwidth)
	dev.setCodingRate(c.CodingRate)
	dev.writeRegister(_PREAMBLE_MSB, byte(c.PreambleLength>>8))
	dev.writeRegister(_PREAMBLE_LSB, byte(c.PreambleLength))
	dev.writeRegister(_SYNC_WORD, c.SyncWord)
	dev.setCRC(c.EnableCRC)

	dev.idle()

	globalLogger.Info("SX1278 initialized and in standby. Ready to operate.")

	return dev, nil
}

func (d *Device) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return fmt.Sprintf("SX1278(Frequency=%dHz, TxPower=%ddBm, SF=%d, BW=%dHz, CR=4/%d, SyncWord=0x%02X, CRC=%v)",
		d.config.Frequency,
		d.config.TxPower,
		d.config.SpreadingFactor,
		d.config.SignalBandwidth,
		d.config.CodingRate,
		d.config.SyncWord,
		d.config.EnableCRC,
	)
}

// Close puts the radio to sleep and releases the SPI port.
// This method is concurrent safe.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writeRegister(_OP_MODE, _MODE_LONG_RANGE|_MODE_SLEEP)
	globalLogger.Info("SX1278 put to sleep.")

	if d.spiPort != nil {
		if err := d.spiPort.Close(); err != nil {
			globalLogger.Warn("Failed to close SPI port")
		}
		globalLogger.Info("SPI bus closed.")
	}

	return nil
}

// --- SX1278 Core Functions (SPI interaction) ---

func (d *Device) spiTransfer(len int) []byte {
	// Full-duplex transaction on the scratch buffer, same slice for read
	// and write.
	slice := d.scratch[:len]
	if err := d.conn.Tx(slice, slice); err != nil {
		globalLogger.Error("SPI Transfer Error")
		return nil
	}

	if len > 1 {
		return d.scratch[1:len]
	}
	return nil
}

func (d *Device) writeRegister(reg, val byte) {
	d.scratch[0] = reg | _SPI_WRITE
	d.scratch[1] = val
	d.spiTransfer(2)
}

func (d *Device) readRegister(reg byte) byte {
	d.scratch[0] = reg &^ byte(_SPI_WRITE)
	d.scratch[1] = 0
	data := d.spiTransfer(2)
	if len(data) > 0 {
		return data[0]
	}
	return 0
}

func (d *Device) writeFIFO(data []byte) {
	d.scratch[0] = _FIFO | _SPI_WRITE
	copy(d.scratch[1:], data)
	d.spiTransfer(1 + len(data))
}

func (d *Device) readFIFO(n int) []byte {
	d.scratch[0] = _FIFO
	for i := 1; i <= n; i++ {
		d.scratch[i] = 0
	}
	return d.spiTransfer(1 + n)
}

func (d *Device) idle() {
	d.writeRegister(_OP_MODE, _MODE_LONG_RANGE|_MODE_STDBY)
}

func (d *Device) sleep() {
	d.writeRegister(_OP_MODE, _MODE_LONG_RANGE|_MODE_SLEEP)
}

// --- SX1278 Configuration (internal, call with lock held or before sharing) ---

func (d *Device) setFrequency(freq uint32) {
	frf := (uint64(freq) << _FREQ_STEP_SHIFT) / _CRYSTAL_HZ
	d.writeRegister(_FRF_MSB, byte(frf>>16))
	d.writeRegister(_FRF_MID, byte(frf>>8))
	d.writeRegister(_FRF_LSB, byte(frf))
	d.config.Frequency = freq
}

func (d *Device) setTxPower(dbm int) {
	if dbm > 17 {
		// High power mode on PA_BOOST: +20dBm needs the PA DAC and a
		// 140mA over-current trim.
		d.writeRegister(_PA_DAC, 0x87)
		d.writeRegister(_OCP, 0x20|17) // 140 mA
		dbm -= 3
	} else {
		d.writeRegister(_PA_DAC, 0x84)
		d.writeRegister(_OCP, 0x20|11) // 100 mA
	}
	d.writeRegister(_PA_CONFIG, _PA_BOOST|byte(dbm-2))
}

func (d *Device) setSpreadingFactor(sf byte) {
	if sf == 6 {
		d.writeRegister(_DETECTION_OPTIMIZE, 0xC5)
		d.writeRegister(_DETECTION_THRESHOLD, 0x0C)
	} else {
		d.writeRegister(_DETECTION_OPTIMIZE, 0xC3)
		d.writeRegister(_DETECTION_THRESHOLD, 0x0A)
	}
	d.writeRegister(_MODEM_CONFIG_2, (d.readRegister(_MODEM_CONFIG_2)&0x0F)|(sf<<4))
	d.config.SpreadingFactor = sf
}

func (d *Device) setSignalBandwidth(bw uint32) {
	setting := bandwidths[bw]
	d.writeRegister(_MODEM_CONFIG_1, (d.readRegister(_MODEM_CONFIG_1)&0x0F)|(setting<<4))
	d.config.SignalBandwidth = bw
}

func (d *Device) setCodingRate(denominator byte) {
	cr := denominator - 4
	d.writeRegister(_MODEM_CONFIG_1, (d.readRegister(_MODEM_CONFIG_1)&0xF1)|(cr<<1))
	d.config.CodingRate = denominator
}

func (d *Device) setCRC(enable bool) {
	if enable {
		d.writeRegister(_MODEM_CONFIG_2, d.readRegister(_MODEM_CONFIG_2)|0x04)
	} else {
		d.writeRegister(_MODEM_CONFIG_2, d.readRegister(_MODEM_CONFIG_2)&^byte(0x04))
	}
	d.config.EnableCRC = enable
}

func (d *Device) setExplicitHeaderMode() {
	d.writeRegister(_MODEM_CONFIG_1, d.readRegister(_MODEM_CONFIG_1)&^byte(0x01))
}

// --- SX1278 Configuration (public) ---

// SetTxPower changes the output power in dBm (2 to 20, PA_BOOST pin).
// This method is concurrent safe.
func (d *Device) SetTxPower(dbm int) error {
	if dbm < 2 || dbm > 20 {
		return fmt.Errorf("TxPower must be between 2 and 20 dBm")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.setTxPower(dbm)
	d.config.TxPower = dbm
	return nil
}

// SetSpreadingFactor changes the LoRa spreading factor (6 to 12).
// This method is concurrent safe.
func (d *Device) SetSpreadingFactor(sf byte) error {
	if sf < 6 || sf > 12 {
		return fmt.Errorf("SpreadingFactor must be between 6 and 12")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.setSpreadingFactor(sf)
	return nil
}

// SetSignalBandwidth changes the modem bandwidth in Hz.
// This method is concurrent safe.
func (d *Device) SetSignalBandwidth(bw uint32) error {
	if _, ok := bandwidths[bw]; !ok {
		return fmt.Errorf("unsupported signal bandwidth %d Hz", bw)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.setSignalBandwidth(bw)
	return nil
}

// SetCodingRate changes the denominator of the 4/x coding rate (5 to 8).
// This method is concurrent safe.
func (d *Device) SetCodingRate(denominator byte) error {
	if denominator < 5 || denominator > 8 {
		return fmt.Errorf("CodingRate must be between 5 and 8")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.setCodingRate(denominator)
	return nil
}

// SetPreambleLength changes the preamble length in symbols.
// This method is concurrent safe.
func (d *Device) SetPreambleLength(symbols uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writeRegister(_PREAMBLE_MSB, byte(symbols>>8))
	d.writeRegister(_PREAMBLE_LSB, byte(symbols))
	d.config.PreambleLength = symbols
}

// SetSyncWord changes the LoRa sync word.
// This method is concurrent safe.
func (d *Device) SetSyncWord(sw byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writeRegister(_SYNC_WORD, sw)
	d.config.SyncWord = sw
}

// SetCRC enables or disables hardware payload CRC.
// This method is concurrent safe.
func (d *Device) SetCRC(enable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.setCRC(enable)
}

// --- SX1278 Power Management ---

// Idle puts the radio in standby mode.
// This method is concurrent safe.
func (d *Device) Idle() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.idle()
}

// Sleep puts the radio in sleep mode for minimal current consumption.
// The FIFO is not accessible while sleeping.
// This method is concurrent safe.
func (d *Device) Sleep() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sleep()
}

// --- SX1278 Read/Write ---

// Transmit sends a raw LoRa packet and blocks until the radio reports
// TxDone or the configured TX timeout expires. The radio is left in
// standby afterwards.
// This method is concurrent safe.
// It returns an error if the payload exceeds the 255 byte FIFO limit.
func (d *Device) Transmit(p []byte) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty payload", ErrPkg)
	}
	if len(p) > _MAX_PAYLOAD_BYTES {
		return fmt.Errorf("%w: payload too large (%d bytes), limit is %d", ErrPkg, len(p), _MAX_PAYLOAD_BYTES)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.idle()
	d.setExplicitHeaderMode()

	d.writeRegister(_FIFO_ADDR_PTR, 0)
	d.writeFIFO(p)
	d.writeRegister(_PAYLOAD_LENGTH, byte(len(p)))

	d.writeRegister(_OP_MODE, _MODE_LONG_RANGE|_MODE_TX)

	timeout := time.After(d.config.TxTimeout)
	for {
		select {
		case <-timeout:
			d.writeRegister(_IRQ_FLAGS, _IRQ_TX_DONE)
			d.idle()
			return fmt.Errorf("%w: %w", ErrPkg, ErrTimeout)
		default:
			if d.readRegister(_IRQ_FLAGS)&_IRQ_TX_DONE != 0 {
				d.writeRegister(_IRQ_FLAGS, _IRQ_TX_DONE)
				return nil
			}
			time.Sleep(time.Millisecond)
		}
	}
}

// Receive tries to fetch a received packet from the radio.
// This method is non-blocking: it polls the IRQ flags register and returns
// the payload and true when a packet is waiting, otherwise nil and false.
// When the radio is idle it is armed for single-shot reception so a later
// poll can succeed.
// Packets with a payload CRC error are dropped.
// This method is concurrent safe.
func (d *Device) Receive() ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	flags := d.readRegister(_IRQ_FLAGS)
	if flags != 0 {
		d.writeRegister(_IRQ_FLAGS, flags)
	}

	if flags&_IRQ_RX_DONE != 0 {
		if flags&_IRQ_PAYLOAD_CRC_ERROR != 0 {
			globalLogger.Warn("Dropping packet with payload CRC error")
			return nil, false
		}

		n := int(d.readRegister(_RX_NB_BYTES))
		d.writeRegister(_FIFO_ADDR_PTR, d.readRegister(_FIFO_RX_CURRENT_ADDR))
		data := d.readFIFO(n)
		d.idle()

		// Copy out of the scratch buffer before it is reused.
		result := make([]byte, len(data))
		copy(result, data)
		return result, true
	}

	if d.readRegister(_OP_MODE) != _MODE_LONG_RANGE|_MODE_RX_SINGLE {
		d.writeRegister(_FIFO_ADDR_PTR, 0)
		d.writeRegister(_OP_MODE, _MODE_LONG_RANGE|_MODE_RX_SINGLE)
	}

	return nil, false
}

// ReceiveBlocking waits for a packet to arrive or for the context to be
// cancelled. The radio is polled; if the DIO0 pin is wired it is consulted
// as a plain level input to shorten the poll interval, never as an
// interrupt source.
// This method is concurrent safe.
func (d *Device) ReceiveBlocking(ctx context.Context) ([]byte, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		data, ok := d.Receive()
		if ok {
			return data, nil
		}

		// DIO0 is mapped to RxDone by default; a high level means the
		// next poll will find a packet.
		if d.config.DIO0 != nil && d.config.DIO0.Read() == High {
			continue
		}

		time.Sleep(5 * time.Millisecond)
	}
}

// PacketRSSI returns the RSSI of the last received packet in dBm.
// This method is concurrent safe.
func (d *Device) PacketRSSI() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	offset := _RSSI_OFFSET_LF
	if d.config.Frequency >= _RF_MID_BAND_HZ {
		offset = _RSSI_OFFSET_HF
	}
	return int(d.readRegister(_PKT_RSSI_VALUE)) + offset
}

// PacketSNR returns the SNR of the last received packet in dB.
// This method is concurrent safe.
func (d *Device) PacketSNR() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return float64(int8(d.readRegister(_PKT_SNR_VALUE))) * 0.25
}
