package sx1278

// --- SX127x Registers/Modes/Bits (LoRa mode) ---

// SX127x Register Addresses
const (
	_FIFO                 = 0x00
	_OP_MODE              = 0x01
	_FRF_MSB              = 0x06
	_FRF_MID              = 0x07
	_FRF_LSB              = 0x08
	_PA_CONFIG            = 0x09
	_OCP                  = 0x0B
	_LNA                  = 0x0C
	_FIFO_ADDR_PTR        = 0x0D
	_FIFO_TX_BASE_ADDR    = 0x0E
	_FIFO_RX_BASE_ADDR    = 0x0F
	_FIFO_RX_CURRENT_ADDR = 0x10
	_IRQ_FLAGS            = 0x12
	_RX_NB_BYTES          = 0x13
	_PKT_SNR_VALUE        = 0x19
	_PKT_RSSI_VALUE       = 0x1A
	_MODEM_CONFIG_1       = 0x1D
	_MODEM_CONFIG_2       = 0x1E
	_PREAMBLE_MSB         = 0x20
	_PREAMBLE_LSB         = 0x21
	_PAYLOAD_LENGTH       = 0x22
	_MODEM_CONFIG_3       = 0x26
	_DETECTION_OPTIMIZE   = 0x31
	_DETECTION_THRESHOLD  = 0x37
	_SYNC_WORD            = 0x39
	_DIO_MAPPING_1        = 0x40
	_VERSION              = 0x42
	_PA_DAC               = 0x4D
)

// Operating modes (RegOpMode)
const (
	_MODE_LONG_RANGE = 0x80 // LoRa mode, writable only while in sleep
	_MODE_SLEEP      = 0x00
	_MODE_STDBY      = 0x01
	_MODE_TX         = 0x03
	_MODE_RX_CONT    = 0x05
	_MODE_RX_SINGLE  = 0x06
)

// IRQ flag masks (RegIrqFlags)
const (
	_IRQ_RX_TIMEOUT        = 0x80
	_IRQ_RX_DONE           = 0x40
	_IRQ_PAYLOAD_CRC_ERROR = 0x20
	_IRQ_VALID_HEADER      = 0x10
	_IRQ_TX_DONE           = 0x08
)

// PA config
const (
	_PA_BOOST = 0x80
)

// SPI access: bit 7 of the address byte selects write (1) or read (0).
const _SPI_WRITE = 0x80

// Silicon revision reported by RegVersion for the SX1276/77/78/79 family.
const _CHIP_VERSION = 0x12

// 32 MHz crystal, 2^19 steps. frf = freq * 2^19 / 32e6.
const _FREQ_STEP_SHIFT = 19
const _CRYSTAL_HZ = 32000000

// RSSI offset changes between the LF and HF ports (split at 525 MHz).
const (
	_RF_MID_BAND_HZ = 525000000
	_RSSI_OFFSET_LF = -164
	_RSSI_OFFSET_HF = -157
)

const _MAX_PAYLOAD_BYTES = 255
