package protocol

// Frame structure constants.
const (
	// EscapeChar marks either a literal escaped byte (when doubled) or the
	// start of the frame trailer (when followed by an opcode).
	EscapeChar = 0xFC

	// BufferCapacity is the number of payload bytes a decoder retains.
	// It covers the largest fixed payload: 4-byte address + 512-byte page.
	BufferCapacity = 520

	// TrailerSize is the size of the frame trailer: ESCAPE + opcode.
	TrailerSize = 2
)

// Field widths.
const (
	// PageSize is the size of an internal flash page
	PageSize = 512

	// ExPageSize is the size of an external flash page
	ExPageSize = 256

	// ExBlockSize is the size of an external flash erase block (8 pages)
	ExBlockSize = 8 * ExPageSize

	// AttrKeySize is the size of an attribute key (null padded)
	AttrKeySize = 8

	// AttrMaxValueSize is the largest attribute value
	AttrMaxValueSize = 55

	// AttrCount is the number of attribute slots a bootloader holds
	AttrCount = 16

	// InfoSize is the size of the Info response payload produced by the bootloader
	InfoSize = 192

	// PadByte fills the unused tail of a page field (erased flash)
	PadByte = 0xFF
)

// Command opcodes (host to bootloader).
const (
	// CmdPing asks the bootloader to drop its buffers and answer Pong
	CmdPing = 0x01

	// CmdInfo requests the bootloader info string
	CmdInfo = 0x03

	// CmdID requests the 8-byte unique ID
	CmdID = 0x04

	// CmdReset resets all TX and RX buffers
	CmdReset = 0x05

	// CmdErasePage erases a 512-byte internal flash page
	CmdErasePage = 0x06

	// CmdWritePage writes a 512-byte internal flash page
	CmdWritePage = 0x07

	// CmdEraseExBlock erases a 2048-byte external flash block
	CmdEraseExBlock = 0x08

	// CmdWriteExPage writes a 256-byte external flash page
	CmdWriteExPage = 0x09

	// CmdCrcRxBuffer requests the length and CRC of the RX buffer
	CmdCrcRxBuffer = 0x10

	// CmdReadRange reads a range of internal flash
	CmdReadRange = 0x11

	// CmdExReadRange reads a range of external flash
	CmdExReadRange = 0x12

	// CmdSetAttr writes an attribute
	CmdSetAttr = 0x13

	// CmdGetAttr reads an attribute
	CmdGetAttr = 0x14

	// CmdCrcIntFlash requests the CRC of an internal flash range
	CmdCrcIntFlash = 0x15

	// CmdCrcExFlash requests the CRC of an external flash range
	CmdCrcExFlash = 0x16

	// CmdEraseExPage erases a 256-byte external flash page
	CmdEraseExPage = 0x17

	// CmdExFlashInit initialises the external flash chip
	CmdExFlashInit = 0x18

	// CmdClockOut outputs the 32kHz clock for calibration
	CmdClockOut = 0x19

	// CmdWriteFlashUserPages writes the flash user pages
	CmdWriteFlashUserPages = 0x20

	// CmdChangeBaud changes or verifies the bootloader baud rate
	CmdChangeBaud = 0x21
)

// Response opcodes (bootloader to host).
const (
	ResOverflow         = 0x10
	ResPong             = 0x11
	ResBadAddress       = 0x12
	ResInternalError    = 0x13
	ResBadArguments     = 0x14
	ResOK               = 0x15
	ResUnknown          = 0x16
	ResExFlashTimeout   = 0x17
	ResExFlashPageError = 0x18
	ResCrcRxBuffer      = 0x19
	ResReadRange        = 0x20
	ResExReadRange      = 0x21
	ResGetAttr          = 0x22
	ResCrcIntFlash      = 0x23
	ResCrcExFlash       = 0x24
	ResInfo             = 0x25
	ResChangeBaudFail   = 0x26
)

// BaudMode selects the phase of a ChangeBaud exchange.
type BaudMode byte

const (
	// BaudModeSet asks the bootloader to switch to a new baud rate
	BaudModeSet BaudMode = 0x01

	// BaudModeVerify confirms the new baud rate works
	BaudModeVerify BaudMode = 0x02
)

func (m BaudMode) String() string {
	switch m {
	case BaudModeSet:
		return "set"
	case BaudModeVerify:
		return "verify"
	default:
		return "invalid"
	}
}
