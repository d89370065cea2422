package protocol

// Command is an operation issued by a flashing tool to the bootloader.
// The set of commands is closed: only the types in this package implement it.
//
// A flash tool encodes commands with CommandEncoder; a bootloader decodes
// them with CommandDecoder.
type Command interface {
	// Opcode returns the wire opcode that terminates the command frame.
	Opcode() byte

	// payload returns the fields preceding the trailer, in wire order.
	payload() []field
}

// PingCommand makes the bootloader drop its buffers and answer Pong.
type PingCommand struct{}

// InfoCommand requests the bootloader info string.
type InfoCommand struct{}

// IDCommand requests the 8-byte unique ID.
type IDCommand struct{}

// ResetCommand resets all TX and RX buffers.
type ResetCommand struct{}

// ErasePageCommand erases the 512-byte internal flash page starting at Address.
// Non page-aligned addresses are answered with BadAddress.
type ErasePageCommand struct {
	Address uint32
}

// WritePageCommand writes a page of internal flash.
//
// Data shorter than PageSize is padded with 0xFF on the wire; longer data
// is truncated.
type WritePageCommand struct {
	Address uint32
	Data    []byte
}

// EraseExBlockCommand erases the 2048-byte external flash block at Address.
type EraseExBlockCommand struct {
	Address uint32
}

// WriteExPageCommand writes a page of external flash.
//
// Data shorter than ExPageSize is padded with 0xFF on the wire; longer data
// is truncated.
type WriteExPageCommand struct {
	Address uint32
	Data    []byte
}

// CrcRxBufferCommand requests the length and CRC of the RX buffer.
type CrcRxBufferCommand struct{}

// ReadRangeCommand reads Length bytes of internal flash at Address.
type ReadRangeCommand struct {
	Address uint32
	Length  uint16
}

// ExReadRangeCommand reads Length bytes of external flash at Address.
type ExReadRangeCommand struct {
	Address uint32
	Length  uint16
}

// SetAttrCommand writes attribute Index.
//
// Key is sent as exactly AttrKeySize bytes, null padded. Value is truncated
// to AttrMaxValueSize bytes and may contain nulls.
type SetAttrCommand struct {
	Index byte
	Key   []byte
	Value []byte
}

// GetAttrCommand reads attribute Index.
type GetAttrCommand struct {
	Index byte
}

// CrcIntFlashCommand requests the CRC-32 of an internal flash range.
type CrcIntFlashCommand struct {
	Address uint32
	Length  uint32
}

// CrcExFlashCommand requests the CRC-32 of an external flash range.
type CrcExFlashCommand struct {
	Address uint32
	Length  uint32
}

// EraseExPageCommand erases the 256-byte external flash page at Address.
type EraseExPageCommand struct {
	Address uint32
}

// ExFlashInitCommand initialises the external flash chip (256-byte pages).
type ExFlashInitCommand struct{}

// ClockOutCommand puts the bootloader into clock calibration output.
type ClockOutCommand struct{}

// WriteFlashUserPagesCommand writes the two flash user pages.
type WriteFlashUserPagesCommand struct {
	Page1 uint32
	Page2 uint32
}

// ChangeBaudCommand changes the bootloader baud rate.
//
// The host first sends BaudModeSet, switches its own port, then sends
// BaudModeVerify with the same rate. If the verify does not arrive the
// bootloader reverts to the old rate.
type ChangeBaudCommand struct {
	Mode BaudMode
	Baud uint32
}

func (PingCommand) Opcode() byte { return CmdPing }
func (InfoCommand) Opcode() byte { return CmdInfo }
func (IDCommand) Opcode() byte { return CmdID }
func (ResetCommand) Opcode() byte { return CmdReset }
func (ErasePageCommand) Opcode() byte { return CmdErasePage }
func (WritePageCommand) Opcode() byte { return CmdWritePage }
func (EraseExBlockCommand) Opcode() byte { return CmdEraseExBlock }
func (WriteExPageCommand) Opcode() byte { return CmdWriteExPage }
func (CrcRxBufferCommand) Opcode() byte { return CmdCrcRxBuffer }
func (ReadRangeCommand) Opcode() byte { return CmdReadRange }
func (ExReadRangeCommand) Opcode() byte { return CmdExReadRange }
func (SetAttrCommand) Opcode() byte { return CmdSetAttr }
func (GetAttrCommand) Opcode() byte { return CmdGetAttr }
func (CrcIntFlashCommand) Opcode() byte { return CmdCrcIntFlash }
func (CrcExFlashCommand) Opcode() byte { return CmdCrcExFlash }
func (EraseExPageCommand) Opcode() byte { return CmdEraseExPage }
func (ExFlashInitCommand) Opcode() byte { return CmdExFlashInit }
func (ClockOutCommand) Opcode() byte { return CmdClockOut }
func (WriteFlashUserPagesCommand) Opcode() byte { return CmdWriteFlashUserPages }
func (ChangeBaudCommand) Opcode() byte { return CmdChangeBaud }

func (PingCommand) payload() []field { return nil }
func (InfoCommand) payload() []field { return nil }
func (IDCommand) payload() []field { return nil }
func (ResetCommand) payload() []field { return nil }
func (CrcRxBufferCommand) payload() []field { return nil }
func (ExFlashInitCommand) payload() []field { return nil }
func (ClockOutCommand) payload() []field { return nil }

func (c ErasePageCommand) payload() []field {
	return []field{u32Field(c.Address)}
}

func (c WritePageCommand) payload() []field {
	return []field{u32Field(c.Address), fixedField(c.Data, PageSize, PadByte)}
}

func (c EraseExBlockCommand) payload() []field {
	return []field{u32Field(c.Address)}
}

func (c WriteExPageCommand) payload() []field {
	return []field{u32Field(c.Address), fixedField(c.Data, ExPageSize, PadByte)}
}

func (c ReadRangeCommand) payload() []field {
	return []field{u32Field(c.Address), u16Field(c.Length)}
}

func (c ExReadRangeCommand) payload() []field {
	return []field{u32Field(c.Address), u16Field(c.Length)}
}

func (c SetAttrCommand) payload() []field {
	value := clip(c.Value, AttrMaxValueSize)
	return []field{
		u8Field(c.Index),
		fixedField(c.Key, AttrKeySize, 0x00),
		u8Field(len(value)),
		rawField(value),
		// The decoder wants at least one byte past the value.
		u8Field(0x00),
	}
}

func (c GetAttrCommand) payload() []field {
	return []field{u8Field(c.Index)}
}

func (c CrcIntFlashCommand) payload() []field {
	return []field{u32Field(c.Address), u32Field(c.Length)}
}

func (c CrcExFlashCommand) payload() []field {
	return []field{u32Field(c.Address), u32Field(c.Length)}
}

func (c EraseExPageCommand) payload() []field {
	return []field{u32Field(c.Address)}
}

func (c WriteFlashUserPagesCommand) payload() []field {
	return []field{u32Field(c.Page1), u32Field(c.Page2)}
}

func (c ChangeBaudCommand) payload() []field {
	return []field{u8Field(c.Mode), u32Field(c.Baud)}
}
