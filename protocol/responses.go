package protocol

// Response is an outcome or return value sent by the bootloader.
// The set of responses is closed: only the types in this package implement it.
//
// A bootloader encodes responses with ResponseEncoder; a flash tool decodes
// them with ResponseDecoder.
type Response interface {
	// Opcode returns the wire opcode that terminates the response frame.
	Opcode() byte

	// payload returns the fields preceding the trailer, in wire order.
	payload() []field
}

// OverflowResponse reports that the bootloader RX buffer overflowed.
type OverflowResponse struct{}

// PongResponse answers a Ping.
type PongResponse struct{}

// BadAddressResponse reports a misaligned or out of range address.
type BadAddressResponse struct{}

// InternalErrorResponse reports a bootloader internal failure.
type InternalErrorResponse struct{}

// BadArgumentsResponse reports a command with a malformed payload.
type BadArgumentsResponse struct{}

// OKResponse acknowledges a command.
type OKResponse struct{}

// UnknownResponse reports an unrecognised command.
type UnknownResponse struct{}

// ExFlashTimeoutResponse reports that the external flash did not answer.
type ExFlashTimeoutResponse struct{}

// ExFlashPageErrorResponse reports an external flash page programming error.
type ExFlashPageErrorResponse struct{}

// CrcRxBufferResponse carries the length and CRC-32 of the RX buffer.
type CrcRxBufferResponse struct {
	Length uint16
	CRC    uint32
}

// ReadRangeResponse carries internal flash contents.
type ReadRangeResponse struct {
	Data []byte
}

// ExReadRangeResponse carries external flash contents.
type ExReadRangeResponse struct {
	Data []byte
}

// GetAttrResponse carries an attribute. Key is sent as exactly AttrKeySize
// bytes, null padded; Value is truncated to AttrMaxValueSize bytes.
type GetAttrResponse struct {
	Key   []byte
	Value []byte
}

// CrcIntFlashResponse carries the CRC-32 of an internal flash range.
type CrcIntFlashResponse struct {
	CRC uint32
}

// CrcExFlashResponse carries the CRC-32 of an external flash range.
type CrcExFlashResponse struct {
	CRC uint32
}

// InfoResponse carries the bootloader info block.
type InfoResponse struct {
	Info []byte
}

// ChangeBaudFailResponse reports that the baud rate verification failed.
type ChangeBaudFailResponse struct{}

func (OverflowResponse) Opcode() byte { return ResOverflow }
func (PongResponse) Opcode() byte { return ResPong }
func (BadAddressResponse) Opcode() byte { return ResBadAddress }
func (InternalErrorResponse) Opcode() byte { return ResInternalError }
func (BadArgumentsResponse) Opcode() byte { return ResBadArguments }
func (OKResponse) Opcode() byte { return ResOK }
func (UnknownResponse) Opcode() byte { return ResUnknown }
func (ExFlashTimeoutResponse) Opcode() byte { return ResExFlashTimeout }
func (ExFlashPageErrorResponse) Opcode() byte { return ResExFlashPageError }
func (CrcRxBufferResponse) Opcode() byte { return ResCrcRxBuffer }
func (ReadRangeResponse) Opcode() byte { return ResReadRange }
func (ExReadRangeResponse) Opcode() byte { return ResExReadRange }
func (GetAttrResponse) Opcode() byte { return ResGetAttr }
func (CrcIntFlashResponse) Opcode() byte { return ResCrcIntFlash }
func (CrcExFlashResponse) Opcode() byte { return ResCrcExFlash }
func (InfoResponse) Opcode() byte { return ResInfo }
func (ChangeBaudFailResponse) Opcode() byte { return ResChangeBaudFail }

func (OverflowResponse) payload() []field { return nil }
func (PongResponse) payload() []field { return nil }
func (BadAddressResponse) payload() []field { return nil }
func (InternalErrorResponse) payload() []field { return nil }
func (BadArgumentsResponse) payload() []field { return nil }
func (OKResponse) payload() []field { return nil }
func (UnknownResponse) payload() []field { return nil }
func (ExFlashTimeoutResponse) payload() []field { return nil }
func (ExFlashPageErrorResponse) payload() []field { return nil }
func (ChangeBaudFailResponse) payload() []field { return nil }

func (r CrcRxBufferResponse) payload() []field {
	return []field{u16Field(r.Length), u32Field(r.CRC)}
}

func (r ReadRangeResponse) payload() []field {
	return []field{rawField(r.Data)}
}

func (r ExReadRangeResponse) payload() []field {
	return []field{rawField(r.Data)}
}

func (r GetAttrResponse) payload() []field {
	return []field{
		fixedField(r.Key, AttrKeySize, 0x00),
		rawField(clip(r.Value, AttrMaxValueSize)),
	}
}

func (r CrcIntFlashResponse) payload() []field {
	return []field{u32Field(r.CRC)}
}

func (r CrcExFlashResponse) payload() []field {
	return []field{u32Field(r.CRC)}
}

func (r InfoResponse) payload() []field {
	return []field{rawField(r.Info)}
}

// ResponseName returns a human-readable name for a response opcode.
func ResponseName(opcode byte) string {
	switch opcode {
	case ResOverflow:
		return "overflow"
	case ResPong:
		return "pong"
	case ResBadAddress:
		return "bad address"
	case ResInternalError:
		return "internal error"
	case ResBadArguments:
		return "bad arguments"
	case ResOK:
		return "ok"
	case ResUnknown:
		return "unknown command"
	case ResExFlashTimeout:
		return "external flash timeout"
	case ResExFlashPageError:
		return "external flash page error"
	case ResCrcRxBuffer:
		return "crc rx buffer"
	case ResReadRange:
		return "read range"
	case ResExReadRange:
		return "external read range"
	case ResGetAttr:
		return "get attribute"
	case ResCrcIntFlash:
		return "crc internal flash"
	case ResCrcExFlash:
		return "crc external flash"
	case ResInfo:
		return "info"
	case ResChangeBaudFail:
		return "change baud failed"
	default:
		return "unknown response"
	}
}
