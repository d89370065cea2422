// Package protocol implements the byte-stuffed serial bootloader protocol
// spoken between a flash tool and a microcontroller bootloader.
//
// # Framing
//
// Every Command and Response is a payload followed by a two byte trailer:
//
//	[PAYLOAD...][ESCAPE][OPCODE]
//
// Where:
//   - ESCAPE = 0xFC
//   - A literal 0xFC inside the payload is sent doubled (0xFC 0xFC)
//   - OPCODE identifies the variant and never equals ESCAPE
//   - Multi-byte integers are little-endian
//
// # Encoding
//
// Encoders are single-use, pull-based byte generators:
//
//	enc := protocol.NewCommandEncoder(protocol.ErasePageCommand{Address: 0x10000})
//	for b, ok := enc.Next(); ok; b, ok = enc.Next() {
//	    uart.WriteByte(b)
//	}
//
// They also implement io.Reader, and EncodeCommand / EncodeResponse return a
// whole frame at once.
//
// # Decoding
//
// Decoders are fed one byte at a time and are reused across frames:
//
//	dec := protocol.NewCommandDecoder()
//	cmd, err := dec.Receive(b)
//	switch {
//	case err != nil:
//	    // frame rejected; errors.Is(err, protocol.ErrBadArguments) etc.
//	case cmd != nil:
//	    // frame complete
//	default:
//	    // need more bytes
//	}
//
// The decoder retains at most BufferCapacity payload bytes per frame. Extra
// bytes are dropped and the frame is judged on the retained prefix.
//
// Zero-field variants (Ping, Pong, Ok, ...) ignore any bytes buffered before
// their trailer. Unknown opcodes produce ErrUnknownCommand unless the decoder
// was created with WithIgnoreUnknown.
package protocol
