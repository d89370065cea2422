package protocol

import "io"

// encoder walks a payload layout followed by the ESCAPE opcode trailer.
//
// count addresses logical bytes: payload bytes occupy [0, size), the
// trailer occupies size and size+1. A payload byte equal to EscapeChar is
// emitted twice; count only advances on the second emission.
type encoder struct {
	fields  []field
	size    int
	opcode  byte
	count   int
	pending bool
}

func newEncoder(opcode byte, fields []field) encoder {
	size := 0
	for _, f := range fields {
		size += f.width()
	}
	return encoder{fields: fields, size: size, opcode: opcode}
}

func (e *encoder) next() (byte, bool) {
	switch {
	case e.count < e.size:
		return e.send(e.payloadByte(e.count)), true
	case e.count == e.size:
		e.count++
		return EscapeChar, true
	case e.count == e.size+1:
		e.count++
		return e.opcode, true
	default:
		return 0, false
	}
}

// send is the escaping gate for payload bytes.
func (e *encoder) send(b byte) byte {
	if b != EscapeChar {
		e.count++
		return b
	}
	if e.pending {
		e.pending = false
		e.count++
	} else {
		e.pending = true
	}
	return EscapeChar
}

func (e *encoder) payloadByte(idx int) byte {
	for _, f := range e.fields {
		if idx < f.width() {
			return f.byteAt(idx)
		}
		idx -= f.width()
	}
	// unreachable: idx < e.size
	return PadByte
}

func (e *encoder) read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		b, ok := e.next()
		if !ok {
			break
		}
		p[n] = b
		n++
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// CommandEncoder produces the wire bytes of one Command. It borrows the
// command for its lifetime and cannot be restarted; create a new encoder
// per command.
type CommandEncoder struct {
	enc encoder
}

// NewCommandEncoder creates an encoder positioned at the first byte of cmd.
func NewCommandEncoder(cmd Command) *CommandEncoder {
	return &CommandEncoder{enc: newEncoder(cmd.Opcode(), cmd.payload())}
}

// Next returns the next encoded byte. Once all bytes have been emitted it
// returns false forevermore.
func (e *CommandEncoder) Next() (byte, bool) {
	return e.enc.next()
}

// Read implements io.Reader over the remaining encoded bytes.
func (e *CommandEncoder) Read(p []byte) (int, error) {
	return e.enc.read(p)
}

// ResponseEncoder produces the wire bytes of one Response. It borrows the
// response for its lifetime and cannot be restarted.
type ResponseEncoder struct {
	enc encoder
}

// NewResponseEncoder creates an encoder positioned at the first byte of rsp.
func NewResponseEncoder(rsp Response) *ResponseEncoder {
	return &ResponseEncoder{enc: newEncoder(rsp.Opcode(), rsp.payload())}
}

// Next returns the next encoded byte. Once all bytes have been emitted it
// returns false forevermore.
func (e *ResponseEncoder) Next() (byte, bool) {
	return e.enc.next()
}

// Read implements io.Reader over the remaining encoded bytes.
func (e *ResponseEncoder) Read(p []byte) (int, error) {
	return e.enc.read(p)
}

// EncodeCommand returns the complete frame for cmd.
//
// Example:
//
//	frame := protocol.EncodeCommand(protocol.ErasePageCommand{Address: 0xDEADBEEF})
//	// frame == []byte{0xEF, 0xBE, 0xAD, 0xDE, 0xFC, 0x06}
func EncodeCommand(cmd Command) []byte {
	return drain(NewCommandEncoder(cmd).Next)
}

// EncodeResponse returns the complete frame for rsp.
func EncodeResponse(rsp Response) []byte {
	return drain(NewResponseEncoder(rsp).Next)
}

func drain(next func() (byte, bool)) []byte {
	var frame []byte
	for {
		b, ok := next()
		if !ok {
			return frame
		}
		frame = append(frame, b)
	}
}
