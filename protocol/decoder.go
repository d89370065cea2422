package protocol

import "errors"

type decoderState int

const (
	stateLoading decoderState = iota
	stateEscape
)

// framer tracks escape state and accumulates payload bytes until a frame
// trailer (single ESCAPE followed by an opcode) arrives.
type framer struct {
	state       decoderState
	buf         buffer
	lastDropped int
}

// feed consumes one byte. It returns done with the opcode when b terminates
// a frame; the payload is then in f.buf until finish is called.
func (f *framer) feed(b byte) (opcode byte, done bool) {
	if f.state == stateEscape {
		f.state = stateLoading
		if b == EscapeChar {
			// Doubled escape is one literal escape byte.
			f.buf.append(EscapeChar)
			return 0, false
		}
		return b, true
	}

	if b == EscapeChar {
		f.state = stateEscape
	} else {
		f.buf.append(b)
	}
	return 0, false
}

// finish clears the payload after a frame completed, successfully or not.
func (f *framer) finish() {
	f.lastDropped = f.buf.dropped
	f.buf.reset()
}

func (f *framer) reset() {
	f.state = stateLoading
	f.buf.reset()
}

// Payload size markers for the layout tables.
const (
	// anyPayload marks variants without fields; buffered bytes are ignored.
	anyPayload = -1

	// variablePayload marks variants whose parser validates the length.
	variablePayload = -2
)

// layout describes how the payload of one opcode is parsed.
type layout[T any] struct {
	// size is the exact payload length, or anyPayload / variablePayload
	size int

	// parse builds the value; ok is false when the payload is malformed
	parse func(p []byte) (v T, ok bool)
}

func decodeFrame[T any](table map[byte]layout[T], opcode byte, p []byte) (T, error) {
	var zero T

	l, found := table[opcode]
	if !found {
		return zero, unknownCommand(opcode, len(p))
	}
	if l.size >= 0 && len(p) != l.size {
		return zero, badArguments(opcode, len(p))
	}

	v, ok := l.parse(p)
	if !ok {
		return zero, badArguments(opcode, len(p))
	}
	return v, nil
}

// DecoderOption configures a CommandDecoder or ResponseDecoder.
type DecoderOption func(*decoderConfig)

type decoderConfig struct {
	ignoreUnknown bool
}

// WithIgnoreUnknown treats frames with an unrecognised opcode as line noise:
// the frame is dropped and Receive reports nothing instead of
// ErrUnknownCommand.
func WithIgnoreUnknown() DecoderOption {
	return func(c *decoderConfig) {
		c.ignoreUnknown = true
	}
}

func newDecoderConfig(opts []DecoderOption) decoderConfig {
	var cfg decoderConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// CommandDecoder turns a byte stream into Commands. It is used on the
// bootloader side and is not safe for concurrent use.
type CommandDecoder struct {
	frame  framer
	config decoderConfig
}

// NewCommandDecoder creates a CommandDecoder with an empty buffer.
func NewCommandDecoder(opts ...DecoderOption) *CommandDecoder {
	return &CommandDecoder{config: newDecoderConfig(opts)}
}

// Receive processes one incoming byte.
//
// It returns (nil, nil) while the frame is incomplete, the decoded Command
// once the trailer arrives, or a *DecodeError if the frame is malformed.
// In both terminal cases the buffer is cleared and the next byte starts a
// new frame.
func (d *CommandDecoder) Receive(b byte) (Command, error) {
	opcode, done := d.frame.feed(b)
	if !done {
		return nil, nil
	}
	defer d.frame.finish()

	cmd, err := decodeFrame(commandLayouts, opcode, d.frame.buf.bytes())
	if err != nil && d.config.ignoreUnknown && errors.Is(err, ErrUnknownCommand) {
		return nil, nil
	}
	return cmd, err
}

// Reset discards any partially received frame.
func (d *CommandDecoder) Reset() {
	d.frame.reset()
}

// Buffered returns the number of payload bytes held for the current frame.
func (d *CommandDecoder) Buffered() int {
	return d.frame.buf.len()
}

// Dropped returns the number of payload bytes the most recently completed
// frame lost to the buffer capacity.
func (d *CommandDecoder) Dropped() int {
	return d.frame.lastDropped
}

// ResponseDecoder turns a byte stream into Responses. It is used on the
// flash tool side and is not safe for concurrent use.
type ResponseDecoder struct {
	frame  framer
	config decoderConfig
}

// NewResponseDecoder creates a ResponseDecoder with an empty buffer.
func NewResponseDecoder(opts ...DecoderOption) *ResponseDecoder {
	return &ResponseDecoder{config: newDecoderConfig(opts)}
}

// Receive processes one incoming byte. See CommandDecoder.Receive.
func (d *ResponseDecoder) Receive(b byte) (Response, error) {
	opcode, done := d.frame.feed(b)
	if !done {
		return nil, nil
	}
	defer d.frame.finish()

	rsp, err := decodeFrame(responseLayouts, opcode, d.frame.buf.bytes())
	if err != nil && d.config.ignoreUnknown && errors.Is(err, ErrUnknownCommand) {
		return nil, nil
	}
	return rsp, err
}

// Reset discards any partially received frame.
func (d *ResponseDecoder) Reset() {
	d.frame.reset()
}

// Buffered returns the number of payload bytes held for the current frame.
func (d *ResponseDecoder) Buffered() int {
	return d.frame.buf.len()
}

// Dropped returns the number of payload bytes the most recently completed
// frame lost to the buffer capacity.
func (d *ResponseDecoder) Dropped() int {
	return d.frame.lastDropped
}

func always[T any](v T) layout[T] {
	return layout[T]{
		size:  anyPayload,
		parse: func([]byte) (T, bool) { return v, true },
	}
}

func exact[T any](size int, parse func(p []byte) T) layout[T] {
	return layout[T]{
		size:  size,
		parse: func(p []byte) (T, bool) { return parse(p), true },
	}
}

var commandLayouts = map[byte]layout[Command]{
	CmdPing:  always[Command](PingCommand{}),
	CmdInfo:  always[Command](InfoCommand{}),
	CmdID:    always[Command](IDCommand{}),
	CmdReset: always[Command](ResetCommand{}),
	CmdErasePage: exact(4, func(p []byte) Command {
		return ErasePageCommand{Address: parseU32(p[0:4])}
	}),
	CmdWritePage: exact(4+PageSize, func(p []byte) Command {
		return WritePageCommand{Address: parseU32(p[0:4]), Data: clone(p[4:])}
	}),
	CmdEraseExBlock: exact(4, func(p []byte) Command {
		return EraseExBlockCommand{Address: parseU32(p[0:4])}
	}),
	CmdWriteExPage: exact(4+ExPageSize, func(p []byte) Command {
		return WriteExPageCommand{Address: parseU32(p[0:4]), Data: clone(p[4:])}
	}),
	CmdCrcRxBuffer: always[Command](CrcRxBufferCommand{}),
	CmdReadRange: exact(6, func(p []byte) Command {
		return ReadRangeCommand{Address: parseU32(p[0:4]), Length: parseU16(p[4:6])}
	}),
	CmdExReadRange: exact(6, func(p []byte) Command {
		return ExReadRangeCommand{Address: parseU32(p[0:4]), Length: parseU16(p[4:6])}
	}),
	CmdSetAttr: {size: variablePayload, parse: parseSetAttr},
	CmdGetAttr: exact(1, func(p []byte) Command {
		return GetAttrCommand{Index: p[0]}
	}),
	CmdCrcIntFlash: exact(8, func(p []byte) Command {
		return CrcIntFlashCommand{Address: parseU32(p[0:4]), Length: parseU32(p[4:8])}
	}),
	CmdCrcExFlash: exact(8, func(p []byte) Command {
		return CrcExFlashCommand{Address: parseU32(p[0:4]), Length: parseU32(p[4:8])}
	}),
	CmdEraseExPage: exact(4, func(p []byte) Command {
		return EraseExPageCommand{Address: parseU32(p[0:4])}
	}),
	CmdExFlashInit: always[Command](ExFlashInitCommand{}),
	CmdClockOut:    always[Command](ClockOutCommand{}),
	CmdWriteFlashUserPages: exact(8, func(p []byte) Command {
		return WriteFlashUserPagesCommand{Page1: parseU32(p[0:4]), Page2: parseU32(p[4:8])}
	}),
	CmdChangeBaud: {size: 5, parse: parseChangeBaud},
}

// parseSetAttr accepts [index][key 8][len][value len][trailer...]. At least
// one byte must follow the value; trailing bytes are ignored. Declared
// lengths above AttrMaxValueSize are rejected.
func parseSetAttr(p []byte) (Command, bool) {
	const prefix = 1 + AttrKeySize + 1
	if len(p) < prefix {
		return nil, false
	}
	n := int(p[prefix-1])
	if n > AttrMaxValueSize || len(p) <= prefix+n {
		return nil, false
	}
	return SetAttrCommand{
		Index: p[0],
		Key:   clone(p[1 : 1+AttrKeySize]),
		Value: clone(p[prefix : prefix+n]),
	}, true
}

func parseChangeBaud(p []byte) (Command, bool) {
	mode := BaudMode(p[0])
	if mode != BaudModeSet && mode != BaudModeVerify {
		return nil, false
	}
	return ChangeBaudCommand{Mode: mode, Baud: parseU32(p[1:5])}, true
}

var responseLayouts = map[byte]layout[Response]{
	ResOverflow:         always[Response](OverflowResponse{}),
	ResPong:             always[Response](PongResponse{}),
	ResBadAddress:       always[Response](BadAddressResponse{}),
	ResInternalError:    always[Response](InternalErrorResponse{}),
	ResBadArguments:     always[Response](BadArgumentsResponse{}),
	ResOK:               always[Response](OKResponse{}),
	ResUnknown:          always[Response](UnknownResponse{}),
	ResExFlashTimeout:   always[Response](ExFlashTimeoutResponse{}),
	ResExFlashPageError: always[Response](ExFlashPageErrorResponse{}),
	ResCrcRxBuffer: exact(6, func(p []byte) Response {
		return CrcRxBufferResponse{Length: parseU16(p[0:2]), CRC: parseU32(p[2:6])}
	}),
	ResReadRange: {size: variablePayload, parse: func(p []byte) (Response, bool) {
		return ReadRangeResponse{Data: clone(p)}, true
	}},
	ResExReadRange: {size: variablePayload, parse: func(p []byte) (Response, bool) {
		return ExReadRangeResponse{Data: clone(p)}, true
	}},
	ResGetAttr: {size: variablePayload, parse: parseGetAttr},
	ResCrcIntFlash: exact(4, func(p []byte) Response {
		return CrcIntFlashResponse{CRC: parseU32(p)}
	}),
	ResCrcExFlash: exact(4, func(p []byte) Response {
		return CrcExFlashResponse{CRC: parseU32(p)}
	}),
	ResInfo: {size: variablePayload, parse: func(p []byte) (Response, bool) {
		return InfoResponse{Info: clone(p)}, true
	}},
	ResChangeBaudFail: always[Response](ChangeBaudFailResponse{}),
}

// parseGetAttr accepts [key 8][value 0..AttrMaxValueSize].
func parseGetAttr(p []byte) (Response, bool) {
	if len(p) < AttrKeySize || len(p)-AttrKeySize > AttrMaxValueSize {
		return nil, false
	}
	return GetAttrResponse{
		Key:   clone(p[:AttrKeySize]),
		Value: clone(p[AttrKeySize:]),
	}, true
}
