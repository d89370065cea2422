package protocol

import (
	"errors"
	"fmt"
)

// Decode error kinds. A DecodeError unwraps to one of these, so callers can
// use errors.Is.
var (
	// ErrUnknownCommand means the frame opcode is not in the vocabulary.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrBadArguments means the opcode is known but the payload does not
	// match its layout.
	ErrBadArguments = errors.New("bad arguments")
)

// DecodeError is returned by a decoder when a completed frame cannot be
// turned into a value. The decoder has already cleared its buffer.
type DecodeError struct {
	// Kind is ErrUnknownCommand or ErrBadArguments
	Kind error

	// Opcode is the byte that terminated the frame
	Opcode byte

	// Length is the number of payload bytes that were buffered
	Length int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode opcode 0x%02X: %v (%d payload bytes)", e.Opcode, e.Kind, e.Length)
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

func badArguments(opcode byte, length int) error {
	return &DecodeError{Kind: ErrBadArguments, Opcode: opcode, Length: length}
}

func unknownCommand(opcode byte, length int) error {
	return &DecodeError{Kind: ErrUnknownCommand, Opcode: opcode, Length: length}
}

// ProtocolError represents an error response returned by the bootloader.
type ProtocolError struct {
	// Operation is the command that failed
	Operation string

	// Response is the opcode of the response the bootloader sent
	Response byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s failed: %s (0x%02X)", e.Operation, ResponseName(e.Response), e.Response)
}

// IsProtocolError returns true if the error is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
