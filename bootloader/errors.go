package bootloader

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when the bootloader does not answer in time.
var ErrTimeout = errors.New("timed out waiting for response")

// VerifyError indicates that the flash CRC does not match the image.
type VerifyError struct {
	Address  uint32
	Length   uint32
	Expected uint32
	Actual   uint32
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("crc mismatch for 0x%08X+%d: expected 0x%08X, got 0x%08X",
		e.Address, e.Length, e.Expected, e.Actual)
}

// BaudChangeError indicates that the bootloader could not confirm a new baud rate.
type BaudChangeError struct {
	Baud uint32
}

func (e *BaudChangeError) Error() string {
	return fmt.Sprintf("bootloader rejected baud rate %d", e.Baud)
}
